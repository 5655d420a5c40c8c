package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

func jobFor(t *testing.T, jt entity.JobType, payload any) *entity.Job {
	t.Helper()

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	return &entity.Job{ID: uuid.NewString(), Type: jt, Queue: jt.Queue(), Payload: b, Attempts: 1, MaxAttempts: 3}
}

func TestVerifyDuplicateDeliveryIsNoop(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	sub := p.submit(t, "docs/statement.pdf", validPDF)

	job := jobFor(t, entity.JobVerifyDocument, dto.VerifyDocumentPayload{SubmissionID: sub.ID})

	if err := p.handlers.VerifyDocument(ctx, job); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	rows := p.outbox.Len()

	if err := p.handlers.VerifyDocument(ctx, job); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if p.outbox.Len() != rows {
		t.Fatal("duplicate delivery emitted another event")
	}

	got, _ := p.subs.Get(ctx, sub.ID)
	if got.Status != entity.StatusVerified || got.Progress != 30 {
		t.Fatalf("status %s progress %d", got.Status, got.Progress)
	}
}

func TestVerifyMissingObjectIsFatal(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	sub, err := p.subs.Submit(ctx, "", dto.SubmitInput{
		ApplicantID: "a",
		Email:       "a@example.com",
		Amount:      1,
		Currency:    "USD",
		Documents:   []entity.Document{{Key: "docs/missing.pdf", Name: "missing.pdf", DeclaredType: "pdf"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	err = p.handlers.VerifyDocument(ctx, jobFor(t, entity.JobVerifyDocument, dto.VerifyDocumentPayload{SubmissionID: sub.ID}))
	if !errs.IsFatal(err) || !errors.Is(err, errs.ErrInvalidDocument) {
		t.Fatalf("expected fatal invalid document, got %v", err)
	}
}

func TestMalformedPayloadIsFatal(t *testing.T) {
	p := newPipeline(t)

	job := &entity.Job{ID: "x", Type: entity.JobCreatePayment, Payload: json.RawMessage(`[1,2`)}
	if err := p.handlers.CreatePayment(context.Background(), job); !errs.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}

	job = jobFor(t, entity.JobSendEmail, dto.SendEmailPayload{SubmissionID: uuid.New(), Template: entity.TemplatePaymentConfirmation})
	if err := p.handlers.SendEmail(context.Background(), job); !errs.IsFatal(err) || !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("expected fatal not found, got %v", err)
	}
}

func TestSendEmailResumesCompletion(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	sub := p.submit(t, "docs/statement.pdf", validPDF)

	for _, next := range []entity.Status{
		entity.StatusVerifying, entity.StatusVerified, entity.StatusProcessingPayment,
		entity.StatusPaymentInitiated, entity.StatusEmailSent,
	} {
		if _, err := p.subs.Advance(ctx, sub.ID, dto.Transition{Next: next}); err != nil {
			t.Fatalf("Advance %s: %v", next, err)
		}
	}

	job := jobFor(t, entity.JobSendEmail, dto.SendEmailPayload{SubmissionID: sub.ID, Template: entity.TemplatePaymentConfirmation})
	if err := p.handlers.SendEmail(ctx, job); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}

	got, _ := p.subs.Get(ctx, sub.ID)
	if got.Status != entity.StatusCompleted || got.Progress != 100 {
		t.Fatalf("status %s progress %d", got.Status, got.Progress)
	}
	if len(p.sender.Sent()) != 0 {
		t.Fatal("email sent twice")
	}
}

func advanceTo(t *testing.T, p *pipeline, id uuid.UUID, path ...entity.Status) {
	t.Helper()

	for _, next := range path {
		if _, err := p.subs.Advance(context.Background(), id, dto.Transition{Next: next}); err != nil {
			t.Fatalf("Advance %s: %v", next, err)
		}
	}
}

func assertStatus(t *testing.T, p *pipeline, id uuid.UUID, want entity.Status) {
	t.Helper()

	got, err := p.subs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != want || got.Progress != want.Progress() {
		t.Fatalf("status %s progress %d, want %s progress %d", got.Status, got.Progress, want, want.Progress())
	}
}

func TestCreatePaymentRetriesAfterGatewayFailure(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	sub := p.submit(t, "docs/statement.pdf", validPDF)
	advanceTo(t, p, sub.ID, entity.StatusVerifying, entity.StatusVerified)

	p.gateway.FailNext(1)
	rows := p.outbox.Len()

	job := jobFor(t, entity.JobCreatePayment, dto.CreatePaymentPayload{SubmissionID: sub.ID})
	err := p.handlers.CreatePayment(ctx, job)
	if err == nil || errs.IsFatal(err) {
		t.Fatalf("first attempt: want retryable error, got %v", err)
	}
	assertStatus(t, p, sub.ID, entity.StatusPaymentFailed)

	pay, err := p.payments.GetBySubmissionID(ctx, sub.ID)
	if err != nil || pay.Status != entity.PaymentFailed {
		t.Fatalf("payment after failure = %+v, %v", pay, err)
	}
	if p.outbox.Len() != rows {
		t.Fatal("failed charge emitted an event")
	}

	job.Attempts = 2
	if err = p.handlers.CreatePayment(ctx, job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertStatus(t, p, sub.ID, entity.StatusPaymentInitiated)

	pay, err = p.payments.GetBySubmissionID(ctx, sub.ID)
	if err != nil || pay.Status != entity.PaymentInitiated || pay.GatewayRef == nil {
		t.Fatalf("payment after retry = %+v, %v", pay, err)
	}
	if p.outbox.Len() != rows+1 {
		t.Fatalf("outbox rows = %d, want %d", p.outbox.Len(), rows+1)
	}
}

func TestVerifyRetriesAfterStorageFailure(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	sub := p.submit(t, "docs/statement.pdf", validPDF)

	p.storage.failures.Store(1)
	rows := p.outbox.Len()

	job := jobFor(t, entity.JobVerifyDocument, dto.VerifyDocumentPayload{SubmissionID: sub.ID})
	err := p.handlers.VerifyDocument(ctx, job)
	if !errors.Is(err, errStorage) || errs.IsFatal(err) {
		t.Fatalf("first attempt: want retryable storage error, got %v", err)
	}
	assertStatus(t, p, sub.ID, entity.StatusVerificationFailed)

	if p.outbox.Len() != rows {
		t.Fatal("storage failure emitted an event")
	}

	job.Attempts = 2
	if err = p.handlers.VerifyDocument(ctx, job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertStatus(t, p, sub.ID, entity.StatusVerified)

	if p.outbox.Len() != rows+1 {
		t.Fatalf("outbox rows = %d, want %d", p.outbox.Len(), rows+1)
	}
}

func TestStageResumesAfterInterruptedAttempt(t *testing.T) {
	tests := []struct {
		name string
		path []entity.Status
		run  func(t *testing.T, p *pipeline, id uuid.UUID) error
		want entity.Status
	}{
		{
			name: "verification",
			path: []entity.Status{entity.StatusVerifying},
			run: func(t *testing.T, p *pipeline, id uuid.UUID) error {
				job := jobFor(t, entity.JobVerifyDocument, dto.VerifyDocumentPayload{SubmissionID: id})
				job.Attempts = 2

				return p.handlers.VerifyDocument(context.Background(), job)
			},
			want: entity.StatusVerified,
		},
		{
			name: "payment",
			path: []entity.Status{entity.StatusVerifying, entity.StatusVerified, entity.StatusProcessingPayment},
			run: func(t *testing.T, p *pipeline, id uuid.UUID) error {
				job := jobFor(t, entity.JobCreatePayment, dto.CreatePaymentPayload{SubmissionID: id})
				job.Attempts = 2

				return p.handlers.CreatePayment(context.Background(), job)
			},
			want: entity.StatusPaymentInitiated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t)
			sub := p.submit(t, "docs/statement.pdf", validPDF)

			// an earlier attempt entered the stage and was cut short
			advanceTo(t, p, sub.ID, tt.path...)
			rows := p.outbox.Len()

			if err := tt.run(t, p, sub.ID); err != nil {
				t.Fatalf("resumed attempt: %v", err)
			}
			assertStatus(t, p, sub.ID, tt.want)

			if p.outbox.Len() != rows+1 {
				t.Fatalf("outbox rows = %d, want %d", p.outbox.Len(), rows+1)
			}
		})
	}
}
