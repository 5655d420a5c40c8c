package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

const EmailBreakerName = "email_service"

// Handler executes one job. An error wrapped with errs.Fatal is not retried.
type Handler func(ctx context.Context, job *entity.Job) error

// Handlers carries the dependencies of the pipeline stages.
type Handlers struct {
	subs     usecase.SubmissionUseCase
	payments usecase.PaymentUseCase
	verifier infrastructure.DocumentVerifier
	email    infrastructure.EmailSender
	breaker  usecase.Isolator
	logger   logger.Interface
}

func NewHandlers(
	subs usecase.SubmissionUseCase,
	payments usecase.PaymentUseCase,
	verifier infrastructure.DocumentVerifier,
	email infrastructure.EmailSender,
	breaker usecase.Isolator,
	l logger.Interface,
) *Handlers {
	return &Handlers{
		subs:     subs,
		payments: payments,
		verifier: verifier,
		email:    email,
		breaker:  breaker,
		logger:   l,
	}
}

// Map returns every stage keyed by job type, wrapped with attempt logging.
func (h *Handlers) Map() map[entity.JobType]Handler {
	return map[entity.JobType]Handler{
		entity.JobVerifyDocument: h.withAttempts(entity.JobVerifyDocument, h.VerifyDocument),
		entity.JobCreatePayment:  h.withAttempts(entity.JobCreatePayment, h.CreatePayment),
		entity.JobSendEmail:      h.withAttempts(entity.JobSendEmail, h.SendEmail),
	}
}

func (h *Handlers) withAttempts(jt entity.JobType, next Handler) Handler {
	return func(ctx context.Context, job *entity.Job) error {
		h.logger.Debug("%s - job %s attempt %d/%d", jt, job.ID, job.Attempts, job.MaxAttempts)

		err := next(ctx, job)
		if err != nil {
			h.logger.Warn("%s - job %s failed on attempt %d/%d: %v", jt, job.ID, job.Attempts, job.MaxAttempts, err)
		}

		return err
	}
}

// advance moves the submission and reports done=true when the move was
// already made by an earlier delivery of the same job.
func (h *Handlers) advance(ctx context.Context, id uuid.UUID, t dto.Transition) (*entity.Submission, bool, error) {
	sub, err := h.subs.Advance(ctx, id, t)
	if errors.Is(err, errs.ErrInvalidTransition) {
		h.logger.Info("submission %s: %v, treating as already done", id, err)

		return nil, true, nil
	}
	if errors.Is(err, errs.ErrRecordNotFound) {
		return nil, false, errs.Fatal(err)
	}

	return sub, false, err
}

// enter puts the submission into the in-progress status of a stage. A
// submission already in that status was left there by an interrupted
// attempt and is resumed rather than treated as done.
func (h *Handlers) enter(ctx context.Context, id uuid.UUID, stage entity.Status) (*entity.Submission, bool, error) {
	sub, err := h.subs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, false, errs.Fatal(err)
		}

		return nil, false, err
	}

	if sub.Status == stage {
		h.logger.Info("submission %s is already %s, resuming the stage", id, stage)

		return sub, false, nil
	}

	return h.advance(ctx, id, dto.Transition{Next: stage})
}

func decode(job *entity.Job, v any) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return errs.Fatal(fmt.Errorf("decode %s payload: %w", job.Type, err))
	}

	return nil
}

func (h *Handlers) VerifyDocument(ctx context.Context, job *entity.Job) error {
	var p dto.VerifyDocumentPayload
	if err := decode(job, &p); err != nil {
		return err
	}

	// 1. verifying
	sub, done, err := h.enter(ctx, p.SubmissionID, entity.StatusVerifying)
	if err != nil {
		return fmt.Errorf("Handlers - VerifyDocument - h.enter: %w", err)
	}
	if done {
		return nil
	}

	// 2. every document has to pass
	for _, doc := range sub.Documents {
		err = h.verifier.Verify(ctx, doc)
		if err == nil {
			continue
		}

		// 2.1 bad content is final, storage trouble is retried
		t := dto.Transition{Next: entity.StatusVerificationFailed, Cause: err}
		invalid := errors.Is(err, errs.ErrInvalidDocument)
		if invalid {
			t.Events = []dto.OutboxEvent{{
				Type: entity.EventVerificationFailed,
				Payload: dto.SendEmailPayload{
					SubmissionID: sub.ID,
					Template:     entity.TemplateVerificationFailed,
					Reason:       err.Error(),
				},
			}}
		}

		if _, _, advErr := h.advance(ctx, sub.ID, t); advErr != nil {
			err = errors.Join(err, advErr)
		}

		err = fmt.Errorf("Handlers - VerifyDocument - h.verifier.Verify: %w", err)
		if invalid {
			return errs.Fatal(err)
		}

		return err
	}

	// 3. verified, hand over to payment
	_, _, err = h.advance(ctx, sub.ID, dto.Transition{
		Next: entity.StatusVerified,
		Events: []dto.OutboxEvent{{
			Type:    entity.EventDocumentVerified,
			Payload: dto.CreatePaymentPayload{SubmissionID: sub.ID, Priority: p.Priority},
		}},
	})
	if err != nil {
		return fmt.Errorf("Handlers - VerifyDocument - h.advance: %w", err)
	}

	return nil
}

func (h *Handlers) CreatePayment(ctx context.Context, job *entity.Job) error {
	var p dto.CreatePaymentPayload
	if err := decode(job, &p); err != nil {
		return err
	}

	// 1. processing_payment
	sub, done, err := h.enter(ctx, p.SubmissionID, entity.StatusProcessingPayment)
	if err != nil {
		return fmt.Errorf("Handlers - CreatePayment - h.enter: %w", err)
	}
	if done {
		return nil
	}

	// 2. charge
	payment, err := h.payments.Charge(ctx, sub)
	save := func(ctx context.Context) error {
		return h.payments.Save(ctx, payment)
	}

	if err != nil {
		// 2.1 failed payment row + payment_failed, the broker retries
		if _, _, advErr := h.advance(ctx, sub.ID, dto.Transition{
			Next:  entity.StatusPaymentFailed,
			Cause: err,
			Also:  save,
		}); advErr != nil {
			err = errors.Join(err, advErr)
		}

		return fmt.Errorf("Handlers - CreatePayment - h.payments.Charge: %w", err)
	}

	// 3. payment_initiated, hand over to notification
	_, _, err = h.advance(ctx, sub.ID, dto.Transition{
		Next: entity.StatusPaymentInitiated,
		Also: save,
		Events: []dto.OutboxEvent{{
			Type: entity.EventPaymentCompleted,
			Payload: dto.SendEmailPayload{
				SubmissionID: sub.ID,
				Template:     entity.TemplatePaymentConfirmation,
				Priority:     p.Priority,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("Handlers - CreatePayment - h.advance: %w", err)
	}

	return nil
}

// SendEmail never fails the job because of delivery problems.
func (h *Handlers) SendEmail(ctx context.Context, job *entity.Job) error {
	var p dto.SendEmailPayload
	if err := decode(job, &p); err != nil {
		return err
	}

	sub, err := h.subs.Get(ctx, p.SubmissionID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errs.Fatal(fmt.Errorf("Handlers - SendEmail - h.subs.Get: %w", err))
		}

		return fmt.Errorf("Handlers - SendEmail - h.subs.Get: %w", err)
	}

	if p.Template != entity.TemplatePaymentConfirmation {
		h.deliver(ctx, sub, p)

		return nil
	}

	switch sub.Status {
	case entity.StatusPaymentInitiated:
		h.deliver(ctx, sub, p)

		_, done, err := h.advance(ctx, sub.ID, dto.Transition{
			Next: entity.StatusEmailSent,
			Events: []dto.OutboxEvent{{
				Type:    entity.EventEmailSent,
				Payload: dto.SendEmailPayload{SubmissionID: sub.ID, Template: p.Template},
			}},
		})
		if err != nil {
			return fmt.Errorf("Handlers - SendEmail - h.advance: %w", err)
		}
		if done {
			return nil
		}
	case entity.StatusEmailSent:
		// sent on an earlier attempt, only completion is missing
	default:
		h.logger.Info("Handlers - SendEmail - submission %s is %s, nothing to do", sub.ID, sub.Status)

		return nil
	}

	if _, _, err = h.advance(ctx, sub.ID, dto.Transition{Next: entity.StatusCompleted}); err != nil {
		return fmt.Errorf("Handlers - SendEmail - h.advance: %w", err)
	}

	return nil
}

func (h *Handlers) deliver(ctx context.Context, sub *entity.Submission, p dto.SendEmailPayload) {
	email := entity.Email{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		To:           sub.Email,
		Template:     p.Template,
		Data: map[string]string{
			"applicant_id": sub.ApplicantID,
			"amount":       strconv.FormatInt(sub.Amount, 10),
			"currency":     sub.Currency,
		},
	}
	if p.Reason != "" {
		email.Data["reason"] = p.Reason
	}

	err := h.breaker.Execute(ctx, EmailBreakerName, func(ctx context.Context) error {
		return h.email.Send(ctx, email)
	})
	if err != nil {
		h.logger.Warn("Handlers - deliver - %s email for %s not sent: %v", p.Template, sub.ID, err)
	}
}
