package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/memory"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/submission"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/google/uuid"
)

type enqueued struct {
	jobType  entity.JobType
	jobID    string
	payload  any
	priority string
}

type fakeQueue struct {
	mu    sync.Mutex
	fail  int
	calls []enqueued
}

func (q *fakeQueue) Enqueue(_ context.Context, jt entity.JobType, id string, payload any, priority string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.fail > 0 {
		q.fail--

		return false, errors.New("broker unavailable")
	}
	q.calls = append(q.calls, enqueued{jt, id, payload, priority})

	return true, nil
}

type relayFixture struct {
	relay  *OutboxRelay
	queue  *fakeQueue
	outbox *memory.OutboxRepo
	subs   *submission.SubmissionUseCase
}

func newRelay() relayFixture {
	l := logger.New("disabled")
	store := memory.NewStore()
	outbox := memory.NewOutboxRepo(store)
	guard := resilience.NewIdempotencyGuard(memory.NewIdempotencyRepo(store), resilience.StaticFlags{}, l)
	subs := submission.New(memory.NewSubmissionRepo(store), outbox, store, guard, l)
	q := &fakeQueue{}

	return relayFixture{
		relay:  New(subs, q, l, time.Second, time.Minute, time.Second, time.Hour, 100),
		queue:  q,
		outbox: outbox,
		subs:   subs,
	}
}

func put(t *testing.T, r *memory.OutboxRepo, et entity.EventType, payload any) *entity.OutboxMessage {
	t.Helper()

	msg, err := entity.NewOutboxMessage(uuid.New(), et, payload)
	if err != nil {
		t.Fatalf("NewOutboxMessage: %v", err)
	}
	if err = r.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	return msg
}

func TestFailedDispatchStaysUnprocessed(t *testing.T) {
	f := newRelay()
	ctx := context.Background()

	msg := put(t, f.outbox, entity.EventDocumentUploaded, dto.VerifyDocumentPayload{SubmissionID: uuid.New(), Priority: "high"})
	f.queue.fail = 1

	f.relay.processEventsBatch(ctx)

	pending, _ := f.subs.GetPendingEvents(ctx, 10)
	if len(pending) != 1 || pending[0].ID != msg.ID {
		t.Fatalf("expected the event to stay pending, got %v", pending)
	}
	if pending[0].Attempts != 1 || pending[0].LastError == nil {
		t.Fatalf("failure not recorded: %+v", pending[0])
	}

	f.relay.processEventsBatch(ctx)

	pending, _ = f.subs.GetPendingEvents(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("event still pending after successful retry")
	}
	if f.outbox.Len() != 1 {
		t.Fatalf("outbox rows = %d, retry must not duplicate the row", f.outbox.Len())
	}

	if len(f.queue.calls) != 1 {
		t.Fatalf("enqueue calls = %d", len(f.queue.calls))
	}
	call := f.queue.calls[0]
	if call.jobType != entity.JobVerifyDocument || call.jobID != JobID(entity.JobVerifyDocument, msg.ID) || call.priority != "high" {
		t.Fatalf("unexpected enqueue %+v", call)
	}
}

func TestEventRouting(t *testing.T) {
	f := newRelay()
	ctx := context.Background()
	subID := uuid.New()

	put(t, f.outbox, entity.EventDocumentVerified, dto.CreatePaymentPayload{SubmissionID: subID})
	put(t, f.outbox, entity.EventPaymentCompleted, dto.SendEmailPayload{SubmissionID: subID})
	put(t, f.outbox, entity.EventVerificationFailed, dto.SendEmailPayload{SubmissionID: subID, Reason: "bad pdf"})
	put(t, f.outbox, entity.EventEmailSent, dto.SendEmailPayload{SubmissionID: subID})
	put(t, f.outbox, entity.EventType("document_shredded"), struct{}{})
	put(t, f.outbox, entity.EventDocumentUploaded, "not an object")

	f.relay.processEventsBatch(ctx)

	if pending, _ := f.subs.GetPendingEvents(ctx, 10); len(pending) != 0 {
		t.Fatalf("%d events left pending", len(pending))
	}

	if len(f.queue.calls) != 3 {
		t.Fatalf("enqueue calls = %d, want 3", len(f.queue.calls))
	}

	if f.queue.calls[0].jobType != entity.JobCreatePayment {
		t.Fatalf("first call %+v", f.queue.calls[0])
	}

	confirm := decodeEmail(t, f.queue.calls[1].payload)
	if f.queue.calls[1].jobType != entity.JobSendEmail || confirm.Template != entity.TemplatePaymentConfirmation {
		t.Fatalf("payment_completed routed to %+v", f.queue.calls[1])
	}

	rejected := decodeEmail(t, f.queue.calls[2].payload)
	if rejected.Template != entity.TemplateVerificationFailed || f.queue.calls[2].priority != "low" || rejected.Reason != "bad pdf" {
		t.Fatalf("verification_failed routed to %+v", f.queue.calls[2])
	}
}

func decodeEmail(t *testing.T, payload any) dto.SendEmailPayload {
	t.Helper()

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var p dto.SendEmailPayload
	if err = json.Unmarshal(b, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	return p
}

func TestStartRunsImmediatelyAndShutsDown(t *testing.T) {
	f := newRelay()
	f.relay.pollInterval = time.Hour

	put(t, f.outbox, entity.EventDocumentUploaded, dto.VerifyDocumentPayload{SubmissionID: uuid.New()})

	if err := f.relay.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.relay.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.queue.mu.Lock()
		n := len(f.queue.calls)
		f.queue.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first pass did not run at start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.relay.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
