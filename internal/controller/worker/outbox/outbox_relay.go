package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type route struct {
	job      entity.JobType
	template entity.EmailTemplate
	priority string
}

// routes maps an outbox event to the job of the next stage. A zero job ends the chain.
var routes = map[entity.EventType]route{
	entity.EventDocumentUploaded:   {job: entity.JobVerifyDocument},
	entity.EventDocumentVerified:   {job: entity.JobCreatePayment},
	entity.EventPaymentCompleted:   {job: entity.JobSendEmail, template: entity.TemplatePaymentConfirmation},
	entity.EventVerificationFailed: {job: entity.JobSendEmail, template: entity.TemplateVerificationFailed, priority: "low"},
	entity.EventEmailSent:          {},
}

type OutboxRelay struct {
	subs   usecase.SubmissionUseCase
	queue  usecase.Enqueuer
	logger logger.Interface

	pollInterval        time.Duration
	cleanupInterval     time.Duration
	processBatchTimeout time.Duration
	retention           time.Duration
	batchSize           int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	subs usecase.SubmissionUseCase,
	queue usecase.Enqueuer,
	l logger.Interface,
	pollInterval time.Duration,
	cleanupInterval time.Duration,
	processBatchTimeout time.Duration,
	retention time.Duration,
	batchSize int,
) *OutboxRelay {
	return &OutboxRelay{
		subs:                subs,
		queue:               queue,
		logger:              l,
		pollInterval:        pollInterval,
		cleanupInterval:     cleanupInterval,
		processBatchTimeout: processBatchTimeout,
		retention:           retention,
		batchSize:           batchSize,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("OutboxRelay - Start - worker already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// 1. relay pending events into the queues, first pass right away
	r.worker(r.pollInterval, true, func() {
		batchCtx, batchCancel := context.WithTimeout(r.ctx, r.processBatchTimeout)
		r.processEventsBatch(batchCtx)
		batchCancel()
	})

	// 2. drop processed rows past retention
	r.worker(r.cleanupInterval, false, func() {
		n, err := r.subs.CleanupOutbox(r.ctx, r.retention)
		if err != nil {
			r.logger.Error(err, "OutboxRelay - Start - worker - r.subs.CleanupOutbox")

			return
		}
		if n > 0 {
			r.logger.Debug("OutboxRelay - cleanup removed %d processed events", n)
		}
	})

	return nil
}

func (r *OutboxRelay) processEventsBatch(ctx context.Context) {
	// 1. unprocessed events, oldest first
	events, err := r.subs.GetPendingEvents(ctx, r.batchSize)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.subs.GetPendingEvents")

		return
	}

	for _, msg := range events {
		// 2. enqueue the next stage
		err = r.dispatch(ctx, msg)
		if err != nil && !errs.IsFatal(err) {
			r.logger.Error(err, "OutboxRelay - processEventsBatch - r.dispatch")
			// 2.1 leave it unprocessed, the next tick retries
			if recErr := r.subs.RecordFailure(ctx, msg, err); recErr != nil {
				r.logger.Error(recErr, "OutboxRelay - processEventsBatch - r.subs.RecordFailure")
			}

			continue
		}
		if err != nil {
			r.logger.Error(err, "OutboxRelay - processEventsBatch - dropping event %s", msg.ID)
		}

		// 3. done
		if err = r.subs.MarkProcessed(ctx, msg); err != nil {
			r.logger.Error(err, "OutboxRelay - processEventsBatch - r.subs.MarkProcessed")
		}
	}
}

func (r *OutboxRelay) dispatch(ctx context.Context, msg *entity.OutboxMessage) error {
	rt, ok := routes[msg.EventType]
	if !ok {
		r.logger.Warn("OutboxRelay - dispatch - unknown event type %q in %s, skipping", msg.EventType, msg.ID)

		return nil
	}
	if rt.job == "" {
		return nil
	}

	payload, priority, err := rt.payload(msg.Payload)
	if err != nil {
		return errs.Fatal(fmt.Errorf("OutboxRelay - dispatch - decode %s payload: %w", msg.EventType, err))
	}

	added, err := r.queue.Enqueue(ctx, rt.job, JobID(rt.job, msg.ID), payload, priority)
	if err != nil {
		return fmt.Errorf("OutboxRelay - dispatch - r.queue.Enqueue: %w", err)
	}
	if !added {
		r.logger.Debug("OutboxRelay - dispatch - %s already queued for event %s", rt.job, msg.ID)
	}

	return nil
}

func (rt route) payload(raw json.RawMessage) (any, string, error) {
	if rt.job != entity.JobSendEmail {
		var p struct {
			SubmissionID uuid.UUID `json:"submission_id"`
			Priority     string    `json:"priority"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}

		return raw, p.Priority, nil
	}

	var p dto.SendEmailPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", err
	}

	p.Template = rt.template
	if rt.priority != "" {
		p.Priority = rt.priority
	}

	return p, p.Priority, nil
}

// JobID derives the broker job id from the event, so a re-delivered event
// is deduplicated by the broker.
func JobID(jt entity.JobType, eventID uuid.UUID) string {
	return string(jt) + "-" + eventID.String()
}

func (r *OutboxRelay) worker(interval time.Duration, immediate bool, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if immediate {
			task()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *OutboxRelay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("OutboxRelay - Shutdown: %w", ctx.Err())
	}
}
