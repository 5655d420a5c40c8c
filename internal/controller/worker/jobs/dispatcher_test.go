package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/broker"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/workerpool"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

type oneWorker struct{}

func (oneWorker) Workers(string) int { return 1 }

// blockingDispatcher runs a single email job whose handler waits for release
// and reports the context error it observes.
func blockingDispatcher(t *testing.T) (*Dispatcher, *broker.MemoryBroker, chan struct{}, chan struct{}, chan error) {
	t.Helper()

	l := logger.New("disabled")
	b := broker.NewMemoryBroker()
	pools := workerpool.New(b, []entity.WorkerPoolDefinition{{
		PoolID: "notifications-pool", QueueName: entity.JobSendEmail.Queue(), Concurrency: 1, Enabled: true,
	}}, l)

	started := make(chan struct{})
	release := make(chan struct{})
	seen := make(chan error, 1)

	handlers := map[entity.JobType]Handler{
		entity.JobSendEmail: func(ctx context.Context, _ *entity.Job) error {
			close(started)

			select {
			case <-release:
			case <-ctx.Done():
			}

			seen <- ctx.Err()

			return ctx.Err()
		},
	}

	d := NewDispatcher(b, handlers, pools, oneWorker{}, nil, resilience.StaticFlags{}, l, PollInterval(5*time.Millisecond))

	_, err := b.Add(context.Background(), &entity.Job{
		ID: "email-1", Queue: entity.JobSendEmail.Queue(), Type: entity.JobSendEmail,
		Payload: json.RawMessage(`{}`), MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err = d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	return d, b, started, release, seen
}

func TestDispatcherShutdownDrainsRunningJobs(t *testing.T) {
	d, b, started, release, seen := blockingDispatcher(t)
	<-started

	shutdown := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		shutdown <- d.Shutdown(ctx)
	}()

	select {
	case err := <-shutdown:
		t.Fatalf("Shutdown returned before the job finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	if err := <-seen; err != nil {
		t.Fatalf("handler context cancelled during graceful shutdown: %v", err)
	}
	if err := <-shutdown; err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	job, ok := b.Get("email-1")
	if !ok || job.State != entity.JobCompleted {
		t.Fatalf("job = %+v, want completed", job)
	}
}

func TestDispatcherShutdownTimeoutCancelsJobs(t *testing.T) {
	d, _, started, _, seen := blockingDispatcher(t)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := d.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown: got %v, want deadline exceeded", err)
	}

	select {
	case err := <-seen:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("handler saw %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled")
	}
}
