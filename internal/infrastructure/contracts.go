package infrastructure

import (
	"context"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
)

type (
	// Broker holds queued jobs. Reserve returns nil, nil when no job is due.
	// Fail schedules a retry unless attempts are exhausted or cause is fatal.
	// Reclaim returns jobs left active longer than staleAfter, typically by a
	// crashed worker, to the retry path.
	Broker interface {
		Add(ctx context.Context, job *entity.Job) (bool, error)
		Reserve(ctx context.Context, queue, workerID string) (*entity.Job, error)
		Complete(ctx context.Context, job *entity.Job) error
		Fail(ctx context.Context, job *entity.Job, cause error) (entity.JobState, error)
		Reclaim(ctx context.Context, queue string, staleAfter time.Duration) (int, error)

		Counts(ctx context.Context, queue string) (entity.QueueCounts, error)
		CompletedSince(ctx context.Context, queue string, since time.Time) (int, error)
		RecentCompleted(ctx context.Context, queue string, limit int) ([]*entity.Job, error)

		Failed(ctx context.Context, queue string) ([]*entity.Job, error)
		Retry(ctx context.Context, queue, id string) (bool, error)
		PurgeFailed(ctx context.Context, queue string) (int, error)

		Pause(ctx context.Context, queue string) error
		Resume(ctx context.Context, queue string) error
		Clean(ctx context.Context, queue string, grace time.Duration, state entity.JobState) (int, error)
	}

	CircuitStore interface {
		Load(ctx context.Context, name string) (entity.Circuit, error)
		Save(ctx context.Context, c entity.Circuit) error
		List(ctx context.Context) ([]entity.Circuit, error)
	}

	BulkheadStore interface {
		TryAcquire(ctx context.Context, name string, capacity int) (int, bool, error)
		Release(ctx context.Context, name string) error
		Usage(ctx context.Context, name string) (int, error)
	}

	EmailSender interface {
		Send(ctx context.Context, email entity.Email) error
		Close() error
	}

	PaymentGateway interface {
		CreatePayment(ctx context.Context, req entity.PaymentRequest) (string, error)
	}

	DocumentVerifier interface {
		Verify(ctx context.Context, doc entity.Document) error
	}
)
