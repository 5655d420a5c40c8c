package repo

import (
	"context"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}

	OutboxRepo interface {
		Create(ctx context.Context, msg *entity.OutboxMessage) error
		GetUnprocessed(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		RecordFailure(ctx context.Context, id uuid.UUID, reason string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	SubmissionRepo interface {
		Create(ctx context.Context, s *entity.Submission) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status entity.Status, progress int, lastError *string) error
	}

	PaymentRepo interface {
		Upsert(ctx context.Context, p *entity.Payment) error
		GetBySubmissionID(ctx context.Context, submissionID uuid.UUID) (*entity.Payment, error)
	}

	IdempotencyRepo interface {
		Get(ctx context.Context, key string, now time.Time) (*entity.IdempotencyRecord, error)
		Save(ctx context.Context, rec *entity.IdempotencyRecord) error
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}

	FeatureFlagRepo interface {
		List(ctx context.Context) ([]entity.FeatureFlag, error)
		Get(ctx context.Context, name string) (*entity.FeatureFlag, error)
		SetEnabled(ctx context.Context, name string, enabled bool) (*entity.FeatureFlag, error)
	}

	DocumentRepo interface {
		Size(ctx context.Context, key string) (int64, error)
		DownloadBytes(ctx context.Context, key string) ([]byte, error)
	}
)
