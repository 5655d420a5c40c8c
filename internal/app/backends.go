package app

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/config"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/broker"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/statestore"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/memory"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/persistent"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/redis"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/s3client"
)

// backends holds the storage chosen by the Storage config group.
type backends struct {
	transactor  repo.Transactor
	submissions repo.SubmissionRepo
	outbox      repo.OutboxRepo
	payments    repo.PaymentRepo
	idempotency repo.IdempotencyRepo
	flags       repo.FeatureFlagRepo
	documents   repo.DocumentRepo
	broker      infrastructure.Broker
	circuits    infrastructure.CircuitStore
	bulkheads   infrastructure.BulkheadStore

	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newBackends(ctx context.Context, cfg *config.Config, pipeline *config.Pipeline, l logger.Interface) (*backends, error) {
	b := &backends{}

	// Records and jobs
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
		if err != nil {
			return nil, fmt.Errorf("app - newBackends - postgres.New: %w", err)
		}
		b.closers = append(b.closers, pg.Close)

		b.transactor = pg
		b.submissions = persistent.NewSubmissionRepo(pg)
		b.outbox = persistent.NewOutboxRepo(pg)
		b.payments = persistent.NewPaymentRepo(pg)
		b.idempotency = persistent.NewIdempotencyRepo(pg)
		b.flags = persistent.NewFeatureFlagRepo(pg)
		b.broker = broker.NewPostgresBroker(pg)
	default:
		store := memory.NewStore()

		b.transactor = store
		b.submissions = memory.NewSubmissionRepo(store)
		b.outbox = memory.NewOutboxRepo(store)
		b.payments = memory.NewPaymentRepo(store)
		b.idempotency = memory.NewIdempotencyRepo(store)
		b.flags = memory.NewFeatureFlagRepo(store, pipeline.FeatureFlags()...)
		b.broker = broker.NewMemoryBroker()

		l.Warn("app - newBackends - in-memory storage, state is lost on restart")
	}

	// Circuit and bulkhead state
	switch cfg.Storage.StateDriver {
	case "redis":
		rc, err := redis.New(ctx, cfg.Redis.URL)
		if err != nil {
			b.close()

			return nil, fmt.Errorf("app - newBackends - redis.New: %w", err)
		}
		b.closers = append(b.closers, func() {
			if err := rc.Close(); err != nil {
				l.Error(err, "app - backends - rc.Close")
			}
		})

		b.circuits = statestore.NewRedisCircuitStore(rc.Client, cfg.Redis.KeyPrefix)
		b.bulkheads = statestore.NewRedisBulkheadStore(rc.Client, cfg.Redis.KeyPrefix)
	default:
		b.circuits = statestore.NewMemoryCircuitStore()
		b.bulkheads = statestore.NewMemoryBulkheadStore()
	}

	// Uploaded documents
	switch cfg.Storage.Documents {
	case "s3":
		s3c, err := s3client.New(ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
			s3client.DialTimeout(cfg.S3.CfgLoadTimeout),
			s3client.Region(cfg.S3.Region),
			s3client.UsePathStyle(true),
			s3client.Bucket(cfg.S3.Bucket),
		)
		if err != nil {
			b.close()

			return nil, fmt.Errorf("app - newBackends - s3client.New: %w", err)
		}

		b.documents = persistent.NewDocumentRepo(s3c, cfg.S3.Bucket, cfg.S3.MaxObjectSize)
	default:
		b.documents = memory.NewDocumentRepo(memory.NewStore())
	}

	return b, nil
}
