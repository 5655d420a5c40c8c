package usecase

import (
	"context"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	SubmissionUseCase interface {
		Submit(ctx context.Context, idempotencyKey string, in dto.SubmitInput) (*entity.Submission, error)
		Get(ctx context.Context, id uuid.UUID) (*entity.Submission, error)
		Advance(ctx context.Context, id uuid.UUID, t dto.Transition) (*entity.Submission, error)

		GetPendingEvents(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)
		MarkProcessed(ctx context.Context, msg *entity.OutboxMessage) error
		RecordFailure(ctx context.Context, msg *entity.OutboxMessage, cause error) error
		CleanupOutbox(ctx context.Context, retention time.Duration) (int64, error)
	}

	PaymentUseCase interface {
		Charge(ctx context.Context, sub *entity.Submission) (*entity.Payment, error)
		Save(ctx context.Context, p *entity.Payment) error
	}

	Enqueuer interface {
		Enqueue(ctx context.Context, jobType entity.JobType, jobID string, payload any, priority string) (bool, error)
	}

	// Isolator runs fn behind a named guard (circuit breaker or bulkhead).
	Isolator interface {
		Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error
	}

	FlagUseCase interface {
		IsEnabled(ctx context.Context, name string) bool
		List(ctx context.Context) ([]entity.FeatureFlag, error)
		Set(ctx context.Context, name string, enabled bool) (*entity.FeatureFlag, error)
	}

	DeadLetterUseCase interface {
		Failed(ctx context.Context, queue string) ([]*entity.Job, error)
		Requeue(ctx context.Context, queue, jobID string) (bool, error)
		Purge(ctx context.Context, queue string) (int, error)
		Metrics(ctx context.Context) (map[string]int, error)
	}

	WorkerPoolUseCase interface {
		List() []entity.WorkerPoolDefinition
		Get(id string) (entity.WorkerPoolDefinition, error)
		ByQueue(queue string) (entity.WorkerPoolDefinition, error)
		Patch(ctx context.Context, id string, patch dto.PoolPatch) (entity.WorkerPoolDefinition, error)
		Pause(ctx context.Context, id string) error
		Resume(ctx context.Context, id string) error
		Enable(ctx context.Context, id string) error
		Disable(ctx context.Context, id string) error
		Clean(ctx context.Context, id string, grace time.Duration) (int, error)
		Stats(ctx context.Context, id string) (entity.PoolStats, error)
		AllStats(ctx context.Context) ([]entity.PoolStats, error)
	}

	ScalingUseCase interface {
		Evaluate(ctx context.Context) []entity.ScalingEvent
		Interval() time.Duration
		Workers(queue string) int
		Configs() []entity.ScalingConfig
		Config(queue string) (entity.ScalingConfig, error)
		Patch(queue string, patch dto.ScalingPatch) (entity.ScalingConfig, error)
		SetWorkers(queue string, workers int) (entity.ScalingEvent, error)
		Metrics(ctx context.Context) ([]dto.ScalingMetrics, error)
		History() []entity.ScalingEvent
	}

	BalancerUseCase interface {
		Strategy() string
		SetStrategy(name string) error
		Select(queue string) (entity.WorkerNode, error)
		JobStarted(queue, workerID string)
		JobCompleted(queue, workerID string, took time.Duration)
		JobFailed(queue, workerID string, took time.Duration)

		Nodes(queue string) ([]entity.WorkerNode, error)
		AddNode(queue, workerID string, weight int) (entity.WorkerNode, error)
		RemoveNode(queue, workerID string) error
		PatchNode(queue, workerID string, patch dto.NodePatch) (entity.WorkerNode, error)
		Metrics() dto.BalancerMetrics
		ResetMetrics()
	}

	ResilienceUseCase interface {
		Circuits(ctx context.Context) ([]entity.Circuit, error)
		ResetCircuit(ctx context.Context, name string) error
		Bulkheads(ctx context.Context) ([]entity.Bulkhead, error)
	}
)
