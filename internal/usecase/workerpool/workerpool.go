package workerpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

const (
	_throughputWindow = time.Minute
	_avgSampleSize    = 100

	MinConcurrency = 1
	MaxConcurrency = 100
)

// WorkerPoolUseCase owns the pool definitions and derives live stats from the broker.
type WorkerPoolUseCase struct {
	broker infrastructure.Broker
	logger logger.Interface
	now    func() time.Time

	mu    sync.RWMutex
	pools map[string]entity.WorkerPoolDefinition
}

type Option func(*WorkerPoolUseCase)

func Clock(now func() time.Time) Option {
	return func(uc *WorkerPoolUseCase) {
		uc.now = now
	}
}

func New(b infrastructure.Broker, pools []entity.WorkerPoolDefinition, l logger.Interface, opts ...Option) *WorkerPoolUseCase {
	uc := &WorkerPoolUseCase{
		broker: b,
		logger: l,
		now:    time.Now,
		pools:  make(map[string]entity.WorkerPoolDefinition, len(pools)),
	}

	for _, p := range pools {
		uc.pools[p.PoolID] = p
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// List returns pools ordered by priority, then id.
func (uc *WorkerPoolUseCase) List() []entity.WorkerPoolDefinition {
	uc.mu.RLock()
	out := make([]entity.WorkerPoolDefinition, 0, len(uc.pools))
	for _, p := range uc.pools {
		out = append(out, p)
	}
	uc.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}

		return out[i].PoolID < out[j].PoolID
	})

	return out
}

func (uc *WorkerPoolUseCase) Get(id string) (entity.WorkerPoolDefinition, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	p, ok := uc.pools[id]
	if !ok {
		return entity.WorkerPoolDefinition{}, fmt.Errorf("WorkerPoolUseCase - Get - %q: %w", id, errs.ErrUnknownPool)
	}

	return p, nil
}

func (uc *WorkerPoolUseCase) ByQueue(queue string) (entity.WorkerPoolDefinition, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	for _, p := range uc.pools {
		if p.QueueName == queue {
			return p, nil
		}
	}

	return entity.WorkerPoolDefinition{}, fmt.Errorf("WorkerPoolUseCase - ByQueue - %q: %w", queue, errs.ErrUnknownQueue)
}

func (uc *WorkerPoolUseCase) Patch(_ context.Context, id string, patch dto.PoolPatch) (entity.WorkerPoolDefinition, error) {
	if patch.Concurrency != nil && (*patch.Concurrency < MinConcurrency || *patch.Concurrency > MaxConcurrency) {
		return entity.WorkerPoolDefinition{}, fmt.Errorf(
			"WorkerPoolUseCase - Patch - concurrency %d outside [%d, %d]: %w",
			*patch.Concurrency, MinConcurrency, MaxConcurrency, errs.ErrInvalidConfig,
		)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	p, ok := uc.pools[id]
	if !ok {
		return entity.WorkerPoolDefinition{}, fmt.Errorf("WorkerPoolUseCase - Patch - %q: %w", id, errs.ErrUnknownPool)
	}

	if patch.Concurrency != nil {
		p.Concurrency = *patch.Concurrency
	}
	if patch.Priority != nil {
		p.Priority = *patch.Priority
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}

	uc.pools[id] = p

	uc.logger.Info("WorkerPoolUseCase - Patch - pool %s: concurrency=%d priority=%d enabled=%t",
		id, p.Concurrency, p.Priority, p.Enabled)

	return p, nil
}

func (uc *WorkerPoolUseCase) Pause(ctx context.Context, id string) error {
	p, err := uc.Get(id)
	if err != nil {
		return err
	}

	if err = uc.broker.Pause(ctx, p.QueueName); err != nil {
		return fmt.Errorf("WorkerPoolUseCase - Pause - uc.broker.Pause: %w", err)
	}

	uc.logger.Info("WorkerPoolUseCase - Pause - queue %s paused", p.QueueName)

	return nil
}

func (uc *WorkerPoolUseCase) Resume(ctx context.Context, id string) error {
	p, err := uc.Get(id)
	if err != nil {
		return err
	}

	if err = uc.broker.Resume(ctx, p.QueueName); err != nil {
		return fmt.Errorf("WorkerPoolUseCase - Resume - uc.broker.Resume: %w", err)
	}

	uc.logger.Info("WorkerPoolUseCase - Resume - queue %s resumed", p.QueueName)

	return nil
}

// Enable marks the pool enabled and resumes its queue.
func (uc *WorkerPoolUseCase) Enable(ctx context.Context, id string) error {
	enabled := true
	if _, err := uc.Patch(ctx, id, dto.PoolPatch{Enabled: &enabled}); err != nil {
		return err
	}

	return uc.Resume(ctx, id)
}

// Disable marks the pool disabled and pauses its queue.
func (uc *WorkerPoolUseCase) Disable(ctx context.Context, id string) error {
	enabled := false
	if _, err := uc.Patch(ctx, id, dto.PoolPatch{Enabled: &enabled}); err != nil {
		return err
	}

	return uc.Pause(ctx, id)
}

// Clean removes completed and failed jobs that finished more than grace ago.
func (uc *WorkerPoolUseCase) Clean(ctx context.Context, id string, grace time.Duration) (int, error) {
	if grace < 0 {
		return 0, fmt.Errorf("WorkerPoolUseCase - Clean - negative grace %s: %w", grace, errs.ErrInvalidInput)
	}

	p, err := uc.Get(id)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, state := range []entity.JobState{entity.JobCompleted, entity.JobFailed} {
		n, err := uc.broker.Clean(ctx, p.QueueName, grace, state)
		if err != nil {
			return total, fmt.Errorf("WorkerPoolUseCase - Clean - uc.broker.Clean: %w", err)
		}
		total += n
	}

	uc.logger.Info("WorkerPoolUseCase - Clean - removed %d jobs from %s", total, p.QueueName)

	return total, nil
}

func (uc *WorkerPoolUseCase) Stats(ctx context.Context, id string) (entity.PoolStats, error) {
	p, err := uc.Get(id)
	if err != nil {
		return entity.PoolStats{}, err
	}

	return uc.stats(ctx, p)
}

func (uc *WorkerPoolUseCase) AllStats(ctx context.Context) ([]entity.PoolStats, error) {
	pools := uc.List()
	out := make([]entity.PoolStats, 0, len(pools))

	for _, p := range pools {
		s, err := uc.stats(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}

func (uc *WorkerPoolUseCase) stats(ctx context.Context, p entity.WorkerPoolDefinition) (entity.PoolStats, error) {
	counts, err := uc.broker.Counts(ctx, p.QueueName)
	if err != nil {
		return entity.PoolStats{}, fmt.Errorf("WorkerPoolUseCase - stats - uc.broker.Counts: %w", err)
	}

	throughput, err := uc.broker.CompletedSince(ctx, p.QueueName, uc.now().Add(-_throughputWindow))
	if err != nil {
		return entity.PoolStats{}, fmt.Errorf("WorkerPoolUseCase - stats - uc.broker.CompletedSince: %w", err)
	}

	recent, err := uc.broker.RecentCompleted(ctx, p.QueueName, _avgSampleSize)
	if err != nil {
		return entity.PoolStats{}, fmt.Errorf("WorkerPoolUseCase - stats - uc.broker.RecentCompleted: %w", err)
	}

	s := entity.PoolStats{
		PoolID:            p.PoolID,
		QueueName:         p.QueueName,
		Enabled:           p.Enabled,
		QueueCounts:       counts,
		Throughput:        throughput,
		AvgProcessingTime: avgMillis(recent),
		ErrorRate:         errorRate(counts),
	}
	s.Health = Health(s)

	return s, nil
}

func avgMillis(jobs []*entity.Job) float64 {
	var (
		sum time.Duration
		n   int
	)

	for _, j := range jobs {
		if d := j.ProcessingTime(); d > 0 {
			sum += d
			n++
		}
	}

	if n == 0 {
		return 0
	}

	return float64(sum.Milliseconds()) / float64(n)
}

func errorRate(c entity.QueueCounts) float64 {
	total := c.Completed + c.Failed
	if total == 0 {
		return 0
	}

	return float64(c.Failed) / float64(total)
}

// Health derives the verdict from stats; paused wins over everything else.
func Health(s entity.PoolStats) entity.PoolHealth {
	switch {
	case s.Paused:
		return entity.PoolPaused
	case s.ErrorRate > 0.5 || s.Waiting > 1000:
		return entity.PoolCritical
	case s.ErrorRate > 0.2 || s.Waiting > 500 || (s.Active > 0 && s.Throughput == 0):
		return entity.PoolDegraded
	default:
		return entity.PoolActive
	}
}
