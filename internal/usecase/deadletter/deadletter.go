package deadletter

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

// DeadLetterUseCase manages jobs that exhausted their attempts or failed fatally.
type DeadLetterUseCase struct {
	broker infrastructure.Broker
	queues []string
	logger logger.Interface
}

func New(b infrastructure.Broker, l logger.Interface) *DeadLetterUseCase {
	queues := make([]string, 0, len(entity.JobTypes))
	for _, jt := range entity.JobTypes {
		queues = append(queues, jt.Queue())
	}

	return &DeadLetterUseCase{
		broker: b,
		queues: queues,
		logger: l,
	}
}

func (uc *DeadLetterUseCase) known(queue string) error {
	for _, q := range uc.queues {
		if q == queue {
			return nil
		}
	}

	return fmt.Errorf("%q: %w", queue, errs.ErrUnknownQueue)
}

func (uc *DeadLetterUseCase) Failed(ctx context.Context, queue string) ([]*entity.Job, error) {
	if err := uc.known(queue); err != nil {
		return nil, fmt.Errorf("DeadLetterUseCase - Failed: %w", err)
	}

	jobs, err := uc.broker.Failed(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("DeadLetterUseCase - Failed - uc.broker.Failed: %w", err)
	}

	return jobs, nil
}

// Requeue moves a failed job back to waiting with its attempts reset.
// It reports false when no failed job with that id exists.
func (uc *DeadLetterUseCase) Requeue(ctx context.Context, queue, jobID string) (bool, error) {
	if err := uc.known(queue); err != nil {
		return false, fmt.Errorf("DeadLetterUseCase - Requeue: %w", err)
	}

	ok, err := uc.broker.Retry(ctx, queue, jobID)
	if err != nil {
		return false, fmt.Errorf("DeadLetterUseCase - Requeue - uc.broker.Retry: %w", err)
	}

	if ok {
		uc.logger.Info("DeadLetterUseCase - Requeue - job %s requeued on %s", jobID, queue)
	}

	return ok, nil
}

func (uc *DeadLetterUseCase) Purge(ctx context.Context, queue string) (int, error) {
	if err := uc.known(queue); err != nil {
		return 0, fmt.Errorf("DeadLetterUseCase - Purge: %w", err)
	}

	n, err := uc.broker.PurgeFailed(ctx, queue)
	if err != nil {
		return 0, fmt.Errorf("DeadLetterUseCase - Purge - uc.broker.PurgeFailed: %w", err)
	}

	uc.logger.Info("DeadLetterUseCase - Purge - removed %d failed jobs from %s", n, queue)

	return n, nil
}

// Metrics returns the failed job count of every queue.
func (uc *DeadLetterUseCase) Metrics(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(uc.queues))

	for _, q := range uc.queues {
		c, err := uc.broker.Counts(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("DeadLetterUseCase - Metrics - uc.broker.Counts: %w", err)
		}
		out[q] = c.Failed
	}

	return out, nil
}
