package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
)

func (uc *SubmissionUseCase) GetPendingEvents(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	msgs, err := uc.outbox.GetUnprocessed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - GetPendingEvents - uc.outbox.GetUnprocessed: %w", err)
	}

	return msgs, nil
}

func (uc *SubmissionUseCase) MarkProcessed(ctx context.Context, msg *entity.OutboxMessage) error {
	if err := uc.outbox.MarkProcessed(ctx, msg.ID); err != nil {
		return fmt.Errorf("SubmissionUseCase - MarkProcessed - uc.outbox.MarkProcessed: %w", err)
	}

	return nil
}

func (uc *SubmissionUseCase) RecordFailure(ctx context.Context, msg *entity.OutboxMessage, cause error) error {
	if err := uc.outbox.RecordFailure(ctx, msg.ID, cause.Error()); err != nil {
		return fmt.Errorf("SubmissionUseCase - RecordFailure - uc.outbox.RecordFailure: %w", err)
	}

	return nil
}

func (uc *SubmissionUseCase) CleanupOutbox(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := uc.outbox.DeleteProcessedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("SubmissionUseCase - CleanupOutbox - uc.outbox.DeleteProcessedBefore: %w", err)
	}

	return n, nil
}
