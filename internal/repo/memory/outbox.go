package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type OutboxRepo struct {
	*Store
}

func NewOutboxRepo(s *Store) *OutboxRepo {
	return &OutboxRepo{s}
}

func (r *OutboxRepo) Create(ctx context.Context, msg *entity.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.outbox[msg.ID]; ok {
		return fmt.Errorf("OutboxRepo - Create: %w", errs.ErrAlreadyExists)
	}

	cp := *msg
	r.outbox[msg.ID] = &cp
	r.outboxOrder = append(r.outboxOrder, msg.ID)

	record(ctx, func() {
		delete(r.outbox, msg.ID)
		for i, id := range r.outboxOrder {
			if id == msg.ID {
				r.outboxOrder = append(r.outboxOrder[:i], r.outboxOrder[i+1:]...)
				break
			}
		}
	})

	return nil
}

func (r *OutboxRepo) GetUnprocessed(_ context.Context, limit int) ([]*entity.OutboxMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]*entity.OutboxMessage, 0, limit)
	for _, id := range r.outboxOrder {
		msg, ok := r.outbox[id]
		if !ok || msg.ProcessedAt != nil {
			continue
		}
		cp := *msg
		msgs = append(msgs, &cp)
		if len(msgs) == limit {
			break
		}
	}

	return msgs, nil
}

func (r *OutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.outbox[id]
	if !ok {
		return fmt.Errorf("OutboxRepo - MarkProcessed: %w", errs.ErrRecordNotFound)
	}
	now := time.Now()
	msg.ProcessedAt = &now

	return nil
}

func (r *OutboxRepo) RecordFailure(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.outbox[id]
	if !ok {
		return fmt.Errorf("OutboxRepo - RecordFailure: %w", errs.ErrRecordNotFound)
	}
	msg.Attempts++
	msg.LastError = &reason

	return nil
}

func (r *OutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	kept := r.outboxOrder[:0]
	for _, id := range r.outboxOrder {
		msg := r.outbox[id]
		if msg.ProcessedAt != nil && msg.ProcessedAt.Before(before) {
			delete(r.outbox, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	r.outboxOrder = kept

	return deleted, nil
}

// Len returns the number of stored messages, processed or not.
func (r *OutboxRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.outbox)
}
