package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type txKey struct{}

type txLog struct {
	undo []func()
}

// Store keeps every in-memory table behind one lock. Repos are thin views over it.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	outbox      map[uuid.UUID]*entity.OutboxMessage
	outboxOrder []uuid.UUID
	submissions map[uuid.UUID]*entity.Submission
	payments    map[uuid.UUID]*entity.Payment
	idempotency map[string]*entity.IdempotencyRecord
	flags       map[string]*entity.FeatureFlag
	documents   map[string][]byte
}

func NewStore() *Store {
	return &Store{
		outbox:      make(map[uuid.UUID]*entity.OutboxMessage),
		submissions: make(map[uuid.UUID]*entity.Submission),
		payments:    make(map[uuid.UUID]*entity.Payment),
		idempotency: make(map[string]*entity.IdempotencyRecord),
		flags:       make(map[string]*entity.FeatureFlag),
		documents:   make(map[string][]byte),
	}
}

// WithinTransaction serializes transactions and reverts their writes when f fails.
func (s *Store) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return f(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txLog{}

	err := f(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()

		return fmt.Errorf("Store - WithinTransaction: %w", err)
	}

	return nil
}

// record must be called with s.mu held.
func record(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(txKey{}).(*txLog); ok {
		tx.undo = append(tx.undo, undo)
	}
}
