package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type IdempotencyRepo struct {
	*Store
}

func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{s}
}

func (r *IdempotencyRepo) Get(_ context.Context, key string, now time.Time) (*entity.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.idempotency[key]
	if !ok || !rec.ExpiresAt.After(now) {
		return nil, fmt.Errorf("IdempotencyRepo - Get: %w", errs.ErrRecordNotFound)
	}
	cp := *rec

	return &cp, nil
}

// Save keeps the first live record for a key.
func (r *IdempotencyRepo) Save(_ context.Context, rec *entity.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.idempotency[rec.Key]; ok && existing.ExpiresAt.After(time.Now()) {
		return nil
	}
	cp := *rec
	r.idempotency[rec.Key] = &cp

	return nil
}

func (r *IdempotencyRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, rec := range r.idempotency {
		if !rec.ExpiresAt.After(now) {
			delete(r.idempotency, key)
			deleted++
		}
	}

	return deleted, nil
}

func (r *IdempotencyRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.idempotency)
}
