package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"golang.org/x/sync/singleflight"
)

const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyGuard replays the stored result of a keyed operation instead of running it again.
type IdempotencyGuard struct {
	repo   repo.IdempotencyRepo
	flags  FlagChecker
	ttl    time.Duration
	logger logger.Interface
	now    func() time.Time

	group singleflight.Group
}

type GuardOption func(*IdempotencyGuard)

func TTL(ttl time.Duration) GuardOption {
	return func(g *IdempotencyGuard) {
		g.ttl = ttl
	}
}

func GuardClock(now func() time.Time) GuardOption {
	return func(g *IdempotencyGuard) {
		g.now = now
	}
}

func NewIdempotencyGuard(r repo.IdempotencyRepo, flags FlagChecker, l logger.Interface, opts ...GuardOption) *IdempotencyGuard {
	g := &IdempotencyGuard{
		repo:   r,
		flags:  flags,
		ttl:    DefaultIdempotencyTTL,
		logger: l,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Execute runs fn at most once per live key. An empty key or a disabled
// flag passes straight through; failures are never cached.
func Execute[T any](ctx context.Context, g *IdempotencyGuard, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if key == "" || !g.flags.IsEnabled(ctx, entity.FlagIdempotency) {
		return fn(ctx)
	}

	// callers sharing a key inside this process wait for one execution,
	// which must outlive the caller that happened to start it
	v, err, _ := g.group.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)

		raw, found, err := g.lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			return raw, nil
		}

		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		raw, err = json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("IdempotencyGuard - Execute - json.Marshal: %w", err)
		}

		rec := &entity.IdempotencyRecord{Key: key, Result: raw, ExpiresAt: g.now().Add(g.ttl)}
		if err = g.repo.Save(ctx, rec); err != nil {
			g.logger.Error(err, "IdempotencyGuard - Execute - g.repo.Save")
		}

		return raw, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err = json.Unmarshal(v.([]byte), &out); err != nil {
		return zero, fmt.Errorf("IdempotencyGuard - Execute - json.Unmarshal: %w", err)
	}

	return out, nil
}

func (g *IdempotencyGuard) lookup(ctx context.Context, key string) ([]byte, bool, error) {
	rec, err := g.repo.Get(ctx, key, g.now())
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("IdempotencyGuard - lookup - g.repo.Get: %w", err)
	}

	return rec.Result, true, nil
}

// Sweep deletes expired records and returns how many were removed.
func (g *IdempotencyGuard) Sweep(ctx context.Context) (int64, error) {
	n, err := g.repo.DeleteExpired(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("IdempotencyGuard - Sweep - g.repo.DeleteExpired: %w", err)
	}

	return n, nil
}
