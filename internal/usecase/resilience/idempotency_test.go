package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/memory"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

type result struct {
	ID string `json:"id"`
	N  int    `json:"n"`
}

func TestIdempotencyGuardReplaysStoredResult(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		key       string
		wantCalls int64
	}{
		{"enabled with key", true, "K", 1},
		{"disabled", false, "K", 50},
		{"no key", true, "", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewIdempotencyGuard(
				memory.NewIdempotencyRepo(memory.NewStore()),
				StaticFlags{entity.FlagIdempotency: tt.enabled},
				logger.New("disabled"),
			)

			var calls atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := Execute(context.Background(), g, tt.key, func(context.Context) (result, error) {
						n := calls.Add(1)
						return result{ID: "sub-1", N: int(n)}, nil
					})
					if err != nil {
						t.Errorf("execute: %v", err)
					}
				}()
			}
			wg.Wait()

			// sequential replays after the concurrent burst
			for i := 0; i < 3; i++ {
				res, _ := Execute(context.Background(), g, tt.key, func(context.Context) (result, error) {
					return result{ID: "late"}, nil
				})
				if tt.enabled && tt.key != "" && res.ID != "sub-1" {
					t.Fatalf("replay returned %+v", res)
				}
			}

			if calls.Load() != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestIdempotencyGuardDoesNotCacheFailures(t *testing.T) {
	repo := memory.NewIdempotencyRepo(memory.NewStore())
	g := NewIdempotencyGuard(repo, StaticFlags{entity.FlagIdempotency: true}, logger.New("disabled"))
	ctx := context.Background()

	boom := errors.New("boom")
	if _, err := Execute(ctx, g, "K", func(context.Context) (result, error) { return result{}, boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if repo.Len() != 0 {
		t.Fatalf("failure was stored")
	}

	res, err := Execute(ctx, g, "K", func(context.Context) (result, error) { return result{ID: "ok"}, nil })
	if err != nil || res.ID != "ok" {
		t.Fatalf("retry: %+v, %v", res, err)
	}
}

func TestIdempotencyGuardExpiryAndSweep(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	repo := memory.NewIdempotencyRepo(memory.NewStore())
	g := NewIdempotencyGuard(repo, StaticFlags{entity.FlagIdempotency: true}, logger.New("disabled"),
		GuardClock(clock.Now), TTL(time.Hour))
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (result, error) {
		calls++
		return result{N: calls}, nil
	}

	_, _ = Execute(ctx, g, "K", op)
	clock.Advance(2 * time.Hour)

	n, err := g.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}

	res, _ := Execute(ctx, g, "K", op)
	if calls != 2 || res.N != 2 {
		t.Fatalf("expired key replayed: calls=%d res=%+v", calls, res)
	}
}

func TestIdempotencyGuardSurvivesCancelledLeader(t *testing.T) {
	g := NewIdempotencyGuard(
		memory.NewIdempotencyRepo(memory.NewStore()),
		StaticFlags{entity.FlagIdempotency: true},
		logger.New("disabled"),
	)

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (result, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release

		if err := ctx.Err(); err != nil {
			return result{}, err
		}

		return result{ID: "sub-1"}, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 2)
	go func() {
		_, err := Execute(leaderCtx, g, "K", fn)
		errc <- err
	}()
	<-started

	go func() {
		res, err := Execute(context.Background(), g, "K", fn)
		if err == nil && res.ID != "sub-1" {
			err = errors.New("unexpected result " + res.ID)
		}
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil {
			t.Fatalf("caller %d: %v", i+1, err)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}
