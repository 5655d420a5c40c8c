package scaling

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

// Loop evaluates scaling on the shortest configured interval. Passes never overlap.
type Loop struct {
	scaler usecase.ScalingUseCase
	logger logger.Interface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(scaler usecase.ScalingUseCase, l logger.Interface) *Loop {
	return &Loop{
		scaler: scaler,
		logger: l,
	}
}

func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("ScalingLoop - Start - loop already started")
	}

	l.ctx, l.cancel = context.WithCancel(ctx)

	interval := l.scaler.Interval()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-l.ctx.Done():
				return
			case <-timer.C:
			}

			for _, ev := range l.scaler.Evaluate(l.ctx) {
				l.logger.Debug("ScalingLoop - %s scaled %d -> %d", ev.QueueName, ev.From, ev.To)
			}

			// config patches may shorten the interval
			timer.Reset(l.scaler.Interval())
		}
	}()

	return nil
}

func (l *Loop) Shutdown(ctx context.Context) error {
	if !l.started.Load() {
		return nil
	}

	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})

	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ScalingLoop - Shutdown: %w", ctx.Err())
	}
}
