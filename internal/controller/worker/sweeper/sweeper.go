package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Sweepable deletes expired records and reports how many went.
type Sweepable interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper runs Sweep on a cron schedule; overlapping runs are skipped.
type Sweeper struct {
	target  Sweepable
	logger  logger.Interface
	timeout time.Duration

	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
}

func New(target Sweepable, schedule string, timeout time.Duration, l logger.Interface) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	s := &Sweeper{
		target:  target,
		logger:  l,
		timeout: timeout,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("Sweeper - New - s.cron.AddFunc %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Sweeper - Start - sweeper already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	return nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	n, err := s.target.Sweep(ctx)
	if err != nil {
		s.logger.Error(err, "Sweeper - run - s.target.Sweep")

		return
	}

	if n > 0 {
		s.logger.Info("Sweeper - run - removed %d expired records", n)
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	stopped := s.cron.Stop()
	s.cancel()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Sweeper - Shutdown: %w", ctx.Err())
	}
}
