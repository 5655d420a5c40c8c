package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

const (
	_defaultPollInterval = 200 * time.Millisecond
	_defaultBudget       = time.Minute
	_settleTimeout       = 5 * time.Second

	_defaultReclaimInterval = 30 * time.Second
	_reclaimMargin          = 30 * time.Second
)

// DefaultBudgets bound a single execution of each job type.
var DefaultBudgets = map[entity.JobType]time.Duration{
	entity.JobVerifyDocument: 60 * time.Second,
	entity.JobCreatePayment:  30 * time.Second,
	entity.JobSendEmail:      15 * time.Second,
}

// WorkerCounter reports the logical worker count of a queue.
type WorkerCounter interface {
	Workers(queue string) int
}

// Dispatcher pulls jobs from the broker, one loop per queue, and runs them
// on at most concurrency x workers goroutines.
type Dispatcher struct {
	broker   infrastructure.Broker
	handlers map[entity.JobType]Handler
	pools    usecase.WorkerPoolUseCase
	workers  WorkerCounter
	balancer usecase.BalancerUseCase
	flags    resilience.FlagChecker
	logger   logger.Interface

	pollInterval    time.Duration
	reclaimInterval time.Duration
	budgets         map[entity.JobType]time.Duration
	instance        string

	inflight map[string]*atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// running jobs outlive ctx and are cancelled only when Shutdown gives up
	jobsCtx context.Context
	abort   context.CancelFunc
	jobs    sync.WaitGroup

	started atomic.Bool
}

type Option func(*Dispatcher)

func PollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.pollInterval = interval
	}
}

// ReclaimInterval sets how often jobs stuck in active past their budget are
// handed back to the broker's retry path.
func ReclaimInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.reclaimInterval = interval
	}
}

// Budgets overrides execution budgets per job type.
func Budgets(b map[entity.JobType]time.Duration) Option {
	return func(d *Dispatcher) {
		for jt, v := range b {
			d.budgets[jt] = v
		}
	}
}

// Instance names this process in worker ids when the load balancer is off.
func Instance(name string) Option {
	return func(d *Dispatcher) {
		d.instance = name
	}
}

func NewDispatcher(
	b infrastructure.Broker,
	handlers map[entity.JobType]Handler,
	pools usecase.WorkerPoolUseCase,
	workers WorkerCounter,
	balancer usecase.BalancerUseCase,
	flags resilience.FlagChecker,
	l logger.Interface,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		broker:       b,
		handlers:     handlers,
		pools:        pools,
		workers:      workers,
		balancer:     balancer,
		flags:        flags,
		logger:       l,
		pollInterval:    _defaultPollInterval,
		reclaimInterval: _defaultReclaimInterval,
		budgets:         make(map[entity.JobType]time.Duration, len(DefaultBudgets)),
		instance:        "local",
		inflight:        make(map[string]*atomic.Int64),
	}

	for jt, v := range DefaultBudgets {
		d.budgets[jt] = v
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Dispatcher - Start - dispatcher already started")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.jobsCtx, d.abort = context.WithCancel(context.WithoutCancel(ctx))

	served := make([]entity.JobType, 0, len(entity.JobTypes))
	for _, jt := range entity.JobTypes {
		if _, ok := d.handlers[jt]; !ok {
			continue
		}
		if _, err := d.pools.ByQueue(jt.Queue()); err != nil {
			d.logger.Warn("Dispatcher - Start - no pool for %s, queue is not served", jt)

			continue
		}

		d.inflight[jt.Queue()] = &atomic.Int64{}
		served = append(served, jt)
	}

	for _, jt := range served {
		d.wg.Add(1)
		go d.loop(jt)
	}

	if len(served) > 0 && d.reclaimInterval > 0 {
		d.wg.Add(1)
		go d.reclaimLoop(served)
	}

	return nil
}

// reclaimLoop returns jobs orphaned by crashed workers to the retry path. A
// job is stale once it has been active longer than its budget plus margins.
func (d *Dispatcher) reclaimLoop(served []entity.JobType) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}

		for _, jt := range served {
			staleAfter := d.budget(jt) + _settleTimeout + _reclaimMargin

			n, err := d.broker.Reclaim(d.ctx, jt.Queue(), staleAfter)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					d.logger.Error(err, "Dispatcher - reclaimLoop - d.broker.Reclaim")
				}

				continue
			}
			if n > 0 {
				d.logger.Warn("Dispatcher - reclaimLoop - %d stale %s jobs returned for retry", n, jt.Queue())
			}
		}
	}
}

func (d *Dispatcher) budget(jt entity.JobType) time.Duration {
	budget, ok := d.budgets[jt]
	if !ok || budget <= 0 {
		return _defaultBudget
	}

	return budget
}

func (d *Dispatcher) loop(jt entity.JobType) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		d.fill(jt)

		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fill reserves jobs until every slot of the queue is busy or nothing is due.
func (d *Dispatcher) fill(jt entity.JobType) {
	queue := jt.Queue()
	inflight := d.inflight[queue]

	for d.ctx.Err() == nil {
		pool, err := d.pools.ByQueue(queue)
		if err != nil || !pool.Enabled {
			return
		}

		slots := int64(pool.Concurrency * d.workers.Workers(queue))
		if inflight.Load() >= slots {
			return
		}

		// 1. pick a node when balancing is on
		workerID := d.instance + "-" + queue
		balanced := d.flags.IsEnabled(d.ctx, entity.FlagLoadBalancer)
		if balanced {
			// selection counts as an assignment, skip it for an empty queue
			counts, err := d.broker.Counts(d.ctx, queue)
			if err != nil || counts.Waiting == 0 || counts.Paused {
				return
			}

			node, err := d.balancer.Select(queue)
			if err != nil {
				d.logger.Warn("Dispatcher - fill - %s: %v", queue, err)

				return
			}
			workerID = node.WorkerID
		}

		// 2. reserve
		job, err := d.broker.Reserve(d.ctx, queue, workerID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Error(err, "Dispatcher - fill - d.broker.Reserve")
			}

			return
		}
		if job == nil {
			return
		}

		// 3. run
		inflight.Add(1)
		d.jobs.Add(1)
		go d.run(jt, job, workerID, balanced)
	}
}

func (d *Dispatcher) run(jt entity.JobType, job *entity.Job, workerID string, balanced bool) {
	defer d.jobs.Done()
	defer d.inflight[jt.Queue()].Add(-1)

	if balanced {
		d.balancer.JobStarted(jt.Queue(), workerID)
	}

	start := time.Now()
	err := d.execute(jt, job)
	took := time.Since(start)

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(d.jobsCtx), _settleTimeout)
	defer cancel()

	if err == nil {
		if cErr := d.broker.Complete(settleCtx, job); cErr != nil {
			d.logger.Error(cErr, "Dispatcher - run - d.broker.Complete")
		}
		if balanced {
			d.balancer.JobCompleted(jt.Queue(), workerID, took)
		}

		return
	}

	state, fErr := d.broker.Fail(settleCtx, job, err)
	if fErr != nil {
		d.logger.Error(fErr, "Dispatcher - run - d.broker.Fail")
	}
	if balanced {
		d.balancer.JobFailed(jt.Queue(), workerID, took)
	}

	if state == entity.JobFailed {
		d.logger.Error(err, "Dispatcher - run - job %s dead-lettered after %d attempts", job.ID, job.Attempts)
	}
}

func (d *Dispatcher) execute(jt entity.JobType, job *entity.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Dispatcher - execute - panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(d.jobsCtx, d.budget(jt))
	defer cancel()

	h, ok := d.handlers[jt]
	if !ok {
		return errs.Fatal(fmt.Errorf("%s: %w", jt, errs.ErrUnknownJobType))
	}

	return h(ctx, job)
}

// Shutdown stops reserving and waits for running jobs. Jobs still running
// when ctx expires are cancelled and left to the broker's retry.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if !d.started.Load() {
		return nil
	}

	if d.cancel == nil {
		return nil
	}

	d.cancel()

	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		d.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.abort()

		return nil
	case <-ctx.Done():
		d.abort()

		return fmt.Errorf("Dispatcher - Shutdown: %w", ctx.Err())
	}
}
