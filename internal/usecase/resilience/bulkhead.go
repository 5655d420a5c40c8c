package resilience

import (
	"context"
	"fmt"
	"sort"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

const _unknownBulkheadCapacity = 1

var DefaultBulkheads = map[string]int{
	string(entity.JobVerifyDocument): 3,
	string(entity.JobCreatePayment):  2,
	string(entity.JobSendEmail):      5,
}

// Bulkhead sheds load once a named pool is at capacity. It never waits.
type Bulkhead struct {
	store      infrastructure.BulkheadStore
	flags      FlagChecker
	capacities map[string]int
	logger     logger.Interface
}

func NewBulkhead(store infrastructure.BulkheadStore, flags FlagChecker, capacities map[string]int, l logger.Interface) *Bulkhead {
	if len(capacities) == 0 {
		capacities = DefaultBulkheads
	}

	return &Bulkhead{
		store:      store,
		flags:      flags,
		capacities: capacities,
		logger:     l,
	}
}

func (b *Bulkhead) Capacity(name string) int {
	if c, ok := b.capacities[name]; ok && c > 0 {
		return c
	}

	return _unknownBulkheadCapacity
}

// Execute runs fn inside the named bulkhead. The slot is released on every exit path.
func (b *Bulkhead) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	if !b.flags.IsEnabled(ctx, entity.FlagBulkhead) {
		return fn(ctx)
	}

	capacity := b.Capacity(name)

	usage, ok, err := b.store.TryAcquire(ctx, name, capacity)
	if err != nil {
		return fmt.Errorf("Bulkhead - Execute - b.store.TryAcquire: %w", err)
	}
	if !ok {
		return &errs.CapacityError{Name: name, Capacity: capacity, Usage: usage}
	}

	defer func() {
		// release even if ctx is already canceled
		if relErr := b.store.Release(context.WithoutCancel(ctx), name); relErr != nil {
			b.logger.Error(relErr, "Bulkhead - Execute - b.store.Release")
		}
	}()

	return fn(ctx)
}

func (b *Bulkhead) Usage(ctx context.Context) ([]entity.Bulkhead, error) {
	names := make([]string, 0, len(b.capacities))
	for name := range b.capacities {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]entity.Bulkhead, 0, len(names))
	for _, name := range names {
		usage, err := b.store.Usage(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("Bulkhead - Usage - b.store.Usage: %w", err)
		}
		out = append(out, entity.Bulkhead{Name: name, Capacity: b.Capacity(name), CurrentUsage: usage})
	}

	return out, nil
}
