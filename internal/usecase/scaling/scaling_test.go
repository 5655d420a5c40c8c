package scaling

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/broker"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

const queue = "verify_document"

var verifyConfig = entity.ScalingConfig{
	QueueName:          queue,
	MinWorkers:         2,
	MaxWorkers:         10,
	ScaleUpThreshold:   50,
	ScaleDownThreshold: 5,
	CheckInterval:      10 * time.Second,
	CooldownPeriod:     time.Minute,
}

func fill(t *testing.T, b *broker.MemoryBroker, prefix string, n int, at time.Time) {
	t.Helper()

	for i := 0; i < n; i++ {
		if _, err := b.Add(context.Background(), &entity.Job{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			Queue:       queue,
			Type:        entity.JobVerifyDocument,
			MaxAttempts: 1,
			CreatedAt:   at,
			ScheduledAt: at,
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
}

func newScaler(t *testing.T, clock *fakeClock, b *broker.MemoryBroker, enabled bool, opts ...Option) *ScalingUseCase {
	t.Helper()

	opts = append(opts, Clock(clock.Now))
	uc, err := New(b, resilience.StaticFlags{entity.FlagAutoScaling: enabled},
		[]entity.ScalingConfig{verifyConfig}, logger.New("disabled"), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return uc
}

func TestScaleUpThenCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	b := broker.NewMemoryBroker(broker.WithClock(clock.Now))

	var notified []int
	uc := newScaler(t, clock, b, true, OnScale(func(_ string, _, to int) { notified = append(notified, to) }))

	fill(t, b, "burst1", 60, clock.t)

	events := uc.Evaluate(context.Background())
	if len(events) != 1 || events[0].From != 2 || events[0].To != 3 {
		t.Fatalf("unexpected events %+v", events)
	}
	if uc.Workers(queue) != 3 {
		t.Fatalf("workers = %d, want 3", uc.Workers(queue))
	}

	// second burst inside the cooldown window
	clock.Advance(30 * time.Second)
	fill(t, b, "burst2", 60, clock.t)

	if events = uc.Evaluate(context.Background()); len(events) != 0 {
		t.Fatalf("scaled during cooldown: %+v", events)
	}
	if uc.Workers(queue) != 3 {
		t.Fatalf("workers = %d, want 3", uc.Workers(queue))
	}

	clock.Advance(31 * time.Second)
	if events = uc.Evaluate(context.Background()); len(events) != 1 || events[0].To != 4 {
		t.Fatalf("expected scale to 4 after cooldown, got %+v", events)
	}

	if len(notified) != 2 || notified[1] != 4 {
		t.Fatalf("listener calls %v", notified)
	}
	if len(uc.History()) != 2 {
		t.Fatalf("history = %d events", len(uc.History()))
	}
}

func TestScaleDownOnlyWhenIdle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	b := broker.NewMemoryBroker(broker.WithClock(clock.Now))
	uc := newScaler(t, clock, b, true)
	ctx := context.Background()

	if _, err := uc.SetWorkers(queue, 4); err != nil {
		t.Fatalf("SetWorkers: %v", err)
	}
	clock.Advance(2 * time.Minute)

	fill(t, b, "busy", 1, clock.t)
	job, _ := b.Reserve(ctx, queue, "w1")

	if events := uc.Evaluate(ctx); len(events) != 0 {
		t.Fatalf("scaled down with active work: %+v", events)
	}

	_ = b.Complete(ctx, job)

	events := uc.Evaluate(ctx)
	if len(events) != 1 || events[0].To != 3 {
		t.Fatalf("expected 4 -> 3, got %+v", events)
	}
}

func TestEvaluateDisabled(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := broker.NewMemoryBroker(broker.WithClock(clock.Now))
	uc := newScaler(t, clock, b, false)

	fill(t, b, "burst", 100, clock.t)

	if events := uc.Evaluate(context.Background()); events != nil {
		t.Fatalf("evaluated with auto scaling off: %+v", events)
	}
	if uc.Workers(queue) != 2 {
		t.Fatalf("workers = %d", uc.Workers(queue))
	}
}

func TestSetWorkersAndPatchBounds(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	uc := newScaler(t, clock, broker.NewMemoryBroker(), false)

	for _, n := range []int{1, 11} {
		if _, err := uc.SetWorkers(queue, n); !errors.Is(err, errs.ErrInvalidWorkerCount) {
			t.Fatalf("SetWorkers(%d): %v", n, err)
		}
	}
	if _, err := uc.SetWorkers("nope", 3); !errors.Is(err, errs.ErrUnknownQueue) {
		t.Fatalf("SetWorkers unknown queue: %v", err)
	}

	ev, err := uc.SetWorkers(queue, 8)
	if err != nil || ev.From != 2 || ev.To != 8 {
		t.Fatalf("SetWorkers: %+v, %v", ev, err)
	}

	lowMax, highMin := 5, 9
	if _, err = uc.Patch(queue, dto.ScalingPatch{MinWorkers: &highMin, MaxWorkers: &lowMax}); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Fatalf("Patch min > max: %v", err)
	}

	cfg, err := uc.Patch(queue, dto.ScalingPatch{MaxWorkers: &lowMax})
	if err != nil || cfg.MaxWorkers != 5 {
		t.Fatalf("Patch: %+v, %v", cfg, err)
	}
	if uc.Workers(queue) != 5 {
		t.Fatalf("workers not clamped: %d", uc.Workers(queue))
	}

	if uc.Interval() != 10*time.Second {
		t.Fatalf("Interval = %s", uc.Interval())
	}
}
