package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/statestore"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

func TestBulkheadShedsLoadAtCapacity(t *testing.T) {
	b := NewBulkhead(
		statestore.NewMemoryBulkheadStore(),
		StaticFlags{entity.FlagBulkhead: true},
		map[string]int{"create_payment": 2},
		logger.New("disabled"),
	)
	ctx := context.Background()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(ctx, "create_payment", func(context.Context) error {
				entered <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-entered
	<-entered

	err := b.Execute(ctx, "create_payment", func(context.Context) error {
		t.Error("third call executed")
		return nil
	})
	var capErr *errs.CapacityError
	if !errors.As(err, &capErr) || !errors.Is(err, errs.ErrBulkheadFull) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if capErr.Name != "create_payment" || capErr.Capacity != 2 || capErr.Usage != 2 {
		t.Fatalf("capacity error = %+v", capErr)
	}

	close(release)
	wg.Wait()

	ran := false
	if err = b.Execute(ctx, "create_payment", func(context.Context) error {
		ran = true
		return nil
	}); err != nil || !ran {
		t.Fatalf("retry after release: ran=%v err=%v", ran, err)
	}
}

func TestBulkheadReleasesOnFailureAndPanic(t *testing.T) {
	b := NewBulkhead(
		statestore.NewMemoryBulkheadStore(),
		StaticFlags{entity.FlagBulkhead: true},
		nil,
		logger.New("disabled"),
	)
	ctx := context.Background()
	boom := errors.New("boom")

	if err := b.Execute(ctx, "unknown_pool", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("error not passed through: %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = b.Execute(ctx, "unknown_pool", func(context.Context) error { panic("handler bug") })
	}()

	usage, _ := b.Usage(ctx)
	for _, u := range usage {
		if u.CurrentUsage != 0 {
			t.Fatalf("usage leaked: %+v", u)
		}
	}
	if b.Capacity("unknown_pool") != 1 {
		t.Fatalf("unknown capacity = %d", b.Capacity("unknown_pool"))
	}
	if err := b.Execute(ctx, "unknown_pool", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("slot not released: %v", err)
	}
}

func TestBulkheadBypassedWhenDisabled(t *testing.T) {
	b := NewBulkhead(statestore.NewMemoryBulkheadStore(), StaticFlags{}, map[string]int{"x": 1}, logger.New("disabled"))

	release := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), "x", func(context.Context) error {
			<-release
			return nil
		})
	}()
	defer close(release)

	if err := b.Execute(context.Background(), "x", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("disabled bulkhead rejected: %v", err)
	}
}
