package scaling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

type fakeScaler struct {
	passes atomic.Int32
}

func (f *fakeScaler) Evaluate(context.Context) []entity.ScalingEvent {
	f.passes.Add(1)

	return []entity.ScalingEvent{{QueueName: "send_email", From: 1, To: 2}}
}

func (f *fakeScaler) Interval() time.Duration         { return 10 * time.Millisecond }
func (f *fakeScaler) Workers(string) int              { return 1 }
func (f *fakeScaler) Configs() []entity.ScalingConfig { return nil }
func (f *fakeScaler) Config(string) (entity.ScalingConfig, error) {
	return entity.ScalingConfig{}, nil
}
func (f *fakeScaler) Patch(string, dto.ScalingPatch) (entity.ScalingConfig, error) {
	return entity.ScalingConfig{}, nil
}
func (f *fakeScaler) SetWorkers(string, int) (entity.ScalingEvent, error) {
	return entity.ScalingEvent{}, nil
}
func (f *fakeScaler) Metrics(context.Context) ([]dto.ScalingMetrics, error) { return nil, nil }
func (f *fakeScaler) History() []entity.ScalingEvent                        { return nil }

func TestLoopEvaluatesUntilShutdown(t *testing.T) {
	s := &fakeScaler{}
	l := New(s, logger.New("disabled"))

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.passes.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d passes", s.passes.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	after := s.passes.Load()
	time.Sleep(50 * time.Millisecond)
	if s.passes.Load() != after {
		t.Fatal("loop kept running after shutdown")
	}
}
