package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/gateway"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/statestore"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/memory"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

func TestChargeAndSave(t *testing.T) {
	l := logger.New("disabled")
	g := gateway.NewMock(gateway.Seed(1))
	breaker := resilience.NewCircuitBreaker(
		statestore.NewMemoryCircuitStore(),
		resilience.StaticFlags{entity.FlagCircuitBreaker: true},
		nil,
		l,
	)
	payments := memory.NewPaymentRepo(memory.NewStore())
	uc := New(g, breaker, payments)

	sub := &entity.Submission{ID: uuid.New(), Amount: 1200, Currency: "EUR"}
	ctx := context.Background()

	g.FailNext(1)
	failed, err := uc.Charge(ctx, sub)
	if !errors.Is(err, gateway.ErrDeclined) {
		t.Fatalf("expected decline, got %v", err)
	}
	if failed.Status != entity.PaymentFailed || failed.GatewayRef != nil {
		t.Fatalf("unexpected failed payment %+v", failed)
	}
	if err = uc.Save(ctx, failed); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err := uc.Charge(ctx, sub)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if ok.Status != entity.PaymentInitiated || ok.GatewayRef == nil {
		t.Fatalf("unexpected payment %+v", ok)
	}
	if ok.ID != failed.ID {
		t.Fatal("retry must reuse the payment row of the submission")
	}
	if err = uc.Save(ctx, ok); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stored, err := payments.GetBySubmissionID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetBySubmissionID: %v", err)
	}
	if stored.Status != entity.PaymentInitiated {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestChargeFailsFastWhenCircuitOpen(t *testing.T) {
	l := logger.New("disabled")
	g := gateway.NewMock(gateway.Seed(1))
	breaker := resilience.NewCircuitBreaker(
		statestore.NewMemoryCircuitStore(),
		resilience.StaticFlags{entity.FlagCircuitBreaker: true},
		map[string]entity.CircuitConfig{BreakerName: {FailureThreshold: 2, ResetTimeout: time.Minute}},
		l,
	)
	uc := New(g, breaker, memory.NewPaymentRepo(memory.NewStore()))
	sub := &entity.Submission{ID: uuid.New(), Amount: 100, Currency: "USD"}

	g.FailNext(2)
	for i := 0; i < 2; i++ {
		if _, err := uc.Charge(context.Background(), sub); err == nil {
			t.Fatal("expected failure")
		}
	}

	calls := g.Calls()
	if _, err := uc.Charge(context.Background(), sub); !errors.Is(err, errs.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if g.Calls() != calls {
		t.Fatal("gateway called while circuit open")
	}
}
