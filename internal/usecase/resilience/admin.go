package resilience

import (
	"context"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
)

// Admin exposes breaker and bulkhead state to operators.
type Admin struct {
	breaker  *CircuitBreaker
	bulkhead *Bulkhead
}

func NewAdmin(cb *CircuitBreaker, b *Bulkhead) *Admin {
	return &Admin{breaker: cb, bulkhead: b}
}

func (a *Admin) Circuits(ctx context.Context) ([]entity.Circuit, error) {
	return a.breaker.States(ctx)
}

func (a *Admin) ResetCircuit(ctx context.Context, name string) error {
	return a.breaker.Reset(ctx, name)
}

func (a *Admin) Bulkheads(ctx context.Context) ([]entity.Bulkhead, error) {
	return a.bulkhead.Usage(ctx)
}
