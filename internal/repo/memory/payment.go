package memory

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type PaymentRepo struct {
	*Store
}

func NewPaymentRepo(s *Store) *PaymentRepo {
	return &PaymentRepo{s}
}

func (r *PaymentRepo) Upsert(ctx context.Context, p *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.payments[p.SubmissionID]
	if !ok {
		cp := *p
		r.payments[p.SubmissionID] = &cp
		record(ctx, func() { delete(r.payments, p.SubmissionID) })

		return nil
	}

	prev := *existing
	record(ctx, func() { *existing = prev })

	existing.Status = p.Status
	existing.GatewayRef = p.GatewayRef
	existing.UpdatedAt = p.UpdatedAt

	return nil
}

func (r *PaymentRepo) GetBySubmissionID(_ context.Context, submissionID uuid.UUID) (*entity.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[submissionID]
	if !ok {
		return nil, fmt.Errorf("PaymentRepo - GetBySubmissionID: %w", errs.ErrRecordNotFound)
	}
	cp := *p

	return &cp, nil
}
