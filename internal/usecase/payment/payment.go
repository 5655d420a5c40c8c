package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/google/uuid"
)

const BreakerName = "payment_gateway"

type PaymentUseCase struct {
	gateway  infrastructure.PaymentGateway
	breaker  usecase.Isolator
	payments repo.PaymentRepo
}

func New(g infrastructure.PaymentGateway, breaker usecase.Isolator, payments repo.PaymentRepo) *PaymentUseCase {
	return &PaymentUseCase{
		gateway:  g,
		breaker:  breaker,
		payments: payments,
	}
}

// Charge calls the gateway and returns the payment to persist. On error the
// payment is still returned, marked failed.
func (uc *PaymentUseCase) Charge(ctx context.Context, sub *entity.Submission) (*entity.Payment, error) {
	now := time.Now()

	p := &entity.Payment{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		Amount:       sub.Amount,
		Currency:     sub.Currency,
		Status:       entity.PaymentInitiated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if existing, err := uc.payments.GetBySubmissionID(ctx, sub.ID); err == nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}

	var ref string
	err := uc.breaker.Execute(ctx, BreakerName, func(ctx context.Context) error {
		var err error
		ref, err = uc.gateway.CreatePayment(ctx, entity.PaymentRequest{
			SubmissionID: sub.ID,
			Amount:       sub.Amount,
			Currency:     sub.Currency,
		})

		return err
	})
	if err != nil {
		p.Status = entity.PaymentFailed

		return p, fmt.Errorf("PaymentUseCase - Charge - uc.gateway.CreatePayment: %w", err)
	}

	p.GatewayRef = &ref

	return p, nil
}

func (uc *PaymentUseCase) Save(ctx context.Context, p *entity.Payment) error {
	if err := uc.payments.Upsert(ctx, p); err != nil {
		return fmt.Errorf("PaymentUseCase - Save - uc.payments.Upsert: %w", err)
	}

	return nil
}
