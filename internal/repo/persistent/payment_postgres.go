package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	paymentsTable = "payments"

	paymentSubmissionIDColumn = "submission_id"
	paymentGatewayRefColumn   = "gateway_ref"
)

type PaymentRepo struct {
	*postgres.Postgres
}

func NewPaymentRepo(pg *postgres.Postgres) *PaymentRepo {
	return &PaymentRepo{pg}
}

// Upsert keeps one payment row per submission.
func (r *PaymentRepo) Upsert(ctx context.Context, p *entity.Payment) error {
	sql, args, err := r.Builder.
		Insert(paymentsTable).
		Columns(
			idColumn,
			paymentSubmissionIDColumn,
			amountColumn,
			currencyColumn,
			statusColumn,
			paymentGatewayRefColumn,
			createdAtColumn,
			updatedAtColumn,
		).
		Values(
			p.ID,
			p.SubmissionID,
			p.Amount,
			p.Currency,
			p.Status,
			p.GatewayRef,
			p.CreatedAt,
			p.UpdatedAt,
		).
		Suffix("ON CONFLICT (" + paymentSubmissionIDColumn + ") DO UPDATE SET " +
			"status = EXCLUDED.status, gateway_ref = EXCLUDED.gateway_ref, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("PaymentRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PaymentRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *PaymentRepo) GetBySubmissionID(ctx context.Context, submissionID uuid.UUID) (*entity.Payment, error) {
	sql, args, err := r.Builder.
		Select(
			idColumn,
			paymentSubmissionIDColumn,
			amountColumn,
			currencyColumn,
			statusColumn,
			paymentGatewayRefColumn,
			createdAtColumn,
			updatedAtColumn,
		).
		From(paymentsTable).
		Where(squirrel.Eq{paymentSubmissionIDColumn: submissionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("PaymentRepo - GetBySubmissionID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var p entity.Payment
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&p.ID,
		&p.SubmissionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.GatewayRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("PaymentRepo - GetBySubmissionID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("PaymentRepo - GetBySubmissionID - executor.QueryRow: %w", err)
	}

	return &p, nil
}
