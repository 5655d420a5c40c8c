package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// Table
	outboxTable = "outbox"

	// Columns
	outboxIDColumn          = "id"
	outboxAggregateIDColumn = "aggregate_id"
	outboxEventTypeColumn   = "event_type"
	outboxPayloadColumn     = "payload"
	outboxCreatedAtColumn   = "created_at"
	outboxProcessedAtColumn = "processed_at"
	outboxAttemptsColumn    = "attempts"
	outboxLastErrorColumn   = "last_error"
)

type OutboxRepo struct {
	*postgres.Postgres
}

func NewOutboxRepo(pg *postgres.Postgres) *OutboxRepo {
	return &OutboxRepo{pg}
}

func (r *OutboxRepo) Create(ctx context.Context, msg *entity.OutboxMessage) error {
	sql, args, err := r.Builder.
		Insert(outboxTable).
		Columns(
			outboxIDColumn,
			outboxAggregateIDColumn,
			outboxEventTypeColumn,
			outboxPayloadColumn,
			outboxCreatedAtColumn,
			outboxAttemptsColumn,
		).
		Values(
			msg.ID,
			msg.AggregateID,
			msg.EventType,
			msg.Payload,
			msg.CreatedAt,
			msg.Attempts,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("OutboxRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("OutboxRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

// GetUnprocessed returns the oldest unprocessed messages first.
func (r *OutboxRepo) GetUnprocessed(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	sql, args, err := r.Builder.
		Select(
			outboxIDColumn,
			outboxAggregateIDColumn,
			outboxEventTypeColumn,
			outboxPayloadColumn,
			outboxCreatedAtColumn,
			outboxProcessedAtColumn,
			outboxAttemptsColumn,
			outboxLastErrorColumn,
		).
		From(outboxTable).
		Where(squirrel.Eq{outboxProcessedAtColumn: nil}).
		OrderBy(outboxCreatedAtColumn + " ASC").
		Limit(uint64(limit)). //nolint:gosec // limit is a positive constant
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("OutboxRepo - GetUnprocessed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("OutboxRepo - GetUnprocessed - executor.Query: %w", err)
	}
	defer rows.Close()

	msgs := make([]*entity.OutboxMessage, 0, limit)
	for rows.Next() {
		var msg entity.OutboxMessage
		err = rows.Scan(
			&msg.ID,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.CreatedAt,
			&msg.ProcessedAt,
			&msg.Attempts,
			&msg.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("OutboxRepo - GetUnprocessed - rows.Scan: %w", err)
		}
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("OutboxRepo - GetUnprocessed - rows.Err: %w", err)
	}

	return msgs, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxProcessedAtColumn, time.Now()).
		Where(squirrel.Eq{outboxIDColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("OutboxRepo - MarkProcessed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("OutboxRepo - MarkProcessed - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("OutboxRepo - MarkProcessed: %w", errs.ErrRecordNotFound)
	}

	return nil
}

// RecordFailure bumps the attempt counter and keeps the message pending.
func (r *OutboxRepo) RecordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxAttemptsColumn, squirrel.Expr(outboxAttemptsColumn+" + 1")).
		Set(outboxLastErrorColumn, reason).
		Where(squirrel.Eq{outboxIDColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("OutboxRepo - RecordFailure - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("OutboxRepo - RecordFailure - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("OutboxRepo - RecordFailure: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *OutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Delete(outboxTable).
		Where(squirrel.And{
			squirrel.NotEq{outboxProcessedAtColumn: nil},
			squirrel.Lt{outboxProcessedAtColumn: before},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("OutboxRepo - DeleteProcessedBefore - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("OutboxRepo - DeleteProcessedBefore - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}
