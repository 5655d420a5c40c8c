package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	idempotencyTable = "idempotency_records"

	idempotencyKeyColumn       = "key"
	idempotencyResultColumn    = "result"
	idempotencyExpiresAtColumn = "expires_at"
)

type IdempotencyRepo struct {
	*postgres.Postgres
}

func NewIdempotencyRepo(pg *postgres.Postgres) *IdempotencyRepo {
	return &IdempotencyRepo{pg}
}

// Get ignores records that expired before now.
func (r *IdempotencyRepo) Get(ctx context.Context, key string, now time.Time) (*entity.IdempotencyRecord, error) {
	sql, args, err := r.Builder.
		Select(idempotencyKeyColumn, idempotencyResultColumn, idempotencyExpiresAtColumn).
		From(idempotencyTable).
		Where(squirrel.And{
			squirrel.Eq{idempotencyKeyColumn: key},
			squirrel.Gt{idempotencyExpiresAtColumn: now},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IdempotencyRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var rec entity.IdempotencyRecord
	err = executor.QueryRow(ctx, sql, args...).Scan(&rec.Key, &rec.Result, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("IdempotencyRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("IdempotencyRepo - Get - executor.QueryRow: %w", err)
	}

	return &rec, nil
}

// Save replaces an expired record with the same key; a live one wins.
func (r *IdempotencyRepo) Save(ctx context.Context, rec *entity.IdempotencyRecord) error {
	sql, args, err := r.Builder.
		Insert(idempotencyTable).
		Columns(idempotencyKeyColumn, idempotencyResultColumn, idempotencyExpiresAtColumn).
		Values(rec.Key, rec.Result, rec.ExpiresAt).
		Suffix("ON CONFLICT (key) DO UPDATE SET result = EXCLUDED.result, expires_at = EXCLUDED.expires_at " +
			"WHERE " + idempotencyTable + ".expires_at <= now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("IdempotencyRepo - Save - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("IdempotencyRepo - Save - executor.Exec: %w", err)
	}

	return nil
}

func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Delete(idempotencyTable).
		Where(squirrel.LtOrEq{idempotencyExpiresAtColumn: now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("IdempotencyRepo - DeleteExpired - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("IdempotencyRepo - DeleteExpired - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}
