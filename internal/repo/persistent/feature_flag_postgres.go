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
	featureFlagsTable = "feature_flags"

	flagNameColumn        = "name"
	flagEnabledColumn     = "enabled"
	flagDescriptionColumn = "description"
)

type FeatureFlagRepo struct {
	*postgres.Postgres
}

func NewFeatureFlagRepo(pg *postgres.Postgres) *FeatureFlagRepo {
	return &FeatureFlagRepo{pg}
}

func (r *FeatureFlagRepo) List(ctx context.Context) ([]entity.FeatureFlag, error) {
	sql, args, err := r.Builder.
		Select(flagNameColumn, flagEnabledColumn, flagDescriptionColumn, updatedAtColumn).
		From(featureFlagsTable).
		OrderBy(flagNameColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("FeatureFlagRepo - List - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("FeatureFlagRepo - List - executor.Query: %w", err)
	}
	defer rows.Close()

	var flags []entity.FeatureFlag
	for rows.Next() {
		var f entity.FeatureFlag
		if err = rows.Scan(&f.Name, &f.Enabled, &f.Description, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("FeatureFlagRepo - List - rows.Scan: %w", err)
		}
		flags = append(flags, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FeatureFlagRepo - List - rows.Err: %w", err)
	}

	return flags, nil
}

func (r *FeatureFlagRepo) Get(ctx context.Context, name string) (*entity.FeatureFlag, error) {
	sql, args, err := r.Builder.
		Select(flagNameColumn, flagEnabledColumn, flagDescriptionColumn, updatedAtColumn).
		From(featureFlagsTable).
		Where(squirrel.Eq{flagNameColumn: name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("FeatureFlagRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var f entity.FeatureFlag
	err = executor.QueryRow(ctx, sql, args...).Scan(&f.Name, &f.Enabled, &f.Description, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("FeatureFlagRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("FeatureFlagRepo - Get - executor.QueryRow: %w", err)
	}

	return &f, nil
}

func (r *FeatureFlagRepo) SetEnabled(ctx context.Context, name string, enabled bool) (*entity.FeatureFlag, error) {
	sql, args, err := r.Builder.
		Update(featureFlagsTable).
		Set(flagEnabledColumn, enabled).
		Set(updatedAtColumn, time.Now()).
		Where(squirrel.Eq{flagNameColumn: name}).
		Suffix("RETURNING " + flagNameColumn + ", " + flagEnabledColumn + ", " + flagDescriptionColumn + ", " + updatedAtColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("FeatureFlagRepo - SetEnabled - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var f entity.FeatureFlag
	err = executor.QueryRow(ctx, sql, args...).Scan(&f.Name, &f.Enabled, &f.Description, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("FeatureFlagRepo - SetEnabled: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("FeatureFlagRepo - SetEnabled - executor.QueryRow: %w", err)
	}

	return &f, nil
}
