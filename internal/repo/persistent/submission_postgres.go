package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	submissionsTable = "submissions"

	// Columns
	idColumn          = "id"
	applicantIDColumn = "applicant_id"
	emailColumn       = "email"
	amountColumn      = "amount"
	currencyColumn    = "currency"
	documentsColumn   = "documents"
	statusColumn      = "status"
	progressColumn    = "progress"
	lastErrorColumn   = "last_error"
	createdAtColumn   = "created_at"
	updatedAtColumn   = "updated_at"
)

type SubmissionRepo struct {
	*postgres.Postgres
}

func NewSubmissionRepo(pg *postgres.Postgres) *SubmissionRepo {
	return &SubmissionRepo{pg}
}

func (r *SubmissionRepo) Create(ctx context.Context, s *entity.Submission) error {
	docs, err := json.Marshal(s.Documents)
	if err != nil {
		return fmt.Errorf("SubmissionRepo - Create - json.Marshal: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(submissionsTable).
		Columns(
			idColumn,
			applicantIDColumn,
			emailColumn,
			amountColumn,
			currencyColumn,
			documentsColumn,
			statusColumn,
			progressColumn,
			createdAtColumn,
			updatedAtColumn,
		).
		Values(
			s.ID,
			s.ApplicantID,
			s.Email,
			s.Amount,
			s.Currency,
			docs,
			s.Status,
			s.Progress,
			s.CreatedAt,
			s.UpdatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("SubmissionRepo - Create - r.Builder.ToSql: %w", err)
	}

	// Pool / Tx
	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("SubmissionRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error) {
	sql, args, err := r.Builder.
		Select(
			idColumn,
			applicantIDColumn,
			emailColumn,
			amountColumn,
			currencyColumn,
			documentsColumn,
			statusColumn,
			progressColumn,
			lastErrorColumn,
			createdAtColumn,
			updatedAtColumn,
		).
		From(submissionsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SubmissionRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var (
		s    entity.Submission
		docs []byte
	)
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&s.ID,
		&s.ApplicantID,
		&s.Email,
		&s.Amount,
		&s.Currency,
		&docs,
		&s.Status,
		&s.Progress,
		&s.LastError,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("SubmissionRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("SubmissionRepo - GetByID - executor.QueryRow: %w", err)
	}

	if err = json.Unmarshal(docs, &s.Documents); err != nil {
		return nil, fmt.Errorf("SubmissionRepo - GetByID - json.Unmarshal: %w", err)
	}

	return &s, nil
}

func (r *SubmissionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.Status, progress int, lastError *string) error {
	sql, args, err := r.Builder.
		Update(submissionsTable).
		Set(statusColumn, status).
		Set(progressColumn, progress).
		Set(lastErrorColumn, lastError).
		Set(updatedAtColumn, time.Now()).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("SubmissionRepo - UpdateStatus - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("SubmissionRepo - UpdateStatus - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SubmissionRepo - UpdateStatus: %w", errs.ErrRecordNotFound)
	}

	return nil
}
