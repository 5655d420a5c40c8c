package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type SubmissionRepo struct {
	*Store
}

func NewSubmissionRepo(s *Store) *SubmissionRepo {
	return &SubmissionRepo{s}
}

func (r *SubmissionRepo) Create(ctx context.Context, s *entity.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.submissions[s.ID]; ok {
		return fmt.Errorf("SubmissionRepo - Create: %w", errs.ErrAlreadyExists)
	}

	cp := *s
	cp.Documents = append([]entity.Document(nil), s.Documents...)
	r.submissions[s.ID] = &cp

	record(ctx, func() { delete(r.submissions, s.ID) })

	return nil
}

func (r *SubmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.submissions[id]
	if !ok {
		return nil, fmt.Errorf("SubmissionRepo - GetByID: %w", errs.ErrRecordNotFound)
	}
	cp := *s

	return &cp, nil
}

func (r *SubmissionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.Status, progress int, lastError *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("SubmissionRepo - UpdateStatus: %w", errs.ErrRecordNotFound)
	}

	prev := *s
	record(ctx, func() { *s = prev })

	s.Status = status
	s.Progress = progress
	s.LastError = lastError
	s.UpdatedAt = time.Now()

	return nil
}

// Count returns the number of stored submissions.
func (r *SubmissionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.submissions)
}
