package submission

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type SubmissionUseCase struct {
	submissions repo.SubmissionRepo
	outbox      repo.OutboxRepo
	transactor  repo.Transactor
	guard       *resilience.IdempotencyGuard

	logger logger.Interface
}

func New(
	submissions repo.SubmissionRepo,
	outbox repo.OutboxRepo,
	transactor repo.Transactor,
	guard *resilience.IdempotencyGuard,
	l logger.Interface,
) *SubmissionUseCase {
	return &SubmissionUseCase{
		submissions: submissions,
		outbox:      outbox,
		transactor:  transactor,
		guard:       guard,
		logger:      l,
	}
}

// Submit records a submission and its document_uploaded event atomically.
// Repeated calls with the same idempotency key return the first result.
func (uc *SubmissionUseCase) Submit(ctx context.Context, idempotencyKey string, in dto.SubmitInput) (*entity.Submission, error) {
	if err := validate(in); err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - Submit - validate: %w", err)
	}

	sub, err := resilience.Execute(ctx, uc.guard, idempotencyKey, func(ctx context.Context) (*entity.Submission, error) {
		return uc.create(ctx, in)
	})
	if err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - Submit: %w", err)
	}

	return sub, nil
}

func (uc *SubmissionUseCase) create(ctx context.Context, in dto.SubmitInput) (*entity.Submission, error) {
	now := time.Now()

	sub := &entity.Submission{
		ID:          uuid.New(),
		ApplicantID: strings.TrimSpace(in.ApplicantID),
		Email:       strings.TrimSpace(in.Email),
		Amount:      in.Amount,
		Currency:    strings.ToUpper(in.Currency),
		Documents:   in.Documents,
		Status:      entity.StatusSubmitted,
		Progress:    entity.StatusSubmitted.Progress(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	msg, err := entity.NewOutboxMessage(sub.ID, entity.EventDocumentUploaded, dto.VerifyDocumentPayload{
		SubmissionID: sub.ID,
		Priority:     in.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - create - entity.NewOutboxMessage: %w", err)
	}

	err = uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.submissions.Create(ctx, sub); err != nil {
			return fmt.Errorf("SubmissionUseCase - create - uc.submissions.Create: %w", err)
		}
		if err := uc.outbox.Create(ctx, msg); err != nil {
			return fmt.Errorf("SubmissionUseCase - create - uc.outbox.Create: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - create - uc.transactor.WithinTransaction: %w", err)
	}

	return sub, nil
}

func (uc *SubmissionUseCase) Get(ctx context.Context, id uuid.UUID) (*entity.Submission, error) {
	sub, err := uc.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - Get - uc.submissions.GetByID: %w", err)
	}

	return sub, nil
}

// Advance applies t in one transaction. A move the status graph does not
// allow returns errs.ErrInvalidTransition and writes nothing.
func (uc *SubmissionUseCase) Advance(ctx context.Context, id uuid.UUID, t dto.Transition) (*entity.Submission, error) {
	var sub *entity.Submission

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error

		sub, err = uc.submissions.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("uc.submissions.GetByID: %w", err)
		}

		if !sub.Status.CanTransitionTo(t.Next) {
			return fmt.Errorf("%s -> %s: %w", sub.Status, t.Next, errs.ErrInvalidTransition)
		}

		var lastErr *string
		if t.Cause != nil {
			reason := t.Cause.Error()
			lastErr = &reason
		}

		if err = uc.submissions.UpdateStatus(ctx, id, t.Next, t.Next.Progress(), lastErr); err != nil {
			return fmt.Errorf("uc.submissions.UpdateStatus: %w", err)
		}

		if t.Also != nil {
			if err = t.Also(ctx); err != nil {
				return err
			}
		}

		for _, ev := range t.Events {
			msg, err := entity.NewOutboxMessage(id, ev.Type, ev.Payload)
			if err != nil {
				return fmt.Errorf("entity.NewOutboxMessage: %w", err)
			}
			if err = uc.outbox.Create(ctx, msg); err != nil {
				return fmt.Errorf("uc.outbox.Create: %w", err)
			}
		}

		sub.Status = t.Next
		sub.Progress = t.Next.Progress()
		sub.LastError = lastErr

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SubmissionUseCase - Advance: %w", err)
	}

	return sub, nil
}

func validate(in dto.SubmitInput) error {
	if strings.TrimSpace(in.ApplicantID) == "" {
		return fmt.Errorf("%w: applicant_id is required", errs.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email %q", errs.ErrInvalidInput, in.Email)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", errs.ErrInvalidInput)
	}
	if len(in.Currency) != 3 {
		return fmt.Errorf("%w: currency must be an ISO 4217 code", errs.ErrInvalidInput)
	}
	if len(in.Documents) == 0 {
		return fmt.Errorf("%w: at least one document is required", errs.ErrInvalidInput)
	}
	for i, d := range in.Documents {
		if d.Key == "" || d.DeclaredType == "" {
			return fmt.Errorf("%w: document %d needs key and declared_type", errs.ErrInvalidInput, i)
		}
	}
	if _, ok := entity.ParsePriority(in.Priority); !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnknownPriority, in.Priority)
	}

	return nil
}
