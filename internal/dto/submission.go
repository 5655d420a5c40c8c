package dto

import (
	"context"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type SubmitInput struct {
	ApplicantID string            `json:"applicant_id"`
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Documents   []entity.Document `json:"documents"`
	Priority    string            `json:"priority,omitempty"`
}

// Job payloads carried in outbox messages and jobs.
type (
	VerifyDocumentPayload struct {
		SubmissionID uuid.UUID `json:"submission_id"`
		Priority     string    `json:"priority,omitempty"`
	}

	CreatePaymentPayload struct {
		SubmissionID uuid.UUID `json:"submission_id"`
		Priority     string    `json:"priority,omitempty"`
	}

	SendEmailPayload struct {
		SubmissionID uuid.UUID            `json:"submission_id"`
		Template     entity.EmailTemplate `json:"template"`
		Reason       string               `json:"reason,omitempty"`
		Priority     string               `json:"priority,omitempty"`
	}
)

type OutboxEvent struct {
	Type    entity.EventType
	Payload any
}

// Transition moves a submission to Next. Events and Also run in the same
// transaction as the status write.
type Transition struct {
	Next   entity.Status
	Cause  error
	Events []OutboxEvent
	Also   func(ctx context.Context) error
}
