package entity

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
}

type Submission struct {
	ID          uuid.UUID `json:"id"`
	ApplicantID string    `json:"applicant_id"`
	Email       string    `json:"email"`

	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Documents []Document `json:"documents"`

	Status    Status  `json:"status"`
	Progress  int     `json:"progress"`
	LastError *string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Payment struct {
	ID           uuid.UUID     `json:"id"`
	SubmissionID uuid.UUID     `json:"submission_id"`
	Amount       int64         `json:"amount"`
	Currency     string        `json:"currency"`
	Status       PaymentStatus `json:"status"`
	GatewayRef   *string       `json:"gateway_ref,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentFailed    PaymentStatus = "failed"
)
