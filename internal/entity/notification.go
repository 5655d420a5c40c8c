package entity

import "github.com/google/uuid"

type EmailTemplate string

const (
	TemplatePaymentConfirmation EmailTemplate = "payment_confirmation"
	TemplateVerificationFailed  EmailTemplate = "verification_failed"
)

type Email struct {
	ID           uuid.UUID         `json:"id"`
	SubmissionID uuid.UUID         `json:"submission_id"`
	To           string            `json:"to"`
	Template     EmailTemplate     `json:"template"`
	Data         map[string]string `json:"data,omitempty"`
}

type PaymentRequest struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
}
