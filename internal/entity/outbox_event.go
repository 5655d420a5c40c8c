package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventDocumentUploaded   EventType = "document_uploaded"
	EventDocumentVerified   EventType = "document_verified"
	EventVerificationFailed EventType = "verification_failed"
	EventPaymentCompleted   EventType = "payment_completed"
	EventEmailSent          EventType = "email_sent"
)

type OutboxMessage struct {
	ID          uuid.UUID       `json:"id"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	EventType   EventType       `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Attempts    int             `json:"attempts"`
	LastError   *string         `json:"last_error,omitempty"`
}

func NewOutboxMessage(aggregateID uuid.UUID, eventType EventType, payload any) (*OutboxMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     b,
		CreatedAt:   time.Now(),
	}, nil
}
