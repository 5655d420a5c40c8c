package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

// EmailProducer hands email requests to the mailer over a Kafka topic.
type EmailProducer struct {
	*producer.Producer
	topic string
}

func NewEmailProducer(producer *producer.Producer, topic string) *EmailProducer {
	return &EmailProducer{
		producer,
		topic,
	}
}

func (ep *EmailProducer) Send(ctx context.Context, email entity.Email) error {
	value, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("EmailProducer - Send - json.Marshal: %w", err)
	}

	msg := kafka.Message{
		Topic: ep.topic,
		Key:   []byte(email.SubmissionID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "email_id", Value: []byte(email.ID.String())},
			{Key: "template", Value: []byte(email.Template)},
		},
	}

	err = ep.Writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("EmailProducer - Send - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EmailProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EmailProducer - Close: %w", err)
	}

	return nil
}
