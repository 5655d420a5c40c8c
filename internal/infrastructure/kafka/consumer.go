package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

// IntakeConsumer reads submission requests published by upstream portals.
type IntakeConsumer struct {
	*consumer.Consumer
}

func NewIntakeConsumer(consumer *consumer.Consumer) *IntakeConsumer {
	return &IntakeConsumer{consumer}
}

func (ic *IntakeConsumer) ReadEvent(ctx context.Context) (kafka.Message, error) {
	msg, err := ic.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("IntakeConsumer - ReadEvent - ic.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (ic *IntakeConsumer) CommitEvent(ctx context.Context, event kafka.Message) error {
	err := ic.Reader.CommitMessages(ctx, event)
	if err != nil {
		return fmt.Errorf("IntakeConsumer - CommitEvent - ic.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ic *IntakeConsumer) Close() error {
	err := ic.Consumer.Close()
	if err != nil {
		return fmt.Errorf("IntakeConsumer - Close: %w", err)
	}

	return nil
}

// Header returns the value of the first header named key.
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}

	return ""
}
