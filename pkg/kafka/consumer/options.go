package consumer

import (
	"time"

	"github.com/segmentio/kafka-go"
)

type Option func(*Consumer)

func ConnAttempts(attempts int) Option {
	return func(c *Consumer) { c.connAttempts = attempts }
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *Consumer) { c.connTimeout = timeout }
}

func MaxWait(d time.Duration) Option {
	return func(c *Consumer) { c.maxWait = d }
}

// MaxBytes caps a single fetch; intake payloads are small JSON documents.
func MaxBytes(n int) Option {
	return func(c *Consumer) { c.maxBytes = n }
}

// StartFromLatest skips messages published before the group first joined.
func StartFromLatest() Option {
	return func(c *Consumer) { c.startOffset = kafka.LastOffset }
}
