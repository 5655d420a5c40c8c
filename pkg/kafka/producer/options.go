package producer

import (
	"time"

	"github.com/segmentio/kafka-go/compress"
)

type Option func(*Producer)

func ConnAttempts(attempts int) Option {
	return func(p *Producer) { p.connAttempts = attempts }
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Producer) { p.connTimeout = timeout }
}

func BatchTimeout(timeout time.Duration) Option {
	return func(p *Producer) { p.batchTimeout = timeout }
}

func WriteTimeout(timeout time.Duration) Option {
	return func(p *Producer) { p.writeTimeout = timeout }
}

// Compression sets the codec for produced batches, e.g. compress.Snappy.
func Compression(codec compress.Compression) Option {
	return func(p *Producer) { p.compression = codec }
}

func AutoTopicCreation(allow bool) Option {
	return func(p *Producer) { p.autoTopic = allow }
}
