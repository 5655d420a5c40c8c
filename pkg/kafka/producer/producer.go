package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/connect"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultBatchTimeout = 10 * time.Millisecond
	_defaultWriteTimeout = 10 * time.Second
)

// Producer owns a kafka.Writer that is not bound to a topic; every message names its own.
type Producer struct {
	connAttempts int
	connTimeout  time.Duration
	batchTimeout time.Duration
	writeTimeout time.Duration
	compression  compress.Compression
	autoTopic    bool

	brokers []string
	Writer  *kafka.Writer
}

func New(ctx context.Context, brokers []string, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("Kafka Producer - New: no brokers configured")
	}

	p := &Producer{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		batchTimeout: _defaultBatchTimeout,
		writeTimeout: _defaultWriteTimeout,
		brokers:      brokers,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := connect.Retry(ctx, "Kafka producer", p.connAttempts, p.connTimeout, p.ping); err != nil {
		return nil, fmt.Errorf("Kafka Producer - New - connect.Retry: %w", err)
	}

	// emails for one submission share a key, hash balancing keeps them ordered
	p.Writer = &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           p.batchTimeout,
		WriteTimeout:           p.writeTimeout,
		Compression:            p.compression,
		AllowAutoTopicCreation: p.autoTopic,
	}

	return p, nil
}

// ping dials brokers in turn; any one answering a metadata request is enough.
func (p *Producer) ping(ctx context.Context) error {
	var lastErr error

	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = fmt.Errorf("kafka.DialContext %s: %w", addr, err)

			continue
		}

		_, err = conn.Brokers()
		_ = conn.Close()

		if err == nil {
			return nil
		}

		lastErr = fmt.Errorf("conn.Brokers %s: %w", addr, err)
	}

	return lastErr
}

func (p *Producer) Close() error {
	if p.Writer == nil {
		return nil
	}

	return p.Writer.Close()
}
