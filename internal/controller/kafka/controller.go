package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	kafkapc "github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

const IdempotencyHeader = "idempotency_key"

type EventConsumer interface {
	ReadEvent(ctx context.Context) (kafka.Message, error)
	CommitEvent(ctx context.Context, event kafka.Message) error
	Close() error
}

// KafkaController turns intake topic messages into submissions.
type KafkaController struct {
	subs   usecase.SubmissionUseCase
	ec     EventConsumer
	logger logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	subs usecase.SubmissionUseCase,
	ec EventConsumer,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
) *KafkaController {
	return &KafkaController{
		subs:           subs,
		ec:             ec,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	tasks := make(chan kafka.Message, c.workers*2)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				// 1. read from the topic
				event, err := c.ec.ReadEvent(c.ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "KafkaController - Start - c.ec.ReadEvent")
					}
					continue
				}

				// 2. hand over to the workers
				select {
				case tasks <- event:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (c *KafkaController) processSubmission(ctx context.Context, event kafka.Message) error {
	var in dto.SubmitInput
	if err := json.Unmarshal(event.Value, &in); err != nil {
		return errs.Fatal(fmt.Errorf("KafkaController - processSubmission - json.Unmarshal: %w", err))
	}

	key := kafkapc.Header(event, IdempotencyHeader)
	if key == "" {
		key = string(event.Key)
	}

	sub, err := c.subs.Submit(ctx, key, in)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidInput) || errors.Is(err, errs.ErrUnknownPriority) {
			return errs.Fatal(err)
		}

		return fmt.Errorf("KafkaController - processSubmission - c.subs.Submit: %w", err)
	}

	c.logger.Debug("KafkaController - submission %s accepted from partition %d offset %d", sub.ID, event.Partition, event.Offset)

	return nil
}

func (c *KafkaController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	for event := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			processCtx, processCancel := context.WithTimeout(c.ctx, c.processTimeout)
			err := c.processSubmission(processCtx, event)
			processCancel()
			if err != nil && !errs.IsFatal(err) {
				// not committed, redelivered after a rebalance or restart
				c.logger.Error(err, "KafkaController - worker - c.processSubmission")

				return
			}
			if err != nil {
				c.logger.Warn("KafkaController - worker - dropping message at offset %d: %v", event.Offset, err)
			}

			// commit after the submission is stored or the message is rejected for good
			commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
			err = c.ec.CommitEvent(commitCtx, event)
			commitCancel()
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.ec.CommitEvent")
			}
		}()
	}
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		if err := c.ec.Close(); err != nil {
			c.logger.Error(err, "KafkaController - Shutdown - c.ec.Close")
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("KafkaController - Shutdown: %w", ctx.Err())
	}
}
