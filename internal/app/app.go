package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/config"
	kafkactrl "github.com/andreyxaxa/Submission-Pipeline/internal/controller/kafka"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi"
	v1 "github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/worker/jobs"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/worker/outbox"
	scalingloop "github.com/andreyxaxa/Submission-Pipeline/internal/controller/worker/scaling"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/worker/sweeper"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/gateway"
	infrakafka "github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/notify"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/verifier"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/balancer"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/deadletter"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/payment"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/queue"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/scaling"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/submission"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/workerpool"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/httpserver"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/kafka/consumer"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/kafka/producer"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

type component interface {
	Shutdown(ctx context.Context) error
}

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Pipeline topology
	pipeline, err := config.LoadPipeline(cfg.Storage.Pipeline)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - config.LoadPipeline: %w", err))
	}

	// Repository
	b, err := newBackends(ctx, cfg, pipeline, l)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - newBackends: %w", err))
	}
	defer b.close()

	// Resilience
	flags := resilience.NewFlags(b.flags, l)
	breaker := resilience.NewCircuitBreaker(b.circuits, flags, pipeline.Circuits, l)
	bulkhead := resilience.NewBulkhead(b.bulkheads, flags, pipeline.Bulkheads, l)
	guard := resilience.NewIdempotencyGuard(b.idempotency, flags, l, resilience.TTL(cfg.Idempotency.TTL))

	// Use-Case
	submissionUseCase := submission.New(b.submissions, b.outbox, b.transactor, guard, l)
	paymentUseCase := payment.New(
		gateway.NewMock(gateway.FailureRate(cfg.Gateway.FailureRate), gateway.Latency(cfg.Gateway.Latency)),
		breaker,
		b.payments,
	)
	producerUseCase := queue.New(b.broker, bulkhead, retryPolicies(pipeline), l)
	poolUseCase := workerpool.New(b.broker, pipeline.Pools, l)

	lb, err := balancer.New(pipeline.Balancer.Strategy, l,
		balancer.HealthWeights(balancer.Weights(pipeline.Balancer.Weights)),
		balancer.UnhealthyAfter(pipeline.Balancer.UnhealthyRate, pipeline.Balancer.MinSamples),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - balancer.New: %w", err))
	}

	scalingUseCase, err := scaling.New(b.broker, flags, pipeline.Scaling, l, scaling.OnScale(lb.Resize))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - scaling.New: %w", err))
	}
	for _, jt := range entity.JobTypes {
		lb.Resize(jt.Queue(), 0, scalingUseCase.Workers(jt.Queue()))
	}

	// Email delivery
	var email infrastructure.EmailSender = notify.NewLogSender(l)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers, producer.AutoTopicCreation(true))
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
		}
		email = infrakafka.NewEmailProducer(kafkaProducer, cfg.Kafka.EmailTopic)
	}
	defer func() {
		if err := email.Close(); err != nil {
			l.Error(err, "app - Run - email.Close")
		}
	}()

	// Job handlers
	documentVerifier := verifier.New(b.documents,
		verifier.MaxSize(cfg.S3.MaxObjectSize),
		verifier.WithGuard(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return breaker.Execute(ctx, verifier.BreakerName, fn)
		}),
	)
	handlers := jobs.NewHandlers(submissionUseCase, paymentUseCase, documentVerifier, email, breaker, l)

	// Workers
	dispatcher := jobs.NewDispatcher(b.broker, handlers.Map(), poolUseCase, scalingUseCase, lb, flags, l,
		jobs.PollInterval(cfg.Dispatcher.PollInterval),
		jobs.ReclaimInterval(cfg.Dispatcher.ReclaimInterval),
		jobs.Instance(cfg.Dispatcher.Instance),
		jobs.Budgets(map[entity.JobType]time.Duration{
			entity.JobVerifyDocument: cfg.Dispatcher.VerifyBudget,
			entity.JobCreatePayment:  cfg.Dispatcher.PaymentBudget,
			entity.JobSendEmail:      cfg.Dispatcher.EmailBudget,
		}),
	)

	outboxRelayWorker := outbox.New(
		submissionUseCase,
		producerUseCase,
		l,
		cfg.OutboxRelay.PollInterval,
		cfg.OutboxRelay.CleanupInterval,
		cfg.OutboxRelay.ProcessBatchTimeout,
		cfg.OutboxRelay.Retention,
		cfg.OutboxRelay.BatchSize,
	)

	scalingLoop := scalingloop.New(scalingUseCase, l)

	idempotencySweeper, err := sweeper.New(guard, cfg.Idempotency.SweepSchedule, cfg.Idempotency.SweepTimeout, l)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - sweeper.New: %w", err))
	}

	// Kafka as Controller
	var kafkaController *kafkactrl.KafkaController
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.IntakeTopic)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
		}

		kafkaController = kafkactrl.New(
			submissionUseCase,
			infrakafka.NewIntakeConsumer(kafkaConsumer),
			l,
			cfg.KafkaController.CommitTimeout,
			cfg.KafkaController.ProcessTimeout,
			cfg.KafkaController.Workers,
		)
	}

	// HTTP Server
	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.ReadTimeout(cfg.HTTP.ReadTimeout),
		httpserver.WriteTimeout(cfg.HTTP.WriteTimeout),
		httpserver.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		httpserver.ErrorHandler(v1.ErrorHandler),
	)
	restapi.NewRouter(httpServer.App, cfg, v1.UseCases{
		Submissions: submissionUseCase,
		Flags:       flags,
		DeadLetter:  deadletter.New(b.broker, l),
		Pools:       poolUseCase,
		Scaling:     scalingUseCase,
		Balancer:    lb,
		Resilience:  resilience.NewAdmin(breaker, bulkhead),
	}, l)

	// Start Components
	err = dispatcher.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - dispatcher.Start: %w", err))
	}
	err = outboxRelayWorker.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - outboxRelayWorker.Start: %w", err))
	}
	err = scalingLoop.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - scalingLoop.Start: %w", err))
	}
	err = idempotencySweeper.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - idempotencySweeper.Start: %w", err))
	}
	if kafkaController != nil {
		err = kafkaController.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	// intake first, then the relay feeding the broker, then the workers draining it
	if kafkaController != nil {
		shutdown(ctx, l, "kafkaController", kafkaController, cfg.KafkaController.ShutdownTimeout)
	}
	shutdown(ctx, l, "outboxRelayWorker", outboxRelayWorker, cfg.OutboxRelay.ShutdownTimeout)
	shutdown(ctx, l, "dispatcher", dispatcher, cfg.Dispatcher.ShutdownTimeout)
	shutdown(ctx, l, "scalingLoop", scalingLoop, cfg.Scaling.ShutdownTimeout)
	shutdown(ctx, l, "idempotencySweeper", idempotencySweeper, cfg.Idempotency.SweepTimeout)
}

func shutdown(ctx context.Context, l logger.Interface, name string, c component, timeout time.Duration) {
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, timeout)
	defer shutdownCancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		l.Error(fmt.Errorf("app - Run - %s.Shutdown: %w", name, err))
	}
}

func retryPolicies(p *config.Pipeline) map[entity.JobType]queue.Policy {
	if len(p.Retries) == 0 {
		return nil
	}

	out := make(map[entity.JobType]queue.Policy, len(p.Retries))
	for name, r := range p.Retries {
		out[entity.JobType(name)] = queue.Policy{
			Attempts: r.Attempts,
			Backoff:  entity.Backoff{Type: r.Backoff.Type, Delay: r.Backoff.Delay},
		}
	}

	return out
}
