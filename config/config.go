package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		Storage         Storage
		PG              PG
		Redis           Redis
		S3              S3
		Kafka           Kafka
		KafkaController KafkaController
		OutboxRelay     OutboxRelay
		Dispatcher      Dispatcher
		Scaling         Scaling
		Idempotency     Idempotency
		Gateway         Gateway
		Swagger         Swagger
	}

	HTTP struct {
		Port            string        `env:"HTTP_PORT,required"`
		UsePreforkMode  bool          `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"5s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"3s"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	// Storage selects backends. "memory" keeps everything in process.
	Storage struct {
		Driver      string `env:"STORAGE_DRIVER" envDefault:"postgres"`  // postgres | memory
		StateDriver string `env:"STATE_STORE_DRIVER" envDefault:"memory"` // memory | redis
		Documents   string `env:"DOCUMENT_STORE_DRIVER" envDefault:"s3"` // s3 | memory
		Pipeline    string `env:"PIPELINE_CONFIG"`                       // yaml overriding the embedded defaults
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX" envDefault:"10"`
		URL     string `env:"PG_URL"`
	}

	Redis struct {
		URL       string `env:"REDIS_URL"`
		KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"pipeline"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET" envDefault:"documents"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		MaxObjectSize  int64         `env:"S3_MAX_OBJECT_SIZE" envDefault:"20971520"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	// Kafka is optional. Without brokers emails go to the log sender and
	// there is no intake consumer.
	Kafka struct {
		Brokers     []string `env:"KAFKA_BROKERS"`
		GroupID     string   `env:"KAFKA_GROUP_ID" envDefault:"submission-pipeline"`
		IntakeTopic string   `env:"KAFKA_INTAKE_TOPIC" envDefault:"submissions.intake"`
		EmailTopic  string   `env:"KAFKA_EMAIL_TOPIC" envDefault:"notifications.email"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"10s"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"4"`
	}

	OutboxRelay struct {
		PollInterval        time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"1s"`
		CleanupInterval     time.Duration `env:"OUTBOX_RELAY_CLEANUP_INTERVAL" envDefault:"1h"`
		Retention           time.Duration `env:"OUTBOX_RELAY_RETENTION" envDefault:"168h"`
		ProcessBatchTimeout time.Duration `env:"OUTBOX_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"OUTBOX_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
	}

	Dispatcher struct {
		PollInterval    time.Duration `env:"DISPATCHER_POLL_INTERVAL" envDefault:"200ms"`
		ReclaimInterval time.Duration `env:"DISPATCHER_RECLAIM_INTERVAL" envDefault:"30s"`
		VerifyBudget    time.Duration `env:"DISPATCHER_VERIFY_BUDGET" envDefault:"60s"`
		PaymentBudget   time.Duration `env:"DISPATCHER_PAYMENT_BUDGET" envDefault:"30s"`
		EmailBudget     time.Duration `env:"DISPATCHER_EMAIL_BUDGET" envDefault:"15s"`
		Instance        string        `env:"DISPATCHER_INSTANCE" envDefault:"local"`
		ShutdownTimeout time.Duration `env:"DISPATCHER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	Scaling struct {
		ShutdownTimeout time.Duration `env:"SCALING_SHUTDOWN_TIMEOUT" envDefault:"2s"`
	}

	Idempotency struct {
		TTL           time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
		SweepSchedule string        `env:"IDEMPOTENCY_SWEEP_SCHEDULE" envDefault:"@every 10m"`
		SweepTimeout  time.Duration `env:"IDEMPOTENCY_SWEEP_TIMEOUT" envDefault:"30s"`
	}

	// Gateway tunes the simulated payment gateway.
	Gateway struct {
		FailureRate float64       `env:"GATEWAY_FAILURE_RATE" envDefault:"0"`
		Latency     time.Duration `env:"GATEWAY_LATENCY" envDefault:"50ms"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.PG.URL == "" {
			return fmt.Errorf("PG_URL is required for STORAGE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Storage.StateDriver {
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for STATE_STORE_DRIVER=redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STATE_STORE_DRIVER %q", c.Storage.StateDriver)
	}

	switch c.Storage.Documents {
	case "s3":
		if c.S3.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required for DOCUMENT_STORE_DRIVER=s3")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown DOCUMENT_STORE_DRIVER %q", c.Storage.Documents)
	}

	return nil
}
