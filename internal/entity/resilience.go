package entity

import "time"

type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

type Circuit struct {
	Name            string       `json:"name"`
	State           CircuitState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	LastFailureTime time.Time    `json:"last_failure_time"`
}

type CircuitConfig struct {
	FailureThreshold int           `json:"failure_threshold" mapstructure:"failure_threshold"`
	Timeout          time.Duration `json:"timeout" mapstructure:"timeout"`
	ResetTimeout     time.Duration `json:"reset_timeout" mapstructure:"reset_timeout"`
}

type Bulkhead struct {
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	CurrentUsage int    `json:"current_usage"`
}

type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Result    []byte    `json:"result"`
	ExpiresAt time.Time `json:"expires_at"`
}

type FeatureFlag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	FlagIdempotency    = "idempotency"
	FlagCircuitBreaker = "circuit_breaker"
	FlagBulkhead       = "bulkhead"
	FlagAutoScaling    = "auto_scaling"
	FlagLoadBalancer   = "load_balancer"
)
