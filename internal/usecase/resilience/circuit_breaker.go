package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

var DefaultCircuitConfig = entity.CircuitConfig{
	FailureThreshold: 3,
	Timeout:          10 * time.Second,
	ResetTimeout:     60 * time.Second,
}

// CircuitBreaker guards named downstream operations. State lives in the
// store; the in-flight half-open probe is tracked per process.
type CircuitBreaker struct {
	store   infrastructure.CircuitStore
	flags   FlagChecker
	configs map[string]entity.CircuitConfig
	logger  logger.Interface
	now     func() time.Time

	mu      sync.Mutex
	probing map[string]bool
}

type BreakerOption func(*CircuitBreaker)

func BreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

func NewCircuitBreaker(
	store infrastructure.CircuitStore,
	flags FlagChecker,
	configs map[string]entity.CircuitConfig,
	l logger.Interface,
	opts ...BreakerOption,
) *CircuitBreaker {
	cb := &CircuitBreaker{
		store:   store,
		flags:   flags,
		configs: configs,
		logger:  l,
		now:     time.Now,
		probing: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

func (cb *CircuitBreaker) config(name string) entity.CircuitConfig {
	cfg, ok := cb.configs[name]
	if !ok {
		return DefaultCircuitConfig
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultCircuitConfig.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultCircuitConfig.ResetTimeout
	}

	return cfg
}

// Execute runs fn unless the circuit for name is open. Errors from fn are
// returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if !cb.flags.IsEnabled(ctx, entity.FlagCircuitBreaker) {
		return fn(ctx)
	}

	cfg := cb.config(name)

	probe, err := cb.admit(ctx, name, cfg)
	if err != nil {
		return err
	}

	callCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	returned := false
	defer func() {
		if returned {
			return
		}

		// fn panicked: count a failure so a half-open probe slot is released
		if err := cb.record(ctx, name, cfg, probe, fmt.Errorf("circuit %q: operation panicked", name)); err != nil {
			cb.logger.Error(err, "CircuitBreaker - Execute - cb.record")
		}
	}()

	callErr := fn(callCtx)
	returned = true

	if err = cb.record(ctx, name, cfg, probe, callErr); err != nil {
		cb.logger.Error(err, "CircuitBreaker - Execute - cb.record")
	}

	return callErr
}

func (cb *CircuitBreaker) admit(ctx context.Context, name string, cfg entity.CircuitConfig) (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, err := cb.store.Load(ctx, name)
	if err != nil {
		return false, fmt.Errorf("CircuitBreaker - admit - cb.store.Load: %w", err)
	}

	switch c.State {
	case entity.CircuitOpen:
		elapsed := cb.now().Sub(c.LastFailureTime)
		if elapsed < cfg.ResetTimeout {
			return false, &errs.CircuitOpenError{
				Name:         name,
				FailureCount: c.FailureCount,
				Threshold:    cfg.FailureThreshold,
				RetryAfter:   cfg.ResetTimeout - elapsed,
			}
		}

		c.State = entity.CircuitHalfOpen
		if err = cb.store.Save(ctx, c); err != nil {
			return false, fmt.Errorf("CircuitBreaker - admit - cb.store.Save: %w", err)
		}
		cb.logger.Info("CircuitBreaker - %s half-open, probing", name)

		fallthrough
	case entity.CircuitHalfOpen:
		if cb.probing[name] {
			return false, &errs.CircuitOpenError{
				Name:         name,
				FailureCount: c.FailureCount,
				Threshold:    cfg.FailureThreshold,
			}
		}
		cb.probing[name] = true

		return true, nil
	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) record(ctx context.Context, name string, cfg entity.CircuitConfig, probe bool, callErr error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		delete(cb.probing, name)
	}

	c, err := cb.store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("CircuitBreaker - record - cb.store.Load: %w", err)
	}

	if callErr == nil {
		if c.State == entity.CircuitClosed && c.FailureCount == 0 {
			return nil
		}
		if c.State != entity.CircuitClosed {
			cb.logger.Info("CircuitBreaker - %s closed", name)
		}
		c.State = entity.CircuitClosed
		c.FailureCount = 0
	} else {
		c.FailureCount++
		c.LastFailureTime = cb.now()
		if probe || c.State == entity.CircuitHalfOpen || c.FailureCount >= cfg.FailureThreshold {
			if c.State != entity.CircuitOpen {
				cb.logger.Warn("CircuitBreaker - %s opened after %d failures: %v", name, c.FailureCount, callErr)
			}
			c.State = entity.CircuitOpen
		}
	}

	if err = cb.store.Save(ctx, c); err != nil {
		return fmt.Errorf("CircuitBreaker - record - cb.store.Save: %w", err)
	}

	return nil
}

// States lists every circuit that has recorded state, with configured thresholds filled in.
func (cb *CircuitBreaker) States(ctx context.Context) ([]entity.Circuit, error) {
	circuits, err := cb.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("CircuitBreaker - States - cb.store.List: %w", err)
	}

	seen := make(map[string]bool, len(circuits))
	for _, c := range circuits {
		seen[c.Name] = true
	}
	for name := range cb.configs {
		if !seen[name] {
			circuits = append(circuits, entity.Circuit{Name: name, State: entity.CircuitClosed})
		}
	}

	return circuits, nil
}

func (cb *CircuitBreaker) State(ctx context.Context, name string) (entity.Circuit, error) {
	c, err := cb.store.Load(ctx, name)
	if err != nil {
		return entity.Circuit{}, fmt.Errorf("CircuitBreaker - State - cb.store.Load: %w", err)
	}

	return c, nil
}

func (cb *CircuitBreaker) Reset(ctx context.Context, name string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	delete(cb.probing, name)

	err := cb.store.Save(ctx, entity.Circuit{Name: name, State: entity.CircuitClosed})
	if err != nil {
		return fmt.Errorf("CircuitBreaker - Reset - cb.store.Save: %w", err)
	}

	return nil
}
