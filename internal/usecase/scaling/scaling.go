package scaling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

const (
	_defaultInterval = 10 * time.Second
	_historySize     = 50
)

// Listener is notified after the worker count of a queue changes.
type Listener func(queue string, from, to int)

// ScalingUseCase adjusts logical worker counts per queue from queue depth.
type ScalingUseCase struct {
	broker    infrastructure.Broker
	flags     resilience.FlagChecker
	logger    logger.Interface
	now       func() time.Time
	listeners []Listener

	mu      sync.Mutex
	configs map[string]entity.ScalingConfig
	states  map[string]*entity.ScalingState
	history []entity.ScalingEvent
}

type Option func(*ScalingUseCase)

func Clock(now func() time.Time) Option {
	return func(uc *ScalingUseCase) {
		uc.now = now
	}
}

func OnScale(l Listener) Option {
	return func(uc *ScalingUseCase) {
		uc.listeners = append(uc.listeners, l)
	}
}

// New starts every queue at its minWorkers.
func New(
	b infrastructure.Broker,
	flags resilience.FlagChecker,
	configs []entity.ScalingConfig,
	l logger.Interface,
	opts ...Option,
) (*ScalingUseCase, error) {
	uc := &ScalingUseCase{
		broker:  b,
		flags:   flags,
		logger:  l,
		now:     time.Now,
		configs: make(map[string]entity.ScalingConfig, len(configs)),
		states:  make(map[string]*entity.ScalingState, len(configs)),
	}

	for _, cfg := range configs {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("ScalingUseCase - New - %s: %w", cfg.QueueName, err)
		}
		uc.configs[cfg.QueueName] = cfg
		uc.states[cfg.QueueName] = &entity.ScalingState{CurrentWorkers: cfg.MinWorkers}
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc, nil
}

func validate(cfg entity.ScalingConfig) error {
	switch {
	case cfg.MinWorkers < 1:
		return fmt.Errorf("min_workers %d < 1: %w", cfg.MinWorkers, errs.ErrInvalidConfig)
	case cfg.MaxWorkers < cfg.MinWorkers:
		return fmt.Errorf("max_workers %d < min_workers %d: %w", cfg.MaxWorkers, cfg.MinWorkers, errs.ErrInvalidConfig)
	case cfg.ScaleUpThreshold < 0 || cfg.ScaleDownThreshold < 0:
		return fmt.Errorf("negative threshold: %w", errs.ErrInvalidConfig)
	case cfg.CheckInterval < 0 || cfg.CooldownPeriod < 0:
		return fmt.Errorf("negative interval: %w", errs.ErrInvalidConfig)
	}

	return nil
}

// Interval is the shortest configured check interval.
func (uc *ScalingUseCase) Interval() time.Duration {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	interval := time.Duration(0)
	for _, cfg := range uc.configs {
		if cfg.CheckInterval > 0 && (interval == 0 || cfg.CheckInterval < interval) {
			interval = cfg.CheckInterval
		}
	}

	if interval == 0 {
		return _defaultInterval
	}

	return interval
}

func (uc *ScalingUseCase) queues() []string {
	out := make([]string, 0, len(uc.configs))
	for q := range uc.configs {
		out = append(out, q)
	}
	sort.Strings(out)

	return out
}

// Evaluate runs one scaling pass over every queue. It does nothing while
// auto scaling is disabled.
func (uc *ScalingUseCase) Evaluate(ctx context.Context) []entity.ScalingEvent {
	if !uc.flags.IsEnabled(ctx, entity.FlagAutoScaling) {
		return nil
	}

	uc.mu.Lock()
	queues := uc.queues()
	uc.mu.Unlock()

	var events []entity.ScalingEvent

	for _, q := range queues {
		counts, err := uc.broker.Counts(ctx, q)
		if err != nil {
			uc.logger.Error(err, "ScalingUseCase - Evaluate - uc.broker.Counts")
			continue
		}

		if ev, ok := uc.evaluate(q, counts); ok {
			events = append(events, ev)
		}
	}

	for _, ev := range events {
		uc.notify(ev)
	}

	return events
}

func (uc *ScalingUseCase) evaluate(queue string, c entity.QueueCounts) (entity.ScalingEvent, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	cfg := uc.configs[queue]
	st := uc.states[queue]
	now := uc.now()

	if !st.LastScalingTime.IsZero() && now.Sub(st.LastScalingTime) < cfg.CooldownPeriod {
		return entity.ScalingEvent{}, false
	}

	to := st.CurrentWorkers
	reason := ""

	switch {
	case c.Waiting >= cfg.ScaleUpThreshold && st.CurrentWorkers < cfg.MaxWorkers:
		to++
		reason = fmt.Sprintf("waiting %d >= %d", c.Waiting, cfg.ScaleUpThreshold)
	case c.Waiting <= cfg.ScaleDownThreshold && st.CurrentWorkers > cfg.MinWorkers && c.Active == 0:
		to--
		reason = fmt.Sprintf("waiting %d <= %d and idle", c.Waiting, cfg.ScaleDownThreshold)
	default:
		return entity.ScalingEvent{}, false
	}

	return uc.apply(queue, to, reason, c), true
}

// apply must be called with uc.mu held.
func (uc *ScalingUseCase) apply(queue string, to int, reason string, c entity.QueueCounts) entity.ScalingEvent {
	st := uc.states[queue]
	now := uc.now()

	ev := entity.ScalingEvent{
		QueueName: queue,
		From:      st.CurrentWorkers,
		To:        to,
		Reason:    reason,
		Waiting:   c.Waiting,
		Active:    c.Active,
		At:        now,
	}

	st.CurrentWorkers = to
	st.LastScalingTime = now

	uc.history = append(uc.history, ev)
	if len(uc.history) > _historySize {
		uc.history = uc.history[len(uc.history)-_historySize:]
	}

	uc.logger.Info("ScalingUseCase - %s: %d -> %d workers (%s)", queue, ev.From, ev.To, reason)

	return ev
}

func (uc *ScalingUseCase) notify(ev entity.ScalingEvent) {
	if ev.From == ev.To {
		return
	}
	for _, l := range uc.listeners {
		l(ev.QueueName, ev.From, ev.To)
	}
}

// Workers returns the current logical worker count, 1 for unknown queues.
func (uc *ScalingUseCase) Workers(queue string) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	st, ok := uc.states[queue]
	if !ok {
		return 1
	}

	return st.CurrentWorkers
}

func (uc *ScalingUseCase) Configs() []entity.ScalingConfig {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make([]entity.ScalingConfig, 0, len(uc.configs))
	for _, q := range uc.queues() {
		out = append(out, uc.configs[q])
	}

	return out
}

func (uc *ScalingUseCase) Config(queue string) (entity.ScalingConfig, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	cfg, ok := uc.configs[queue]
	if !ok {
		return entity.ScalingConfig{}, fmt.Errorf("ScalingUseCase - Config - %q: %w", queue, errs.ErrUnknownQueue)
	}

	return cfg, nil
}

// Patch updates the config of a queue. A worker count left outside the new
// bounds is clamped into them.
func (uc *ScalingUseCase) Patch(queue string, patch dto.ScalingPatch) (entity.ScalingConfig, error) {
	uc.mu.Lock()

	cfg, ok := uc.configs[queue]
	if !ok {
		uc.mu.Unlock()

		return entity.ScalingConfig{}, fmt.Errorf("ScalingUseCase - Patch - %q: %w", queue, errs.ErrUnknownQueue)
	}

	if patch.MinWorkers != nil {
		cfg.MinWorkers = *patch.MinWorkers
	}
	if patch.MaxWorkers != nil {
		cfg.MaxWorkers = *patch.MaxWorkers
	}
	if patch.ScaleUpThreshold != nil {
		cfg.ScaleUpThreshold = *patch.ScaleUpThreshold
	}
	if patch.ScaleDownThreshold != nil {
		cfg.ScaleDownThreshold = *patch.ScaleDownThreshold
	}
	if patch.CheckInterval != nil {
		cfg.CheckInterval = *patch.CheckInterval
	}
	if patch.CooldownPeriod != nil {
		cfg.CooldownPeriod = *patch.CooldownPeriod
	}

	if err := validate(cfg); err != nil {
		uc.mu.Unlock()

		return entity.ScalingConfig{}, fmt.Errorf("ScalingUseCase - Patch - %s: %w", queue, err)
	}

	uc.configs[queue] = cfg

	var (
		ev      entity.ScalingEvent
		clamped bool
	)

	st := uc.states[queue]
	switch {
	case st.CurrentWorkers < cfg.MinWorkers:
		ev, clamped = uc.apply(queue, cfg.MinWorkers, "raised to min_workers", entity.QueueCounts{}), true
	case st.CurrentWorkers > cfg.MaxWorkers:
		ev, clamped = uc.apply(queue, cfg.MaxWorkers, "lowered to max_workers", entity.QueueCounts{}), true
	}

	uc.mu.Unlock()

	if clamped {
		uc.notify(ev)
	}

	return cfg, nil
}

// SetWorkers overrides the worker count, ignoring thresholds and cooldown.
func (uc *ScalingUseCase) SetWorkers(queue string, workers int) (entity.ScalingEvent, error) {
	uc.mu.Lock()

	cfg, ok := uc.configs[queue]
	if !ok {
		uc.mu.Unlock()

		return entity.ScalingEvent{}, fmt.Errorf("ScalingUseCase - SetWorkers - %q: %w", queue, errs.ErrUnknownQueue)
	}

	if workers < cfg.MinWorkers || workers > cfg.MaxWorkers {
		uc.mu.Unlock()

		return entity.ScalingEvent{}, fmt.Errorf(
			"ScalingUseCase - SetWorkers - %s: %d outside [%d, %d]: %w",
			queue, workers, cfg.MinWorkers, cfg.MaxWorkers, errs.ErrInvalidWorkerCount,
		)
	}

	ev := uc.apply(queue, workers, "manual override", entity.QueueCounts{})
	uc.mu.Unlock()

	uc.notify(ev)

	return ev, nil
}

func (uc *ScalingUseCase) Metrics(ctx context.Context) ([]dto.ScalingMetrics, error) {
	configs := uc.Configs()
	out := make([]dto.ScalingMetrics, 0, len(configs))

	for _, cfg := range configs {
		c, err := uc.broker.Counts(ctx, cfg.QueueName)
		if err != nil {
			return nil, fmt.Errorf("ScalingUseCase - Metrics - uc.broker.Counts: %w", err)
		}

		uc.mu.Lock()
		st := *uc.states[cfg.QueueName]
		now := uc.now()
		uc.mu.Unlock()

		out = append(out, dto.ScalingMetrics{
			QueueName:       cfg.QueueName,
			CurrentWorkers:  st.CurrentWorkers,
			MinWorkers:      cfg.MinWorkers,
			MaxWorkers:      cfg.MaxWorkers,
			Waiting:         c.Waiting,
			Active:          c.Active,
			LastScalingTime: st.LastScalingTime,
			InCooldown:      !st.LastScalingTime.IsZero() && now.Sub(st.LastScalingTime) < cfg.CooldownPeriod,
		})
	}

	return out, nil
}

// History returns up to the last 50 scaling events, oldest first.
func (uc *ScalingUseCase) History() []entity.ScalingEvent {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	return append([]entity.ScalingEvent(nil), uc.history...)
}
