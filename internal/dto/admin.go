package dto

import "time"

type PoolPatch struct {
	Concurrency *int  `json:"concurrency,omitempty"`
	Priority    *int  `json:"priority,omitempty"`
	Enabled     *bool `json:"enabled,omitempty"`
}

type ScalingPatch struct {
	MinWorkers         *int           `json:"min_workers,omitempty"`
	MaxWorkers         *int           `json:"max_workers,omitempty"`
	ScaleUpThreshold   *int           `json:"scale_up_threshold,omitempty"`
	ScaleDownThreshold *int           `json:"scale_down_threshold,omitempty"`
	CheckInterval      *time.Duration `json:"check_interval,omitempty"`
	CooldownPeriod     *time.Duration `json:"cooldown_period,omitempty"`
}

type NodePatch struct {
	Healthy *bool `json:"healthy,omitempty"`
	Weight  *int  `json:"weight,omitempty"`
}

type ScalingMetrics struct {
	QueueName       string    `json:"queue_name"`
	CurrentWorkers  int       `json:"current_workers"`
	MinWorkers      int       `json:"min_workers"`
	MaxWorkers      int       `json:"max_workers"`
	Waiting         int       `json:"waiting"`
	Active          int       `json:"active"`
	LastScalingTime time.Time `json:"last_scaling_time"`
	InCooldown      bool      `json:"in_cooldown"`
}

type BalancerMetrics struct {
	Strategy string                  `json:"strategy"`
	Queues   map[string]QueueBalance `json:"queues"`
}

type QueueBalance struct {
	Nodes       int            `json:"nodes"`
	Healthy     int            `json:"healthy"`
	Assignments map[string]int `json:"assignments"`
	Variance    float64        `json:"variance"`
}

type Dashboard struct {
	Pools     any `json:"pools"`
	Scaling   any `json:"scaling"`
	Balancer  any `json:"balancer"`
	DLQ       any `json:"dlq"`
	Circuits  any `json:"circuits"`
	Bulkheads any `json:"bulkheads"`
	Flags     any `json:"flags"`
}
