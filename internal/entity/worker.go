package entity

import "time"

type WorkerPoolDefinition struct {
	PoolID      string `json:"pool_id" mapstructure:"pool_id"`
	QueueName   string `json:"queue_name" mapstructure:"queue_name"`
	Concurrency int    `json:"concurrency" mapstructure:"concurrency"`
	Priority    int    `json:"priority" mapstructure:"priority"`
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
}

type PoolHealth string

const (
	PoolActive   PoolHealth = "active"
	PoolDegraded PoolHealth = "degraded"
	PoolCritical PoolHealth = "critical"
	PoolPaused   PoolHealth = "paused"
)

type PoolStats struct {
	PoolID    string `json:"pool_id"`
	QueueName string `json:"queue_name"`
	Enabled   bool   `json:"enabled"`

	QueueCounts

	Throughput        int        `json:"throughput"`
	AvgProcessingTime float64    `json:"avg_processing_time_ms"`
	ErrorRate         float64    `json:"error_rate"`
	Health            PoolHealth `json:"health"`
}

type WorkerNode struct {
	WorkerID          string  `json:"worker_id"`
	QueueName         string  `json:"queue_name"`
	ActiveJobs        int     `json:"active_jobs"`
	TotalProcessed    int     `json:"total_processed"`
	FailureCount      int     `json:"failure_count"`
	AvgProcessingTime float64 `json:"avg_processing_time_ms"`
	Healthy           bool    `json:"healthy"`
	Weight            int     `json:"weight"`
	Assigned          int     `json:"assigned"`
}

func (n *WorkerNode) FailureRate() float64 {
	if n.TotalProcessed == 0 {
		return 0
	}

	return float64(n.FailureCount) / float64(n.TotalProcessed)
}

type ScalingConfig struct {
	QueueName          string        `json:"queue_name" mapstructure:"queue_name"`
	MinWorkers         int           `json:"min_workers" mapstructure:"min_workers"`
	MaxWorkers         int           `json:"max_workers" mapstructure:"max_workers"`
	ScaleUpThreshold   int           `json:"scale_up_threshold" mapstructure:"scale_up_threshold"`
	ScaleDownThreshold int           `json:"scale_down_threshold" mapstructure:"scale_down_threshold"`
	CheckInterval      time.Duration `json:"check_interval" mapstructure:"check_interval"`
	CooldownPeriod     time.Duration `json:"cooldown_period" mapstructure:"cooldown_period"`
}

type ScalingState struct {
	CurrentWorkers  int       `json:"current_workers"`
	LastScalingTime time.Time `json:"last_scaling_time"`
}

type ScalingEvent struct {
	QueueName string    `json:"queue_name"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	Reason    string    `json:"reason"`
	Waiting   int       `json:"waiting"`
	Active    int       `json:"active"`
	At        time.Time `json:"at"`
}
