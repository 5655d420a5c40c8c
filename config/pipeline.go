package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/spf13/viper"
)

//go:embed pipeline.yaml
var defaultPipeline []byte

type (
	Pipeline struct {
		Pools     []entity.WorkerPoolDefinition   `mapstructure:"pools"`
		Scaling   []entity.ScalingConfig          `mapstructure:"scaling"`
		Retries   map[string]Retry                `mapstructure:"retries"`
		Bulkheads map[string]int                  `mapstructure:"bulkheads"`
		Circuits  map[string]entity.CircuitConfig `mapstructure:"circuits"`
		Balancer  Balancer                        `mapstructure:"balancer"`
		Flags     []Flag                          `mapstructure:"flags"`
	}

	Retry struct {
		Attempts int     `mapstructure:"attempts"`
		Backoff  Backoff `mapstructure:"backoff"`
	}

	Backoff struct {
		Type  string        `mapstructure:"type"`
		Delay time.Duration `mapstructure:"delay"`
	}

	Balancer struct {
		Strategy      string  `mapstructure:"strategy"`
		Weights       Weights `mapstructure:"weights"`
		UnhealthyRate float64 `mapstructure:"unhealthy_rate"`
		MinSamples    int     `mapstructure:"min_samples"`
	}

	Weights struct {
		Reliability float64 `mapstructure:"reliability"`
		Speed       float64 `mapstructure:"speed"`
		Load        float64 `mapstructure:"load"`
	}

	Flag struct {
		Name        string `mapstructure:"name"`
		Enabled     bool   `mapstructure:"enabled"`
		Description string `mapstructure:"description"`
	}
)

// LoadPipeline reads the embedded topology and merges path over it when set.
func LoadPipeline(path string) (*Pipeline, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(defaultPipeline)); err != nil {
		return nil, fmt.Errorf("config - LoadPipeline - v.ReadConfig: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config - LoadPipeline - v.MergeInConfig %s: %w", path, err)
		}
	}

	p := &Pipeline{}
	if err := v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("config - LoadPipeline - v.Unmarshal: %w", err)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("config - LoadPipeline: %w", err)
	}

	return p, nil
}

func (p *Pipeline) validate() error {
	pooled := make(map[string]bool, len(p.Pools))
	for _, pool := range p.Pools {
		if !entity.JobType(pool.QueueName).Valid() {
			return fmt.Errorf("pool %q: unknown queue %q", pool.PoolID, pool.QueueName)
		}
		if pool.Concurrency < 1 || pool.Concurrency > 100 {
			return fmt.Errorf("pool %q: concurrency %d outside [1, 100]", pool.PoolID, pool.Concurrency)
		}
		pooled[pool.QueueName] = true
	}

	for _, jt := range entity.JobTypes {
		if !pooled[jt.Queue()] {
			return fmt.Errorf("no pool serves queue %q", jt.Queue())
		}
	}

	for _, s := range p.Scaling {
		if !entity.JobType(s.QueueName).Valid() {
			return fmt.Errorf("scaling: unknown queue %q", s.QueueName)
		}
	}

	for name, r := range p.Retries {
		if !entity.JobType(name).Valid() {
			return fmt.Errorf("retries: unknown job type %q", name)
		}
		if r.Attempts < 1 {
			return fmt.Errorf("retries %q: attempts must be positive", name)
		}
	}

	return nil
}

func (p *Pipeline) FeatureFlags() []entity.FeatureFlag {
	out := make([]entity.FeatureFlag, 0, len(p.Flags))
	for _, f := range p.Flags {
		out = append(out, entity.FeatureFlag{Name: f.Name, Enabled: f.Enabled, Description: f.Description})
	}

	return out
}
