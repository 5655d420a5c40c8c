package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPipelineDefaults(t *testing.T) {
	p, err := LoadPipeline("")
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	if len(p.Pools) != 3 || len(p.Scaling) != 3 {
		t.Fatalf("pools %d scaling %d", len(p.Pools), len(p.Scaling))
	}
	if p.Scaling[0].CooldownPeriod != time.Minute {
		t.Fatalf("cooldown = %s", p.Scaling[0].CooldownPeriod)
	}
	if p.Circuits["payment_gateway"].FailureThreshold != 3 {
		t.Fatalf("circuits = %+v", p.Circuits)
	}
	if p.Retries["send_email"].Backoff.Delay != time.Second {
		t.Fatalf("retries = %+v", p.Retries)
	}
	if p.Balancer.Strategy != "round-robin" || p.Balancer.Weights.Reliability != 0.4 {
		t.Fatalf("balancer = %+v", p.Balancer)
	}
	if len(p.FeatureFlags()) != 5 {
		t.Fatalf("flags = %d", len(p.FeatureFlags()))
	}
}

func TestLoadPipelineOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	err := os.WriteFile(path, []byte("balancer:\n  strategy: least-connections\nbulkheads:\n  send_email: 9\n"), 0o600)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	if p.Balancer.Strategy != "least-connections" {
		t.Fatalf("strategy = %q", p.Balancer.Strategy)
	}
	if p.Bulkheads["send_email"] != 9 || p.Bulkheads["create_payment"] != 2 {
		t.Fatalf("bulkheads = %+v", p.Bulkheads)
	}
	if len(p.Pools) != 3 {
		t.Fatalf("pools dropped by override: %d", len(p.Pools))
	}
}

func TestLoadPipelineRejectsUnknownQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	body := "pools:\n  - {pool_id: x, queue_name: resize_image, concurrency: 1, enabled: true}\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadPipeline(path)
	if err == nil || !strings.Contains(err.Error(), "resize_image") {
		t.Fatalf("err = %v", err)
	}
}
