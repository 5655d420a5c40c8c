package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/broker"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure/statestore"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/memory"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/balancer"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/deadletter"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/scaling"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/submission"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/workerpool"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	l := logger.New("disabled")
	store := memory.NewStore()
	b := broker.NewMemoryBroker()

	flags := resilience.NewFlags(memory.NewFeatureFlagRepo(store,
		entity.FeatureFlag{Name: entity.FlagIdempotency, Enabled: true},
		entity.FeatureFlag{Name: entity.FlagCircuitBreaker, Enabled: true},
		entity.FeatureFlag{Name: entity.FlagBulkhead, Enabled: true},
		entity.FeatureFlag{Name: entity.FlagAutoScaling, Enabled: true},
		entity.FeatureFlag{Name: entity.FlagLoadBalancer, Enabled: true},
	), l)

	guard := resilience.NewIdempotencyGuard(memory.NewIdempotencyRepo(store), flags, l)
	subs := submission.New(memory.NewSubmissionRepo(store), memory.NewOutboxRepo(store), store, guard, l)

	var (
		pools   []entity.WorkerPoolDefinition
		configs []entity.ScalingConfig
	)
	for _, jt := range entity.JobTypes {
		pools = append(pools, entity.WorkerPoolDefinition{
			PoolID: jt.Queue() + "-pool", QueueName: jt.Queue(), Concurrency: 2, Enabled: true,
		})
		configs = append(configs, entity.ScalingConfig{
			QueueName: jt.Queue(), MinWorkers: 1, MaxWorkers: 4, ScaleUpThreshold: 50,
		})
	}

	sc, err := scaling.New(b, flags, configs, l)
	if err != nil {
		t.Fatalf("scaling.New: %v", err)
	}
	lb, err := balancer.New(balancer.RoundRobin, l)
	if err != nil {
		t.Fatalf("balancer.New: %v", err)
	}
	for _, cfg := range configs {
		lb.Resize(cfg.QueueName, 0, sc.Workers(cfg.QueueName))
	}

	breaker := resilience.NewCircuitBreaker(statestore.NewMemoryCircuitStore(), flags, nil, l)
	bulkhead := resilience.NewBulkhead(statestore.NewMemoryBulkheadStore(), flags, nil, l)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	NewRoutes(app.Group("/v1"), UseCases{
		Submissions: subs,
		Flags:       flags,
		DeadLetter:  deadletter.New(b, l),
		Pools:       workerpool.New(b, pools, l),
		Scaling:     sc,
		Balancer:    lb,
		Resilience:  resilience.NewAdmin(breaker, bulkhead),
	}, l)

	return app
}

func call(t *testing.T, app *fiber.App, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	return resp.StatusCode, out
}

func TestSubmitReplaysWithIdempotencyKey(t *testing.T) {
	app := newApp(t)

	in := map[string]any{
		"applicant_id": "app-9",
		"email":        "someone@example.com",
		"amount":       1200,
		"currency":     "usd",
		"documents":    []map[string]string{{"key": "docs/a.pdf", "name": "a.pdf", "declared_type": "pdf"}},
	}

	code, first := call(t, app, http.MethodPost, "/v1/submissions", in, IdempotencyHeader, "abc")
	if code != http.StatusCreated {
		t.Fatalf("first submit: %d %s", code, first)
	}
	code, second := call(t, app, http.MethodPost, "/v1/submissions", in, IdempotencyHeader, "abc")
	if code != http.StatusCreated {
		t.Fatalf("second submit: %d %s", code, second)
	}

	var a, b response.Submission
	_ = json.Unmarshal(first, &a)
	_ = json.Unmarshal(second, &b)
	if a.SubmissionID == "" || a.SubmissionID != b.SubmissionID {
		t.Fatalf("ids differ: %q vs %q", a.SubmissionID, b.SubmissionID)
	}
	if a.Status != entity.StatusSubmitted {
		t.Fatalf("status = %s", a.Status)
	}

	code, got := call(t, app, http.MethodGet, "/v1/submissions/"+a.SubmissionID, nil)
	if code != http.StatusOK {
		t.Fatalf("get: %d %s", code, got)
	}
}

func TestErrorStatuses(t *testing.T) {
	app := newApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid submission", http.MethodPost, "/v1/submissions", map[string]any{"applicant_id": "x"}, http.StatusBadRequest},
		{"malformed id", http.MethodGet, "/v1/submissions/not-a-uuid", nil, http.StatusBadRequest},
		{"missing submission", http.MethodGet, "/v1/submissions/" + uuid.NewString(), nil, http.StatusNotFound},
		{"unknown flag", http.MethodPatch, "/v1/flags/nope", map[string]bool{"enabled": true}, http.StatusNotFound},
		{"flag without value", http.MethodPatch, "/v1/flags/idempotency", map[string]any{}, http.StatusBadRequest},
		{"unknown dlq queue", http.MethodGet, "/v1/dlq/nope", nil, http.StatusNotFound},
		{"requeue without job", http.MethodPost, "/v1/dlq/requeue", map[string]string{"queueName": "send_email"}, http.StatusBadRequest},
		{"unknown pool", http.MethodGet, "/v1/pools/nope", nil, http.StatusNotFound},
		{"concurrency out of range", http.MethodPatch, "/v1/pools/send_email-pool", map[string]int{"concurrency": 500}, http.StatusBadRequest},
		{"bad grace", http.MethodPost, "/v1/pools/send_email-pool/clean", map[string]string{"grace": "soon"}, http.StatusBadRequest},
		{"workers above max", http.MethodPost, "/v1/scaling/send_email/workers", map[string]int{"workers": 99}, http.StatusBadRequest},
		{"unknown scaling queue", http.MethodGet, "/v1/scaling/nope", nil, http.StatusNotFound},
		{"unknown strategy", http.MethodPut, "/v1/balancer/strategy", map[string]string{"strategy": "random"}, http.StatusBadRequest},
		{"duplicate node", http.MethodPost, "/v1/balancer/send_email/nodes", map[string]string{"worker_id": balancer.NodeID("send_email", 1)}, http.StatusConflict},
		{"unknown node", http.MethodDelete, "/v1/balancer/send_email/nodes/ghost", nil, http.StatusNotFound},
		{"unmatched route", http.MethodGet, "/v1/nothing-here", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := call(t, app, tt.method, tt.path, tt.body)
			if code != tt.want {
				t.Fatalf("got %d (%s), want %d", code, body, tt.want)
			}

			var e response.Error
			if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
				t.Fatalf("expected JSON error body, got %s", body)
			}
		})
	}
}

func TestAdminRoundTrips(t *testing.T) {
	app := newApp(t)

	code, body := call(t, app, http.MethodPatch, "/v1/flags/idempotency", map[string]bool{"enabled": false})
	if code != http.StatusOK {
		t.Fatalf("set flag: %d %s", code, body)
	}
	var flag entity.FeatureFlag
	_ = json.Unmarshal(body, &flag)
	if flag.Enabled {
		t.Fatal("flag still enabled")
	}

	code, body = call(t, app, http.MethodPut, "/v1/balancer/strategy", map[string]string{"strategy": balancer.LeastConnections})
	if code != http.StatusOK {
		t.Fatalf("set strategy: %d %s", code, body)
	}

	code, body = call(t, app, http.MethodPost, "/v1/scaling/send_email/workers", map[string]int{"workers": 3})
	if code != http.StatusOK {
		t.Fatalf("set workers: %d %s", code, body)
	}
	var ev entity.ScalingEvent
	_ = json.Unmarshal(body, &ev)
	if ev.From != 1 || ev.To != 3 {
		t.Fatalf("scaling event %+v", ev)
	}

	code, body = call(t, app, http.MethodPost, "/v1/pools/send_email-pool/pause", nil)
	if code != http.StatusOK {
		t.Fatalf("pause: %d %s", code, body)
	}
	code, body = call(t, app, http.MethodGet, "/v1/pools/send_email-pool/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("stats: %d %s", code, body)
	}
	var stats entity.PoolStats
	_ = json.Unmarshal(body, &stats)
	if stats.Health != entity.PoolPaused {
		t.Fatalf("health = %s, want paused", stats.Health)
	}

	code, body = call(t, app, http.MethodGet, "/v1/dashboard", nil)
	if code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", code, body)
	}
	var dash map[string]json.RawMessage
	_ = json.Unmarshal(body, &dash)
	for _, k := range []string{"pools", "scaling", "balancer", "dlq", "circuits", "bulkheads", "flags"} {
		if _, ok := dash[k]; !ok {
			t.Fatalf("dashboard misses %q", k)
		}
	}
}
