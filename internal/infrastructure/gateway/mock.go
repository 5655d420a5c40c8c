package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/google/uuid"
)

var ErrDeclined = errors.New("payment declined by gateway")

// Mock stands in for a card processor. Failures are injected by rate or explicitly.
type Mock struct {
	mu          sync.Mutex
	failureRate float64
	latency     time.Duration
	rnd         *rand.Rand
	failNext    int
	calls       int
}

type Option func(*Mock)

func FailureRate(rate float64) Option {
	return func(m *Mock) {
		m.failureRate = rate
	}
}

func Latency(d time.Duration) Option {
	return func(m *Mock) {
		m.latency = d
	}
}

func Seed(seed int64) Option {
	return func(m *Mock) {
		m.rnd = rand.New(rand.NewSource(seed)) //nolint:gosec // not used for security
	}
}

func NewMock(opts ...Option) *Mock {
	m := &Mock{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not used for security
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// FailNext makes the next n calls fail regardless of the failure rate.
func (m *Mock) FailNext(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

func (m *Mock) CreatePayment(ctx context.Context, req entity.PaymentRequest) (string, error) {
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return "", fmt.Errorf("Mock - CreatePayment: %w", ctx.Err())
		}
	}

	m.mu.Lock()
	m.calls++
	fail := m.failNext > 0 || (m.failureRate > 0 && m.rnd.Float64() < m.failureRate)
	if m.failNext > 0 {
		m.failNext--
	}
	m.mu.Unlock()

	if fail {
		return "", fmt.Errorf("Mock - CreatePayment - submission %s: %w", req.SubmissionID, ErrDeclined)
	}

	return "pay_" + uuid.NewString(), nil
}
