package balancer

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

const (
	_emaAlpha = 0.3

	DefaultUnhealthyRate = 0.5
	DefaultMinSamples    = 10
)

type roster struct {
	nodes  []*entity.WorkerNode
	cursor int
}

// LoadBalancer tracks worker nodes per queue and picks one per job.
type LoadBalancer struct {
	logger logger.Interface

	weights       Weights
	unhealthyRate float64
	minSamples    int

	mu       sync.Mutex
	strategy string
	queues   map[string]*roster
	rnd      *rand.Rand
}

type Option func(*LoadBalancer)

func HealthWeights(w Weights) Option {
	return func(lb *LoadBalancer) {
		lb.weights = w
	}
}

// UnhealthyAfter marks a node unhealthy once its failure rate exceeds rate
// with at least minSamples processed jobs.
func UnhealthyAfter(rate float64, minSamples int) Option {
	return func(lb *LoadBalancer) {
		lb.unhealthyRate = rate
		lb.minSamples = minSamples
	}
}

func Seed(seed int64) Option {
	return func(lb *LoadBalancer) {
		lb.rnd = rand.New(rand.NewSource(seed)) //nolint:gosec // not used for security
	}
}

func New(strategy string, l logger.Interface, opts ...Option) (*LoadBalancer, error) {
	if strategy == "" {
		strategy = RoundRobin
	}
	if !validStrategy(strategy) {
		return nil, fmt.Errorf("LoadBalancer - New - %q: %w", strategy, errs.ErrUnknownStrategy)
	}

	lb := &LoadBalancer{
		logger:        l,
		weights:       DefaultWeights,
		unhealthyRate: DefaultUnhealthyRate,
		minSamples:    DefaultMinSamples,
		strategy:      strategy,
		queues:        make(map[string]*roster),
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not used for security
	}

	for _, opt := range opts {
		opt(lb)
	}

	return lb, nil
}

func (lb *LoadBalancer) Strategy() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	return lb.strategy
}

func (lb *LoadBalancer) SetStrategy(name string) error {
	if !validStrategy(name) {
		return fmt.Errorf("LoadBalancer - SetStrategy - %q: %w", name, errs.ErrUnknownStrategy)
	}

	lb.mu.Lock()
	lb.strategy = name
	lb.mu.Unlock()

	lb.logger.Info("LoadBalancer - SetStrategy - %s", name)

	return nil
}

// Select picks a healthy node of queue and counts the assignment.
func (lb *LoadBalancer) Select(queue string) (entity.WorkerNode, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, ok := lb.queues[queue]
	if !ok {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - Select - %q: %w", queue, errs.ErrNoHealthyWorker)
	}

	healthy := make([]*entity.WorkerNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.Healthy {
			healthy = append(healthy, n)
		}
	}
	if len(healthy) == 0 {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - Select - %q: %w", queue, errs.ErrNoHealthyWorker)
	}

	var picked *entity.WorkerNode
	switch lb.strategy {
	case LeastConnections:
		picked = leastConnections(healthy)
	case Weighted:
		picked = weighted(healthy, lb.rnd)
	case HealthBased:
		picked = healthBased(healthy, lb.weights)
	default:
		picked = roundRobin(r.nodes, &r.cursor)
	}

	picked.Assigned++

	return *picked, nil
}

// node must be called with lb.mu held.
func (lb *LoadBalancer) node(queue, workerID string) (*roster, int) {
	r, ok := lb.queues[queue]
	if !ok {
		return nil, -1
	}
	for i, n := range r.nodes {
		if n.WorkerID == workerID {
			return r, i
		}
	}

	return r, -1
}

func (lb *LoadBalancer) JobStarted(queue, workerID string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, i := lb.node(queue, workerID)
	if i < 0 {
		return
	}
	r.nodes[i].ActiveJobs++
}

func (lb *LoadBalancer) JobCompleted(queue, workerID string, took time.Duration) {
	lb.finish(queue, workerID, took, false)
}

func (lb *LoadBalancer) JobFailed(queue, workerID string, took time.Duration) {
	lb.finish(queue, workerID, took, true)
}

func (lb *LoadBalancer) finish(queue, workerID string, took time.Duration, failed bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, i := lb.node(queue, workerID)
	if i < 0 {
		return
	}
	n := r.nodes[i]

	if n.ActiveJobs > 0 {
		n.ActiveJobs--
	}
	n.TotalProcessed++
	if failed {
		n.FailureCount++
	}

	ms := float64(took) / float64(time.Millisecond)
	if n.AvgProcessingTime == 0 {
		n.AvgProcessingTime = ms
	} else {
		n.AvgProcessingTime = _emaAlpha*ms + (1-_emaAlpha)*n.AvgProcessingTime
	}

	if n.Healthy && n.TotalProcessed >= lb.minSamples && n.FailureRate() > lb.unhealthyRate {
		n.Healthy = false
		lb.logger.Warn("LoadBalancer - node %s on %s marked unhealthy: failure rate %.2f over %d jobs",
			n.WorkerID, queue, n.FailureRate(), n.TotalProcessed)
	}
}

func (lb *LoadBalancer) Nodes(queue string) ([]entity.WorkerNode, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, ok := lb.queues[queue]
	if !ok {
		return nil, fmt.Errorf("LoadBalancer - Nodes - %q: %w", queue, errs.ErrUnknownQueue)
	}

	out := make([]entity.WorkerNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}

	return out, nil
}

func (lb *LoadBalancer) AddNode(queue, workerID string, weight int) (entity.WorkerNode, error) {
	if queue == "" || workerID == "" {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - AddNode - queue and worker id required: %w", errs.ErrInvalidInput)
	}
	if weight < 0 {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - AddNode - weight %d: %w", weight, errs.ErrInvalidInput)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	n, err := lb.add(queue, workerID, weight)
	if err != nil {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - AddNode: %w", err)
	}

	return *n, nil
}

// add must be called with lb.mu held.
func (lb *LoadBalancer) add(queue, workerID string, weight int) (*entity.WorkerNode, error) {
	if _, i := lb.node(queue, workerID); i >= 0 {
		return nil, fmt.Errorf("%s on %s: %w", workerID, queue, errs.ErrAlreadyExists)
	}

	if weight == 0 {
		weight = 1
	}

	r, ok := lb.queues[queue]
	if !ok {
		r = &roster{}
		lb.queues[queue] = r
	}

	n := &entity.WorkerNode{
		WorkerID:  workerID,
		QueueName: queue,
		Healthy:   true,
		Weight:    weight,
	}
	r.nodes = append(r.nodes, n)

	return n, nil
}

func (lb *LoadBalancer) RemoveNode(queue, workerID string) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, i := lb.node(queue, workerID)
	if i < 0 {
		return fmt.Errorf("LoadBalancer - RemoveNode - %s on %s: %w", workerID, queue, errs.ErrUnknownWorker)
	}

	r.nodes = append(r.nodes[:i], r.nodes[i+1:]...)
	if r.cursor >= len(r.nodes) {
		r.cursor = 0
	}

	return nil
}

func (lb *LoadBalancer) PatchNode(queue, workerID string, patch dto.NodePatch) (entity.WorkerNode, error) {
	if patch.Weight != nil && *patch.Weight < 0 {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - PatchNode - weight %d: %w", *patch.Weight, errs.ErrInvalidInput)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, i := lb.node(queue, workerID)
	if i < 0 {
		return entity.WorkerNode{}, fmt.Errorf("LoadBalancer - PatchNode - %s on %s: %w", workerID, queue, errs.ErrUnknownWorker)
	}

	n := r.nodes[i]
	if patch.Healthy != nil {
		n.Healthy = *patch.Healthy
	}
	if patch.Weight != nil {
		n.Weight = *patch.Weight
	}

	return *n, nil
}

func (lb *LoadBalancer) Metrics() dto.BalancerMetrics {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	m := dto.BalancerMetrics{
		Strategy: lb.strategy,
		Queues:   make(map[string]dto.QueueBalance, len(lb.queues)),
	}

	for q, r := range lb.queues {
		qb := dto.QueueBalance{
			Nodes:       len(r.nodes),
			Assignments: make(map[string]int, len(r.nodes)),
			Variance:    variance(r.nodes),
		}
		for _, n := range r.nodes {
			qb.Assignments[n.WorkerID] = n.Assigned
			if n.Healthy {
				qb.Healthy++
			}
		}
		m.Queues[q] = qb
	}

	return m
}

// ResetMetrics zeroes counters of every node. Health and weight are kept.
func (lb *LoadBalancer) ResetMetrics() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for _, r := range lb.queues {
		r.cursor = 0
		for _, n := range r.nodes {
			n.ActiveJobs = 0
			n.TotalProcessed = 0
			n.FailureCount = 0
			n.AvgProcessingTime = 0
			n.Assigned = 0
		}
	}
}

// NodeID names the n-th scaled worker of a queue.
func NodeID(queue string, n int) string {
	return queue + "-worker-" + strconv.Itoa(n)
}

// Resize keeps the scaled nodes of queue at exactly workers entries.
// Nodes added through AddNode under other ids are left alone.
func (lb *LoadBalancer) Resize(queue string, _, workers int) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for i := 1; i <= workers; i++ {
		if _, idx := lb.node(queue, NodeID(queue, i)); idx < 0 {
			_, _ = lb.add(queue, NodeID(queue, i), 1)
		}
	}

	r, ok := lb.queues[queue]
	if !ok {
		return
	}

	prefix := queue + "-worker-"
	kept := r.nodes[:0]
	for _, n := range r.nodes {
		if k, err := strconv.Atoi(strings.TrimPrefix(n.WorkerID, prefix)); err == nil &&
			strings.HasPrefix(n.WorkerID, prefix) && k > workers {
			continue
		}
		kept = append(kept, n)
	}
	r.nodes = kept
	if r.cursor >= len(r.nodes) {
		r.cursor = 0
	}
}
