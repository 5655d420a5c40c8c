package statestore

import (
	"context"
	"sort"
	"sync"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
)

// MemoryCircuitStore keeps breaker state for this process only.
type MemoryCircuitStore struct {
	mu       sync.RWMutex
	circuits map[string]entity.Circuit
}

func NewMemoryCircuitStore() *MemoryCircuitStore {
	return &MemoryCircuitStore{circuits: make(map[string]entity.Circuit)}
}

// Load returns a closed circuit for names never saved.
func (s *MemoryCircuitStore) Load(_ context.Context, name string) (entity.Circuit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.circuits[name]
	if !ok {
		return entity.Circuit{Name: name, State: entity.CircuitClosed}, nil
	}

	return c, nil
}

func (s *MemoryCircuitStore) Save(_ context.Context, c entity.Circuit) error {
	s.mu.Lock()
	s.circuits[c.Name] = c
	s.mu.Unlock()

	return nil
}

func (s *MemoryCircuitStore) List(_ context.Context) ([]entity.Circuit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Circuit, 0, len(s.circuits))
	for _, c := range s.circuits {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

type MemoryBulkheadStore struct {
	mu    sync.Mutex
	usage map[string]int
}

func NewMemoryBulkheadStore() *MemoryBulkheadStore {
	return &MemoryBulkheadStore{usage: make(map[string]int)}
}

func (s *MemoryBulkheadStore) TryAcquire(_ context.Context, name string, capacity int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usage[name] >= capacity {
		return s.usage[name], false, nil
	}
	s.usage[name]++

	return s.usage[name], true, nil
}

func (s *MemoryBulkheadStore) Release(_ context.Context, name string) error {
	s.mu.Lock()
	if s.usage[name] > 0 {
		s.usage[name]--
	}
	s.mu.Unlock()

	return nil
}

func (s *MemoryBulkheadStore) Usage(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usage[name], nil
}
