package statestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	fieldState        = "state"
	fieldFailureCount = "failure_count"
	fieldLastFailure  = "last_failure_ms"
)

// RedisCircuitStore shares breaker counters between processes. Each process
// still tracks its own in-flight half-open probe.
type RedisCircuitStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisCircuitStore(rc *redis.Client, prefix string) *RedisCircuitStore {
	if prefix == "" {
		prefix = _defaultPrefix
	}

	return &RedisCircuitStore{rc: rc, prefix: prefix}
}

func (s *RedisCircuitStore) Load(ctx context.Context, name string) (entity.Circuit, error) {
	vals, err := s.rc.HGetAll(ctx, circuitKey(s.prefix, name)).Result()
	if err != nil {
		return entity.Circuit{}, fmt.Errorf("RedisCircuitStore - Load - s.rc.HGetAll: %w", err)
	}

	return decodeCircuit(name, vals), nil
}

func (s *RedisCircuitStore) Save(ctx context.Context, c entity.Circuit) error {
	var lastFailure int64
	if !c.LastFailureTime.IsZero() {
		lastFailure = c.LastFailureTime.UnixMilli()
	}

	_, err := s.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, circuitKey(s.prefix, c.Name),
			fieldState, string(c.State),
			fieldFailureCount, c.FailureCount,
			fieldLastFailure, lastFailure,
		)
		p.SAdd(ctx, circuitIndexKey(s.prefix), c.Name)

		return nil
	})
	if err != nil {
		return fmt.Errorf("RedisCircuitStore - Save - s.rc.TxPipelined: %w", err)
	}

	return nil
}

func (s *RedisCircuitStore) List(ctx context.Context) ([]entity.Circuit, error) {
	names, err := s.rc.SMembers(ctx, circuitIndexKey(s.prefix)).Result()
	if err != nil {
		return nil, fmt.Errorf("RedisCircuitStore - List - s.rc.SMembers: %w", err)
	}
	sort.Strings(names)

	out := make([]entity.Circuit, 0, len(names))
	for _, name := range names {
		c, err := s.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("RedisCircuitStore - List: %w", err)
		}
		out = append(out, c)
	}

	return out, nil
}

func decodeCircuit(name string, vals map[string]string) entity.Circuit {
	c := entity.Circuit{Name: name, State: entity.CircuitClosed}
	if len(vals) == 0 {
		return c
	}

	if st := vals[fieldState]; st != "" {
		c.State = entity.CircuitState(st)
	}
	c.FailureCount, _ = strconv.Atoi(vals[fieldFailureCount])
	if ms, _ := strconv.ParseInt(vals[fieldLastFailure], 10, 64); ms > 0 {
		c.LastFailureTime = time.UnixMilli(ms)
	}

	return c
}

// RedisBulkheadStore counts in-flight work with INCR/DECR on one key per bulkhead.
type RedisBulkheadStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisBulkheadStore(rc *redis.Client, prefix string) *RedisBulkheadStore {
	if prefix == "" {
		prefix = _defaultPrefix
	}

	return &RedisBulkheadStore{rc: rc, prefix: prefix}
}

func (s *RedisBulkheadStore) TryAcquire(ctx context.Context, name string, capacity int) (int, bool, error) {
	key := bulkheadKey(s.prefix, name)

	n, err := s.rc.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("RedisBulkheadStore - TryAcquire - s.rc.Incr: %w", err)
	}

	if n > int64(capacity) {
		if err = s.rc.Decr(ctx, key).Err(); err != nil {
			return 0, false, fmt.Errorf("RedisBulkheadStore - TryAcquire - s.rc.Decr: %w", err)
		}

		return int(n - 1), false, nil
	}

	return int(n), true, nil
}

func (s *RedisBulkheadStore) Release(ctx context.Context, name string) error {
	key := bulkheadKey(s.prefix, name)

	n, err := s.rc.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("RedisBulkheadStore - Release - s.rc.Decr: %w", err)
	}

	// a double release must not leave the counter negative
	if n < 0 {
		if err = s.rc.Set(ctx, key, 0, 0).Err(); err != nil {
			return fmt.Errorf("RedisBulkheadStore - Release - s.rc.Set: %w", err)
		}
	}

	return nil
}

func (s *RedisBulkheadStore) Usage(ctx context.Context, name string) (int, error) {
	n, err := s.rc.Get(ctx, bulkheadKey(s.prefix, name)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("RedisBulkheadStore - Usage - s.rc.Get: %w", err)
	}

	return n, nil
}
