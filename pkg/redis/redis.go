package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/connect"
	"github.com/redis/go-redis/v9"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
)

type Redis struct {
	connAttempts int
	connTimeout  time.Duration

	Client *redis.Client
}

func New(ctx context.Context, url string, opts ...Option) (*Redis, error) {
	r := &Redis{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("Redis - New - redis.ParseURL: %w", err)
	}

	r.Client = redis.NewClient(redisOpts)

	err = connect.Retry(ctx, "Redis", r.connAttempts, r.connTimeout, func(ctx context.Context) error {
		return r.Client.Ping(ctx).Err()
	})
	if err != nil {
		_ = r.Client.Close()

		return nil, fmt.Errorf("Redis - New - connect.Retry: %w", err)
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}

	return nil
}
