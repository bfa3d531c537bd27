package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/leadflow/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Connect parses cfg.URL, applies the optional password and db overrides and
// pings the server.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// IdempotencyStore keeps replayable responses in Redis.
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Get returns "" without error when key is unknown.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *IdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Claim stores value only if key is unset and reports whether it did.
func (s *IdempotencyStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// WindowCounter counts hits per key in fixed windows.
type WindowCounter struct {
	client *redis.Client
	prefix string
}

func NewWindowCounter(client *redis.Client, prefix string) *WindowCounter {
	return &WindowCounter{client: client, prefix: prefix}
}

// incrWithWindow bumps the counter and gives it a TTL whenever it has none,
// in one atomic step.
var incrWithWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Incr bumps the counter for key and starts its window on the first hit.
func (c *WindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWithWindow.Run(ctx, c.client, []string{c.prefix + key}, window.Milliseconds()).Int64()
}
