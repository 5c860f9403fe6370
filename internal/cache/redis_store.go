package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:"

// RedisIdempotencyStore keeps idempotency entries in Redis with a TTL so
// every server instance sees the same keys
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisIdempotencyStore creates a Redis-backed store
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Acquire(ctx context.Context, key, fingerprint string) (*Entry, error) {
	pending, err := json.Marshal(Entry{State: StatePending, Fingerprint: fingerprint, CreatedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}

	// The existing entry may expire between SETNX and GET; one retry covers it
	for i := 0; i < 2; i++ {
		ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, pending, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		data, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode idempotency entry: %w", err)
		}
		return &entry, nil
	}
	return &Entry{State: StatePending}, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, fingerprint string, statusCode int, body []byte) error {
	data, err := json.Marshal(Entry{
		State:       StateCompleted,
		Fingerprint: fingerprint,
		StatusCode:  statusCode,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, idempotencyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
