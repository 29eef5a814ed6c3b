package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/metering/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// claimedMarker is stored while the operation behind a key is in flight.
// Completed keys hold the serialized outcome instead.
const claimedMarker = "\x00claimed"

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// This is suitable for distributed deployments where multiple instances
// share idempotency state.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "metering:idempotency:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis
// client. This is useful for testing or when sharing a client across components.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "metering:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Begin atomically claims the key using SETNX.
// Returns true if the key was newly claimed, false if it already existed.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, claimedMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return result, nil
}

// Complete stores the serialized outcome for a claimed key
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, outcome, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency outcome: %w", err)
	}
	return nil
}

// Lookup returns the stored outcome for a key, if its outcome is recorded
func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if string(value) == claimedMarker {
		// Claimed but the outcome is not recorded yet.
		return nil, false, nil
	}
	return value, true, nil
}

// Release forgets a claimed key so the caller may retry
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisIdempotencyStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
