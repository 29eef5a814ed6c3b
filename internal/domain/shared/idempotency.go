package shared

import (
	"context"
	"time"
)

// IdempotencyStore deduplicates mutating calls by a caller-supplied key and
// remembers the serialized outcome so a retried call can replay it.
type IdempotencyStore interface {
	// Begin atomically claims the key. Returns true if the key was newly
	// claimed (the caller should execute the operation), false if a prior
	// call already claimed it.
	Begin(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete stores the serialized outcome for a claimed key.
	Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error

	// Lookup returns the stored outcome for a key. The second return value
	// is false if the key is unknown or its outcome is not yet recorded.
	Lookup(ctx context.Context, key string) ([]byte, bool, error)

	// Release forgets a claimed key so the caller may retry after a failure.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for stored keys and outcomes.
	// After this duration, the same key is treated as new.
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
