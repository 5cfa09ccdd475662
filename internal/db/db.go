// Package db defines the key-value contracts used by the search response cache
// and the embedding token budget.
package db

import (
	"context"
	"time"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Counter provides atomic counters with expiry.
type Counter interface {
	IncrBy(ctx context.Context, key string, val int64) error
	// Expire sets a TTL on key. With nx it only applies when the key has none yet.
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store combines the KV operations with lifecycle management.
type Store interface {
	Pinger
	KVStore
	Counter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
