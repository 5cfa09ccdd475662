package searchcache

import (
	"context"
	"time"

	"github.com/kailas-cloud/tsclient/internal/db"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

type countingRecorder struct {
	hits, misses, errors int
}

func (r *countingRecorder) Hit(string)   { r.hits++ }
func (r *countingRecorder) Miss(string)  { r.misses++ }
func (r *countingRecorder) Error(string) { r.errors++ }
