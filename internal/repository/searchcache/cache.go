// Package searchcache caches raw search responses in a key-value store.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tsclient/internal/db"
)

// KeyPrefix namespaces cache entries in a shared store.
const KeyPrefix = "tsclient:search_cache:"

const metricsName = "search"

// store is the consumer interface for the search cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// recorder counts cache lookups.
type recorder interface {
	Hit(cache string)
	Miss(cache string)
	Error(cache string)
}

// LoadFunc fetches a response from the search service on a cache miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Cache is a read-through cache of search responses.
type Cache struct {
	store   store
	ttl     time.Duration
	metrics recorder
	logger  *zap.Logger
}

// New creates a search cache. A nil recorder disables metrics.
func New(s store, ttl time.Duration, m recorder, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, ttl: ttl, metrics: m, logger: logger}
}

// Key derives the cache key for a search on collection with params.
// url.Values.Encode sorts by key, so equal parameter sets yield equal keys.
func Key(collection string, params url.Values) string {
	h := sha256.New()
	h.Write([]byte(collection))
	h.Write([]byte{0})
	h.Write([]byte(params.Encode()))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Fetch returns the cached response for key or calls load and caches its result.
// Store failures are logged and never fail the search.
func (c *Cache) Fetch(ctx context.Context, key string, load LoadFunc) ([]byte, error) {
	if data, ok := c.get(ctx, key); ok {
		c.record(recorder.Hit)
		return data, nil
	}
	c.record(recorder.Miss)

	data, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load search response: %w", err)
	}

	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.record(recorder.Error)
		c.logger.Warn("Failed to cache search response", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.record(recorder.Error)
			c.logger.Warn("Failed to get cached search response", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Cache) record(fn func(recorder, string)) {
	if c.metrics != nil {
		fn(c.metrics, metricsName)
	}
}
