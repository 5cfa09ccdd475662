package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache counts lookups of the client-side caches.
type Cache struct {
	lookups *prometheus.CounterVec
}

// NewCache creates cache metrics on reg.
func NewCache(reg prometheus.Registerer) (*Cache, error) {
	c := &Cache{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_total",
			Help:      "Client cache hits and misses",
		}, []string{"cache", "result"}), // result: "hit" / "miss" / "error"
	}
	if err := RegisterOrReuse(reg, &c.lookups); err != nil {
		return nil, err
	}
	return c, nil
}

// Hit records a cache hit.
func (c *Cache) Hit(cache string) { c.lookups.WithLabelValues(cache, "hit").Inc() }

// Miss records a cache miss.
func (c *Cache) Miss(cache string) { c.lookups.WithLabelValues(cache, "miss").Inc() }

// Error records a failed cache read or write.
func (c *Cache) Error(cache string) { c.lookups.WithLabelValues(cache, "error").Inc() }
