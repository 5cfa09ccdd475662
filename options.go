package tsclient

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	nodes       []string
	nearestNode string
	apiKey      string

	connectionTimeout   time.Duration
	numRetries          int
	retryInterval       time.Duration
	healthcheckInterval time.Duration
	httpClient          *http.Client
	rateLimit           float64
	burst               int
	tracing             bool

	embedder       Embedder
	embeddingModel string
	openAI         *OpenAIConfig
	instruction    string
	budget         *EmbeddingBudget

	cacheStore KVStore
	cacheTTL   time.Duration
	valkey     *valkeyConfig

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

type valkeyConfig struct {
	addr     string
	password string
}

// WithNodes sets the node URLs requests are spread across, e.g. "http://localhost:8108".
func WithNodes(urls ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.nodes = append(c.nodes, urls...)
	})
}

// WithNearestNode sets a node that is always tried first while it is healthy.
func WithNearestNode(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.nearestNode = url
	})
}

// WithAPIKey sets the key sent on every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithConnectionTimeout sets the per-request timeout. Default: 10s.
func WithConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.connectionTimeout = d
	})
}

// WithRetries sets how many times a failed request is retried on the next
// node and the pause between attempts. Default: 3 retries, 100ms.
// A negative n disables retries.
func WithRetries(n int, interval time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.numRetries = n
		c.retryInterval = interval
	})
}

// WithHealthcheckInterval sets how long a failed node is skipped. Default: 60s.
func WithHealthcheckInterval(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.healthcheckInterval = d
	})
}

// WithHTTPClient replaces the default HTTP client. The client is copied, never mutated.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithRateLimit caps outgoing requests at rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rateLimit = rps
		c.burst = burst
	})
}

// WithTracing wraps the HTTP transport with OpenTelemetry instrumentation.
func WithTracing() Option {
	return optionFunc(func(c *clientConfig) {
		c.tracing = true
	})
}

// WithEmbedder sets the text embedding provider used by NearText.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.openAI = nil
	})
}

// WithOpenAIEmbedder uses an OpenAI-compatible embeddings API for NearText.
func WithOpenAIEmbedder(cfg OpenAIConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAI = &cfg
		c.embedder = nil
	})
}

// WithEmbeddingInstruction prepends instruction to every NearText query
// before embedding (e.g. "Represent this query for retrieval: ").
func WithEmbeddingInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.instruction = instruction
	})
}

// WithEmbeddingModel names the model behind a custom Embedder.
// It separates cached embeddings of different models. Default: "custom".
func WithEmbeddingModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
	})
}

// WithEmbeddingBudget caps the tokens NearText may spend on the embedding
// provider per UTC day and month. With a Valkey cache the counters are
// persisted there and shared by every client using the same provider.
func WithEmbeddingBudget(b EmbeddingBudget) Option {
	return optionFunc(func(c *clientConfig) {
		c.budget = &b
	})
}

// WithSearchCache caches search responses and query embeddings in store for ttl.
func WithSearchCache(store KVStore, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheStore = store
		c.cacheTTL = ttl
		c.valkey = nil
	})
}

// WithValkeyCache caches search responses and query embeddings in a
// Valkey or Redis instance for ttl. The connection is closed by Client.Close.
func WithValkeyCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.valkey = &valkeyConfig{addr: addr, password: password}
		c.cacheTTL = ttl
		c.cacheStore = nil
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operations, requests per node,
// cache lookups, embedding calls) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
