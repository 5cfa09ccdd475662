package tsclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tsclient/internal/db"
	"github.com/kailas-cloud/tsclient/internal/db/valkey"
	"github.com/kailas-cloud/tsclient/internal/domain"
	"github.com/kailas-cloud/tsclient/internal/metrics"
	"github.com/kailas-cloud/tsclient/internal/repository/budget"
	"github.com/kailas-cloud/tsclient/internal/repository/embcache"
	"github.com/kailas-cloud/tsclient/internal/repository/searchcache"
	"github.com/kailas-cloud/tsclient/internal/transport/openai"
	"github.com/kailas-cloud/tsclient/internal/transport/rest"
	"github.com/kailas-cloud/tsclient/internal/usecase/embedding"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultEmbeddingModel   = "custom"
	defaultProvider         = "openai"
)

// transport sends requests to the search service. Swapped in tests.
type transport interface {
	DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error
	DoRaw(ctx context.Context, method, path string, query url.Values, contentType string, body []byte) ([]byte, error)
}

// Client is the tsclient entry point.
type Client struct {
	tr       transport
	cache    *searchcache.Cache
	embedder domain.Embedder
	closer   func()
	obs      *observer

	// probed by Ready
	storePing   db.Pinger
	embedHealth domain.HealthChecker
}

// New validates the options and creates a Client.
// With WithValkeyCache it also connects to the cache and waits until it is ready.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if len(cfg.nodes) == 0 && cfg.nearestNode == "" {
		return nil, fmt.Errorf("tsclient: %w (use WithNodes)", domain.ErrNoNodes)
	}
	if cfg.apiKey == "" {
		return nil, errors.New("tsclient: api key required (use WithAPIKey)")
	}
	if cfg.budget != nil {
		if err := budgetLimits(cfg.budget).Validate(); err != nil {
			return nil, fmt.Errorf("tsclient: embedding budget: %w", err)
		}
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, fmt.Errorf("tsclient: %w", err)
	}

	restCfg := rest.Config{
		Nodes:               cfg.nodes,
		NearestNode:         cfg.nearestNode,
		APIKey:              cfg.apiKey,
		ConnectionTimeout:   cfg.connectionTimeout,
		NumRetries:          cfg.numRetries,
		RetryInterval:       cfg.retryInterval,
		HealthcheckInterval: cfg.healthcheckInterval,
		HTTPClient:          cfg.httpClient,
		RateLimit:           cfg.rateLimit,
		Burst:               cfg.burst,
		Tracing:             cfg.tracing,
		Logger:              logger,
	}
	var cacheMetrics *metrics.Cache
	var embMetrics *metrics.Embedding
	if cfg.metricsReg != nil {
		tm, err := metrics.NewTransport(cfg.metricsReg)
		if err != nil {
			return nil, fmt.Errorf("tsclient: %w", err)
		}
		restCfg.Observer = tm
		if cacheMetrics, err = metrics.NewCache(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("tsclient: %w", err)
		}
		if embMetrics, err = metrics.NewEmbedding(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("tsclient: %w", err)
		}
	}
	tr, err := rest.New(restCfg)
	if err != nil {
		return nil, fmt.Errorf("tsclient: %w", err)
	}

	c := &Client{tr: tr, obs: obs}

	store := cfg.cacheStore
	if cfg.valkey != nil {
		vs, err := connectValkey(cfg.valkey)
		if err != nil {
			return nil, err
		}
		store, c.closer = vs, vs.Close
	}

	if p, ok := store.(db.Pinger); ok {
		c.storePing = p
	}
	c.embedder = buildEmbedder(cfg, logger, embMetrics)
	if hc, ok := c.embedder.(domain.HealthChecker); ok {
		c.embedHealth = hc
	}
	if c.embedder != nil && cfg.instruction != "" {
		c.embedder = domain.NewInstructionEmbedder(c.embedder, cfg.instruction)
	}
	if c.embedder != nil && cfg.budget != nil {
		c.embedder = budgetEmbedder(c.embedder, cfg, store, logger, embMetrics)
	}
	if store != nil {
		c.cache = searchcache.New(store, cfg.cacheTTL, recorderOrNil(cacheMetrics), logger)
		if c.embedder != nil {
			model := cfg.embeddingModel
			if cfg.openAI != nil {
				model = cfg.openAI.Model
			}
			if model == "" {
				model = defaultEmbeddingModel
			}
			c.embedder = embcache.New(c.embedder, store, model, cfg.cacheTTL, recorderOrNil(cacheMetrics), logger)
		}
	}
	return c, nil
}

func connectValkey(cfg *valkeyConfig) (*valkey.Store, error) {
	s, err := valkey.NewStore(valkey.Config{
		Addrs:    []string{cfg.addr},
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("tsclient: create valkey cache: %w", err)
	}
	if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("tsclient: cache not ready: %w", err)
	}
	return s, nil
}

func buildEmbedder(cfg *clientConfig, logger *zap.Logger, m *metrics.Embedding) domain.Embedder {
	switch {
	case cfg.openAI != nil:
		return openai.NewEmbedder(&openai.Config{
			APIKey:     cfg.openAI.APIKey,
			BaseURL:    cfg.openAI.BaseURL,
			Model:      cfg.openAI.Model,
			Dimensions: cfg.openAI.Dimensions,
			Provider:   cfg.openAI.Provider,
			HTTPClient: cfg.httpClient,
			Metrics:    m,
			Logger:     logger,
		})
	case cfg.embedder != nil:
		return cfg.embedder
	default:
		return nil
	}
}

// counterStore is a cache store that can also hold budget counters.
type counterStore interface {
	db.KVStore
	db.Counter
}

func budgetLimits(b *EmbeddingBudget) embedding.Limits {
	return embedding.Limits{Daily: b.DailyTokens, Monthly: b.MonthlyTokens, Action: b.Action}
}

// budgetEmbedder sits below the embedding cache so cached queries are free.
func budgetEmbedder(
	e domain.Embedder, cfg *clientConfig, store KVStore, logger *zap.Logger, m *metrics.Embedding,
) domain.Embedder {
	provider := defaultEmbeddingModel
	if cfg.openAI != nil {
		provider = cfg.openAI.Provider
		if provider == "" {
			provider = defaultProvider
		}
	}
	tracker := embedding.NewTracker(provider, budgetLimits(cfg.budget), logger)
	if cs, ok := store.(counterStore); ok {
		tracker.WithStore(context.Background(), budget.New(cs))
	}
	var rec embedding.BudgetRecorder
	if m != nil {
		rec = m
	}
	return embedding.NewBudgetedEmbedder(e, provider, tracker, rec, logger)
}

// recorderOrNil keeps a nil *metrics.Cache from becoming a non-nil interface.
func recorderOrNil(m *metrics.Cache) interface {
	Hit(string)
	Miss(string)
	Error(string)
} {
	if m == nil {
		return nil
	}
	return m
}

// Close releases the cache connection opened by WithValkeyCache.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Collections returns the collection management service.
func (c *Client) Collections() *CollectionService {
	return &CollectionService{tr: c.tr, obs: c.obs}
}

// Documents returns the document service for a given collection.
func (c *Client) Documents(collection string) *DocumentService {
	return &DocumentService{collection: collection, tr: c.tr, obs: c.obs}
}

// Search returns the search service for a given collection.
func (c *Client) Search(collection string) *SearchService {
	return &SearchService{
		collection: collection,
		tr:         c.tr,
		cache:      c.cache,
		embedder:   c.embedder,
		obs:        c.obs,
	}
}

// MultiSearch returns the service that runs several searches in one request.
func (c *Client) MultiSearch() *MultiSearchService {
	return &MultiSearchService{tr: c.tr, obs: c.obs}
}

// Keys returns the API key management service.
func (c *Client) Keys() *KeyService {
	return &KeyService{tr: c.tr, obs: c.obs}
}

// Aliases returns the collection alias service.
func (c *Client) Aliases() *AliasService {
	return &AliasService{tr: c.tr, obs: c.obs}
}

// Synonyms returns the synonym service for a given collection.
func (c *Client) Synonyms(collection string) *SynonymService {
	return &SynonymService{collection: collection, tr: c.tr, obs: c.obs}
}

// Overrides returns the curation override service for a given collection.
func (c *Client) Overrides(collection string) *OverrideService {
	return &OverrideService{collection: collection, tr: c.tr, obs: c.obs}
}

// Cluster returns the cluster operations service.
func (c *Client) Cluster() *ClusterService {
	return &ClusterService{tr: c.tr, obs: c.obs}
}
