// Package rest is the HTTP transport of the search client: node selection,
// failover, retries, rate limiting and JSON/raw request helpers.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/tsclient/internal/domain"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-TYPESENSE-API-KEY"

// Defaults applied by New when the config leaves a value unset.
const (
	DefaultConnectionTimeout   = 10 * time.Second
	DefaultNumRetries          = 3
	DefaultRetryInterval       = 100 * time.Millisecond
	DefaultHealthcheckInterval = 60 * time.Second
)

const maxErrorBody = 4 << 10

// Observer receives one call per HTTP attempt. Status is 0 on network errors.
type Observer interface {
	ObserveRequest(node, method string, status int, dur time.Duration)
}

// Config holds transport settings.
type Config struct {
	Nodes             []string
	NearestNode       string
	APIKey            string
	ConnectionTimeout time.Duration

	// NumRetries is the number of attempts after the first one
	// (0 = DefaultNumRetries, negative = no retries).
	NumRetries          int
	RetryInterval       time.Duration
	HealthcheckInterval time.Duration

	// HTTPClient overrides the default client. It is copied, never mutated.
	HTTPClient *http.Client
	// RateLimit caps outgoing requests per second (0 = unlimited).
	RateLimit float64
	Burst     int
	Tracing   bool

	Observer Observer
	Logger   *zap.Logger
}

type node struct {
	baseURL    string
	healthy    bool
	lastAccess time.Time
}

// Client sends requests to a cluster of search nodes.
type Client struct {
	apiKey              string
	http                *http.Client
	numRetries          int
	retryInterval       time.Duration
	healthcheckInterval time.Duration
	limiter             *rate.Limiter
	observer            Observer
	logger              *zap.Logger

	mu      sync.Mutex
	nodes   []*node
	nearest *node
	next    int
	now     func() time.Time
}

// New validates the config and creates a transport client.
func New(cfg Config) (*Client, error) {
	if len(cfg.Nodes) == 0 && cfg.NearestNode == "" {
		return nil, domain.ErrNoNodes
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	nodes := make([]*node, 0, len(cfg.Nodes))
	for _, u := range cfg.Nodes {
		n, err := newNode(u)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	var nearest *node
	if cfg.NearestNode != "" {
		n, err := newNode(cfg.NearestNode)
		if err != nil {
			return nil, err
		}
		nearest = n
	}

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = DefaultConnectionTimeout
	}
	hc := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}
	if cfg.Tracing {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = otelhttp.NewTransport(base)
	}

	numRetries := cfg.NumRetries
	if numRetries < 0 {
		numRetries = 0
	} else if numRetries == 0 {
		numRetries = DefaultNumRetries
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	hcInterval := cfg.HealthcheckInterval
	if hcInterval <= 0 {
		hcInterval = DefaultHealthcheckInterval
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:              cfg.APIKey,
		http:                hc,
		numRetries:          numRetries,
		retryInterval:       retryInterval,
		healthcheckInterval: hcInterval,
		limiter:             limiter,
		observer:            cfg.Observer,
		logger:              logger,
		nodes:               nodes,
		nearest:             nearest,
		now:                 time.Now,
	}, nil
}

func newNode(raw string) (*node, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid node url %q", raw)
	}
	return &node{baseURL: strings.TrimRight(raw, "/"), healthy: true}, nil
}

// DoJSON sends in (if non-nil) as a JSON body and decodes the response into out (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	data, err := c.DoRaw(ctx, method, path, query, "application/json", body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// DoRaw sends body as-is and returns the raw response body.
// Network errors and 5xx responses fail over to the next node.
func (c *Client) DoRaw(
	ctx context.Context, method, path string, query url.Values, contentType string, body []byte,
) ([]byte, error) {
	var lastErr error
	attempts := c.numRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		n := c.nextNode()
		status, data, err := c.send(ctx, n, method, path, query, contentType, body)
		switch {
		case err == nil && status < 500:
			c.setHealth(n, true)
			if status >= 200 && status < 300 {
				return data, nil
			}
			return nil, newAPIError(method, path, status, data)
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		case err != nil:
			lastErr = fmt.Errorf("%s %s on %s: %w", method, path, n.baseURL, err)
		default:
			lastErr = newAPIError(method, path, status, data)
		}

		c.setHealth(n, false)
		c.logger.Warn("Request failed, trying next node",
			zap.String("node", n.baseURL),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		case <-time.After(c.retryInterval):
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

func (c *Client) send(
	ctx context.Context, n *node, method, path string, query url.Values, contentType string, body []byte,
) (int, []byte, error) {
	target := n.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(n, method, 0, start)
		return 0, nil, err //nolint:wrapcheck // wrapped by the caller with node context
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(n, method, resp.StatusCode, start)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	c.logger.Debug("Request completed",
		zap.String("node", n.baseURL),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.StatusCode, data, nil
}

func (c *Client) observe(n *node, method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(n.baseURL, method, status, time.Since(start))
	}
}

// nextNode prefers the nearest node, then round-robins over the rest.
// Unhealthy nodes are skipped until their healthcheck interval has passed.
func (c *Client) nextNode() *node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nearest != nil && c.usable(c.nearest) {
		return c.nearest
	}
	if len(c.nodes) == 0 {
		return c.nearest
	}

	var candidate *node
	for range c.nodes {
		candidate = c.nodes[c.next]
		c.next = (c.next + 1) % len(c.nodes)
		if c.usable(candidate) {
			return candidate
		}
	}
	return candidate
}

func (c *Client) usable(n *node) bool {
	return n.healthy || c.now().Sub(n.lastAccess) >= c.healthcheckInterval
}

func (c *Client) setHealth(n *node, healthy bool) {
	c.mu.Lock()
	n.healthy = healthy
	n.lastAccess = c.now()
	c.mu.Unlock()
}

func newAPIError(method, path string, status int, body []byte) *domain.APIError {
	msg := strings.TrimSpace(string(body))
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		msg = parsed.Message
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return &domain.APIError{StatusCode: status, Message: msg, Method: method, Path: path}
}
