package tsclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Health is the health status of a node.
type Health struct {
	OK bool `json:"ok"`
}

// DebugInfo describes the node that served the request.
type DebugInfo struct {
	State   int    `json:"state"`
	Version string `json:"version"`
}

// ClusterService runs cluster-level operations.
type ClusterService struct {
	tr  transport
	obs *observer
}

// Health reports whether the node is ready to serve requests.
func (s *ClusterService) Health(ctx context.Context) (_ *Health, err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.health", start, err) }()

	var out Health
	if err := s.tr.DoJSON(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &out, nil
}

// Metrics returns node resource metrics.
func (s *ClusterService) Metrics(ctx context.Context) (_ map[string]any, err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.metrics", start, err) }()

	var out map[string]any
	if err := s.tr.DoJSON(ctx, http.MethodGet, "/metrics.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return out, nil
}

// Stats returns request rate and latency statistics.
func (s *ClusterService) Stats(ctx context.Context) (_ map[string]any, err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.stats", start, err) }()

	var out map[string]any
	if err := s.tr.DoJSON(ctx, http.MethodGet, "/stats.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}

// Debug returns the node state and version.
func (s *ClusterService) Debug(ctx context.Context) (_ *DebugInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.debug", start, err) }()

	var out DebugInfo
	if err := s.tr.DoJSON(ctx, http.MethodGet, "/debug", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("debug: %w", err)
	}
	return &out, nil
}

// CreateSnapshot writes a snapshot of the data directory to path on the server.
func (s *ClusterService) CreateSnapshot(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.snapshot", start, err) }()

	return s.operation(ctx, "/operations/snapshot", url.Values{"snapshot_path": {path}})
}

// Compact compacts the on-disk database.
func (s *ClusterService) Compact(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.compact", start, err) }()

	return s.operation(ctx, "/operations/db/compact", nil)
}

// Vote makes the node give up leadership and trigger an election.
func (s *ClusterService) Vote(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.vote", start, err) }()

	return s.operation(ctx, "/operations/vote", nil)
}

// ClearCache clears the server-side search cache.
func (s *ClusterService) ClearCache(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("cluster.clear_cache", start, err) }()

	return s.operation(ctx, "/operations/cache/clear", nil)
}

func (s *ClusterService) operation(ctx context.Context, path string, q url.Values) error {
	var out struct {
		Success bool `json:"success"`
	}
	if err := s.tr.DoJSON(ctx, http.MethodPost, path, q, nil, &out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !out.Success {
		return fmt.Errorf("%s: operation was not successful", path)
	}
	return nil
}
