package tsclient

import (
	"context"
	"errors"

	"github.com/kailas-cloud/tsclient/internal/usecase/health"
)

// HealthStatus is the aggregated readiness of a client.
type HealthStatus = health.Status

// Health statuses returned by Ready.
const (
	HealthOK       = health.Healthy
	HealthDegraded = health.Degraded
	HealthError    = health.Unhealthy
)

// HealthReport lists the outcome of every readiness check by component
// ("cluster", and "cache" or "embedding" when configured).
type HealthReport = health.Report

// Ready checks the search cluster, the cache store and the embedding provider.
// The report is unhealthy when the cluster is down and degraded when only
// an auxiliary component fails.
func (c *Client) Ready(ctx context.Context) HealthReport {
	cluster := func(ctx context.Context) error {
		h, err := c.Cluster().Health(ctx)
		if err != nil {
			return err
		}
		if !h.OK {
			return errors.New("node reports not ok")
		}
		return nil
	}
	aux := map[string]health.Check{}
	if c.storePing != nil {
		aux[health.ComponentCache] = c.storePing.Ping
	}
	if c.embedHealth != nil {
		aux[health.ComponentEmbedding] = c.embedHealth.HealthCheck
	}
	return health.New(cluster, aux).Check(ctx)
}
