// Package health aggregates readiness of the search cluster and the optional
// components a client depends on.
package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the cluster answers but an auxiliary component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates the cluster itself is unreachable or not ready.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentCluster   = "cluster"
	ComponentCache     = "cache"
	ComponentEmbedding = "embedding"
)

// Check probes one component. It returns nil when the component is usable.
type Check func(ctx context.Context) error

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Errors map[string]string      `json:"errors,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	cluster   Check
	auxiliary map[string]Check
}

// New creates a Service. A failing cluster check makes the report unhealthy,
// any other failing check only degrades it. Nil auxiliary checks are skipped.
func New(cluster Check, auxiliary map[string]Check) *Service {
	aux := make(map[string]Check, len(auxiliary))
	for name, c := range auxiliary {
		if c != nil {
			aux[name] = c
		}
	}
	return &Service{cluster: cluster, auxiliary: aux}
}

// Check runs all checks concurrently and aggregates the results.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.auxiliary)+1)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	run := func(name string, c Check) {
		defer wg.Done()
		err := c(ctx)

		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			r.Checks[name] = CheckOK
			return
		}
		r.Checks[name] = CheckError
		if r.Errors == nil {
			r.Errors = map[string]string{}
		}
		r.Errors[name] = err.Error()
	}

	wg.Add(1 + len(s.auxiliary))
	go run(ComponentCluster, s.cluster)
	for name, c := range s.auxiliary {
		go run(name, c)
	}
	wg.Wait()

	for name, v := range r.Checks {
		if v != CheckError {
			continue
		}
		if name == ComponentCluster {
			r.Status = Unhealthy
			break
		}
		r.Status = Degraded
	}
	return r
}
