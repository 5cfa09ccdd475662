package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding records calls to the embedding provider used by near-text search.
type Embedding struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	errors   *prometheus.CounterVec
	budget   *prometheus.GaugeVec
}

// NewEmbedding creates embedding metrics on reg.
func NewEmbedding(reg prometheus.Registerer) (*Embedding, error) {
	e := &Embedding{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		}, []string{"provider", "model", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		}, []string{"provider", "model", "type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		}, []string{"provider", "model", "error_type"}),
		budget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "embedding_budget_tokens_remaining",
			Help:      "Embedding tokens left in the current budget period (-1 = unlimited)",
		}, []string{"provider", "period"}),
	}
	if err := RegisterOrReuse(reg, &e.requests); err != nil {
		return nil, err
	}
	if err := RegisterOrReuse(reg, &e.duration); err != nil {
		return nil, err
	}
	if err := RegisterOrReuse(reg, &e.tokens); err != nil {
		return nil, err
	}
	if err := RegisterOrReuse(reg, &e.errors); err != nil {
		return nil, err
	}
	if err := RegisterOrReuse(reg, &e.budget); err != nil {
		return nil, err
	}
	return e, nil
}

// Success records a successful request with its token usage.
func (e *Embedding) Success(provider, model string, dur time.Duration, promptTokens, totalTokens int) {
	e.requests.WithLabelValues(provider, model, "success").Inc()
	e.duration.WithLabelValues(provider, model).Observe(dur.Seconds())
	if totalTokens > 0 {
		e.tokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
		e.tokens.WithLabelValues(provider, model, "total").Add(float64(totalTokens))
	}
}

// Failure records a failed request.
func (e *Embedding) Failure(provider, model, errorType string) {
	e.requests.WithLabelValues(provider, model, "error").Inc()
	e.errors.WithLabelValues(provider, model, errorType).Inc()
}

// BudgetRemaining sets the tokens left for provider in period ("daily" or "monthly").
func (e *Embedding) BudgetRemaining(provider, period string, remaining int64) {
	e.budget.WithLabelValues(provider, period).Set(float64(remaining))
}
