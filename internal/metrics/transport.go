package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transport records outgoing HTTP attempts per node.
type Transport struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTransport creates transport metrics on reg.
func NewTransport(reg prometheus.Registerer) (*Transport, error) {
	t := &Transport{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests sent to search nodes",
		}, []string{"node", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"node", "method"}),
	}
	if err := RegisterOrReuse(reg, &t.requests); err != nil {
		return nil, err
	}
	if err := RegisterOrReuse(reg, &t.duration); err != nil {
		return nil, err
	}
	return t, nil
}

// ObserveRequest records one attempt. Status 0 means a network error.
func (t *Transport) ObserveRequest(node, method string, status int, dur time.Duration) {
	t.requests.WithLabelValues(node, method, statusLabel(status)).Inc()
	t.duration.WithLabelValues(node, method).Observe(dur.Seconds())
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
