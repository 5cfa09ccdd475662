package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestServerMetrics(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	s := newTestServerMetrics(t)
	r := chi.NewRouter()
	r.Use(s.Middleware())
	r.Get("/collections/{name}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/collections/books", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	got := testutil.ToFloat64(s.requests.WithLabelValues("GET", "/collections/{name}", "200"))
	if got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
	if testutil.CollectAndCount(s.duration) == 0 {
		t.Error("expected request_duration_seconds to have observations")
	}
}

func TestMiddleware_DifferentStatusCodes(t *testing.T) {
	s := newTestServerMetrics(t)
	r := chi.NewRouter()
	r.Use(s.Middleware())
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/notfound", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Get("/error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })

	tests := []struct {
		path   string
		status string
	}{
		{"/ok", "200"},
		{"/notfound", "404"},
		{"/error", "500"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, http.NoBody))
			if got := testutil.ToFloat64(s.requests.WithLabelValues("GET", tc.path, tc.status)); got != 1 {
				t.Errorf("requests_total{%s,%s} = %v, want 1", tc.path, tc.status, got)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/collections/{name}", "/collections/{name}"},
		{"/health", "/health"},
	}
	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
