// Package devserver is an in-memory search node speaking the REST dialect the
// client targets. It backs end-to-end client tests and `tsq serve`.
//
// It keeps everything in process memory and implements only the behavior a
// client can observe: collections, documents, JSONL import/export, keyword
// and nearest-neighbor search, multi search, API keys (including scoped
// search keys), aliases, synonyms, overrides and cluster operations.
package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/tsclient/internal/logger"
	"github.com/kailas-cloud/tsclient/internal/metrics"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-TYPESENSE-API-KEY"

// Config holds server settings.
type Config struct {
	// APIKey is the bootstrap admin key. Empty disables authentication.
	APIKey  string
	Version string
	// Registerer receives request metrics. Nil disables them.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// Server is an in-memory search node.
type Server struct {
	apiKey  string
	version string
	logger  *zap.Logger
	metrics *metrics.Server
	started time.Time

	mu          sync.RWMutex
	collections map[string]*collection
	aliases     map[string]string
	keys        map[int64]*apiKey
	nextKeyID   int64

	failMu     sync.Mutex
	failNext   int
	failStatus int

	searches atomic.Int64
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		apiKey:      cfg.APIKey,
		version:     version,
		logger:      logger,
		started:     time.Now(),
		collections: make(map[string]*collection),
		aliases:     make(map[string]string),
		keys:        make(map[int64]*apiKey),
		nextKeyID:   1,
	}
	if cfg.Registerer != nil {
		m, err := metrics.NewServer(cfg.Registerer)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}
	return s, nil
}

// FailNext makes the next n requests fail with status, for failover tests.
func (s *Server) FailNext(n, status int) {
	s.failMu.Lock()
	s.failNext, s.failStatus = n, status
	s.failMu.Unlock()
}

// SearchCount reports how many searches were executed (multi search counts each entry).
func (s *Server) SearchCount() int64 {
	return s.searches.Load()
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.jsonRecoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(s.wideEventMiddleware)
	r.Use(s.faultInjector)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}
	r.Use(s.authMiddleware)

	r.Get("/health", s.health)
	r.Get("/metrics.json", s.metricsJSON)
	r.Get("/stats.json", s.statsJSON)
	r.Get("/debug", s.debug)
	r.Route("/operations", func(r chi.Router) {
		r.Post("/snapshot", s.snapshot)
		r.Post("/vote", s.operationOK)
		r.Post("/db/compact", s.operationOK)
		r.Post("/cache/clear", s.operationOK)
	})

	r.Route("/collections", func(r chi.Router) {
		r.Post("/", s.createCollection)
		r.Get("/", s.listCollections)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.getCollection)
			r.Patch("/", s.updateCollection)
			r.Delete("/", s.deleteCollection)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", s.createDocument)
				r.Patch("/", s.updateByFilter)
				r.Delete("/", s.deleteByFilter)
				r.Post("/import", s.importDocuments)
				r.Get("/export", s.exportDocuments)
				r.Get("/search", s.search)
				r.Get("/{id}", s.getDocument)
				r.Patch("/{id}", s.patchDocument)
				r.Delete("/{id}", s.deleteDocument)
			})

			r.Get("/synonyms", s.listSynonyms)
			r.Put("/synonyms/{id}", s.upsertSynonym)
			r.Get("/synonyms/{id}", s.getSynonym)
			r.Delete("/synonyms/{id}", s.deleteSynonym)

			r.Get("/overrides", s.listOverrides)
			r.Put("/overrides/{id}", s.upsertOverride)
			r.Get("/overrides/{id}", s.getOverride)
			r.Delete("/overrides/{id}", s.deleteOverride)
		})
	})

	r.Post("/multi_search", s.multiSearch)

	r.Route("/keys", func(r chi.Router) {
		r.Post("/", s.createKey)
		r.Get("/", s.listKeys)
		r.Get("/{id}", s.getKey)
		r.Delete("/{id}", s.deleteKey)
	})

	r.Route("/aliases", func(r chi.Router) {
		r.Get("/", s.listAliases)
		r.Put("/{name}", s.upsertAlias)
		r.Get("/{name}", s.getAlias)
		r.Delete("/{name}", s.deleteAlias)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

func (s *Server) faultInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.failMu.Lock()
		fail := s.failNext > 0
		status := s.failStatus
		if fail {
			s.failNext--
		}
		s.failMu.Unlock()

		if fail {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func (s *Server) jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("panic recovered",
					zap.Any("panic", rvr),
					zap.Stack("stacktrace"),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func (s *Server) wideEventMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := chiMiddleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		reqLogger := s.logger.With(zap.String("request_id", requestID))
		ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLogger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_bytes", ww.BytesWritten()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v) //nolint:wrapcheck // surfaced to the caller as a 400 message
}
