package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest signals a request the service rejected as malformed.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized signals a missing or invalid API key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnprocessable signals a request that is well-formed but cannot be applied.
	ErrUnprocessable = errors.New("unprocessable entity")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrServiceUnavailable signals that the node is not ready to serve.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrServerError signals any other 5xx response.
	ErrServerError = errors.New("server error")

	// ErrNoNodes signals a client configured without nodes.
	ErrNoNodes = errors.New("no nodes configured")
	// ErrEmbedderNotConfigured signals a text vector search without an embedder.
	ErrEmbedderNotConfigured = errors.New("embedder not configured")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals that the embedding token budget is spent.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// APIError is a non-2xx response from the search service.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the status code to a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error { return StatusError(e.StatusCode) }

// StatusError returns the sentinel for an HTTP status code, nil for 2xx.
func StatusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrAlreadyExists
	case code == http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	case code >= 500:
		return ErrServerError
	default:
		return ErrBadRequest
	}
}
