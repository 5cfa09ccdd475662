package tsclient

import (
	"github.com/kailas-cloud/tsclient/internal/db"
	"github.com/kailas-cloud/tsclient/internal/domain"
	"github.com/kailas-cloud/tsclient/internal/domain/search/vector"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrBadRequest             = domain.ErrBadRequest
	ErrUnauthorized           = domain.ErrUnauthorized
	ErrNotFound               = domain.ErrNotFound
	ErrAlreadyExists          = domain.ErrAlreadyExists
	ErrUnprocessable          = domain.ErrUnprocessable
	ErrRateLimited            = domain.ErrRateLimited
	ErrServiceUnavailable     = domain.ErrServiceUnavailable
	ErrServerError            = domain.ErrServerError
	ErrNoNodes                = domain.ErrNoNodes
	ErrEmbedderNotConfigured  = domain.ErrEmbedderNotConfigured
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded

	// ErrCacheMiss is what a KVStore returns from Get for a missing key.
	ErrCacheMiss = db.ErrKeyNotFound
)

// Vector query errors. Use errors.Is() to check.
var (
	ErrMalformedVectorQuery = vector.ErrMalformed
	ErrMissingFieldName     = vector.ErrMissingFieldName
	ErrInvalidNumber        = vector.ErrInvalidNumber
	ErrConflictingTarget    = vector.ErrConflictingTarget
	ErrMalformedParam       = vector.ErrMalformedParam
)

// APIError is a non-2xx response from the search service.
// It unwraps to the sentinel matching its status code.
type APIError = domain.APIError
