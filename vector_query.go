package tsclient

import "github.com/kailas-cloud/tsclient/internal/domain/search/vector"

// VectorQuery is a nearest-neighbor search clause,
// rendered as `field:([v1, v2, ...], id:<doc>, k:<n>, key:value...)`.
type VectorQuery = vector.Query

// VectorQueryOption configures optional parts of a VectorQuery.
type VectorQueryOption = vector.Option

// VectorParam is a pass-through parameter of a VectorQuery, as returned by Extras.
type VectorParam = vector.Param

// ParseVectorQuery reads a textual vector clause such as "vec:([0.3, 0.6], k: 10)".
func ParseVectorQuery(text string) (VectorQuery, error) {
	return vector.Parse(text) //nolint:wrapcheck // errors are the exported sentinels
}

// NewVectorQuery builds a vector clause on field. Exactly one of vec or
// VectorID must be given.
func NewVectorQuery(field string, vec []float32, opts ...VectorQueryOption) (VectorQuery, error) {
	return vector.New(field, vec, opts...) //nolint:wrapcheck // errors are the exported sentinels
}

// VectorID targets the stored vector of the document with id.
func VectorID(id string) VectorQueryOption { return vector.WithID(id) }

// VectorK sets the number of nearest neighbors to return.
func VectorK(k int) VectorQueryOption { return vector.WithK(k) }

// VectorFlatSearchCutoff sets the candidate count below which the service
// compares vectors exhaustively.
func VectorFlatSearchCutoff(n int) VectorQueryOption { return vector.WithFlatSearchCutoff(n) }

// VectorParameter adds a pass-through parameter such as distance_threshold or ef.
func VectorParameter(key, value string) VectorQueryOption { return vector.WithParam(key, value) }
