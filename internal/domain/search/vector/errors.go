package vector

import "errors"

// Sentinel errors for vector query parsing and construction.
// Use errors.Is() to check.
var (
	// ErrMalformed signals that the clause is not of the form name:([...], ...).
	ErrMalformed = errors.New("malformed vector query")
	// ErrMissingFieldName signals an empty or blank vector field name.
	ErrMissingFieldName = errors.New("vector field name is required")
	// ErrInvalidNumber signals a vector element, k or flat_search_cutoff that is not numeric.
	ErrInvalidNumber = errors.New("invalid numeric literal")
	// ErrConflictingTarget signals that both or neither of a query vector and a document id were given.
	ErrConflictingTarget = errors.New("exactly one of vector or id is required")
	// ErrMalformedParam signals a parameter that is not a single key:value pair.
	ErrMalformedParam = errors.New("malformed vector query parameter")
)
