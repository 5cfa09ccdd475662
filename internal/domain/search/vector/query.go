// Package vector models the nearest-neighbor clause of a search request:
// name:([v1, v2, ...], id:<doc>, k:<n>, flat_search_cutoff:<n>, key:value...).
package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Recognised parameter keys.
const (
	KeyID               = "id"
	KeyK                = "k"
	KeyFlatSearchCutoff = "flat_search_cutoff"
)

// Param is a parameter the query passes through without interpreting it
// (e.g. distance_threshold, alpha, ef).
type Param struct {
	Key   string
	Value string
}

// Query is a validated vector search clause. The zero value is not valid;
// build one with New or Parse.
type Query struct {
	fieldName        string
	vector           []float32
	id               *string
	k                *int
	flatSearchCutoff *int
	params           []Param
}

// Option configures optional parts of a Query built with New.
type Option func(*options)

type options struct {
	id               *string
	k                *int
	flatSearchCutoff *int
	params           []Param
}

// WithID targets the vector of an existing document instead of a literal vector.
func WithID(id string) Option {
	return func(o *options) { o.id = &id }
}

// WithK sets the number of nearest neighbors to return.
func WithK(k int) Option {
	return func(o *options) { o.k = &k }
}

// WithFlatSearchCutoff sets the result count below which the service
// compares vectors exhaustively instead of using its ANN index.
func WithFlatSearchCutoff(n int) Option {
	return func(o *options) { o.flatSearchCutoff = &n }
}

// WithParam adds a parameter the clause passes through verbatim.
func WithParam(key, value string) Option {
	return func(o *options) {
		o.params = append(o.params, Param{Key: key, Value: value})
	}
}

// New validates typed values and creates a Query.
// Exactly one of a non-empty vector or WithID must be given.
func New(fieldName string, vec []float32, opts ...Option) (Query, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	name, err := validateFieldName(fieldName)
	if err != nil {
		return Query{}, err
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return Query{}, fmt.Errorf("%w: vector element %d is %v", ErrInvalidNumber, i, v)
		}
	}
	if o.id != nil {
		if err := validateToken(KeyID, *o.id); err != nil {
			return Query{}, err
		}
	}
	if err := checkTarget(len(vec) > 0, o.id != nil); err != nil {
		return Query{}, err
	}

	seen := make(map[string]struct{}, len(o.params))
	for _, p := range o.params {
		if err := validateToken("parameter key", p.Key); err != nil {
			return Query{}, err
		}
		if isReserved(p.Key) {
			return Query{}, fmt.Errorf("%w: %q must be set with its own option", ErrMalformedParam, p.Key)
		}
		if _, dup := seen[p.Key]; dup {
			return Query{}, fmt.Errorf("%w: duplicate parameter %q", ErrMalformedParam, p.Key)
		}
		seen[p.Key] = struct{}{}
		if err := validateToken(p.Key, p.Value); err != nil {
			return Query{}, err
		}
	}

	q := Query{
		fieldName:        name,
		vector:           append([]float32(nil), vec...),
		k:                o.k,
		flatSearchCutoff: o.flatSearchCutoff,
		id:               o.id,
	}
	if len(o.params) > 0 {
		q.params = append([]Param(nil), o.params...)
	}
	return q, nil
}

// Parse reads a textual clause such as "vec:([0.3, 0.6], k: 10)".
// Whitespace around tokens and separators is ignored.
func Parse(text string) (Query, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, ":") {
		return Query{}, fmt.Errorf("%w: missing ':' after field name in %q", ErrMalformed, text)
	}
	head, body, ok := splitClause(trimmed)
	if !ok {
		return Query{}, fmt.Errorf("%w: expected name:(...) in %q", ErrMalformed, text)
	}
	body = strings.TrimSpace(body)
	if len(body) < 2 || body[0] != '(' || body[len(body)-1] != ')' {
		return Query{}, fmt.Errorf("%w: expected name:(...) in %q", ErrMalformed, text)
	}
	name, err := validateFieldName(head)
	if err != nil {
		return Query{}, err
	}

	inner := strings.TrimSpace(body[1 : len(body)-1])
	if !strings.HasPrefix(inner, "[") {
		return Query{}, fmt.Errorf("%w: vector literal must come first and be bracketed", ErrMalformed)
	}
	end := strings.IndexByte(inner, ']')
	if end < 0 {
		return Query{}, fmt.Errorf("%w: unterminated vector literal", ErrMalformed)
	}

	vec, err := parseVector(inner[1:end])
	if err != nil {
		return Query{}, err
	}

	q := Query{fieldName: name, vector: vec}
	rest := strings.TrimSpace(inner[end+1:])
	if rest != "" {
		if rest[0] != ',' {
			return Query{}, fmt.Errorf("%w: unexpected %q after vector literal", ErrMalformed, rest)
		}
		if err := q.parseParams(rest[1:]); err != nil {
			return Query{}, err
		}
	}

	if err := checkTarget(len(q.vector) > 0, q.id != nil); err != nil {
		return Query{}, err
	}
	return q, nil
}

// splitClause cuts at the first ':' followed by '(', so field names may contain ':'.
func splitClause(s string) (head, body string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' && strings.HasPrefix(strings.TrimSpace(s[i+1:]), "(") {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func parseVector(lit string) ([]float32, error) {
	if strings.TrimSpace(lit) == "" {
		return []float32{}, nil
	}
	parts := strings.Split(lit, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !isDecimal(p) {
			return nil, fmt.Errorf("%w: vector element %d %q", ErrInvalidNumber, i, p)
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: vector element %d %q", ErrInvalidNumber, i, p)
		}
		if f == 0 && hasNonZeroDigit(p) {
			return nil, fmt.Errorf("%w: vector element %d %q underflows float32", ErrInvalidNumber, i, p)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// isDecimal accepts plain decimal and exponent notation only (no hex, inf, nan or '_').
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789+-.eE", c) {
			return false
		}
	}
	return true
}

func hasNonZeroDigit(s string) bool {
	mantissa, _, _ := strings.Cut(strings.ToLower(s), "e")
	return strings.ContainsAny(mantissa, "123456789")
}

func (q *Query) parseParams(s string) error {
	seen := make(map[string]struct{})
	for _, tok := range strings.Split(s, ",") {
		kv := strings.Split(tok, ":")
		if len(kv) != 2 {
			return fmt.Errorf("%w: %q is not key:value", ErrMalformedParam, strings.TrimSpace(tok))
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key == "" || val == "" {
			return fmt.Errorf("%w: %q is not key:value", ErrMalformedParam, strings.TrimSpace(tok))
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrMalformedParam, key)
		}
		seen[key] = struct{}{}

		switch key {
		case KeyID:
			id := val
			q.id = &id
		case KeyK:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%w: k %q", ErrInvalidNumber, val)
			}
			q.k = &n
		case KeyFlatSearchCutoff:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%w: flat_search_cutoff %q", ErrInvalidNumber, val)
			}
			q.flatSearchCutoff = &n
		default:
			q.params = append(q.params, Param{Key: key, Value: val})
		}
	}
	return nil
}

// String renders the canonical clause: vector first, then id, k,
// flat_search_cutoff and the pass-through parameters in insertion order.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.fieldName)
	b.WriteString(":([")
	for i, v := range q.vector {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	if q.id != nil {
		writeParam(&b, KeyID, *q.id)
	}
	if q.k != nil {
		writeParam(&b, KeyK, strconv.Itoa(*q.k))
	}
	if q.flatSearchCutoff != nil {
		writeParam(&b, KeyFlatSearchCutoff, strconv.Itoa(*q.flatSearchCutoff))
	}
	for _, p := range q.params {
		writeParam(&b, p.Key, p.Value)
	}
	b.WriteByte(')')
	return b.String()
}

func writeParam(b *strings.Builder, key, value string) {
	b.WriteString(", ")
	b.WriteString(key)
	b.WriteByte(':')
	b.WriteString(value)
}

// MarshalText implements encoding.TextMarshaler.
func (q Query) MarshalText() ([]byte, error) {
	if q.fieldName == "" {
		return nil, ErrMissingFieldName
	}
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Query) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// IsZero reports whether q was never built by New or Parse.
func (q Query) IsZero() bool { return q.fieldName == "" }

// FieldName returns the indexed vector field being queried.
func (q Query) FieldName() string { return q.fieldName }

// Vector returns a copy of the query vector (empty for id queries).
func (q Query) Vector() []float32 {
	return append([]float32{}, q.vector...)
}

// ID returns the reference document id, if any.
func (q Query) ID() (string, bool) {
	if q.id == nil {
		return "", false
	}
	return *q.id, true
}

// K returns the number of neighbors to fetch, if set.
func (q Query) K() (int, bool) {
	if q.k == nil {
		return 0, false
	}
	return *q.k, true
}

// FlatSearchCutoff returns the brute-force threshold, if set.
func (q Query) FlatSearchCutoff() (int, bool) {
	if q.flatSearchCutoff == nil {
		return 0, false
	}
	return *q.flatSearchCutoff, true
}

// Extras returns a copy of the pass-through parameters in the order they render.
func (q Query) Extras() []Param {
	return append([]Param{}, q.params...)
}

// Params returns a copy of the pass-through parameters keyed by name.
func (q Query) Params() map[string]string {
	out := make(map[string]string, len(q.params))
	for _, p := range q.params {
		out[p.Key] = p.Value
	}
	return out
}

// Equal reports whether both queries carry the same fields.
// Pass-through parameters are compared regardless of order.
func (q Query) Equal(o Query) bool {
	if q.fieldName != o.fieldName || len(q.vector) != len(o.vector) {
		return false
	}
	for i := range q.vector {
		if q.vector[i] != o.vector[i] {
			return false
		}
	}
	if !eqPtr(q.id, o.id) || !eqPtr(q.k, o.k) || !eqPtr(q.flatSearchCutoff, o.flatSearchCutoff) {
		return false
	}
	if len(q.params) != len(o.params) {
		return false
	}
	op := o.Params()
	for _, p := range q.params {
		if v, ok := op[p.Key]; !ok || v != p.Value {
			return false
		}
	}
	return true
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func validateFieldName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrMissingFieldName
	}
	if strings.ContainsAny(name, "()") {
		return "", fmt.Errorf("%w: field name %q contains a reserved character", ErrMalformed, name)
	}
	return name, nil
}

// validateToken rejects values that would not survive a String/Parse round trip.
func validateToken(what, v string) error {
	if v == "" || strings.TrimSpace(v) != v || strings.ContainsAny(v, ",:[]()") {
		return fmt.Errorf("%w: %s %q", ErrMalformedParam, what, v)
	}
	return nil
}

func isReserved(key string) bool {
	return key == KeyID || key == KeyK || key == KeyFlatSearchCutoff
}

func checkTarget(hasVector, hasID bool) error {
	switch {
	case hasVector && hasID:
		return fmt.Errorf("%w: got both a vector and an id", ErrConflictingTarget)
	case !hasVector && !hasID:
		return fmt.Errorf("%w: got neither a vector nor an id", ErrConflictingTarget)
	}
	return nil
}
