package tsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kailas-cloud/tsclient/internal/domain"
	"github.com/kailas-cloud/tsclient/internal/domain/search/vector"
	"github.com/kailas-cloud/tsclient/internal/repository/searchcache"
	"github.com/kailas-cloud/tsclient/internal/transport/rest"
)

// SearchParameters configures a search. Zero values are left out of the request.
type SearchParameters struct {
	Q                    string
	QueryBy              string
	QueryByWeights       string
	FilterBy             string
	SortBy               string
	FacetBy              string
	MaxFacetValues       int
	Page                 int
	PerPage              int
	Prefix               *bool
	Infix                string
	NumTypos             string
	GroupBy              string
	GroupLimit           int
	IncludeFields        string
	ExcludeFields        string
	HighlightFields      string
	ExhaustiveSearch     *bool
	UseCache             *bool
	CacheTTL             int
	PrioritizeExactMatch *bool
	VectorQuery          *VectorQuery

	// Extra carries parameters without a dedicated field. They may not
	// repeat a parameter set through a field.
	Extra map[string]string
}

// Values encodes the parameters as query values.
func (p *SearchParameters) Values() (url.Values, error) {
	q := url.Values{}
	if p == nil {
		return q, nil
	}

	strs := []struct {
		name, value string
	}{
		{"q", p.Q},
		{"query_by", p.QueryBy},
		{"query_by_weights", p.QueryByWeights},
		{"filter_by", p.FilterBy},
		{"sort_by", p.SortBy},
		{"facet_by", p.FacetBy},
		{"infix", p.Infix},
		{"num_typos", p.NumTypos},
		{"group_by", p.GroupBy},
		{"include_fields", p.IncludeFields},
		{"exclude_fields", p.ExcludeFields},
		{"highlight_fields", p.HighlightFields},
	}
	for _, s := range strs {
		setIf(q, s.name, s.value)
	}

	ints := []struct {
		name  string
		value int
	}{
		{"max_facet_values", p.MaxFacetValues},
		{"page", p.Page},
		{"per_page", p.PerPage},
		{"group_limit", p.GroupLimit},
		{"cache_ttl", p.CacheTTL},
	}
	for _, n := range ints {
		if n.value == 0 {
			continue
		}
		if err := rest.AddQuery(q, n.name, n.value); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		name  string
		value *bool
	}{
		{"prefix", p.Prefix},
		{"exhaustive_search", p.ExhaustiveSearch},
		{"use_cache", p.UseCache},
		{"prioritize_exact_match", p.PrioritizeExactMatch},
	}
	for _, b := range bools {
		if b.value == nil {
			continue
		}
		if err := rest.AddQuery(q, b.name, *b.value); err != nil {
			return nil, err
		}
	}

	if p.VectorQuery != nil {
		text, err := p.VectorQuery.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("vector_query: %w", err)
		}
		q.Set("vector_query", string(text))
	}

	for k, v := range p.Extra {
		if q.Has(k) {
			return nil, fmt.Errorf("extra parameter %q repeats a dedicated field", k)
		}
		q.Set(k, v)
	}
	return q, nil
}

// SearchService runs searches against a single collection.
type SearchService struct {
	collection string
	tr         transport
	cache      *searchcache.Cache
	embedder   domain.Embedder
	obs        *observer
}

// Query runs a search.
func (s *SearchService) Query(ctx context.Context, params *SearchParameters) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.query", start, err) }()

	res, err := s.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

func (s *SearchService) query(ctx context.Context, params *SearchParameters) (*SearchResult, error) {
	data, err := s.raw(ctx, params)
	if err != nil {
		return nil, err
	}
	var res SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &res, nil
}

// raw returns the undecoded search response, through the search cache when configured.
func (s *SearchService) raw(ctx context.Context, params *SearchParameters) ([]byte, error) {
	q, err := params.Values()
	if err != nil {
		return nil, err
	}
	path, err := rest.Path("/collections/%s/documents/search", "collection", s.collection)
	if err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]byte, error) {
		return s.tr.DoRaw(ctx, http.MethodGet, path, q, "", nil)
	}
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.Fetch(ctx, searchcache.Key(s.collection, q), load) //nolint:wrapcheck // wrapped by the caller
}

// NearVector runs a nearest-neighbor search for vq. Q defaults to "*".
func (s *SearchService) NearVector(ctx context.Context, vq VectorQuery, params *SearchParameters) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.near_vector", start, err) }()

	res, err := s.query(ctx, withVector(params, vq))
	if err != nil {
		return nil, fmt.Errorf("near vector search: %w", err)
	}
	return res, nil
}

// NearDocument finds the k nearest neighbors of the stored vector of document id.
// The document itself is not part of the hits. k <= 0 leaves k to the service.
func (s *SearchService) NearDocument(
	ctx context.Context, field, id string, k int, params *SearchParameters,
) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.near_document", start, err) }()

	opts := []vector.Option{vector.WithID(id)}
	if k > 0 {
		opts = append(opts, vector.WithK(k))
	}
	vq, err := vector.New(field, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("near document search: %w", err)
	}
	res, err := s.query(ctx, withVector(params, vq))
	if err != nil {
		return nil, fmt.Errorf("near document search: %w", err)
	}
	return res, nil
}

// NearText embeds text with the configured embedder and finds its k nearest neighbors.
func (s *SearchService) NearText(
	ctx context.Context, field, text string, k int, params *SearchParameters,
) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.near_text", start, err) }()

	vq, err := s.textVector(ctx, field, text, k)
	if err != nil {
		return nil, fmt.Errorf("near text search: %w", err)
	}
	res, err := s.query(ctx, withVector(params, vq))
	if err != nil {
		return nil, fmt.Errorf("near text search: %w", err)
	}
	return res, nil
}

func (s *SearchService) textVector(ctx context.Context, field, text string, k int) (VectorQuery, error) {
	if s.embedder == nil {
		return VectorQuery{}, domain.ErrEmbedderNotConfigured
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return VectorQuery{}, fmt.Errorf("embed query: %w", err)
	}
	var opts []vector.Option
	if k > 0 {
		opts = append(opts, vector.WithK(k))
	}
	return vector.New(field, emb.Embedding, opts...) //nolint:wrapcheck // wrapped by the caller
}

// withVector copies params with vq set and Q defaulting to "*".
func withVector(params *SearchParameters, vq VectorQuery) *SearchParameters {
	var p SearchParameters
	if params != nil {
		p = *params
	}
	if p.Q == "" {
		p.Q = "*"
	}
	p.VectorQuery = &vq
	return &p
}

// TypedHit is a search hit with its document decoded into T.
type TypedHit[T any] struct {
	Document       T
	Highlights     []Highlight
	TextMatch      int64
	VectorDistance *float64
}

// TypedSearchResult is a SearchResult with documents decoded into T.
// Grouped searches keep their groups in Groups; Hits is then empty.
type TypedSearchResult[T any] struct {
	Found        int
	OutOf        int
	Page         int
	SearchTimeMs int
	FacetCounts  []FacetCounts
	Hits         []TypedHit[T]
	Groups       []TypedGroup[T]
}

// TypedGroup is one group of a grouped typed search.
type TypedGroup[T any] struct {
	Key   []any
	Found int
	Hits  []TypedHit[T]
}

// SearchAs runs a search and decodes every hit document into T.
func SearchAs[T any](ctx context.Context, s *SearchService, params *SearchParameters) (*TypedSearchResult[T], error) {
	res, err := s.Query(ctx, params)
	if err != nil {
		return nil, err
	}
	return decodeResult[T](res)
}

func decodeResult[T any](res *SearchResult) (*TypedSearchResult[T], error) {
	out := &TypedSearchResult[T]{
		Found:        res.Found,
		OutOf:        res.OutOf,
		Page:         res.Page,
		SearchTimeMs: res.SearchTimeMs,
		FacetCounts:  res.FacetCounts,
	}
	var err error
	if out.Hits, err = decodeHits[T](res.Hits); err != nil {
		return nil, err
	}
	for _, g := range res.GroupedHits {
		hits, err := decodeHits[T](g.Hits)
		if err != nil {
			return nil, err
		}
		out.Groups = append(out.Groups, TypedGroup[T]{Key: g.GroupKey, Found: g.Found, Hits: hits})
	}
	return out, nil
}

func decodeHits[T any](hits []Hit) ([]TypedHit[T], error) {
	out := make([]TypedHit[T], len(hits))
	for i, h := range hits {
		if err := h.Decode(&out[i].Document); err != nil {
			return nil, fmt.Errorf("decode hit %d: %w", i, err)
		}
		out[i].Highlights = h.Highlights
		out[i].TextMatch = h.TextMatch
		out[i].VectorDistance = h.VectorDistance
	}
	return out, nil
}
