package tsclient

import (
	"context"
	"fmt"
	"strings"
)

// SearchBuilder is a fluent builder for typed searches.
type SearchBuilder[T any] struct {
	idx    *TypedIndex[T]
	params SearchParameters

	filters []string
	err     error
}

// Query sets the text query. Use "*" to match every document.
func (b *SearchBuilder[T]) Query(q string) *SearchBuilder[T] {
	b.params.Q = q
	return b
}

// By sets the fields the query is matched against, in priority order.
func (b *SearchBuilder[T]) By(fields ...string) *SearchBuilder[T] {
	b.params.QueryBy = strings.Join(fields, ",")
	return b
}

// Where adds a filter expression. Several filters are AND-ed.
func (b *SearchBuilder[T]) Where(filter string) *SearchBuilder[T] {
	b.filters = append(b.filters, filter)
	return b
}

// Filter adds a structured filter. An invalid expression fails Do.
func (b *SearchBuilder[T]) Filter(expr FilterExpression) *SearchBuilder[T] {
	fb, err := expr.FilterBy()
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	if fb != "" {
		b.filters = append(b.filters, fb)
	}
	return b
}

// SortBy sets the sort expression, e.g. "year:desc".
func (b *SearchBuilder[T]) SortBy(sort ...string) *SearchBuilder[T] {
	b.params.SortBy = strings.Join(sort, ",")
	return b
}

// Near adds a nearest-neighbor clause. Without a query the search matches "*".
func (b *SearchBuilder[T]) Near(vq VectorQuery) *SearchBuilder[T] {
	b.params.VectorQuery = &vq
	return b
}

// Facet requests value counts for fields.
func (b *SearchBuilder[T]) Facet(fields ...string) *SearchBuilder[T] {
	b.params.FacetBy = strings.Join(fields, ",")
	return b
}

// GroupBy groups hits by fields, keeping at most limit hits per group.
func (b *SearchBuilder[T]) GroupBy(limit int, fields ...string) *SearchBuilder[T] {
	b.params.GroupBy = strings.Join(fields, ",")
	b.params.GroupLimit = limit
	return b
}

// Page sets the 1-based result page.
func (b *SearchBuilder[T]) Page(n int) *SearchBuilder[T] {
	b.params.Page = n
	return b
}

// PerPage sets the number of hits per page.
func (b *SearchBuilder[T]) PerPage(n int) *SearchBuilder[T] {
	b.params.PerPage = n
	return b
}

// Params returns the parameters the builder will send.
func (b *SearchBuilder[T]) Params() SearchParameters {
	p := b.params
	if len(b.filters) > 0 {
		p.FilterBy = strings.Join(b.filters, " && ")
	}
	if p.Q == "" && p.VectorQuery != nil {
		p.Q = "*"
	}
	return p
}

// Do executes the search and returns typed results.
func (b *SearchBuilder[T]) Do(ctx context.Context) (*TypedSearchResult[T], error) {
	if b.err != nil {
		return nil, fmt.Errorf("search %q: %w", b.idx.name, b.err)
	}
	p := b.Params()
	res, err := SearchAs[T](ctx, b.idx.client.Search(b.idx.name), &p)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", b.idx.name, err)
	}
	return res, nil
}
