package tsclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/tsclient/internal/domain"
)

// MultiSearchRequest is one search of a multi-search batch.
type MultiSearchRequest struct {
	Collection string
	SearchParameters
}

// MultiSearchResult holds one result per request, in request order.
type MultiSearchResult struct {
	Results []MultiSearchItem `json:"results"`
}

// MultiSearchItem is a search result or, when Code is set, the error of that search.
type MultiSearchItem struct {
	SearchResult
	Code  int    `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Err returns the failure of this search as an *APIError, or nil.
func (i *MultiSearchItem) Err() error {
	if i.Code == 0 && i.Error == "" {
		return nil
	}
	return &domain.APIError{
		StatusCode: i.Code,
		Message:    i.Error,
		Method:     http.MethodPost,
		Path:       "/multi_search",
	}
}

// MultiSearchService runs several searches in one request.
type MultiSearchService struct {
	tr  transport
	obs *observer
}

// Perform sends searches in one request. Parameters in common apply to every
// search unless the search sets them itself. A failing search does not fail
// the batch; check MultiSearchItem.Err.
func (s *MultiSearchService) Perform(
	ctx context.Context, common *SearchParameters, searches []MultiSearchRequest,
) (_ *MultiSearchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("multi_search", start, err) }()

	q, err := common.Values()
	if err != nil {
		return nil, fmt.Errorf("multi search: common params: %w", err)
	}

	body := struct {
		Searches []map[string]string `json:"searches"`
	}{Searches: make([]map[string]string, len(searches))}
	for i := range searches {
		vals, err := searches[i].Values()
		if err != nil {
			return nil, fmt.Errorf("multi search: search %d: %w", i, err)
		}
		entry := make(map[string]string, len(vals)+1)
		for k := range vals {
			entry[k] = vals.Get(k)
		}
		if searches[i].Collection != "" {
			entry["collection"] = searches[i].Collection
		}
		body.Searches[i] = entry
	}

	var res MultiSearchResult
	if err := s.tr.DoJSON(ctx, http.MethodPost, "/multi_search", q, body, &res); err != nil {
		return nil, fmt.Errorf("multi search: %w", err)
	}
	if len(res.Results) != len(searches) {
		return nil, fmt.Errorf("multi search: got %d results for %d searches", len(res.Results), len(searches))
	}
	return &res, nil
}
