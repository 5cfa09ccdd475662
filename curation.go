package tsclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/tsclient/internal/transport/rest"
)

// Synonym makes tokens interchangeable in queries. With Root set the
// synonym is one-way: Root expands to Synonyms but not the reverse.
type Synonym struct {
	ID       string   `json:"id,omitempty"`
	Root     string   `json:"root,omitempty"`
	Synonyms []string `json:"synonyms"`
}

// Match modes of an override rule.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
)

// OverrideRule selects the queries an override applies to.
type OverrideRule struct {
	Query    string `json:"query,omitempty"`
	Match    string `json:"match,omitempty"`
	FilterBy string `json:"filter_by,omitempty"`
}

// OverrideInclude pins document ID at a 1-based Position.
type OverrideInclude struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// OverrideExclude hides document ID.
type OverrideExclude struct {
	ID string `json:"id"`
}

// Override curates the results of matching queries.
type Override struct {
	ID                  string            `json:"id,omitempty"`
	Rule                OverrideRule      `json:"rule"`
	Includes            []OverrideInclude `json:"includes,omitempty"`
	Excludes            []OverrideExclude `json:"excludes,omitempty"`
	FilterBy            string            `json:"filter_by,omitempty"`
	RemoveMatchedTokens *bool             `json:"remove_matched_tokens,omitempty"`
	StopProcessing      *bool             `json:"stop_processing,omitempty"`
}

// SynonymService manages the synonyms of a collection.
type SynonymService struct {
	collection string
	tr         transport
	obs        *observer
}

// Upsert creates or replaces synonym id.
func (s *SynonymService) Upsert(ctx context.Context, id string, syn Synonym) (_ *Synonym, err error) {
	start := time.Now()
	defer func() { s.obs.observe("synonym.upsert", start, err) }()

	var out Synonym
	if err := upsertCuration(ctx, s.tr, s.collection, "synonyms", id, syn, &out); err != nil {
		return nil, fmt.Errorf("upsert synonym %s: %w", id, err)
	}
	return &out, nil
}

// Retrieve returns synonym id.
func (s *SynonymService) Retrieve(ctx context.Context, id string) (_ *Synonym, err error) {
	start := time.Now()
	defer func() { s.obs.observe("synonym.retrieve", start, err) }()

	var out Synonym
	if err := getCuration(ctx, s.tr, s.collection, "synonyms", id, &out); err != nil {
		return nil, fmt.Errorf("retrieve synonym %s: %w", id, err)
	}
	return &out, nil
}

// List returns all synonyms of the collection.
func (s *SynonymService) List(ctx context.Context) (_ []Synonym, err error) {
	start := time.Now()
	defer func() { s.obs.observe("synonym.list", start, err) }()

	var out struct {
		Synonyms []Synonym `json:"synonyms"`
	}
	if err := listCuration(ctx, s.tr, s.collection, "synonyms", &out); err != nil {
		return nil, fmt.Errorf("list synonyms: %w", err)
	}
	return out.Synonyms, nil
}

// Delete removes synonym id.
func (s *SynonymService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("synonym.delete", start, err) }()

	if err := deleteCuration(ctx, s.tr, s.collection, "synonyms", id); err != nil {
		return fmt.Errorf("delete synonym %s: %w", id, err)
	}
	return nil
}

// OverrideService manages the curation overrides of a collection.
type OverrideService struct {
	collection string
	tr         transport
	obs        *observer
}

// Upsert creates or replaces override id.
func (s *OverrideService) Upsert(ctx context.Context, id string, o Override) (_ *Override, err error) {
	start := time.Now()
	defer func() { s.obs.observe("override.upsert", start, err) }()

	var out Override
	if err := upsertCuration(ctx, s.tr, s.collection, "overrides", id, o, &out); err != nil {
		return nil, fmt.Errorf("upsert override %s: %w", id, err)
	}
	return &out, nil
}

// Retrieve returns override id.
func (s *OverrideService) Retrieve(ctx context.Context, id string) (_ *Override, err error) {
	start := time.Now()
	defer func() { s.obs.observe("override.retrieve", start, err) }()

	var out Override
	if err := getCuration(ctx, s.tr, s.collection, "overrides", id, &out); err != nil {
		return nil, fmt.Errorf("retrieve override %s: %w", id, err)
	}
	return &out, nil
}

// List returns all overrides of the collection.
func (s *OverrideService) List(ctx context.Context) (_ []Override, err error) {
	start := time.Now()
	defer func() { s.obs.observe("override.list", start, err) }()

	var out struct {
		Overrides []Override `json:"overrides"`
	}
	if err := listCuration(ctx, s.tr, s.collection, "overrides", &out); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return out.Overrides, nil
}

// Delete removes override id.
func (s *OverrideService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("override.delete", start, err) }()

	if err := deleteCuration(ctx, s.tr, s.collection, "overrides", id); err != nil {
		return fmt.Errorf("delete override %s: %w", id, err)
	}
	return nil
}

func curationPath(collection, kind, id string) (string, error) {
	if id == "" {
		return rest.Path("/collections/%s/"+kind, "collection", collection)
	}
	return rest.Path("/collections/%s/"+kind+"/%s", "collection", collection, "id", id)
}

func upsertCuration(ctx context.Context, tr transport, collection, kind, id string, in, out any) error {
	path, err := curationPath(collection, kind, id)
	if err != nil {
		return err
	}
	return tr.DoJSON(ctx, http.MethodPut, path, nil, in, out) //nolint:wrapcheck // wrapped by the caller
}

func getCuration(ctx context.Context, tr transport, collection, kind, id string, out any) error {
	path, err := curationPath(collection, kind, id)
	if err != nil {
		return err
	}
	return tr.DoJSON(ctx, http.MethodGet, path, nil, nil, out) //nolint:wrapcheck // wrapped by the caller
}

func listCuration(ctx context.Context, tr transport, collection, kind string, out any) error {
	path, err := curationPath(collection, kind, "")
	if err != nil {
		return err
	}
	return tr.DoJSON(ctx, http.MethodGet, path, nil, nil, out) //nolint:wrapcheck // wrapped by the caller
}

func deleteCuration(ctx context.Context, tr transport, collection, kind, id string) error {
	path, err := curationPath(collection, kind, id)
	if err != nil {
		return err
	}
	return tr.DoJSON(ctx, http.MethodDelete, path, nil, nil, nil) //nolint:wrapcheck // wrapped by the caller
}
