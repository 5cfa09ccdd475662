package tsclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/tsclient/internal/transport/rest"
)

// Alias points a virtual collection name at a real collection.
type Alias struct {
	Name           string `json:"name"`
	CollectionName string `json:"collection_name"`
}

// AliasService manages collection aliases.
type AliasService struct {
	tr  transport
	obs *observer
}

func aliasPath(name string) (string, error) {
	return rest.Path("/aliases/%s", "name", name)
}

// Upsert creates or repoints alias name at collection.
func (s *AliasService) Upsert(ctx context.Context, name, collection string) (_ *Alias, err error) {
	start := time.Now()
	defer func() { s.obs.observe("alias.upsert", start, err) }()

	path, err := aliasPath(name)
	if err != nil {
		return nil, err
	}
	in := map[string]string{"collection_name": collection}
	var out Alias
	if err := s.tr.DoJSON(ctx, http.MethodPut, path, nil, in, &out); err != nil {
		return nil, fmt.Errorf("upsert alias %s: %w", name, err)
	}
	return &out, nil
}

// Retrieve returns alias name.
func (s *AliasService) Retrieve(ctx context.Context, name string) (_ *Alias, err error) {
	start := time.Now()
	defer func() { s.obs.observe("alias.retrieve", start, err) }()

	path, err := aliasPath(name)
	if err != nil {
		return nil, err
	}
	var out Alias
	if err := s.tr.DoJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("retrieve alias %s: %w", name, err)
	}
	return &out, nil
}

// List returns all aliases.
func (s *AliasService) List(ctx context.Context) (_ []Alias, err error) {
	start := time.Now()
	defer func() { s.obs.observe("alias.list", start, err) }()

	var out struct {
		Aliases []Alias `json:"aliases"`
	}
	if err := s.tr.DoJSON(ctx, http.MethodGet, "/aliases", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	return out.Aliases, nil
}

// Delete removes alias name and returns it. The target collection is kept.
func (s *AliasService) Delete(ctx context.Context, name string) (_ *Alias, err error) {
	start := time.Now()
	defer func() { s.obs.observe("alias.delete", start, err) }()

	path, err := aliasPath(name)
	if err != nil {
		return nil, err
	}
	var out Alias
	if err := s.tr.DoJSON(ctx, http.MethodDelete, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("delete alias %s: %w", name, err)
	}
	return &out, nil
}
