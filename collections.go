package tsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/tsclient/internal/transport/rest"
)

// CollectionService manages collections.
type CollectionService struct {
	tr  transport
	obs *observer
}

// Create creates a new collection.
func (s *CollectionService) Create(ctx context.Context, schema CollectionSchema) (_ Collection, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.create", start, err) }()

	var out Collection
	if err = s.tr.DoJSON(ctx, http.MethodPost, "/collections", nil, schema, &out); err != nil {
		return Collection{}, fmt.Errorf("create collection: %w", err)
	}
	return out, nil
}

// Ensure creates a collection if it does not exist.
// If it already exists, returns its current definition.
func (s *CollectionService) Ensure(ctx context.Context, schema CollectionSchema) (_ Collection, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.ensure", start, err) }()

	var out Collection
	err = s.tr.DoJSON(ctx, http.MethodPost, "/collections", nil, schema, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return Collection{}, fmt.Errorf("ensure collection: %w", err)
	}
	out, err = s.retrieve(ctx, schema.Name)
	if err != nil {
		return Collection{}, fmt.Errorf("ensure collection: %w", err)
	}
	return out, nil
}

// Retrieve returns a collection by name or alias.
func (s *CollectionService) Retrieve(ctx context.Context, name string) (_ Collection, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.retrieve", start, err) }()

	out, err := s.retrieve(ctx, name)
	if err != nil {
		return Collection{}, fmt.Errorf("retrieve collection: %w", err)
	}
	return out, nil
}

func (s *CollectionService) retrieve(ctx context.Context, name string) (Collection, error) {
	path, err := rest.Path("/collections/%s", "collection", name)
	if err != nil {
		return Collection{}, err
	}
	var out Collection
	if err := s.tr.DoJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

// List returns all collections.
func (s *CollectionService) List(ctx context.Context) (_ []Collection, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.list", start, err) }()

	var out []Collection
	if err = s.tr.DoJSON(ctx, http.MethodGet, "/collections", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return out, nil
}

// Update adds fields to a collection or drops them (Field.Drop).
// It returns the applied field changes.
func (s *CollectionService) Update(ctx context.Context, name string, fields []Field) (_ []Field, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.update", start, err) }()

	path, err := rest.Path("/collections/%s", "collection", name)
	if err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}
	in := struct {
		Fields []Field `json:"fields"`
	}{Fields: fields}
	var out struct {
		Fields []Field `json:"fields"`
	}
	if err = s.tr.DoJSON(ctx, http.MethodPatch, path, nil, in, &out); err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}
	return out.Fields, nil
}

// Delete removes a collection and all its documents. It returns the deleted collection.
func (s *CollectionService) Delete(ctx context.Context, name string) (_ Collection, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.delete", start, err) }()

	path, err := rest.Path("/collections/%s", "collection", name)
	if err != nil {
		return Collection{}, fmt.Errorf("delete collection: %w", err)
	}
	var out Collection
	if err = s.tr.DoJSON(ctx, http.MethodDelete, path, nil, nil, &out); err != nil {
		return Collection{}, fmt.Errorf("delete collection: %w", err)
	}
	return out, nil
}
