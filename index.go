package tsclient

import (
	"context"
	"fmt"
)

// TypedIndex is a collection whose documents decode into T.
// T is encoded with encoding/json, so its json tags name the fields.
type TypedIndex[T any] struct {
	name   string
	client *Client
}

// NewIndex creates a typed handle for the given collection name.
func NewIndex[T any](client *Client, name string) *TypedIndex[T] {
	return &TypedIndex[T]{name: name, client: client}
}

// Name returns the collection name.
func (idx *TypedIndex[T]) Name() string { return idx.name }

// Ensure creates the collection with schema if it does not exist (idempotent).
// The schema name is always the index name.
func (idx *TypedIndex[T]) Ensure(ctx context.Context, schema CollectionSchema) error {
	schema.Name = idx.name
	if _, err := idx.client.Collections().Ensure(ctx, schema); err != nil {
		return fmt.Errorf("ensure %q: %w", idx.name, err)
	}
	return nil
}

// Upsert creates or replaces a single item.
func (idx *TypedIndex[T]) Upsert(ctx context.Context, item T) error {
	if _, err := idx.client.Documents(idx.name).Upsert(ctx, item); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Import writes items in one request with action. Per-item failures are
// reported in the results, not as an error.
func (idx *TypedIndex[T]) Import(ctx context.Context, items []T, action ImportAction) ([]ImportResult, error) {
	docs := make([]any, len(items))
	for i, item := range items {
		docs[i] = item
	}
	res, err := idx.client.Documents(idx.name).Import(ctx, docs, &ImportParams{Action: action})
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return res, nil
}

// Get retrieves a typed item by ID.
func (idx *TypedIndex[T]) Get(ctx context.Context, id string) (T, error) {
	item, err := RetrieveAs[T](ctx, idx.client.Documents(idx.name), id)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get: %w", err)
	}
	return item, nil
}

// Delete removes an item by ID.
func (idx *TypedIndex[T]) Delete(ctx context.Context, id string) error {
	if _, err := idx.client.Documents(idx.name).Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Search returns a fluent search builder for this index.
func (idx *TypedIndex[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{idx: idx}
}
