package tsclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kailas-cloud/tsclient/internal/transport/rest"
)

const jsonlContentType = "text/plain"

// DocumentService manages documents of a single collection.
type DocumentService struct {
	collection string
	tr         transport
	obs        *observer
}

func (s *DocumentService) path(suffix string) (string, error) {
	return rest.Path("/collections/%s/documents"+suffix, "collection", s.collection)
}

func (s *DocumentService) docPath(id string) (string, error) {
	return rest.Path("/collections/%s/documents/%s", "collection", s.collection, "id", id)
}

// Create indexes a new document. It fails with ErrAlreadyExists if the id is taken.
func (s *DocumentService) Create(ctx context.Context, doc any) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.create", start, err) }()

	out, err := s.write(ctx, doc, "")
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return out, nil
}

// Upsert creates a document or replaces the one with the same id.
func (s *DocumentService) Upsert(ctx context.Context, doc any) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.upsert", start, err) }()

	out, err := s.write(ctx, doc, ActionUpsert)
	if err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}
	return out, nil
}

func (s *DocumentService) write(ctx context.Context, doc any, action ImportAction) (Document, error) {
	path, err := s.path("")
	if err != nil {
		return nil, err
	}
	var q url.Values
	if action != "" {
		q = url.Values{"action": {string(action)}}
	}
	var out Document
	if err := s.tr.DoJSON(ctx, http.MethodPost, path, q, doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Retrieve returns a document by id.
func (s *DocumentService) Retrieve(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.retrieve", start, err) }()

	var out Document
	if err = s.retrieveInto(ctx, id, &out); err != nil {
		return nil, fmt.Errorf("retrieve document: %w", err)
	}
	return out, nil
}

func (s *DocumentService) retrieveInto(ctx context.Context, id string, out any) error {
	path, err := s.docPath(id)
	if err != nil {
		return err
	}
	return s.tr.DoJSON(ctx, http.MethodGet, path, nil, nil, out)
}

// RetrieveAs returns a document decoded into T.
func RetrieveAs[T any](ctx context.Context, s *DocumentService, id string) (_ T, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.retrieve", start, err) }()

	var out T
	if err = s.retrieveInto(ctx, id, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("retrieve document: %w", err)
	}
	return out, nil
}

// Update merges patch into the document with id. It fails with ErrNotFound
// if the document does not exist.
func (s *DocumentService) Update(ctx context.Context, id string, patch any) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.update", start, err) }()

	path, err := s.docPath(id)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	var out Document
	if err = s.tr.DoJSON(ctx, http.MethodPatch, path, nil, patch, &out); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return out, nil
}

// Delete removes a document by id and returns it.
func (s *DocumentService) Delete(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.delete", start, err) }()

	path, err := s.docPath(id)
	if err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	var out Document
	if err = s.tr.DoJSON(ctx, http.MethodDelete, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	return out, nil
}

// DeleteByFilter removes every document matching filter and returns how many were deleted.
// batchSize bounds how many documents the service deletes per internal pass (0 = service default).
func (s *DocumentService) DeleteByFilter(ctx context.Context, filter string, batchSize int) (_ int, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.delete_by_filter", start, err) }()

	if filter == "" {
		return 0, errors.New("delete by filter: filter is required")
	}
	path, err := s.path("")
	if err != nil {
		return 0, fmt.Errorf("delete by filter: %w", err)
	}
	q := url.Values{"filter_by": {filter}}
	if batchSize > 0 {
		if err = rest.AddQuery(q, "batch_size", batchSize); err != nil {
			return 0, fmt.Errorf("delete by filter: %w", err)
		}
	}
	var out struct {
		NumDeleted int `json:"num_deleted"`
	}
	if err = s.tr.DoJSON(ctx, http.MethodDelete, path, q, nil, &out); err != nil {
		return 0, fmt.Errorf("delete by filter: %w", err)
	}
	return out.NumDeleted, nil
}

// UpdateByFilter merges patch into every document matching filter and returns how many were updated.
func (s *DocumentService) UpdateByFilter(ctx context.Context, filter string, patch any) (_ int, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.update_by_filter", start, err) }()

	if filter == "" {
		return 0, errors.New("update by filter: filter is required")
	}
	path, err := s.path("")
	if err != nil {
		return 0, fmt.Errorf("update by filter: %w", err)
	}
	var out struct {
		NumUpdated int `json:"num_updated"`
	}
	err = s.tr.DoJSON(ctx, http.MethodPatch, path, url.Values{"filter_by": {filter}}, patch, &out)
	if err != nil {
		return 0, fmt.Errorf("update by filter: %w", err)
	}
	return out.NumUpdated, nil
}

// Import writes docs in one JSONL request and returns one result per document.
// A failed line does not fail the call; check ImportResult.Success.
func (s *DocumentService) Import(ctx context.Context, docs []any, params *ImportParams) (_ []ImportResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.import", start, err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, d := range docs {
		if err = enc.Encode(d); err != nil {
			return nil, fmt.Errorf("import documents: encode document %d: %w", i, err)
		}
	}
	results, err := s.importJSONL(ctx, bytes.TrimRight(buf.Bytes(), "\n"), params)
	if err != nil {
		return nil, fmt.Errorf("import documents: %w", err)
	}
	return results, nil
}

// ImportJSONL sends pre-encoded JSONL (one document per line) as-is.
func (s *DocumentService) ImportJSONL(ctx context.Context, jsonl []byte, params *ImportParams) (_ []ImportResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.import", start, err) }()

	results, err := s.importJSONL(ctx, jsonl, params)
	if err != nil {
		return nil, fmt.Errorf("import documents: %w", err)
	}
	return results, nil
}

func (s *DocumentService) importJSONL(ctx context.Context, jsonl []byte, params *ImportParams) ([]ImportResult, error) {
	path, err := s.path("/import")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if params != nil {
		if params.Action != "" {
			q.Set("action", string(params.Action))
		}
		if params.BatchSize > 0 {
			if err := rest.AddQuery(q, "batch_size", params.BatchSize); err != nil {
				return nil, err
			}
		}
		if params.ReturnID {
			q.Set("return_id", "true")
		}
	}
	if len(jsonl) == 0 {
		return []ImportResult{}, nil
	}

	data, err := s.tr.DoRaw(ctx, http.MethodPost, path, q, jsonlContentType, jsonl)
	if err != nil {
		return nil, err
	}
	return parseImportResults(data)
}

func parseImportResults(data []byte) ([]ImportResult, error) {
	results := []ImportResult{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r ImportResult
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode import result %d: %w", len(results), err)
		}
		results = append(results, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read import results: %w", err)
	}
	return results, nil
}

// Export returns the matching documents as JSONL.
func (s *DocumentService) Export(ctx context.Context, params *ExportParams) (_ []byte, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.export", start, err) }()

	path, err := s.path("/export")
	if err != nil {
		return nil, fmt.Errorf("export documents: %w", err)
	}
	q := url.Values{}
	if params != nil {
		setIf(q, "filter_by", params.FilterBy)
		setIf(q, "include_fields", params.IncludeFields)
		setIf(q, "exclude_fields", params.ExcludeFields)
	}
	data, err := s.tr.DoRaw(ctx, http.MethodGet, path, q, "", nil)
	if err != nil {
		return nil, fmt.Errorf("export documents: %w", err)
	}
	return data, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
