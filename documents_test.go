package tsclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestDocumentService_ImportEncodesJSONL(t *testing.T) {
	var gotQuery url.Values
	var gotBody string
	tr := &mockTransport{
		doRaw: func(_ context.Context, method, path string, q url.Values, ct string, body []byte) ([]byte, error) {
			if method != http.MethodPost || path != "/collections/books/documents/import" {
				t.Errorf("request = %s %s", method, path)
			}
			if ct != jsonlContentType {
				t.Errorf("content type = %q", ct)
			}
			gotQuery, gotBody = q, string(body)
			return []byte("{\"success\":true}\n{\"success\":false,\"error\":\"Bad field\",\"code\":400}"), nil
		},
	}
	s := &DocumentService{collection: "books", tr: tr}
	docs := []any{
		map[string]any{"id": "1", "title": "Dune"},
		map[string]any{"id": "2", "title": 7},
	}
	res, err := s.Import(context.Background(), docs, &ImportParams{Action: ActionUpsert, BatchSize: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery.Get("action") != "upsert" || gotQuery.Get("batch_size") != "40" {
		t.Errorf("query = %v", gotQuery)
	}
	if lines := strings.Split(strings.TrimSpace(gotBody), "\n"); len(lines) != 2 {
		t.Errorf("body lines = %d, want 2: %q", len(lines), gotBody)
	}
	if len(res) != 2 || !res[0].Success || res[1].Success || res[1].Code != 400 {
		t.Errorf("results = %+v", res)
	}
}

func TestDocumentService_DeleteByFilterRequiresFilter(t *testing.T) {
	tr := &mockTransport{
		doJSON: func(context.Context, string, string, url.Values, any, any) error {
			t.Fatal("request sent without filter")
			return nil
		},
	}
	s := &DocumentService{collection: "books", tr: tr}
	if _, err := s.DeleteByFilter(context.Background(), "", 0); err == nil {
		t.Fatal("expected error for empty filter")
	}
}

func TestDocumentService_RetrieveNotFound(t *testing.T) {
	tr := &mockTransport{
		doJSON: func(_ context.Context, _, path string, _ url.Values, _, _ any) error {
			if path != "/collections/my%20books/documents/a%2Fb" {
				t.Errorf("path = %q", path)
			}
			return &APIError{StatusCode: http.StatusNotFound, Message: "Could not find a document with id: a/b"}
		},
	}
	s := &DocumentService{collection: "my books", tr: tr}
	_, err := s.Retrieve(context.Background(), "a/b")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
