package devserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

const testKey = "admin-key"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Config{APIKey: testKey, Version: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	raw    string
	key    string
}

func do(t *testing.T, ts *httptest.Server, c call) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	switch {
	case c.raw != "":
		rdr = bytes.NewBufferString(c.raw)
	case c.body != nil:
		b, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	target := ts.URL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}
	req, err := http.NewRequest(c.method, target, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	key := c.key
	if key == "" {
		key = testKey
	}
	req.Header.Set(APIKeyHeader, key)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func doJSON(t *testing.T, ts *httptest.Server, c call, wantStatus int) map[string]any {
	t.Helper()
	status, data := do(t, ts, c)
	if status != wantStatus {
		t.Fatalf("%s %s status = %d, want %d (body %s)", c.method, c.path, status, wantStatus, data)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func booksSchema() map[string]any {
	return map[string]any{
		"name": "books",
		"fields": []map[string]any{
			{"name": "title", "type": "string"},
			{"name": "author", "type": "string", "facet": true},
			{"name": "year", "type": "int32"},
			{"name": "tags", "type": "string[]", "optional": true},
			{"name": "vec", "type": "float[]", "num_dim": 3, "optional": true},
		},
	}
}

func seedBooks(t *testing.T, ts *httptest.Server) {
	t.Helper()
	doJSON(t, ts, call{method: http.MethodPost, path: "/collections", body: booksSchema()}, http.StatusCreated)
	docs := []map[string]any{
		{"id": "1", "title": "Harry Potter and the Philosopher's Stone", "author": "Rowling", "year": 1997,
			"tags": []string{"fantasy"}, "vec": []float64{1, 0, 0}},
		{"id": "2", "title": "Harry Potter and the Chamber of Secrets", "author": "Rowling", "year": 1998,
			"tags": []string{"fantasy"}, "vec": []float64{0.9, 0.1, 0}},
		{"id": "3", "title": "The Hobbit", "author": "Tolkien", "year": 1937,
			"tags": []string{"fantasy", "classic"}, "vec": []float64{0, 1, 0}},
		{"id": "4", "title": "Dune", "author": "Herbert", "year": 1965,
			"tags": []string{"scifi"}, "vec": []float64{0, 0, 1}},
	}
	for _, d := range docs {
		doJSON(t, ts, call{method: http.MethodPost, path: "/collections/books/documents", body: d}, http.StatusCreated)
	}
}

func hitIDs(t *testing.T, res map[string]any) []string {
	t.Helper()
	hits, _ := res["hits"].([]any)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		doc := h.(map[string]any)["document"].(map[string]any)
		ids = append(ids, doc["id"].(string))
	}
	return ids
}
