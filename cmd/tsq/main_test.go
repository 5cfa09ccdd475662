package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/tsclient"
	"github.com/kailas-cloud/tsclient/internal/devserver"
)

func TestRun_NoCommand(t *testing.T) {
	if err := run(context.Background(), nil, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want errUsage", err)
	}
}

func TestRun_VQ(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"vq", "vec:([0.5,", "1],", "k:", "3,", "ef:", "64)"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v vqView
	if err := json.Unmarshal(out.Bytes(), &v); err != nil {
		t.Fatalf("decode output %s: %v", out.String(), err)
	}
	if v.Canonical != "vec:([0.5, 1], k:3, ef:64)" {
		t.Errorf("canonical = %q", v.Canonical)
	}
	if v.Field != "vec" || len(v.Vector) != 2 {
		t.Errorf("field = %q vector = %v", v.Field, v.Vector)
	}
	if v.K == nil || *v.K != 3 {
		t.Errorf("k = %v, want 3", v.K)
	}
	if v.Params["ef"] != "64" {
		t.Errorf("params = %v", v.Params)
	}
}

func TestRun_VQInvalid(t *testing.T) {
	err := run(context.Background(), []string{"vq", "vec:[1,2]"}, &bytes.Buffer{})
	if !errors.Is(err, tsclient.ErrMalformedVectorQuery) {
		t.Errorf("error = %v, want ErrMalformedVectorQuery", err)
	}
	if err := run(context.Background(), []string{"vq"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want errUsage", err)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"version"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"version"`)) {
		t.Errorf("output = %s", out.String())
	}
}

// writeConfig points a config file at a dev server and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	srv, err := devserver.New(devserver.Config{APIKey: "cli-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := tsclient.New(tsclient.WithNodes(ts.URL), tsclient.WithAPIKey("cli-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	_, err = c.Collections().Create(ctx, tsclient.CollectionSchema{
		Name:   "books",
		Fields: []tsclient.Field{{Name: "title", Type: tsclient.FieldString}},
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := c.Documents("books").Create(ctx, map[string]any{"id": "1", "title": "Dune"}); err != nil {
		t.Fatalf("create document: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.yaml")
	data := fmt.Sprintf("client:\n  nodes: [%s]\n  api_key: cli-key\nlogging:\n  level: error\n", ts.URL)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRun_HealthAndCollections(t *testing.T) {
	path := writeConfig(t)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", path, "health"}, &out); err != nil {
		t.Fatalf("health: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"status": "ok"`)) {
		t.Errorf("health output = %s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"-config", path, "collections"}, &out); err != nil {
		t.Fatalf("collections: %v", err)
	}
	var list []tsclient.Collection
	if err := json.Unmarshal(out.Bytes(), &list); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(list) != 1 || list[0].Name != "books" {
		t.Errorf("collections = %+v", list)
	}
}

func TestRun_Search(t *testing.T) {
	path := writeConfig(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", path, "search", "-c", "books", "-q", "dune", "-by", "title"}, &out)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var res tsclient.SearchResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if res.Found != 1 {
		t.Errorf("found = %d, want 1", res.Found)
	}

	err = run(context.Background(), []string{"-config", path, "search", "-q", "dune"}, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Errorf("search without collection error = %v, want errUsage", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	path := writeConfig(t)
	err := run(context.Background(), []string{"-config", path, "frobnicate"}, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want errUsage", err)
	}
}
