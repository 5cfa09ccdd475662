package searchcache

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestKey_StableAcrossParamOrder(t *testing.T) {
	a := url.Values{}
	a.Set("q", "harry")
	a.Set("query_by", "title")
	b := url.Values{}
	b.Set("query_by", "title")
	b.Set("q", "harry")

	if Key("books", a) != Key("books", b) {
		t.Error("expected equal keys for equal params")
	}
	if Key("books", a) == Key("movies", a) {
		t.Error("expected different keys for different collections")
	}
	if !strings.HasPrefix(Key("books", a), KeyPrefix) {
		t.Errorf("key %q missing prefix", Key("books", a))
	}
}

func TestFetch_CacheMiss(t *testing.T) {
	ms := &mockKVStore{}
	rec := &countingRecorder{}
	c := New(ms, time.Minute, rec, zap.NewNop())

	var storedTTL time.Duration
	var stored []byte
	ms.setFn = func(_ context.Context, _ string, value []byte, ttl time.Duration) error {
		stored, storedTTL = value, ttl
		return nil
	}

	loads := 0
	data, err := c.Fetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		loads++
		return []byte(`{"found":1}`), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"found":1}` {
		t.Errorf("data = %s", data)
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if string(stored) != `{"found":1}` || storedTTL != time.Minute {
		t.Errorf("stored = %s ttl = %v", stored, storedTTL)
	}
	if rec.misses != 1 || rec.hits != 0 {
		t.Errorf("hits/misses = %d/%d, want 0/1", rec.hits, rec.misses)
	}
}

func TestFetch_CacheHit(t *testing.T) {
	ms := &mockKVStore{
		getFn: func(context.Context, string) ([]byte, error) { return []byte(`{"found":2}`), nil },
	}
	rec := &countingRecorder{}
	c := New(ms, time.Minute, rec, zap.NewNop())

	data, err := c.Fetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		t.Fatal("load must not be called on a hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"found":2}` {
		t.Errorf("data = %s", data)
	}
	if rec.hits != 1 {
		t.Errorf("hits = %d, want 1", rec.hits)
	}
}

func TestFetch_LoadError(t *testing.T) {
	ms := &mockKVStore{}
	setCalled := false
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		setCalled = true
		return nil
	}
	c := New(ms, time.Minute, nil, nil)

	loadErr := errors.New("node down")
	_, err := c.Fetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		return nil, loadErr
	})
	if !errors.Is(err, loadErr) {
		t.Fatalf("error = %v, want %v", err, loadErr)
	}
	if setCalled {
		t.Error("failed responses must not be cached")
	}
}

func TestFetch_StoreErrorsDegradeGracefully(t *testing.T) {
	ms := &mockKVStore{
		getFn: func(context.Context, string) ([]byte, error) { return nil, errors.New("conn refused") },
		setFn: func(context.Context, string, []byte, time.Duration) error { return errors.New("conn refused") },
	}
	rec := &countingRecorder{}
	c := New(ms, time.Minute, rec, zap.NewNop())

	data, err := c.Fetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte(`{}`), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{}` {
		t.Errorf("data = %s", data)
	}
	if rec.errors != 2 {
		t.Errorf("errors = %d, want 2", rec.errors)
	}
}
