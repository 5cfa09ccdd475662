package tsclient

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"
)

type mockTransport struct {
	doJSON func(ctx context.Context, method, path string, query url.Values, in, out any) error
	doRaw  func(ctx context.Context, method, path string, query url.Values, contentType string, body []byte) ([]byte, error)
}

func (m *mockTransport) DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	return m.doJSON(ctx, method, path, query, in, out)
}

func (m *mockTransport) DoRaw(
	ctx context.Context, method, path string, query url.Values, contentType string, body []byte,
) ([]byte, error) {
	return m.doRaw(ctx, method, path, query, contentType, body)
}

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// memStore is an in-memory KVStore. TTLs are recorded, not enforced.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

func (s *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, _ := strconv.ParseInt(string(s.data[key]), 10, 64)
	s.data[key] = []byte(strconv.FormatInt(cur+val, 10))
	return nil
}

func (s *memStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ttls[key]; ok && nx {
		return nil
	}
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
