package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/tsclient/internal/db"
)

type mockStore struct {
	data     map[string]int64
	ttls     map[string]time.Duration
	getFn    func(ctx context.Context, key string) ([]byte, error)
	incrErr  error
	expireFn func(key string, ttl time.Duration, nx bool) error
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	m.data[key] += val
	return nil
}

func (m *mockStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(key, ttl, nx)
	}
	if _, ok := m.ttls[key]; ok && nx {
		return nil
	}
	m.ttls[key] = ttl
	return nil
}

func TestAdd_IncrementsAndSetsTTLOnce(t *testing.T) {
	ms := newMockStore()
	s := New(ms)
	ctx := context.Background()

	if err := s.Add(ctx, "k", 10, 48*time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add(ctx, "k", 5, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.data["k"] != 15 {
		t.Errorf("counter = %d, want 15", ms.data["k"])
	}
	if ms.ttls["k"] != 48*time.Hour {
		t.Errorf("ttl = %v, want 48h", ms.ttls["k"])
	}
}

func TestAdd_Errors(t *testing.T) {
	ms := newMockStore()
	ms.incrErr = errors.New("connection refused")
	if err := New(ms).Add(context.Background(), "k", 1, time.Hour); err == nil {
		t.Fatal("expected incr error")
	}

	ms = newMockStore()
	ms.expireFn = func(string, time.Duration, bool) error { return errors.New("timeout") }
	if err := New(ms).Add(context.Background(), "k", 1, time.Hour); err == nil {
		t.Fatal("expected expire error")
	}
}

func TestLoad(t *testing.T) {
	ms := newMockStore()
	ms.data["k"] = 300
	s := New(ms)

	got, err := s.Load(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 300 {
		t.Errorf("Load() = %d, want 300", got)
	}

	got, err = s.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("Load(missing) = %d, want 0", got)
	}
}

func TestLoad_BadValue(t *testing.T) {
	ms := newMockStore()
	ms.getFn = func(context.Context, string) ([]byte, error) { return []byte("abc"), nil }
	if _, err := New(ms).Load(context.Background(), "k"); err == nil {
		t.Fatal("expected parse error")
	}

	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("boom") }
	if _, err := New(ms).Load(context.Background(), "k"); err == nil {
		t.Fatal("expected store error")
	}
}
