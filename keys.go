package tsclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const keyPrefixLen = 4

// Key actions.
const (
	KeyActionAll    = "*"
	KeyActionSearch = "documents:search"
)

// APIKey is an API key. Value is only returned when the key is created.
type APIKey struct {
	ID          int64    `json:"id,omitempty"`
	Value       string   `json:"value,omitempty"`
	ValuePrefix string   `json:"value_prefix,omitempty"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
	Collections []string `json:"collections"`
	ExpiresAt   int64    `json:"expires_at,omitempty"`
}

// KeyService manages API keys.
type KeyService struct {
	tr  transport
	obs *observer
}

func keyPath(id int64) string {
	return "/keys/" + strconv.FormatInt(id, 10)
}

// Create creates a key. Leave Value empty to have the service generate one.
func (s *KeyService) Create(ctx context.Context, key APIKey) (_ *APIKey, err error) {
	start := time.Now()
	defer func() { s.obs.observe("key.create", start, err) }()

	var out APIKey
	if err := s.tr.DoJSON(ctx, http.MethodPost, "/keys", nil, key, &out); err != nil {
		return nil, fmt.Errorf("create key: %w", err)
	}
	return &out, nil
}

// Retrieve returns key id without its value.
func (s *KeyService) Retrieve(ctx context.Context, id int64) (_ *APIKey, err error) {
	start := time.Now()
	defer func() { s.obs.observe("key.retrieve", start, err) }()

	var out APIKey
	if err := s.tr.DoJSON(ctx, http.MethodGet, keyPath(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("retrieve key %d: %w", id, err)
	}
	return &out, nil
}

// List returns all keys without their values.
func (s *KeyService) List(ctx context.Context) (_ []APIKey, err error) {
	start := time.Now()
	defer func() { s.obs.observe("key.list", start, err) }()

	var out struct {
		Keys []APIKey `json:"keys"`
	}
	if err := s.tr.DoJSON(ctx, http.MethodGet, "/keys", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return out.Keys, nil
}

// Delete removes key id.
func (s *KeyService) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("key.delete", start, err) }()

	if err := s.tr.DoJSON(ctx, http.MethodDelete, keyPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete key %d: %w", id, err)
	}
	return nil
}

// GenerateScopedSearchKey derives a search key that embeds params (for example
// filter_by or expires_at). The service verifies it against searchKey and
// applies the embedded params to every search made with it. No request is sent.
func GenerateScopedSearchKey(searchKey string, params map[string]any) (string, error) {
	if len(searchKey) < keyPrefixLen {
		return "", errors.New("scoped key: parent key is too short")
	}
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("scoped key: encode params: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(searchKey))
	mac.Write(paramsJSON)
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	raw := make([]byte, 0, len(digest)+keyPrefixLen+len(paramsJSON))
	raw = append(raw, digest...)
	raw = append(raw, searchKey[:keyPrefixLen]...)
	raw = append(raw, paramsJSON...)
	return base64.StdEncoding.EncodeToString(raw), nil
}
