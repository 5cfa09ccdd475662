package tsclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestGenerateScopedSearchKey(t *testing.T) {
	parent := "RN23GFr1s6jQ9kgSNg2O7fYcAUXU7127"
	key, err := GenerateScopedSearchKey(parent, map[string]any{"filter_by": "company_id:124", "expires_at": 1906054106})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		t.Fatalf("scoped key is not base64: %v", err)
	}
	digest, prefix, params := raw[:44], raw[44:48], raw[48:]
	if string(prefix) != parent[:4] {
		t.Errorf("prefix = %q, want %q", prefix, parent[:4])
	}

	mac := hmac.New(sha256.New, []byte(parent))
	mac.Write(params)
	if want := base64.StdEncoding.EncodeToString(mac.Sum(nil)); string(digest) != want {
		t.Errorf("digest = %q, want %q", digest, want)
	}

	var embedded map[string]any
	if err := json.Unmarshal(params, &embedded); err != nil {
		t.Fatalf("embedded params: %v", err)
	}
	if embedded["filter_by"] != "company_id:124" {
		t.Errorf("filter_by = %v", embedded["filter_by"])
	}
}

func TestGenerateScopedSearchKey_ShortParent(t *testing.T) {
	if _, err := GenerateScopedSearchKey("abc", nil); err == nil {
		t.Fatal("expected error for a parent key shorter than its prefix")
	}
}
