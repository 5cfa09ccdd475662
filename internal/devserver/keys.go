package devserver

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/tsclient/internal/logger"
)

const (
	searchAction    = "documents:search"
	keyPrefixLen    = 4
	scopedDigestLen = 44
	forbiddenMsg    = "Forbidden - a valid `x-typesense-api-key` header must be sent."
)

type apiKey struct {
	ID          int64    `json:"id"`
	Value       string   `json:"value,omitempty"`
	ValuePrefix string   `json:"value_prefix,omitempty"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
	Collections []string `json:"collections"`
	ExpiresAt   int64    `json:"expires_at,omitempty"`
}

func (k *apiKey) expired(now time.Time) bool {
	return k.ExpiresAt > 0 && now.Unix() > k.ExpiresAt
}

func (k *apiKey) allowsCollection(name string) bool {
	for _, c := range k.Collections {
		if c == "*" || c == name {
			return true
		}
	}
	return false
}

func (k *apiKey) allowsAction(action string) bool {
	for _, a := range k.Actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}

func (k *apiKey) redacted() apiKey {
	out := *k
	out.Value = ""
	out.ValuePrefix = k.Value[:min(keyPrefixLen, len(k.Value))]
	return out
}

// scope restricts a search-only request to a key's collections and embedded parameters.
type scope struct {
	key    *apiKey
	params map[string]string
}

type scopeCtxKey struct{}

func scopeFrom(ctx context.Context) (*scope, bool) {
	sc, ok := ctx.Value(scopeCtxKey{}).(*scope)
	return sc, ok
}

func (sc *scope) allows(collection string) bool {
	return sc.key.allowsCollection(collection)
}

// apply merges embedded parameters into params. Embedded filters are
// combined with the request filter, every other embedded value wins.
func (sc *scope) apply(params url.Values) url.Values {
	out := url.Values{}
	for k, vs := range params {
		out[k] = append([]string(nil), vs...)
	}
	for k, v := range sc.params {
		if k == "filter_by" && out.Get(k) != "" {
			out.Set(k, out.Get(k)+" && "+v)
			continue
		}
		out.Set(k, v)
	}
	return out
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		presented := r.Header.Get(APIKeyHeader)
		if presented == "" {
			presented = r.URL.Query().Get("x-typesense-api-key")
		}
		if hmac.Equal([]byte(presented), []byte(s.apiKey)) {
			next.ServeHTTP(w, r)
			return
		}

		sc, err := s.authorize(presented, r)
		if err != nil {
			logpkg.FromContext(r.Context()).Debug("request rejected", zap.String("reason", err.msg))
			writeStatusError(w, err)
			return
		}
		if sc != nil {
			r = r.WithContext(context.WithValue(r.Context(), scopeCtxKey{}, sc))
		}
		next.ServeHTTP(w, r)
	})
}

// authorize resolves a non-admin key. A nil scope with a nil error grants full access.
func (s *Server) authorize(presented string, r *http.Request) (*scope, *statusError) {
	denied := errorf(http.StatusUnauthorized, forbiddenMsg)
	if presented == "" {
		return nil, denied
	}
	now := time.Now()
	search := isSearchRequest(r)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.keys {
		if !hmac.Equal([]byte(k.Value), []byte(presented)) {
			continue
		}
		if k.expired(now) {
			return nil, denied
		}
		if k.allowsAction("*") && k.allowsCollection("*") {
			return nil, nil
		}
		if search && k.allowsAction(searchAction) {
			return &scope{key: k}, nil
		}
		return nil, denied
	}

	if !search {
		return nil, denied
	}
	sc, ok := s.verifyScoped(presented, now)
	if !ok {
		return nil, denied
	}
	return sc, nil
}

// verifyScoped checks a scoped search key: base64(digest + parent prefix + params JSON)
// where digest is base64(HMAC-SHA256(parent, params JSON)). Callers hold s.mu.
func (s *Server) verifyScoped(presented string, now time.Time) (*scope, bool) {
	raw, err := base64.StdEncoding.DecodeString(presented)
	if err != nil || len(raw) <= scopedDigestLen+keyPrefixLen {
		return nil, false
	}
	digest := raw[:scopedDigestLen]
	prefix := string(raw[scopedDigestLen : scopedDigestLen+keyPrefixLen])
	paramsJSON := raw[scopedDigestLen+keyPrefixLen:]

	for _, k := range s.keys {
		if !strings.HasPrefix(k.Value, prefix) || k.expired(now) || !k.allowsAction(searchAction) {
			continue
		}
		mac := hmac.New(sha256.New, []byte(k.Value))
		mac.Write(paramsJSON)
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if !hmac.Equal(digest, []byte(want)) {
			continue
		}

		var embedded map[string]any
		dec := json.NewDecoder(strings.NewReader(string(paramsJSON)))
		dec.UseNumber()
		if err := dec.Decode(&embedded); err != nil {
			return nil, false
		}
		params := make(map[string]string, len(embedded))
		for name, v := range embedded {
			params[name] = stringify(v)
		}
		if exp, ok := params["expires_at"]; ok {
			ts, err := strconv.ParseInt(exp, 10, 64)
			if err != nil || now.Unix() > ts {
				return nil, false
			}
			delete(params, "expires_at")
		}
		return &scope{key: k, params: params}, true
	}
	return nil, false
}

func isSearchRequest(r *http.Request) bool {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/documents/search"):
		return true
	case r.Method == http.MethodPost && r.URL.Path == "/multi_search":
		return true
	}
	return false
}

func generateKeyValue() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err //nolint:wrapcheck // reported as a 500
	}
	return hex.EncodeToString(b), nil
}

func (s *Server) createKey(w http.ResponseWriter, r *http.Request) {
	var body apiKey
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}
	if len(body.Actions) == 0 {
		writeError(w, http.StatusBadRequest, "Could not create API key: `actions` should be an array of actions.")
		return
	}
	if len(body.Collections) == 0 {
		writeError(w, http.StatusBadRequest, "Could not create API key: `collections` should be an array of collection names.")
		return
	}
	if body.Value == "" {
		v, err := generateKeyValue()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not generate API key.")
			return
		}
		body.Value = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	body.ID = s.nextKeyID
	body.ValuePrefix = ""
	s.nextKeyID++
	k := body
	s.keys[k.ID] = &k
	writeJSON(w, http.StatusCreated, k)
}

func (s *Server) listKeys(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]apiKey, len(ids))
	for i, id := range ids {
		out[i] = s.keys[id].redacted()
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": out})
}

func (s *Server) lookupKey(w http.ResponseWriter, r *http.Request) (*apiKey, bool) {
	id, err := strconv.ParseInt(param(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Parameter `id` must be an integer.")
		return nil, false
	}
	k, ok := s.keys[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Key not found.")
		return nil, false
	}
	return k, true
}

func (s *Server) getKey(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.lookupKey(w, r); ok {
		writeJSON(w, http.StatusOK, k.redacted())
	}
}

func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.lookupKey(w, r); ok {
		delete(s.keys, k.ID)
		writeJSON(w, http.StatusOK, map[string]int64{"id": k.ID})
	}
}
