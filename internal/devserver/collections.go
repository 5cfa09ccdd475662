package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type collection struct {
	name      string
	createdAt int64
	schema    map[string]any
	fields    []map[string]any

	docs   map[string]map[string]any
	order  []string
	nextID int

	synonyms  map[string]map[string]any
	overrides map[string]map[string]any
}

func newCollection(schema map[string]any) (*collection, error) {
	name, _ := schema["name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("Parameter `name` is required.")
	}
	rawFields, _ := schema["fields"].([]any)
	fields := make([]map[string]any, 0, len(rawFields))
	for _, rf := range rawFields {
		f, ok := rf.(map[string]any)
		if !ok {
			return nil, errors.New("Wrong format for `fields`.")
		}
		if n, _ := f["name"].(string); n == "" {
			return nil, errors.New("Wrong format for `fields`. It should be an array of objects containing `name`, `type`.")
		}
		if t, _ := f["type"].(string); t == "" {
			return nil, fmt.Errorf("Field `%s` has no type.", f["name"])
		}
		fields = append(fields, f)
	}

	return &collection{
		name:      name,
		createdAt: time.Now().Unix(),
		schema:    schema,
		fields:    fields,
		docs:      make(map[string]map[string]any),
		synonyms:  make(map[string]map[string]any),
		overrides: make(map[string]map[string]any),
	}, nil
}

func (c *collection) view() map[string]any {
	out := make(map[string]any, len(c.schema)+3)
	for k, v := range c.schema {
		out[k] = v
	}
	fields := make([]any, len(c.fields))
	for i, f := range c.fields {
		fields[i] = f
	}
	out["fields"] = fields
	out["num_documents"] = len(c.docs)
	out["created_at"] = c.createdAt
	return out
}

func (c *collection) field(name string) (map[string]any, bool) {
	for _, f := range c.fields {
		if f["name"] == name {
			return f, true
		}
	}
	return nil, false
}

// param returns an unescaped chi URL parameter.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// resolve finds a collection by name or alias. Callers hold s.mu.
func (s *Server) resolve(name string) (*collection, bool) {
	if c, ok := s.collections[name]; ok {
		return c, true
	}
	if target, ok := s.aliases[name]; ok {
		c, ok := s.collections[target]
		return c, ok
	}
	return nil, false
}

func notFoundCollection(w http.ResponseWriter, name string) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("Collection `%s` not found.", name))
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var schema map[string]any
	if err := decodeBody(r, &schema); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}
	c, err := newCollection(schema)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[c.name]; exists {
		writeError(w, http.StatusConflict, fmt.Sprintf("A collection with name `%s` already exists.", c.name))
		return
	}
	s.collections[c.name] = c
	writeJSON(w, http.StatusCreated, c.view())
}

func (s *Server) listCollections(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]map[string]any, len(names))
	for i, n := range names {
		out[i] = s.collections[n].view()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	writeJSON(w, http.StatusOK, c.view())
}

func (s *Server) updateCollection(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	var body struct {
		Fields []map[string]any `json:"fields"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}

	fields := append([]map[string]any(nil), c.fields...)
	for _, f := range body.Fields {
		fname, _ := f["name"].(string)
		idx := -1
		for i, existing := range fields {
			if existing["name"] == fname {
				idx = i
				break
			}
		}
		if drop, _ := f["drop"].(bool); drop {
			if idx < 0 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Field `%s` is not part of collection schema.", fname))
				return
			}
			fields = append(fields[:idx], fields[idx+1:]...)
			continue
		}
		if idx >= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Field `%s` is already part of the schema.", fname))
			return
		}
		fields = append(fields, f)
	}
	c.fields = fields
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		notFoundCollection(w, name)
		return
	}
	delete(s.collections, name)
	writeJSON(w, http.StatusOK, c.view())
}

// --- aliases ---

func aliasView(name, target string) map[string]string {
	return map[string]string{"name": name, "collection_name": target}
}

func (s *Server) upsertAlias(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	var body struct {
		CollectionName string `json:"collection_name"`
	}
	if err := decodeBody(r, &body); err != nil || body.CollectionName == "" {
		writeError(w, http.StatusBadRequest, "Parameter `collection_name` is required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[name] = body.CollectionName
	writeJSON(w, http.StatusOK, aliasView(name, body.CollectionName))
}

func (s *Server) listAliases(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.aliases))
	for n := range s.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]map[string]string, len(names))
	for i, n := range names {
		out[i] = aliasView(n, s.aliases[n])
	}
	writeJSON(w, http.StatusOK, map[string]any{"aliases": out})
}

func (s *Server) getAlias(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.aliases[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Could not find that `name`.")
		return
	}
	writeJSON(w, http.StatusOK, aliasView(name, target))
}

func (s *Server) deleteAlias(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.aliases[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Could not find that `name`.")
		return
	}
	delete(s.aliases, name)
	writeJSON(w, http.StatusOK, aliasView(name, target))
}
