package devserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// statusError is a handler failure with its HTTP status.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func errorf(status int, format string, args ...any) *statusError {
	return &statusError{status: status, msg: fmt.Sprintf(format, args...)}
}

func writeStatusError(w http.ResponseWriter, err *statusError) {
	writeError(w, err.status, err.msg)
}

const (
	actionCreate  = "create"
	actionUpsert  = "upsert"
	actionUpdate  = "update"
	actionEmplace = "emplace"
)

// write stores doc according to action and returns the stored document. Callers hold s.mu.
func (c *collection) write(doc map[string]any, action string) (map[string]any, *statusError) {
	if action == "" {
		action = actionCreate
	}
	switch action {
	case actionCreate, actionUpsert, actionUpdate, actionEmplace:
	default:
		return nil, errorf(http.StatusBadRequest, "Invalid action.")
	}

	id, serr := c.documentID(doc, action)
	if serr != nil {
		return nil, serr
	}
	existing, exists := c.docs[id]

	switch {
	case action == actionCreate && exists:
		return nil, errorf(http.StatusConflict, "A document with id %s already exists.", id)
	case action == actionUpdate && !exists:
		return nil, errorf(http.StatusNotFound, "Could not find a document with id: %s", id)
	case (action == actionUpdate || action == actionEmplace) && exists:
		merged := make(map[string]any, len(existing)+len(doc))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range doc {
			merged[k] = v
		}
		merged["id"] = id
		c.docs[id] = merged
		return merged, nil
	}

	if serr := c.validate(doc); serr != nil {
		return nil, serr
	}
	stored := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["id"] = id
	if _, given := doc["id"]; !given {
		c.nextID++
	}
	if !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = stored
	return stored, nil
}

func (c *collection) documentID(doc map[string]any, action string) (string, *statusError) {
	raw, ok := doc["id"]
	if ok {
		id, isString := raw.(string)
		if !isString {
			return "", errorf(http.StatusBadRequest, "Document's `id` field should be a string.")
		}
		return id, nil
	}
	if action == actionUpdate {
		return "", errorf(http.StatusBadRequest, "For update, the `id` key must be provided.")
	}
	for {
		id := strconv.Itoa(c.nextID)
		if _, taken := c.docs[id]; !taken {
			return id, nil
		}
		c.nextID++
	}
}

func (c *collection) validate(doc map[string]any) *statusError {
	for _, f := range c.fields {
		name, _ := f["name"].(string)
		if optional, _ := f["optional"].(bool); optional {
			continue
		}
		if strings.Contains(name, ".*") || f["type"] == "auto" || f["embed"] != nil || name == "id" {
			continue
		}
		if _, ok := doc[name]; !ok {
			return errorf(http.StatusBadRequest,
				"Field `%s` has been declared in the schema, but is not found in the document.", name)
		}
	}
	return nil
}

func (c *collection) remove(id string) {
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// each visits documents in insertion order.
func (c *collection) each(fn func(doc map[string]any)) {
	for _, id := range c.order {
		if d, ok := c.docs[id]; ok {
			fn(d)
		}
	}
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	var doc map[string]any
	if err := decodeBody(r, &doc); err != nil {
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
	stored, serr := c.write(doc, r.URL.Query().Get("action"))
	if serr != nil {
		writeStatusError(w, serr)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	name, id := param(r, "collection"), param(r, "id")
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	doc, ok := c.docs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Could not find a document with id: "+id)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) patchDocument(w http.ResponseWriter, r *http.Request) {
	name, id := param(r, "collection"), param(r, "id")
	var patch map[string]any
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}
	patch["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	stored, serr := c.write(patch, actionUpdate)
	if serr != nil {
		writeStatusError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	name, id := param(r, "collection"), param(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	doc, ok := c.docs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Could not find a document with id: "+id)
		return
	}
	c.remove(id)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) updateByFilter(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	f, serr := requiredFilter(r)
	if serr != nil {
		writeStatusError(w, serr)
		return
	}
	var patch map[string]any
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}
	delete(patch, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	updated := 0
	c.each(func(doc map[string]any) {
		if f.match(doc) {
			for k, v := range patch {
				doc[k] = v
			}
			updated++
		}
	})
	writeJSON(w, http.StatusOK, map[string]int{"num_updated": updated})
}

func (s *Server) deleteByFilter(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	f, serr := requiredFilter(r)
	if serr != nil {
		writeStatusError(w, serr)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	var ids []string
	c.each(func(doc map[string]any) {
		if f.match(doc) {
			ids = append(ids, doc["id"].(string))
		}
	})
	for _, id := range ids {
		c.remove(id)
	}
	writeJSON(w, http.StatusOK, map[string]int{"num_deleted": len(ids)})
}

func requiredFilter(r *http.Request) (filter, *statusError) {
	raw := r.URL.Query().Get("filter_by")
	if raw == "" {
		return nil, errorf(http.StatusBadRequest, "Parameter `filter_by` must be provided.")
	}
	f, err := parseFilter(raw)
	if err != nil {
		return nil, errorf(http.StatusBadRequest, "Could not parse the filter query: %v", err)
	}
	return f, nil
}

func (s *Server) importDocuments(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	q := r.URL.Query()
	action := q.Get("action")
	returnID := q.Get("return_id") == "true"

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		_ = enc.Encode(c.importLine(line, action, returnID))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bytes.TrimRight(out.Bytes(), "\n"))
}

func (c *collection) importLine(line []byte, action string, returnID bool) map[string]any {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return map[string]any{"success": false, "error": "Bad JSON.", "code": http.StatusBadRequest, "document": string(line)}
	}
	stored, serr := c.write(doc, action)
	if serr != nil {
		return map[string]any{"success": false, "error": serr.msg, "code": serr.status, "document": string(line)}
	}
	res := map[string]any{"success": true}
	if returnID {
		res["id"] = stored["id"]
	}
	return res
}

func (s *Server) exportDocuments(w http.ResponseWriter, r *http.Request) {
	name := param(r, "collection")
	q := r.URL.Query()

	var f filter
	if raw := q.Get("filter_by"); raw != "" {
		var err error
		if f, err = parseFilter(raw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Could not parse the filter query: %v", err))
			return
		}
	}
	proj := newProjection(q.Get("include_fields"), q.Get("exclude_fields"))

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	c.each(func(doc map[string]any) {
		if f.match(doc) {
			_ = enc.Encode(proj.apply(doc))
		}
	})
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bytes.TrimRight(out.Bytes(), "\n"))
}

// projection implements include_fields / exclude_fields.
type projection struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

func newProjection(include, exclude string) projection {
	return projection{include: fieldSet(include), exclude: fieldSet(exclude)}
}

func fieldSet(csv string) map[string]struct{} {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, f := range strings.Split(csv, ",") {
		if f = strings.TrimSpace(f); f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func (p projection) apply(doc map[string]any) map[string]any {
	if p.include == nil && p.exclude == nil {
		return doc
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if p.include != nil {
			if _, ok := p.include[k]; !ok {
				continue
			}
		}
		if _, ok := p.exclude[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}
