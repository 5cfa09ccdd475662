package devserver

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

type curationKind struct {
	plural   string
	validate func(body map[string]any) *statusError
	set      func(c *collection) map[string]map[string]any
}

var (
	synonymKind = curationKind{
		plural: "synonyms",
		validate: func(body map[string]any) *statusError {
			syns, _ := body["synonyms"].([]any)
			if len(syns) == 0 {
				return errorf(http.StatusBadRequest, "Could not find an array of `synonyms`")
			}
			return nil
		},
		set: func(c *collection) map[string]map[string]any { return c.synonyms },
	}
	overrideKind = curationKind{
		plural: "overrides",
		validate: func(body map[string]any) *statusError {
			rule, _ := body["rule"].(map[string]any)
			if rule == nil {
				return errorf(http.StatusBadRequest, "Missing `rule` definition.")
			}
			_, hasQuery := rule["query"]
			_, hasFilter := rule["filter_by"]
			if !hasQuery && !hasFilter {
				return errorf(http.StatusBadRequest, "The `rule` definition must contain either a `tags` or a `query` and `match`.")
			}
			if hasQuery {
				if m, _ := rule["match"].(string); m != "exact" && m != "contains" {
					return errorf(http.StatusBadRequest, "The `rule.match` must be either `exact` or `contains`.")
				}
			}
			return nil
		},
		set: func(c *collection) map[string]map[string]any { return c.overrides },
	}
)

func (s *Server) listSynonyms(w http.ResponseWriter, r *http.Request)  { s.listCuration(w, r, synonymKind) }
func (s *Server) upsertSynonym(w http.ResponseWriter, r *http.Request) { s.upsertCuration(w, r, synonymKind) }
func (s *Server) getSynonym(w http.ResponseWriter, r *http.Request)    { s.getCuration(w, r, synonymKind) }
func (s *Server) deleteSynonym(w http.ResponseWriter, r *http.Request) { s.deleteCuration(w, r, synonymKind) }

func (s *Server) listOverrides(w http.ResponseWriter, r *http.Request)  { s.listCuration(w, r, overrideKind) }
func (s *Server) upsertOverride(w http.ResponseWriter, r *http.Request) { s.upsertCuration(w, r, overrideKind) }
func (s *Server) getOverride(w http.ResponseWriter, r *http.Request)    { s.getCuration(w, r, overrideKind) }
func (s *Server) deleteOverride(w http.ResponseWriter, r *http.Request) { s.deleteCuration(w, r, overrideKind) }

func (s *Server) listCuration(w http.ResponseWriter, r *http.Request, kind curationKind) {
	name := param(r, "collection")
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	items := kind.set(c)
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = items[id]
	}
	writeJSON(w, http.StatusOK, map[string]any{kind.plural: out})
}

func (s *Server) upsertCuration(w http.ResponseWriter, r *http.Request, kind curationKind) {
	name, id := param(r, "collection"), param(r, "id")
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}
	if serr := kind.validate(body); serr != nil {
		writeStatusError(w, serr)
		return
	}
	body["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	kind.set(c)[id] = body
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) getCuration(w http.ResponseWriter, r *http.Request, kind curationKind) {
	name, id := param(r, "collection"), param(r, "id")
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	item, ok := kind.set(c)[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Could not find that `id`.")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteCuration(w http.ResponseWriter, r *http.Request, kind curationKind) {
	name, id := param(r, "collection"), param(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.resolve(name)
	if !ok {
		notFoundCollection(w, name)
		return
	}
	items := kind.set(c)
	if _, ok := items[id]; !ok {
		writeError(w, http.StatusNotFound, "Could not find that `id`.")
		return
	}
	delete(items, id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// synonymsOf returns the alternatives of token. A synonym with a root is
// one-way (root expands to the list), otherwise every member expands to the rest.
func (c *collection) synonymsOf(token string) []string {
	var out []string
	for _, syn := range c.synonyms {
		members := lowerStrings(syn["synonyms"])
		if root, _ := syn["root"].(string); root != "" {
			if strings.EqualFold(root, token) {
				out = append(out, members...)
			}
			continue
		}
		if !contains(members, token) {
			continue
		}
		for _, m := range members {
			if m != token {
				out = append(out, m)
			}
		}
	}
	return out
}

// applyOverrides removes excluded ids and pins included ids at their positions
// for every override whose rule matches q.
func (c *collection) applyOverrides(q string, cands *[]candidate) {
	ids := make([]string, 0, len(c.overrides))
	for id := range c.overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		o := c.overrides[id]
		if !ruleMatches(o["rule"], q) {
			continue
		}
		drop := map[string]bool{}
		for _, e := range objects(o["excludes"]) {
			drop[stringify(e["id"])] = true
		}
		type pin struct {
			doc map[string]any
			pos int
		}
		var pins []pin
		for _, inc := range objects(o["includes"]) {
			docID := stringify(inc["id"])
			doc, ok := c.docs[docID]
			if !ok {
				continue
			}
			pos, _ := strconv.Atoi(stringify(inc["position"]))
			pins = append(pins, pin{doc: doc, pos: pos})
			drop[docID] = true
		}

		kept := (*cands)[:0]
		for _, cand := range *cands {
			if !drop[stringify(cand.doc["id"])] {
				kept = append(kept, cand)
			}
		}
		sort.SliceStable(pins, func(i, j int) bool { return pins[i].pos < pins[j].pos })
		for _, p := range pins {
			at := min(max(p.pos-1, 0), len(kept))
			kept = append(kept, candidate{})
			copy(kept[at+1:], kept[at:])
			kept[at] = candidate{doc: p.doc}
		}
		*cands = kept

		if stop, ok := o["stop_processing"].(bool); !ok || stop {
			return
		}
	}
}

func ruleMatches(raw any, q string) bool {
	rule, _ := raw.(map[string]any)
	query, _ := rule["query"].(string)
	if query == "" {
		return false
	}
	q, query = strings.ToLower(q), strings.ToLower(query)
	if rule["match"] == "exact" {
		return q == query
	}
	return strings.Contains(q, query)
}

func objects(v any) []map[string]any {
	arr, _ := v.([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func lowerStrings(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
