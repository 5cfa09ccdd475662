package devserver

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/tsclient/internal/domain/search/vector"
)

const (
	defaultPerPage    = 10
	maxPerPage        = 250
	defaultGroupLimit = 3
	defaultFacetLimit = 10
)

type candidate struct {
	doc       map[string]any
	pos       int
	textMatch int64
	matched   []string
	distance  float64
	hasDist   bool
}

type searchRequest struct {
	q          string
	queryBy    []string
	filter     filter
	sortBy     []sortKey
	page       int
	perPage    int
	facetBy    []string
	facetLimit int
	groupBy    string
	groupLimit int
	proj       projection
	vq         *vector.Query
	threshold  float64
	hasThresh  bool
}

type sortKey struct {
	field string
	desc  bool
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	res, serr := s.runSearch(r.Context(), param(r, "collection"), r.URL.Query())
	if serr != nil {
		writeStatusError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) multiSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Searches []map[string]any `json:"searches"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Bad JSON.")
		return
	}
	common := r.URL.Query()

	results := make([]any, len(body.Searches))
	for i, entry := range body.Searches {
		params := url.Values{}
		for k, vs := range common {
			params[k] = append([]string(nil), vs...)
		}
		var coll string
		for k, v := range entry {
			if k == "collection" {
				coll = stringify(v)
				continue
			}
			params.Set(k, stringify(v))
		}
		if coll == "" {
			coll = params.Get("collection")
		}

		res, serr := s.runSearch(r.Context(), coll, params)
		if serr != nil {
			results[i] = map[string]any{"code": serr.status, "error": serr.msg}
			continue
		}
		results[i] = res
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) runSearch(ctx context.Context, name string, params url.Values) (map[string]any, *statusError) {
	start := time.Now()
	s.searches.Add(1)

	if sc, ok := scopeFrom(ctx); ok {
		if !sc.allows(name) {
			return nil, errorf(http.StatusUnauthorized, "Forbidden - a valid `x-typesense-api-key` header must be sent.")
		}
		params = sc.apply(params)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.resolve(name)
	if !ok {
		return nil, errorf(http.StatusNotFound, "Collection `%s` not found.", name)
	}
	req, serr := c.parseSearch(params)
	if serr != nil {
		return nil, serr
	}

	cands, serr := c.candidates(req)
	if serr != nil {
		return nil, serr
	}
	sortCandidates(cands, req)
	c.applyOverrides(req.q, &cands)

	res := map[string]any{
		"facet_counts":   facetCounts(cands, req),
		"out_of":         len(c.docs),
		"page":           req.page,
		"search_cutoff":  false,
		"search_time_ms": time.Since(start).Milliseconds(),
		"request_params": map[string]any{
			"collection_name": c.name,
			"per_page":        req.perPage,
			"q":               req.q,
		},
	}

	if req.groupBy != "" {
		groups := groupCandidates(cands, req)
		res["found"] = len(groups)
		res["found_docs"] = len(cands)
		res["grouped_hits"] = paginate(groups, req.page, req.perPage)
		return res, nil
	}

	page := paginate(cands, req.page, req.perPage)
	hits := make([]map[string]any, len(page))
	for i, cand := range page {
		hits[i] = req.hit(cand)
	}
	res["found"] = len(cands)
	res["hits"] = hits
	return res, nil
}

func (c *collection) parseSearch(params url.Values) (*searchRequest, *statusError) {
	req := &searchRequest{
		q:          strings.TrimSpace(params.Get("q")),
		page:       1,
		perPage:    defaultPerPage,
		facetLimit: defaultFacetLimit,
		groupLimit: defaultGroupLimit,
		proj:       newProjection(params.Get("include_fields"), params.Get("exclude_fields")),
		groupBy:    strings.TrimSpace(params.Get("group_by")),
	}

	if raw := params.Get("vector_query"); raw != "" {
		vq, err := vector.Parse(raw)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "Malformed vector query string: %v", err)
		}
		req.vq = &vq
		if t, ok := vq.Params()["distance_threshold"]; ok {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, errorf(http.StatusBadRequest, "Malformed vector query string: `distance_threshold` must be a float.")
			}
			req.threshold, req.hasThresh = f, true
		}
	}
	if req.q == "" {
		if req.vq == nil {
			return nil, errorf(http.StatusBadRequest, "Parameter `q` is required.")
		}
		req.q = "*"
	}

	for _, f := range splitCSV(params.Get("query_by")) {
		if _, ok := c.field(f); !ok && !c.dynamic() {
			return nil, errorf(http.StatusNotFound, "Could not find a field named `%s` in the schema.", f)
		}
		req.queryBy = append(req.queryBy, f)
	}
	if req.q != "*" && len(req.queryBy) == 0 {
		return nil, errorf(http.StatusBadRequest, "Parameter `query_by` is required.")
	}

	if raw := params.Get("filter_by"); raw != "" {
		f, err := parseFilter(raw)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "Could not parse the filter query: %v", err)
		}
		req.filter = f
	}

	for _, part := range splitCSV(params.Get("sort_by")) {
		field, dir, _ := strings.Cut(part, ":")
		req.sortBy = append(req.sortBy, sortKey{
			field: strings.TrimSpace(field),
			desc:  strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}

	var serr *statusError
	if req.page, serr = intParam(params, "page", req.page); serr != nil {
		return nil, serr
	}
	if req.perPage, serr = intParam(params, "per_page", req.perPage); serr != nil {
		return nil, serr
	}
	if req.page < 1 {
		req.page = 1
	}
	if req.perPage > maxPerPage {
		return nil, errorf(http.StatusUnprocessableEntity, "Only upto %d hits can be fetched per page.", maxPerPage)
	}
	if req.facetLimit, serr = intParam(params, "max_facet_values", req.facetLimit); serr != nil {
		return nil, serr
	}
	if req.groupLimit, serr = intParam(params, "group_limit", req.groupLimit); serr != nil {
		return nil, serr
	}
	req.facetBy = splitCSV(params.Get("facet_by"))
	return req, nil
}

func (c *collection) dynamic() bool {
	for _, f := range c.fields {
		if name, _ := f["name"].(string); strings.Contains(name, ".*") {
			return true
		}
	}
	return false
}

func intParam(params url.Values, name string, def int) (int, *statusError) {
	raw := params.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf(http.StatusBadRequest, "Parameter `%s` must be an unsigned integer.", name)
	}
	return n, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *collection) candidates(req *searchRequest) ([]candidate, *statusError) {
	var queryVec []float64
	var excludeID string
	if req.vq != nil {
		var serr *statusError
		queryVec, excludeID, serr = c.queryVector(*req.vq)
		if serr != nil {
			return nil, serr
		}
	}
	tokens := c.expandTokens(req.q)

	var out []candidate
	pos := 0
	c.each(func(doc map[string]any) {
		pos++
		if !req.filter.match(doc) {
			return
		}
		cand := candidate{doc: doc, pos: pos}
		if len(tokens) > 0 {
			cand.matched = matchTokens(doc, req.queryBy, tokens)
			if len(cand.matched) == 0 {
				return
			}
			cand.textMatch = int64(len(cand.matched)) << 16
		}
		if req.vq != nil {
			if doc["id"] == excludeID {
				return
			}
			vec, ok := toVector(doc[req.vq.FieldName()])
			if !ok || len(vec) != len(queryVec) {
				return
			}
			cand.distance, cand.hasDist = cosineDistance(queryVec, vec), true
			if req.hasThresh && cand.distance > req.threshold {
				return
			}
		}
		out = append(out, cand)
	})

	if req.vq != nil {
		if k, ok := req.vq.K(); ok && k >= 0 {
			sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
			if len(out) > k {
				out = out[:k]
			}
		}
	}
	return out, nil
}

// queryVector resolves the vector of vq and, for id queries, the id to exclude from hits.
func (c *collection) queryVector(vq vector.Query) ([]float64, string, *statusError) {
	field := vq.FieldName()
	f, ok := c.field(field)
	if !ok || f["type"] != "float[]" {
		return nil, "", errorf(http.StatusBadRequest, "Field `%s` does not have a vector query index.", field)
	}

	if id, ok := vq.ID(); ok {
		doc, found := c.docs[id]
		if !found {
			return nil, "", errorf(http.StatusBadRequest, "Document id referenced in vector query is not found.")
		}
		vec, ok := toVector(doc[field])
		if !ok {
			return nil, "", errorf(http.StatusBadRequest, "Document referenced in vector query does not have a valid vector.")
		}
		return vec, id, nil
	}

	raw := vq.Vector()
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	if dim, ok := toFloat(f["num_dim"]); ok && int(dim) != len(vec) {
		return nil, "", errorf(http.StatusBadRequest, "Query field `%s` must have %d dimensions.", field, int(dim))
	}
	return vec, "", nil
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// expandTokens lowercases the query into tokens, each with its synonym alternatives.
func (c *collection) expandTokens(q string) [][]string {
	if q == "*" || q == "" {
		return nil
	}
	var out [][]string
	for _, tok := range strings.Fields(strings.ToLower(q)) {
		out = append(out, append([]string{tok}, c.synonymsOf(tok)...))
	}
	return out
}

// matchTokens returns the query tokens found in any of fields.
func matchTokens(doc map[string]any, fields []string, tokens [][]string) []string {
	var matched []string
	for _, alts := range tokens {
	alternatives:
		for _, alt := range alts {
			for _, f := range fields {
				if fieldContains(doc[f], alt) {
					matched = append(matched, alt)
					break alternatives
				}
			}
		}
	}
	return matched
}

func fieldContains(v any, token string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), token)
	case []any:
		for _, e := range t {
			if fieldContains(e, token) {
				return true
			}
		}
	}
	return false
}

func sortCandidates(cands []candidate, req *searchRequest) {
	keys := req.sortBy
	if len(keys) == 0 {
		if req.vq != nil {
			keys = []sortKey{{field: "_vector_distance"}}
		} else {
			keys = []sortKey{{field: "_text_match", desc: true}}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareBy(cands[i], cands[j], k.field)
			if cmp == 0 {
				continue
			}
			if k.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareBy(a, b candidate, field string) int {
	switch field {
	case "_text_match":
		return compareFloat(float64(a.textMatch), float64(b.textMatch))
	case "_vector_distance":
		return compareFloat(a.distance, b.distance)
	}
	fa, okA := toFloat(a.doc[field])
	fb, okB := toFloat(b.doc[field])
	if okA && okB {
		return compareFloat(fa, fb)
	}
	return strings.Compare(stringify(a.doc[field]), stringify(b.doc[field]))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func paginate[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) || perPage <= 0 {
		return []T{}
	}
	end := min(start+perPage, len(items))
	return items[start:end]
}

func (req *searchRequest) hit(c candidate) map[string]any {
	h := map[string]any{
		"document":   req.proj.apply(c.doc),
		"highlights": highlights(c, req.queryBy),
		"text_match": c.textMatch,
	}
	if c.hasDist {
		h["vector_distance"] = c.distance
	}
	return h
}

func highlights(c candidate, fields []string) []map[string]any {
	out := []map[string]any{}
	if len(c.matched) == 0 {
		return out
	}
	for _, f := range fields {
		text, ok := c.doc[f].(string)
		if !ok {
			continue
		}
		var tokens []string
		snippet := text
		for _, tok := range c.matched {
			if idx := strings.Index(strings.ToLower(snippet), tok); idx >= 0 {
				orig := snippet[idx : idx+len(tok)]
				snippet = snippet[:idx] + "<mark>" + orig + "</mark>" + snippet[idx+len(tok):]
				tokens = append(tokens, orig)
			}
		}
		if len(tokens) > 0 {
			out = append(out, map[string]any{"field": f, "snippet": snippet, "matched_tokens": tokens})
		}
	}
	return out
}

func facetCounts(cands []candidate, req *searchRequest) []map[string]any {
	out := make([]map[string]any, 0, len(req.facetBy))
	for _, field := range req.facetBy {
		counts := map[string]int{}
		var order []string
		for _, c := range cands {
			values, isArray := c.doc[field].([]any)
			if !isArray {
				values = []any{c.doc[field]}
			}
			for _, v := range values {
				if v == nil {
					continue
				}
				key := stringify(v)
				if _, seen := counts[key]; !seen {
					order = append(order, key)
				}
				counts[key]++
			}
		}
		sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
		if len(order) > req.facetLimit {
			order = order[:req.facetLimit]
		}
		entries := make([]map[string]any, len(order))
		for i, v := range order {
			entries[i] = map[string]any{"value": v, "highlighted": v, "count": counts[v]}
		}
		out = append(out, map[string]any{
			"field_name": field,
			"counts":     entries,
			"sampled":    false,
			"stats":      map[string]any{"total_values": len(counts)},
		})
	}
	return out
}

func groupCandidates(cands []candidate, req *searchRequest) []map[string]any {
	type group struct {
		key  any
		hits []map[string]any
		size int
	}
	var groups []*group
	index := map[string]*group{}
	for _, c := range cands {
		v := c.doc[req.groupBy]
		k := stringify(v)
		g, ok := index[k]
		if !ok {
			g = &group{key: v}
			index[k] = g
			groups = append(groups, g)
		}
		g.size++
		if len(g.hits) < req.groupLimit {
			g.hits = append(g.hits, req.hit(c))
		}
	}
	out := make([]map[string]any, len(groups))
	for i, g := range groups {
		out[i] = map[string]any{"group_key": []any{g.key}, "hits": g.hits, "found": g.size}
	}
	return out
}
