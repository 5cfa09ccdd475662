package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// clause is one `field:<op><value>` condition of a filter_by expression.
type clause struct {
	field  string
	op     string
	values []string
}

// filter is a conjunction of clauses. A nil filter matches everything.
type filter []clause

// parseFilter supports `&&`-joined clauses with the operators
// `:`, `:=`, `:!=`, `:>`, `:>=`, `:<`, `:<=` and `[a, b]` value lists.
func parseFilter(s string) (filter, error) {
	var f filter
	for _, part := range strings.Split(s, "&&") {
		part = strings.TrimSpace(part)
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(part, "("), ")"))
		if part == "" {
			return nil, errors.New("empty clause")
		}
		field, rest, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("clause %q has no `:`", part)
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("clause %q has no field", part)
		}
		rest = strings.TrimSpace(rest)

		op := "="
		for _, candidate := range []string{"!=", ">=", "<=", ">", "<", "="} {
			if strings.HasPrefix(rest, candidate) {
				op = candidate
				rest = strings.TrimSpace(rest[len(candidate):])
				break
			}
		}
		values := []string{rest}
		if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
			values = nil
			for _, v := range strings.Split(rest[1:len(rest)-1], ",") {
				values = append(values, unquote(strings.TrimSpace(v)))
			}
		} else {
			values[0] = unquote(rest)
		}
		f = append(f, clause{field: field, op: op, values: values})
	}
	return f, nil
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '`' && v[len(v)-1] == '`' {
		return v[1 : len(v)-1]
	}
	return v
}

func (f filter) match(doc map[string]any) bool {
	for _, c := range f {
		if !c.match(doc[c.field]) {
			return false
		}
	}
	return true
}

func (c clause) match(v any) bool {
	if v == nil {
		return c.op == "!="
	}
	elems, isArray := v.([]any)
	if !isArray {
		elems = []any{v}
	}

	switch c.op {
	case "=":
		return anyElem(elems, func(e any) bool { return c.equals(e) })
	case "!=":
		return !anyElem(elems, func(e any) bool { return c.equals(e) })
	default:
		want, err := strconv.ParseFloat(c.values[0], 64)
		if err != nil {
			return false
		}
		return anyElem(elems, func(e any) bool {
			got, ok := toFloat(e)
			if !ok {
				return false
			}
			switch c.op {
			case ">":
				return got > want
			case ">=":
				return got >= want
			case "<":
				return got < want
			case "<=":
				return got <= want
			}
			return false
		})
	}
}

func (c clause) equals(e any) bool {
	s := stringify(e)
	for _, v := range c.values {
		if s == v {
			return true
		}
		if a, ok := toFloat(e); ok {
			if b, err := strconv.ParseFloat(v, 64); err == nil && a == b {
				return true
			}
		}
	}
	return false
}

func anyElem(elems []any, fn func(any) bool) bool {
	for _, e := range elems {
		if fn(e) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toVector(v any) ([]float64, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, e := range raw {
		f, ok := toFloat(e)
		if !ok || math.IsNaN(f) {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
