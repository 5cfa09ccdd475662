// Package filter builds filter_by expressions from structured conditions.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// specialChars force a value into backticks. Values never contain a backtick.
const specialChars = " ,&|()[]:"

// Expression is a conjunction of must and must-not conditions.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	for _, c := range mustNot {
		if c.IsRange() {
			return Expression{}, fmt.Errorf("range on %q cannot be negated, invert its bounds instead", c.key)
		}
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// String renders the expression in filter_by syntax, clauses joined by " && ".
func (e Expression) String() string {
	clauses := make([]string, 0, len(e.must)+len(e.mustNot))
	for _, c := range e.must {
		clauses = append(clauses, c.render("="))
	}
	for _, c := range e.mustNot {
		clauses = append(clauses, c.render("!="))
	}
	return strings.Join(clauses, " && ")
}

// Condition is a single filter clause: a value match or a numeric range.
type Condition struct {
	key       string
	values    []string
	rangeExpr *Range
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	if strings.Contains(match, "`") {
		return Condition{}, fmt.Errorf("match value for key %q cannot contain a backtick", key)
	}
	return Condition{key: key, values: []string{match}}, nil
}

// NewIn creates a condition matching any of values.
func NewIn(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value in list for key %q", key)
		}
		if strings.Contains(v, "`") {
			return Condition{}, fmt.Errorf("value %q for key %q cannot contain a backtick", v, key)
		}
	}
	return Condition{key: key, values: values}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the match values.
func (c Condition) Values() []string { return c.values }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return len(c.values) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

func (c Condition) render(op string) string {
	if c.rangeExpr != nil {
		return c.rangeExpr.render(c.key)
	}
	if len(c.values) == 1 {
		return c.key + ":" + op + quote(c.values[0])
	}
	quoted := make([]string, len(c.values))
	for i, v := range c.values {
		quoted[i] = quote(v)
	}
	return c.key + ":" + op + "[" + strings.Join(quoted, ", ") + "]"
}

func quote(v string) string {
	if strings.ContainsAny(v, specialChars) {
		return "`" + v + "`"
	}
	return v
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, errors.New("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, errors.New("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, errors.New("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

func (r Range) render(key string) string {
	var parts []string
	bound := func(op string, v *float64) {
		if v != nil {
			parts = append(parts, key+":"+op+strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	bound(">", r.gt)
	bound(">=", r.gte)
	bound("<", r.lt)
	bound("<=", r.lte)
	return strings.Join(parts, " && ")
}
