package tsclient

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/tsclient/internal/domain/search/filter"
)

// FilterExpression is a set of conditions rendered into a filter_by string.
// Every Must condition has to hold and no MustNot condition may hold.
type FilterExpression struct {
	Must    []FilterCondition
	MustNot []FilterCondition
}

// FilterCondition is a single filter clause. Exactly one of Match, In and Range is set.
type FilterCondition struct {
	Key   string
	Match string       // exact value
	In    []string     // any of the values
	Range *RangeFilter // numeric range, Must only
}

// RangeFilter defines numeric range boundaries.
type RangeFilter struct {
	GT  *float64
	GTE *float64
	LT  *float64
	LTE *float64
}

// FilterBy validates the expression and renders it, e.g. "genre:=fantasy && year:>=1990".
func (e FilterExpression) FilterBy() (string, error) {
	must, err := toDomainConditions(e.Must)
	if err != nil {
		return "", err
	}
	mustNot, err := toDomainConditions(e.MustNot)
	if err != nil {
		return "", err
	}
	expr, err := filter.NewExpression(must, mustNot)
	if err != nil {
		return "", fmt.Errorf("filter: %w", err)
	}
	return expr.String(), nil
}

func toDomainConditions(conds []FilterCondition) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(conds))
	for _, c := range conds {
		dc, err := c.toDomain()
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", c.Key, err)
		}
		out = append(out, dc)
	}
	return out, nil
}

func (c FilterCondition) toDomain() (filter.Condition, error) {
	set := 0
	if c.Match != "" {
		set++
	}
	if len(c.In) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	if set != 1 {
		return filter.Condition{}, errors.New("exactly one of Match, In and Range must be set")
	}

	switch {
	case c.Range != nil:
		r, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
		if err != nil {
			return filter.Condition{}, err //nolint:wrapcheck // wrapped by the caller
		}
		return filter.NewRange(c.Key, r) //nolint:wrapcheck // wrapped by the caller
	case len(c.In) > 0:
		return filter.NewIn(c.Key, c.In...) //nolint:wrapcheck // wrapped by the caller
	default:
		return filter.NewMatch(c.Key, c.Match) //nolint:wrapcheck // wrapped by the caller
	}
}
