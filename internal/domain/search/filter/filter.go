// Package filter describes structured pre-filters pushed down to the vector index.
package filter

import (
	"fmt"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a must / should / must-not filter. Should conditions are OR-ed.
// The zero value matches everything.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	for name, group := range map[string][]Condition{"must": must, "should": should, "must_not": mustNot} {
		if len(group) > MaxConditionsPerGroup {
			return Expression{}, fmt.Errorf("too many %s conditions (max %d)", name, MaxConditionsPerGroup)
		}
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// And returns a copy of e with extra must conditions appended.
func (e Expression) And(conds ...Condition) Expression {
	must := make([]Condition, 0, len(e.must)+len(conds))
	must = append(must, e.must...)
	must = append(must, conds...)
	return Expression{must: must, should: e.should, mustNot: e.mustNot}
}

// Op is the comparison a condition performs.
type Op int

const (
	// OpMatch is an exact, case-insensitive tag match.
	OpMatch Op = iota
	// OpContains is a case-insensitive substring match on a tag field.
	OpContains
	// OpRange is a numeric range.
	OpRange
)

// Condition is a single filter clause.
type Condition struct {
	key       string
	op        Op
	value     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, value string) (Condition, error) {
	if err := checkKeyValue(key, value); err != nil {
		return Condition{}, err
	}
	return Condition{key: key, op: OpMatch, value: value}, nil
}

// NewContains creates a substring condition on a tag field.
func NewContains(key, value string) (Condition, error) {
	if err := checkKeyValue(key, value); err != nil {
		return Condition{}, err
	}
	return Condition{key: key, op: OpContains, value: value}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, op: OpRange, rangeExpr: &r}, nil
}

func checkKeyValue(key, value string) error {
	if key == "" {
		return fmt.Errorf("filter key is required")
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value is required for key %q", key)
	}
	return nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Op returns the comparison kind.
func (c Condition) Op() Op { return c.op }

// Value returns the match or substring value.
func (c Condition) Value() string { return c.value }

// Range returns the numeric range expression, nil for tag conditions.
func (c Condition) Range() *Range { return c.rangeExpr }

// Range is a numeric range with optional inclusive bounds.
type Range struct {
	gte *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range. At least one bound is required.
func NewRangeFilter(gte, lte *float64) (Range, error) {
	if gte == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gte != nil && lte != nil && *gte > *lte {
		return Range{}, fmt.Errorf("lower bound %g exceeds upper bound %g", *gte, *lte)
	}
	return Range{gte: gte, lte: lte}, nil
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
