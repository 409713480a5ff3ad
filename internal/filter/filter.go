// Package filter provides a composable predicate evaluator over record
// metadata: eq, ne, exists, and, or. Filters are tagged expressions so they
// can be built programmatically or decoded from the JSON the HTTP API
// accepts for /search and /search/batch.
package filter

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned for a malformed filter expression, e.g. an
// unknown tag or a missing required field.
var ErrInvalid = errors.New("filter: invalid expression")

// Tag identifies the kind of a Filter node.
type Tag string

const (
	Eq     Tag = "eq"
	Ne     Tag = "ne"
	Exists Tag = "exists"
	And    Tag = "and"
	Or     Tag = "or"
)

// Filter is a tagged predicate expression. Exactly the fields relevant to
// its Tag are populated; see New* constructors below.
type Filter struct {
	Tag     Tag      `json:"op"`
	Field   string   `json:"field,omitempty"`
	Value   any      `json:"value,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
}

// NewEq builds an eq filter: true iff metadata[field] exists and equals value.
func NewEq(field string, value any) Filter { return Filter{Tag: Eq, Field: field, Value: value} }

// NewNe builds a ne filter: true iff metadata[field] exists and is not equal
// to value, OR metadata[field] is absent (see the Evaluate doc comment).
func NewNe(field string, value any) Filter { return Filter{Tag: Ne, Field: field, Value: value} }

// NewExists builds an exists filter: true iff the key is present.
func NewExists(field string) Filter { return Filter{Tag: Exists, Field: field} }

// NewAnd builds an and filter: true iff all children are true. An empty
// list of children evaluates to true.
func NewAnd(filters ...Filter) Filter { return Filter{Tag: And, Filters: filters} }

// NewOr builds an or filter: true iff any child is true. An empty list of
// children evaluates to false.
func NewOr(filters ...Filter) Filter { return Filter{Tag: Or, Filters: filters} }

// Validate checks that f and its descendants are well-formed: eq/ne carry
// a non-empty field, exists carries a non-empty field, and and/or carry
// only valid children. It does not evaluate anything.
func (f Filter) Validate() error {
	switch f.Tag {
	case Eq, Ne:
		if f.Field == "" {
			return fmt.Errorf("%w: %s requires a field", ErrInvalid, f.Tag)
		}
		return nil
	case Exists:
		if f.Field == "" {
			return fmt.Errorf("%w: exists requires a field", ErrInvalid)
		}
		return nil
	case And, Or:
		for i := range f.Filters {
			if err := f.Filters[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown tag %q", ErrInvalid, f.Tag)
	}
}

// Evaluate reports whether metadata satisfies f.
//
// Value equality is by type-exact match: string==string, integer==integer,
// float==float, bool==bool. Cross-type comparisons (e.g. an int field
// against a float literal of equal mathematical value) are false, even
// though Go's `==` on differently-typed `any` values already encodes this.
//
// ne on an absent key returns true. This mirrors "not found" the way a
// SQL NOT IN over a NULL-able column behaves in some engines, and is a
// deliberate, flagged choice (see DESIGN.md) rather than an oversight:
// absence is never treated as automatically satisfying eq, but it does
// satisfy its negation.
func Evaluate(f Filter, metadata map[string]any) (bool, error) {
	switch f.Tag {
	case Eq:
		v, ok := metadata[f.Field]
		if !ok {
			return false, nil
		}
		return v == f.Value, nil
	case Ne:
		v, ok := metadata[f.Field]
		if !ok {
			return true, nil
		}
		return v != f.Value, nil
	case Exists:
		_, ok := metadata[f.Field]
		return ok, nil
	case And:
		for i := range f.Filters {
			ok, err := Evaluate(f.Filters[i], metadata)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for i := range f.Filters {
			ok, err := Evaluate(f.Filters[i], metadata)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown tag %q", ErrInvalid, f.Tag)
	}
}
