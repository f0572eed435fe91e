package spec

import (
	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// Filter is a compiled filter over entities of type E: a deferred predicate
// plus the parameter groups its function calls bind. A nil *Filter matches
// everything. Filters are immutable and may be applied to any number of
// queries.
type Filter[E any] struct {
	apply  PredicateFunc
	params []ParamGroup
}

// Where wraps fn as a filter without parameters.
func Where[E any](fn PredicateFunc) *Filter[E] {
	if fn == nil {
		return nil
	}
	return &Filter[E]{apply: fn}
}

// Apply produces the predicate for q, adding any joins the filter needs.
// A nil predicate means no restriction.
func (f *Filter[E]) Apply(q Query) (predicate.Predicate, error) {
	if f == nil || f.apply == nil {
		return nil, nil
	}
	return f.apply(q)
}

// Params returns the parameter groups in declaration order.
func (f *Filter[E]) Params() []ParamGroup {
	if f == nil {
		return nil
	}
	return f.params
}

// HasParams reports whether any function call bound parameters.
func (f *Filter[E]) HasParams() bool {
	for _, g := range f.Params() {
		if len(g) > 0 {
			return true
		}
	}
	return false
}

// Bindings flattens the parameter groups into one name to value map.
func (f *Filter[E]) Bindings() (map[string]any, error) {
	out := make(map[string]any)
	for _, g := range f.Params() {
		for name, v := range g {
			if _, dup := out[name]; dup {
				return nil, errors.Wrapf(ErrParamCollision, "parameter %q", name)
			}
			out[name] = v
		}
	}
	return out, nil
}

// Or matches rows matched by either filter. A nil side is ignored, so
// combining with the match-everything filter leaves the other unchanged.
func (f *Filter[E]) Or(other *Filter[E]) *Filter[E] {
	return f.merge(other, predicate.Or)
}

// And matches rows matched by both filters.
func (f *Filter[E]) And(other *Filter[E]) *Filter[E] {
	return f.merge(other, predicate.And)
}

// Not matches rows the filter does not. The negation of the nil filter
// matches nothing.
func (f *Filter[E]) Not() *Filter[E] {
	return &Filter[E]{
		apply: func(q Query) (predicate.Predicate, error) {
			p, err := f.Apply(q)
			if err != nil {
				return nil, err
			}
			return predicate.Not(p), nil
		},
		params: f.Params(),
	}
}

func (f *Filter[E]) merge(other *Filter[E], op func(...predicate.Predicate) predicate.Predicate) *Filter[E] {
	if f == nil {
		return other
	}
	if other == nil {
		return f
	}
	params := make([]ParamGroup, 0, len(f.params)+len(other.params))
	params = append(append(params, f.params...), other.params...)
	return &Filter[E]{
		apply: func(q Query) (predicate.Predicate, error) {
			left, err := f.Apply(q)
			if err != nil {
				return nil, err
			}
			right, err := other.Apply(q)
			if err != nil {
				return nil, err
			}
			return op(left, right), nil
		},
		params: params,
	}
}
