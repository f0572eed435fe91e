package spec

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// PredicateFunc produces a predicate against a query. Custom predicates and
// compiled filters both have this shape.
type PredicateFunc func(q Query) (predicate.Predicate, error)

// Builder accumulates criteria for filters over entities of type E.
//
// Each append is tagged with the active group, which starts as GroupAnd and
// is switched by And and Or for subsequent appends only. Criteria whose
// value is absent (nil, or a nil pointer, slice or map) are dropped.
// A Builder is not safe for concurrent use.
type Builder[E any] struct {
	entries []entry
	params  []ParamGroup
	group   Group
	calls   int
	namer   ParamNamer
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderConfig)

type builderConfig struct {
	namer ParamNamer
}

// WithNamer sets the namer used for function parameter placeholders.
func WithNamer(n ParamNamer) BuilderOption {
	return func(c *builderConfig) { c.namer = n }
}

// Of returns a builder for filters over E. E must be an entity type; numeric
// roots are rejected because they are the result shape of count queries.
func Of[E any](opts ...BuilderOption) (*Builder[E], error) {
	t := reflect.TypeFor[E]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil, errors.Wrapf(ErrScalarRoot, "root type %s", t)
	}
	cfg := builderConfig{namer: RandomNamer()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder[E]{namer: cfg.namer}, nil
}

// And makes subsequent appends join the AND group.
func (b *Builder[E]) And() *Builder[E] {
	b.group = GroupAnd
	return b
}

// Or makes subsequent appends join the OR group.
func (b *Builder[E]) Or() *Builder[E] {
	b.group = GroupOr
	return b
}

// Add appends c under the active group.
func (b *Builder[E]) Add(c Criterion) *Builder[E] {
	return b.AddTo(b.group, c)
}

// AddTo appends c under g regardless of the active group.
func (b *Builder[E]) AddTo(g Group, c Criterion) *Builder[E] {
	c = c.WithGroup(g)
	b.entries = append(b.entries, entry{group: g, criterion: &c})
	return b
}

// Join joins the relation named path.
func (b *Builder[E]) Join(path string, kind JoinKind) *Builder[E] {
	return b.Add(NewCriterion(path, Join{Type: kind}))
}

// JoinFetch joins the relation named path and loads it with the results.
// Count queries get a plain join.
func (b *Builder[E]) JoinFetch(path string, kind JoinKind) *Builder[E] {
	return b.Add(NewCriterion(path, JoinFetch{Type: kind}))
}

func (b *Builder[E]) Equals(path string, value any, opts ...Option) *Builder[E] {
	v, ok := present(value)
	if !ok {
		return b
	}
	return b.Add(NewCriterion(path, Equal{Value: v}, opts...))
}

// EqualsToOne is Equals across single-valued relations.
func (b *Builder[E]) EqualsToOne(path string, value any) *Builder[E] {
	return b.Equals(path, value, ToOne())
}

// EqualsToMany is Equals across one multi-valued relation.
func (b *Builder[E]) EqualsToMany(path string, value any) *Builder[E] {
	return b.Equals(path, value, ToMany())
}

// Like matches path against %value%, folding case unless the CaseSensitive
// option is given.
func (b *Builder[E]) Like(path string, value any, opts ...Option) *Builder[E] {
	v, ok := present(value)
	if !ok {
		return b
	}
	return b.Add(NewCriterion(path, Like{Value: v}, opts...))
}

func (b *Builder[E]) LikeIgnoreCase(path string, value any, opts ...Option) *Builder[E] {
	v, ok := present(value)
	if !ok {
		return b
	}
	return b.Add(NewCriterion(path, LikeIgnoreCase{Value: v}, opts...))
}

func (b *Builder[E]) IsNull(path string, opts ...Option) *Builder[E] {
	return b.Add(NewCriterion(path, IsNull{}, opts...))
}

func (b *Builder[E]) IsNotNull(path string, opts ...Option) *Builder[E] {
	return b.Add(NewCriterion(path, IsNotNull{}, opts...))
}

// In matches path against the elements of values, which may be a slice, an
// array or a single value. An empty collection matches nothing.
func (b *Builder[E]) In(path string, values any, opts ...Option) *Builder[E] {
	v, ok := present(values)
	if !ok {
		return b
	}
	return b.Add(NewCriterion(path, In{Values: flatten(v)}, opts...))
}

func (b *Builder[E]) LessThan(path string, value any, opts ...Option) *Builder[E] {
	return b.compare(path, predicate.LT, value, opts)
}

func (b *Builder[E]) LessThanOrEqualTo(path string, value any, opts ...Option) *Builder[E] {
	return b.compare(path, predicate.LTE, value, opts)
}

func (b *Builder[E]) GreaterThan(path string, value any, opts ...Option) *Builder[E] {
	return b.compare(path, predicate.GT, value, opts)
}

func (b *Builder[E]) GreaterThanOrEqualTo(path string, value any, opts ...Option) *Builder[E] {
	return b.compare(path, predicate.GTE, value, opts)
}

func (b *Builder[E]) compare(path string, op predicate.CompareOp, value any, opts []Option) *Builder[E] {
	v, ok := present(value)
	if !ok {
		return b
	}
	return b.Add(NewCriterion(path, Compare{Op: op, Value: v, Type: comparableType(v)}, opts...))
}

// Custom appends a caller-built predicate under the active group. A nil fn
// is ignored.
func (b *Builder[E]) Custom(fn PredicateFunc) *Builder[E] {
	if fn == nil {
		return b
	}
	b.entries = append(b.entries, entry{group: b.group, custom: fn})
	return b
}

// CustomFunction matches rows where fn(path, values...) is true for any of
// paths. The values are bound as named parameters recorded in the filter's
// parameter groups. A call without paths is ignored.
func (b *Builder[E]) CustomFunction(fn string, paths []string, values ...any) *Builder[E] {
	if len(paths) == 0 {
		return b
	}
	call := b.calls
	b.calls++

	names := make([]string, len(values))
	group := make(ParamGroup, len(values))
	for i, v := range values {
		names[i] = b.namer(call, i)
		group[names[i]] = v
	}
	b.params = append(b.params, group)

	paths = append([]string(nil), paths...)
	return b.Custom(func(q Query) (predicate.Predicate, error) {
		return FunctionPredicate(q, fn, paths, names)
	})
}

// Len returns the number of accumulated entries.
func (b *Builder[E]) Len() int { return len(b.entries) }

// Build compiles the accumulated entries into a filter. It returns nil, the
// match-everything filter, when nothing was added. The builder may be
// extended and built again; earlier filters are unaffected.
func (b *Builder[E]) Build() *Filter[E] {
	if len(b.entries) == 0 {
		return nil
	}
	entries := append([]entry(nil), b.entries...)
	return &Filter[E]{
		apply: func(q Query) (predicate.Predicate, error) {
			return combine(q, entries)
		},
		params: append([]ParamGroup(nil), b.params...),
	}
}

// present reports whether v carries a value, dereferencing pointers.
func present(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() {
		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface:
			if rv.IsNil() {
				return nil, false
			}
			rv = rv.Elem()
			continue
		case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if rv.IsNil() {
				return nil, false
			}
		}
		return rv.Interface(), true
	}
	return nil, false
}

func flatten(v any) []any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{v}
		}
		out := make([]any, 0, rv.Len())
		for i := range rv.Len() {
			if e, ok := present(rv.Index(i).Interface()); ok {
				out = append(out, e)
			}
		}
		return out
	}
	return []any{v}
}
