package spec

import (
	"cmp"
	"fmt"
	"reflect"
	"time"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// Criterion is one declarative filter intent: an attribute path, what to do
// with it, how the path crosses relations and which group it joins.
// Criteria are values; the With methods return modified copies.
type Criterion struct {
	path     string
	op       Operation
	relation RelationKind
	group    Group
}

// Option adjusts a criterion at construction.
type Option func(*Criterion)

// ToOne resolves the path through single-valued relations.
func ToOne() Option {
	return func(c *Criterion) { c.relation = RelationToOne }
}

// ToMany resolves the path across one multi-valued relation.
func ToMany() Option {
	return func(c *Criterion) { c.relation = RelationToMany }
}

// CaseSensitive turns off case folding for a Like criterion. It has no
// effect on other operations.
func CaseSensitive() Option {
	return func(c *Criterion) {
		if l, ok := c.op.(Like); ok {
			l.CaseSensitive = true
			c.op = l
		}
	}
}

// NewCriterion returns a criterion in the AND group.
func NewCriterion(path string, op Operation, opts ...Option) Criterion {
	c := Criterion{path: path, op: op}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Criterion) Path() string           { return c.path }
func (c Criterion) Op() Operation          { return c.op }
func (c Criterion) Relation() RelationKind { return c.relation }
func (c Criterion) Group() Group           { return c.group }

// WithGroup returns a copy of c assigned to g.
func (c Criterion) WithGroup(g Group) Criterion {
	c.group = g
	return c
}

// WithRelation returns a copy of c resolved with kind.
func (c Criterion) WithRelation(kind RelationKind) Criterion {
	c.relation = kind
	return c
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s %s %s [%s]", c.group, c.op.Kind(), c.path, c.relation)
}

// LessThan returns a criterion matching path < v.
func LessThan[C cmp.Ordered](path string, v C, opts ...Option) Criterion {
	return ordered(path, predicate.LT, v, opts)
}

// LessThanOrEqualTo returns a criterion matching path <= v.
func LessThanOrEqualTo[C cmp.Ordered](path string, v C, opts ...Option) Criterion {
	return ordered(path, predicate.LTE, v, opts)
}

// GreaterThan returns a criterion matching path > v.
func GreaterThan[C cmp.Ordered](path string, v C, opts ...Option) Criterion {
	return ordered(path, predicate.GT, v, opts)
}

// GreaterThanOrEqualTo returns a criterion matching path >= v.
func GreaterThanOrEqualTo[C cmp.Ordered](path string, v C, opts ...Option) Criterion {
	return ordered(path, predicate.GTE, v, opts)
}

func ordered[C cmp.Ordered](path string, op predicate.CompareOp, v C, opts []Option) Criterion {
	return NewCriterion(path, Compare{Op: op, Value: v, Type: reflect.TypeFor[C]()}, opts...)
}

var timeType = reflect.TypeFor[time.Time]()

// comparableType returns the comparable type tag for v, or nil when values
// of v's type have no natural order.
func comparableType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t == timeType {
		return t
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.String:
		return t
	}
	return nil
}
