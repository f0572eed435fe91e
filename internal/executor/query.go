package executor

import (
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/predicate"
	"github.com/matthewbaird/filterspec/internal/schema"
	"github.com/matthewbaird/filterspec/internal/spec"
)

// query implements spec.Query over an ent selector. The root table is
// aliased t0 and joined tables t1, t2, ... in join order.
type query struct {
	registry *schema.Registry
	sel      *entsql.Selector
	root     *node
	count    bool
	distinct bool
	fetches  []fetch
	aliases  int
}

// fetch is an edge of the root entity to load with the result rows.
type fetch struct {
	edge *schema.EdgeMeta
	kind spec.JoinKind
}

// node is one table in the FROM clause, the root or a joined relation.
type node struct {
	q      *query
	entity *schema.EntitySchema
	table  *entsql.SelectTable
	joins  map[joinKey]*node
}

type joinKey struct {
	edge string
	kind spec.JoinKind
}

func newQuery(dialect string, registry *schema.Registry, es *schema.EntitySchema, count bool) *query {
	b := entsql.Dialect(dialect)
	q := &query{registry: registry, count: count}
	t := b.Table(es.Table).As("t0")
	q.root = &node{q: q, entity: es, table: t, joins: make(map[joinKey]*node)}
	q.sel = b.Select().From(t)
	return q
}

func (q *query) Get(name string) (predicate.Path, error) { return q.root.Get(name) }

func (q *query) Join(relation string, kind spec.JoinKind) (spec.Source, error) {
	return q.root.Join(relation, kind)
}

func (q *query) Fetch(relation string, kind spec.JoinKind) error {
	e := q.root.entity.Edge(relation)
	if e == nil {
		return errors.Wrapf(ErrUnknownRelation, "%s.%s", q.root.entity.Name, relation)
	}
	if _, err := q.root.join(e, kind); err != nil {
		return err
	}
	for _, f := range q.fetches {
		if f.edge == e {
			return nil
		}
	}
	q.fetches = append(q.fetches, fetch{edge: e, kind: kind})
	return nil
}

func (q *query) Distinct()     { q.distinct = true }
func (q *query) IsCount() bool { return q.count }

func (q *query) alias() string {
	q.aliases++
	return fmt.Sprintf("t%d", q.aliases)
}

// Get returns a column or, for edge names, a relation path.
func (n *node) Get(name string) (predicate.Path, error) {
	if col, ok := n.entity.Column(name); ok {
		return column{ident: n.table.C(col), name: n.entity.Name + "." + name}, nil
	}
	if e := n.entity.Edge(name); e != nil {
		return &relation{from: n, edge: e}, nil
	}
	return nil, errors.WithHint(
		errors.Wrapf(ErrUnknownField, "%s.%s", n.entity.Name, name),
		suggest(name, n.entity),
	)
}

func (n *node) Join(relation string, kind spec.JoinKind) (spec.Source, error) {
	e := n.entity.Edge(relation)
	if e == nil {
		return nil, errors.WithHint(
			errors.Wrapf(ErrUnknownRelation, "%s.%s", n.entity.Name, relation),
			suggest(relation, n.entity),
		)
	}
	return n.join(e, kind)
}

// join adds the SQL join for e once per edge and join kind.
func (n *node) join(e *schema.EdgeMeta, kind spec.JoinKind) (*node, error) {
	key := joinKey{edge: e.Name, kind: kind}
	if j, ok := n.joins[key]; ok {
		return j, nil
	}
	target := n.q.registry.Entity(e.Target)
	if target == nil {
		return nil, errors.Wrapf(ErrUnknownEntity, "%s.%s target %q", n.entity.Name, e.Name, e.Target)
	}

	t := entsql.Table(target.Table).As(n.q.alias())
	switch {
	case e.Cardinality == schema.M2M:
		through := entsql.Table(e.Through).As(n.q.alias())
		joinTable(n.q.sel, kind, through).On(n.table.C(n.entity.ID), through.C(e.ThroughColumns[0]))
		joinTable(n.q.sel, kind, t).On(through.C(e.ThroughColumns[1]), t.C(target.ID))
	case e.OwnsFK():
		joinTable(n.q.sel, kind, t).On(n.table.C(e.Column), t.C(target.ID))
	default:
		joinTable(n.q.sel, kind, t).On(n.table.C(n.entity.ID), t.C(e.Column))
	}

	j := &node{q: n.q, entity: target, table: t, joins: make(map[joinKey]*node)}
	n.joins[key] = j
	return j, nil
}

func joinTable(sel *entsql.Selector, kind spec.JoinKind, t *entsql.SelectTable) *entsql.Selector {
	switch kind {
	case spec.LeftJoin:
		return sel.LeftJoin(t)
	case spec.RightJoin:
		return sel.RightJoin(t)
	default:
		return sel.Join(t)
	}
}

// column is a qualified column reference.
type column struct {
	ident string
	name  string
}

func (c column) Get(name string) (predicate.Path, error) {
	return nil, errors.Wrapf(ErrNotRelation, "%s has no attribute %q", c.name, name)
}

func (c column) Ident() string { return c.ident }

// relation is an edge read as an attribute. Navigating into it left-joins
// the edge on first use.
type relation struct {
	from *node
	edge *schema.EdgeMeta
}

func (r *relation) Get(name string) (predicate.Path, error) {
	j, err := r.from.join(r.edge, spec.LeftJoin)
	if err != nil {
		return nil, err
	}
	return j.Get(name)
}

// Ident is the foreign key when the source owns it, otherwise the joined
// side's primary key, so IS NULL means "no related row".
func (r *relation) Ident() string {
	if r.edge.OwnsFK() {
		return r.from.table.C(r.edge.Column)
	}
	j, err := r.from.join(r.edge, spec.LeftJoin)
	if err != nil {
		return r.from.table.C(r.edge.Name)
	}
	return j.table.C(j.entity.ID)
}
