package planner

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/predicate"
	"github.com/matthewbaird/filterspec/internal/schema"
	"github.com/matthewbaird/filterspec/internal/spec"
)

var (
	ErrUnknownEntity   = errors.New("planner: unknown entity")
	ErrUnknownField    = errors.New("planner: unknown field")
	ErrUnknownRelation = errors.New("planner: unknown relation")
	// ErrInvalidPath is returned for paths the builder cannot resolve, such
	// as a to-many relation followed by more than one attribute.
	ErrInvalidPath = errors.New("planner: invalid path")
	// ErrInvalidLiteral is returned when a literal does not fit the type of
	// the field it is compared with.
	ErrInvalidLiteral = errors.New("planner: invalid literal")
	ErrUnsupported    = errors.New("planner: unsupported statement")
)

// Planner transforms FQL statements into QueryPlans using the schema registry.
type Planner struct {
	registry *schema.Registry
}

// New creates a planner backed by the given schema registry.
func New(registry *schema.Registry) *Planner {
	return &Planner{registry: registry}
}

// PlanString parses input, which must hold one statement, and plans it.
func (p *Planner) PlanString(input string) (*QueryPlan, error) {
	stmt, err := fql.ParseOne(input)
	if err != nil {
		return nil, err
	}
	return p.Plan(stmt)
}

// Plan converts an FQL statement into a validated QueryPlan.
func (p *Planner) Plan(stmt fql.Statement) (*QueryPlan, error) {
	switch s := stmt.(type) {
	case *fql.FindStmt:
		return p.planFind(s)
	case *fql.CountStmt:
		return p.planCount(s)
	case *fql.MetaCmdStmt:
		return &QueryPlan{
			Type:        PlanMeta,
			MetaCommand: s.Command,
			MetaArgs:    s.Args,
			MetaRest:    s.Rest,
		}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%T", stmt)
	}
}

func (p *Planner) planFind(stmt *fql.FindStmt) (*QueryPlan, error) {
	es, err := p.resolveEntity(stmt.Entity)
	if err != nil {
		return nil, err
	}
	plan := &QueryPlan{Type: PlanFind, Entity: es.Name}

	if plan.Filter, err = p.buildFilter(es, stmt.Where); err != nil {
		return nil, err
	}
	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			name, err := p.resolveOrderField(es, item.Field)
			if err != nil {
				return nil, err
			}
			plan.OrderBy = append(plan.OrderBy, OrderSpec{Field: name, Desc: item.Desc})
		}
	}
	if stmt.Limit != nil {
		plan.Limit = stmt.Limit.Value
	}
	if stmt.Offset != nil {
		plan.Offset = stmt.Offset.Value
	}
	return plan, nil
}

func (p *Planner) planCount(stmt *fql.CountStmt) (*QueryPlan, error) {
	es, err := p.resolveEntity(stmt.Entity)
	if err != nil {
		return nil, err
	}
	f, err := p.buildFilter(es, stmt.Where)
	if err != nil {
		return nil, err
	}
	return &QueryPlan{Type: PlanCount, Entity: es.Name, Filter: f}, nil
}

// ── Filter building ─────────────────────────────────────────────────────────

func (p *Planner) buildFilter(es *schema.EntitySchema, where *fql.WhereClause) (*spec.Filter[schema.Row], error) {
	if where == nil {
		return nil, nil
	}
	b, err := spec.Of[schema.Row](spec.WithNamer(spec.SequentialNamer("fql")))
	if err != nil {
		return nil, err
	}
	for _, term := range where.Terms {
		switch term.Conn {
		case fql.ConnAnd:
			b.And()
		case fql.ConnOr:
			b.Or()
		}
		if err := p.addClause(b, es, term.Clause); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func (p *Planner) addClause(b *spec.Builder[schema.Row], es *schema.EntitySchema, c fql.Clause) error {
	switch c := c.(type) {
	case *fql.ComparisonClause:
		return p.addComparison(b, es, c)

	case *fql.LikeClause:
		t, err := p.resolveField(es, c.Field)
		if err != nil {
			return err
		}
		opts := t.opts()
		if c.CaseSensitive {
			opts = append(opts, spec.CaseSensitive())
		}
		b.Like(t.path, c.Value.Raw, opts...)
		return nil

	case *fql.NullClause:
		t, err := p.resolvePath(es, c.Field)
		if err != nil {
			return err
		}
		if c.Not {
			b.IsNotNull(t.path, t.opts()...)
		} else {
			b.IsNull(t.path, t.opts()...)
		}
		return nil

	case *fql.InClause:
		t, err := p.resolveField(es, c.Field)
		if err != nil {
			return err
		}
		values := make([]any, 0, len(c.Values))
		for _, lit := range c.Values {
			v, err := coerceLiteral(lit, t.field)
			if err != nil {
				return errors.Wrapf(err, "field '%s'", c.Field)
			}
			values = append(values, v)
		}
		b.In(t.path, values, t.opts()...)
		return nil

	case *fql.JoinClause:
		e := es.Edge(c.Relation)
		if e == nil {
			return p.unknownRelation(es, c.Relation)
		}
		if c.Fetch {
			b.JoinFetch(e.Name, joinKind(c.Type))
		} else {
			b.Join(e.Name, joinKind(c.Type))
		}
		return nil

	case *fql.CallClause:
		paths := make([]string, len(c.Fields))
		for i, fr := range c.Fields {
			t, err := p.resolveField(es, fr)
			if err != nil {
				return err
			}
			paths[i] = t.path
		}
		args := make([]any, len(c.Args))
		for i, lit := range c.Args {
			v, err := coerceLiteral(lit, nil)
			if err != nil {
				return errors.Wrapf(err, "%s argument %d", c.Func, i+1)
			}
			args[i] = v
		}
		b.CustomFunction(c.Func, paths, args...)
		return nil
	}
	return errors.AssertionFailedf("unhandled clause %T", c)
}

func (p *Planner) addComparison(b *spec.Builder[schema.Row], es *schema.EntitySchema, c *fql.ComparisonClause) error {
	t, err := p.resolveField(es, c.Field)
	if err != nil {
		return err
	}
	v, err := coerceLiteral(c.Value, t.field)
	if err != nil {
		return errors.Wrapf(err, "field '%s'", c.Field)
	}

	switch c.Op {
	case fql.CompEQ:
		if v == nil {
			b.IsNull(t.path, t.opts()...)
		} else {
			b.Equals(t.path, v, t.opts()...)
		}
		return nil
	case fql.CompNEQ:
		if v == nil {
			b.IsNotNull(t.path, t.opts()...)
			return nil
		}
		path, kind := t.path, t.kind
		b.Custom(func(q spec.Query) (predicate.Predicate, error) {
			resolved, err := spec.Resolve(q, path, kind)
			if err != nil {
				return nil, err
			}
			return predicate.Not(&predicate.Eq{Path: resolved, Value: v}), nil
		})
		return nil
	}

	if !t.field.Type.Comparable() {
		return errors.Wrapf(ErrInvalidLiteral, "field '%s' (type %s) does not support operator %s",
			c.Field, t.field.Type, c.Op)
	}
	if v == nil {
		return errors.Wrapf(ErrInvalidLiteral, "field '%s': operator %s needs a value, got null", c.Field, c.Op)
	}
	switch c.Op {
	case fql.CompLT:
		b.LessThan(t.path, v, t.opts()...)
	case fql.CompLTE:
		b.LessThanOrEqualTo(t.path, v, t.opts()...)
	case fql.CompGT:
		b.GreaterThan(t.path, v, t.opts()...)
	case fql.CompGTE:
		b.GreaterThanOrEqualTo(t.path, v, t.opts()...)
	}
	return nil
}

func joinKind(t fql.JoinType) spec.JoinKind {
	switch t {
	case fql.JoinLeft:
		return spec.LeftJoin
	case fql.JoinRight:
		return spec.RightJoin
	default:
		return spec.InnerJoin
	}
}

// ── Resolution helpers ──────────────────────────────────────────────────────

// target is a path checked against the registry.
type target struct {
	path  string
	kind  spec.RelationKind
	field *schema.FieldMeta // nil when the path ends at an edge
	edge  *schema.EdgeMeta
}

func (t target) opts() []spec.Option {
	switch t.kind {
	case spec.RelationToOne:
		return []spec.Option{spec.ToOne()}
	case spec.RelationToMany:
		return []spec.Option{spec.ToMany()}
	}
	return nil
}

// resolvePath walks fr through the registry. The first segment's edge
// decides the relation kind: unique edges resolve as to-one chains of any
// depth, other edges as to-many "relation.attribute" paths.
func (p *Planner) resolvePath(es *schema.EntitySchema, fr fql.FieldRef) (target, error) {
	t := target{path: fr.String()}
	cur := es
	for i, part := range fr.Parts {
		if i == len(fr.Parts)-1 {
			switch {
			case cur.Field(part) != nil:
				t.field = cur.Field(part)
			case part == cur.ID:
				t.field = &schema.FieldMeta{Name: cur.ID, Column: cur.ID, Type: schema.FieldInt64}
			case cur.Edge(part) != nil:
				t.edge = cur.Edge(part)
			default:
				return target{}, errors.WithHint(
					errors.Wrapf(ErrUnknownField, "unknown field '%s' on entity '%s'", part, cur.Name),
					hint(part, cur.Names()),
				)
			}
			return t, nil
		}

		e := cur.Edge(part)
		if e == nil {
			if cur.Field(part) != nil || part == cur.ID {
				return target{}, errors.Wrapf(ErrInvalidPath, "'%s' is a field of '%s', not a relation", part, cur.Name)
			}
			return target{}, p.unknownRelation(cur, part)
		}
		switch {
		case i == 0 && e.Unique():
			t.kind = spec.RelationToOne
		case i == 0:
			t.kind = spec.RelationToMany
		case t.kind == spec.RelationToMany:
			return target{}, errors.WithHint(
				errors.Wrapf(ErrInvalidPath, "'%s' crosses to-many relation '%s'", fr, fr.Parts[0]),
				"to-many paths must be written as relation.attribute",
			)
		case !e.Unique():
			return target{}, errors.WithHint(
				errors.Wrapf(ErrInvalidPath, "'%s' reaches to-many relation '%s' through '%s'", fr, part, fr.Parts[0]),
				"start the path at the to-many relation",
			)
		}
		cur = p.registry.Entity(e.Target)
		if cur == nil {
			return target{}, errors.Wrapf(ErrUnknownEntity, "edge '%s' targets unknown entity '%s'", e.Name, e.Target)
		}
	}
	return t, nil
}

// resolveField is resolvePath for terms that need a field, not an edge.
func (p *Planner) resolveField(es *schema.EntitySchema, fr fql.FieldRef) (target, error) {
	t, err := p.resolvePath(es, fr)
	if err != nil {
		return target{}, err
	}
	if t.field == nil {
		return target{}, errors.WithHint(
			errors.Wrapf(ErrInvalidPath, "'%s' is a relation", fr),
			fmt.Sprintf("compare one of its fields, e.g. '%s.<field>', or test it with 'is null'", fr),
		)
	}
	return t, nil
}

func (p *Planner) resolveOrderField(es *schema.EntitySchema, fr fql.FieldRef) (string, error) {
	if len(fr.Parts) != 1 {
		return "", errors.Wrapf(ErrInvalidPath, "order by '%s': only fields of '%s' can be ordered on", fr, es.Name)
	}
	name := fr.Parts[0]
	if _, ok := es.Column(name); ok {
		return name, nil
	}
	return "", errors.WithHint(
		errors.Wrapf(ErrUnknownField, "unknown field '%s' on entity '%s'", name, es.Name),
		hint(name, es.FieldOrder),
	)
}

func (p *Planner) resolveEntity(name string) (*schema.EntitySchema, error) {
	if es := p.registry.Entity(name); es != nil {
		return es, nil
	}
	return nil, errors.WithHint(
		errors.Wrapf(ErrUnknownEntity, "unknown entity '%s'", name),
		hint(name, p.registry.EntityNames()),
	)
}

func (p *Planner) unknownRelation(es *schema.EntitySchema, name string) error {
	return errors.WithHint(
		errors.Wrapf(ErrUnknownRelation, "unknown relation '%s' on entity '%s'", name, es.Name),
		hint(name, es.EdgeOrder),
	)
}

// hint suggests the closest candidate or lists them all.
func hint(name string, candidates []string) string {
	if s := schema.SuggestFrom(name, candidates, 3); s != "" {
		return fmt.Sprintf("did you mean '%s'?", s)
	}
	if len(candidates) == 0 {
		return ""
	}
	return fmt.Sprintf("valid names: %v", candidates)
}
