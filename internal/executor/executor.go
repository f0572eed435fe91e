// Package executor runs compiled filters against a SQL database through
// ent's dialect/sql builder.
//
// The executor is the query engine the filter core talks to: it implements
// spec.Query over a selector whose tables and join conditions come from the
// schema registry, renders the resulting predicate tree, binds function
// parameters and scans the rows.
package executor

import (
	"context"
	"encoding/json"
	"reflect"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/filterspec/internal/predicate"
	"github.com/matthewbaird/filterspec/internal/schema"
	"github.com/matthewbaird/filterspec/internal/spec"
)

// Row is one result row keyed by field name. Fetched edges appear under the
// edge name as a Row (unique edges) or a []Row.
type Row = schema.Row

// Filter is a compiled filter. *spec.Filter[E] implements it for every E;
// a nil *spec.Filter matches everything.
type Filter interface {
	Apply(q spec.Query) (predicate.Predicate, error)
	Bindings() (map[string]any, error)
}

// Order sorts by one field.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// QueryOptions controls ordering and paging of find queries.
type QueryOptions struct {
	OrderBy []Order `json:"order_by,omitempty"`
	Limit   int     `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
}

// Result holds the output of a query execution.
type Result struct {
	Rows  []Row       `json:"rows,omitempty"`
	Count *int        `json:"count,omitempty"`
	Meta  *ResultMeta `json:"meta,omitempty"`
}

// ResultMeta provides metadata about the result.
type ResultMeta struct {
	Entity string `json:"entity"`
	Total  int    `json:"total"`
}

// Statement is a rendered query and its arguments.
type Statement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// Executor runs filters against the database behind drv.
type Executor struct {
	drv          dialect.Driver
	registry     *schema.Registry
	log          zerolog.Logger
	defaultLimit int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger statements are traced to at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(x *Executor) { x.log = l }
}

// WithDefaultLimit caps find queries that set no limit. Zero means no cap.
func WithDefaultLimit(n int) Option {
	return func(x *Executor) { x.defaultLimit = n }
}

// New creates an executor backed by the given driver and registry.
func New(drv dialect.Driver, registry *schema.Registry, opts ...Option) *Executor {
	x := &Executor{
		drv:      drv,
		registry: registry,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Registry returns the schema registry the executor resolves names in.
func (x *Executor) Registry() *schema.Registry { return x.registry }

// FindRows returns the rows of entity matched by f.
func (x *Executor) FindRows(ctx context.Context, entity string, f Filter, opts QueryOptions) ([]Row, error) {
	es := x.registry.Entity(entity)
	if es == nil {
		return nil, x.unknownEntity(entity)
	}
	q, stmt, err := x.find(es, f, opts)
	if err != nil {
		return nil, err
	}
	rows, err := x.queryRows(ctx, es, stmt, fieldNames(es))
	if err != nil {
		return nil, err
	}
	for _, fe := range q.fetches {
		if err := x.loadEdge(ctx, es, fe, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// CountRows returns the number of rows of entity matched by f.
func (x *Executor) CountRows(ctx context.Context, entity string, f Filter) (int, error) {
	es := x.registry.Entity(entity)
	if es == nil {
		return 0, x.unknownEntity(entity)
	}
	stmt, err := x.count(es, f)
	if err != nil {
		return 0, err
	}
	return x.queryCount(ctx, es, stmt)
}

// Explain renders the statement FindRows (or CountRows when count is set)
// would run, without running it.
func (x *Executor) Explain(entity string, f Filter, opts QueryOptions, count bool) (*Statement, error) {
	es := x.registry.Entity(entity)
	if es == nil {
		return nil, x.unknownEntity(entity)
	}
	if count {
		return x.count(es, f)
	}
	_, stmt, err := x.find(es, f, opts)
	return stmt, err
}

// Find returns the entities of type E matched by f, scanned with
// entsql.ScanSlice. E's Go type name selects the entity; fields map to
// columns through `sql` or `json` tags. Fetch joins keep the roots distinct
// but their edges are not loaded into E; use FindRows for eager edges.
func Find[E any](ctx context.Context, x *Executor, f *spec.Filter[E], opts QueryOptions) ([]E, error) {
	es := x.registry.EntityFor(reflect.TypeFor[E]())
	if es == nil {
		return nil, errors.Wrapf(ErrUnknownEntity, "no entity for Go type %s", reflect.TypeFor[E]())
	}
	_, stmt, err := x.find(es, f, opts)
	if err != nil {
		return nil, err
	}
	x.trace(es, stmt)

	var rows entsql.Rows
	if err := x.drv.Query(ctx, stmt.SQL, stmt.Args, &rows); err != nil {
		return nil, errors.Wrapf(err, "query %s", es.Name)
	}
	defer rows.Close()

	var out []E
	if err := entsql.ScanSlice(rows, &out); err != nil {
		return nil, errors.Wrapf(err, "scan %s", es.Name)
	}
	return out, nil
}

// Count returns the number of entities of type E matched by f.
func Count[E any](ctx context.Context, x *Executor, f *spec.Filter[E]) (int, error) {
	es := x.registry.EntityFor(reflect.TypeFor[E]())
	if es == nil {
		return 0, errors.Wrapf(ErrUnknownEntity, "no entity for Go type %s", reflect.TypeFor[E]())
	}
	stmt, err := x.count(es, f)
	if err != nil {
		return 0, err
	}
	return x.queryCount(ctx, es, stmt)
}

// find builds the select statement for es.
func (x *Executor) find(es *schema.EntitySchema, f Filter, opts QueryOptions) (*query, *Statement, error) {
	q := newQuery(x.drv.Dialect(), x.registry, es, false)
	if err := x.where(q, f); err != nil {
		return nil, nil, err
	}

	q.sel.Select(q.root.table.Columns(es.Columns()...)...)
	if q.distinct {
		q.sel.Distinct()
	}
	for _, o := range opts.OrderBy {
		col, ok := es.Column(o.Field)
		if !ok {
			return nil, nil, errors.WithHint(
				errors.Wrapf(ErrUnknownField, "order by %s.%s", es.Name, o.Field),
				suggest(o.Field, es),
			)
		}
		if o.Desc {
			q.sel.OrderBy(entsql.Desc(q.root.table.C(col)))
		} else {
			q.sel.OrderBy(q.root.table.C(col))
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = x.defaultLimit
	}
	if limit > 0 {
		q.sel.Limit(limit)
	}
	if opts.Offset > 0 {
		if limit <= 0 {
			q.sel.Limit(-1)
		}
		q.sel.Offset(opts.Offset)
	}

	sqlText, args := q.sel.Query()
	if err := q.sel.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "build %s query", es.Name)
	}
	return q, &Statement{SQL: sqlText, Args: args}, nil
}

// count builds the count statement for es. Queries a filter marked
// distinct count distinct primary keys.
func (x *Executor) count(es *schema.EntitySchema, f Filter) (*Statement, error) {
	q := newQuery(x.drv.Dialect(), x.registry, es, true)
	if err := x.where(q, f); err != nil {
		return nil, err
	}
	if q.distinct {
		q.sel.Select("COUNT(DISTINCT " + q.root.table.C(es.ID) + ")")
	} else {
		q.sel.Count()
	}
	sqlText, args := q.sel.Query()
	if err := q.sel.Err(); err != nil {
		return nil, errors.Wrapf(err, "build %s count", es.Name)
	}
	return &Statement{SQL: sqlText, Args: args}, nil
}

func (x *Executor) where(q *query, f Filter) error {
	if f == nil {
		return nil
	}
	p, err := f.Apply(q)
	if err != nil {
		return errors.Wrapf(err, "apply filter to %s", q.root.entity.Name)
	}
	bindings, err := f.Bindings()
	if err != nil {
		return err
	}
	r := &renderer{dialect: x.drv.Dialect(), bindings: bindings}
	pred, err := r.render(p)
	if err != nil {
		return err
	}
	if pred != nil {
		q.sel.Where(pred)
	}
	return nil
}

func (x *Executor) queryRows(ctx context.Context, es *schema.EntitySchema, stmt *Statement, names []string) ([]Row, error) {
	x.trace(es, stmt)
	var rows entsql.Rows
	if err := x.drv.Query(ctx, stmt.SQL, stmt.Args, &rows); err != nil {
		return nil, errors.Wrapf(err, "query %s", es.Name)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrapf(err, "scan %s", es.Name)
		}
		row := make(Row, len(names))
		for i, name := range names {
			row[name] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s rows", es.Name)
	}
	return out, nil
}

func (x *Executor) queryCount(ctx context.Context, es *schema.EntitySchema, stmt *Statement) (int, error) {
	x.trace(es, stmt)
	var rows entsql.Rows
	if err := x.drv.Query(ctx, stmt.SQL, stmt.Args, &rows); err != nil {
		return 0, errors.Wrapf(err, "count %s", es.Name)
	}
	defer rows.Close()
	n, err := entsql.ScanInt(rows)
	if err != nil {
		return 0, errors.Wrapf(err, "scan %s count", es.Name)
	}
	return n, nil
}

// loadEdge loads a fetched edge for rows with one joined query keyed by the
// owner's primary key.
func (x *Executor) loadEdge(ctx context.Context, es *schema.EntitySchema, fe fetch, rows []Row) error {
	target := x.registry.Entity(fe.edge.Target)
	empty := func(row Row) {
		if fe.edge.Unique() {
			row[fe.edge.Name] = nil
		} else {
			row[fe.edge.Name] = []Row{}
		}
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		empty(row)
		ids = append(ids, row[es.ID])
	}
	if len(ids) == 0 {
		return nil
	}

	q := newQuery(x.drv.Dialect(), x.registry, es, false)
	j, err := q.root.join(fe.edge, spec.InnerJoin)
	if err != nil {
		return err
	}
	cols := append([]string{q.root.table.C(es.ID)}, j.table.Columns(target.Columns()...)...)
	q.sel.Select(cols...).Where(entsql.In(q.root.table.C(es.ID), ids...)).OrderBy(q.root.table.C(es.ID))
	sqlText, args := q.sel.Query()
	if err := q.sel.Err(); err != nil {
		return errors.Wrapf(err, "build %s.%s load", es.Name, fe.edge.Name)
	}

	names := append([]string{ownerKey}, fieldNames(target)...)
	related, err := x.queryRows(ctx, target, &Statement{SQL: sqlText, Args: args}, names)
	if err != nil {
		return err
	}

	byOwner := make(map[string][]Row)
	for _, r := range related {
		owner := key(r[ownerKey])
		delete(r, ownerKey)
		byOwner[owner] = append(byOwner[owner], r)
	}
	for _, row := range rows {
		matched := byOwner[key(row[es.ID])]
		switch {
		case len(matched) == 0:
		case fe.edge.Unique():
			row[fe.edge.Name] = matched[0]
		default:
			row[fe.edge.Name] = matched
		}
	}
	return nil
}

func (x *Executor) trace(es *schema.EntitySchema, stmt *Statement) {
	x.log.Debug().
		Str("entity", es.Name).
		Str("sql", stmt.SQL).
		Interface("args", stmt.Args).
		Msg("query")
}

func (x *Executor) unknownEntity(name string) error {
	err := errors.Wrapf(ErrUnknownEntity, "%q", name)
	if s := schema.SuggestFrom(name, x.registry.EntityNames(), 2); s != "" {
		return errors.WithHint(err, "did you mean '"+s+"'?")
	}
	return err
}

// ownerKey carries the owning row's primary key through edge loading.
const ownerKey = "__owner"

// fieldNames lists the row keys matching es.Columns.
func fieldNames(es *schema.EntitySchema) []string {
	names := []string{es.ID}
	for _, name := range es.FieldOrder {
		if es.Fields[name].Column != es.ID {
			names = append(names, name)
		}
	}
	return names
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// key makes scanned primary keys comparable across queries.
func key(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
