package handler

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/fql"
)

// ErrInvalidDocument is returned for filter documents that are malformed.
var ErrInvalidDocument = errors.New("handler: invalid filter document")

// QueryDocument is the JSON form of a find or count statement. Its terms
// mean exactly what the corresponding FQL where-terms mean.
//
//	{
//	  "where": [
//	    {"op": "gt", "path": "age", "value": 30},
//	    {"group": "or", "op": "eq", "path": "status", "value": "ACTIVE"},
//	    {"op": "is_null", "path": "email"}
//	  ],
//	  "order_by": [{"field": "name", "desc": true}],
//	  "limit": 10
//	}
type QueryDocument struct {
	Where   []TermDocument  `json:"where,omitempty"`
	OrderBy []OrderDocument `json:"order_by,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// TermDocument is one where-term. Group switches the group this and the
// following terms are added to; when omitted the previous group stays
// active, starting with "and".
type TermDocument struct {
	Group    string   `json:"group,omitempty"`
	Op       string   `json:"op"`
	Path     string   `json:"path,omitempty"`
	Value    any      `json:"value,omitempty"`
	Values   []any    `json:"values,omitempty"`
	Join     string   `json:"join,omitempty"`
	Function string   `json:"function,omitempty"`
	Paths    []string `json:"paths,omitempty"`
}

// OrderDocument sorts by one root field.
type OrderDocument struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

var compOps = map[string]fql.CompOp{
	"eq":  fql.CompEQ,
	"ne":  fql.CompNEQ,
	"gt":  fql.CompGT,
	"gte": fql.CompGTE,
	"lt":  fql.CompLT,
	"lte": fql.CompLTE,
}

// findStatement converts the document into the statement FQL would parse.
func (d *QueryDocument) findStatement(entity string) (*fql.FindStmt, error) {
	if d.Limit < 0 || d.Offset < 0 {
		return nil, errors.Wrap(ErrInvalidDocument, "limit and offset must not be negative")
	}
	where, err := d.where()
	if err != nil {
		return nil, err
	}
	stmt := &fql.FindStmt{Entity: strings.ToLower(entity), Where: where}
	if len(d.OrderBy) > 0 {
		stmt.OrderBy = &fql.OrderByClause{}
		for i, o := range d.OrderBy {
			if o.Field == "" {
				return nil, errors.Wrapf(ErrInvalidDocument, "order_by[%d]: field is required", i)
			}
			stmt.OrderBy.Items = append(stmt.OrderBy.Items, fql.OrderItem{Field: fieldRef(o.Field), Desc: o.Desc})
		}
	}
	if d.Limit > 0 {
		stmt.Limit = &fql.LimitClause{Value: d.Limit}
	}
	if d.Offset > 0 {
		stmt.Offset = &fql.OffsetClause{Value: d.Offset}
	}
	return stmt, nil
}

// countStatement converts the document into a count statement. Ordering
// and paging are rejected.
func (d *QueryDocument) countStatement(entity string) (*fql.CountStmt, error) {
	if len(d.OrderBy) > 0 || d.Limit != 0 || d.Offset != 0 {
		return nil, errors.Wrap(ErrInvalidDocument, "count takes no order_by, limit or offset")
	}
	where, err := d.where()
	if err != nil {
		return nil, err
	}
	return &fql.CountStmt{Entity: strings.ToLower(entity), Where: where}, nil
}

func (d *QueryDocument) where() (*fql.WhereClause, error) {
	if len(d.Where) == 0 {
		return nil, nil
	}
	w := &fql.WhereClause{}
	for i := range d.Where {
		term, err := d.Where[i].term()
		if err != nil {
			return nil, errors.Wrapf(err, "where[%d]", i)
		}
		w.Terms = append(w.Terms, term)
	}
	return w, nil
}

func (t *TermDocument) term() (fql.Term, error) {
	var term fql.Term
	switch strings.ToLower(t.Group) {
	case "":
	case "and":
		term.Conn = fql.ConnAnd
	case "or":
		term.Conn = fql.ConnOr
	default:
		return term, errors.Wrapf(ErrInvalidDocument, "unknown group %q", t.Group)
	}
	c, err := t.clause()
	term.Clause = c
	return term, err
}

func (t *TermDocument) clause() (fql.Clause, error) {
	op := strings.ToLower(t.Op)
	if cop, ok := compOps[op]; ok {
		field, err := t.field()
		if err != nil {
			return nil, err
		}
		lit, err := literal(t.Value)
		if err != nil {
			return nil, err
		}
		return &fql.ComparisonClause{Field: field, Op: cop, Value: lit}, nil
	}

	switch op {
	case "like", "ilike", "like_cs":
		field, err := t.field()
		if err != nil {
			return nil, err
		}
		s, ok := t.Value.(string)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidDocument, "%s needs a string value", op)
		}
		return &fql.LikeClause{Field: field, Value: fql.Literal{Type: fql.LitString, Raw: s}, CaseSensitive: op == "like_cs"}, nil

	case "is_null", "is_not_null":
		field, err := t.field()
		if err != nil {
			return nil, err
		}
		return &fql.NullClause{Field: field, Not: op == "is_not_null"}, nil

	case "in":
		field, err := t.field()
		if err != nil {
			return nil, err
		}
		if t.Values == nil {
			return nil, errors.Wrap(ErrInvalidDocument, "in needs values")
		}
		lits, err := literals(t.Values)
		if err != nil {
			return nil, err
		}
		return &fql.InClause{Field: field, Values: lits}, nil

	case "join", "fetch":
		if t.Path == "" {
			return nil, errors.Wrapf(ErrInvalidDocument, "%s needs a path", op)
		}
		jt, err := joinType(t.Join)
		if err != nil {
			return nil, err
		}
		return &fql.JoinClause{Type: jt, Relation: strings.ToLower(t.Path), Fetch: op == "fetch"}, nil

	case "call":
		if t.Function == "" || len(t.Paths) == 0 {
			return nil, errors.Wrap(ErrInvalidDocument, "call needs a function and paths")
		}
		c := &fql.CallClause{Func: strings.ToLower(t.Function)}
		for _, p := range t.Paths {
			c.Fields = append(c.Fields, fieldRef(p))
		}
		args, err := literals(t.Values)
		if err != nil {
			return nil, err
		}
		c.Args = args
		return c, nil

	case "":
		return nil, errors.Wrap(ErrInvalidDocument, "op is required")
	default:
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidDocument, "unknown op %q", t.Op),
			"valid ops: eq, ne, gt, gte, lt, lte, like, ilike, like_cs, is_null, is_not_null, in, join, fetch, call",
		)
	}
}

func (t *TermDocument) field() (fql.FieldRef, error) {
	if t.Path == "" {
		return fql.FieldRef{}, errors.Wrapf(ErrInvalidDocument, "%s needs a path", t.Op)
	}
	return fieldRef(t.Path), nil
}

func fieldRef(path string) fql.FieldRef {
	return fql.FieldRef{Parts: strings.Split(strings.ToLower(path), ".")}
}

func joinType(s string) (fql.JoinType, error) {
	switch strings.ToLower(s) {
	case "", "inner":
		return fql.JoinInner, nil
	case "left":
		return fql.JoinLeft, nil
	case "right":
		return fql.JoinRight, nil
	}
	return 0, errors.Wrapf(ErrInvalidDocument, "unknown join type %q", s)
}

// literal converts a decoded JSON value into the literal FQL would read.
func literal(v any) (fql.Literal, error) {
	switch v := v.(type) {
	case nil:
		return fql.Literal{Type: fql.LitNull, Raw: "null"}, nil
	case string:
		return fql.Literal{Type: fql.LitString, Raw: v}, nil
	case bool:
		if v {
			return fql.Literal{Type: fql.LitBool, Raw: "true"}, nil
		}
		return fql.Literal{Type: fql.LitBool, Raw: "false"}, nil
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return fql.Literal{Type: fql.LitInt, Raw: v.String()}, nil
		}
		if _, err := v.Float64(); err == nil {
			return fql.Literal{Type: fql.LitFloat, Raw: v.String()}, nil
		}
		return fql.Literal{}, errors.Wrapf(ErrInvalidDocument, "invalid number %s", v)
	default:
		return fql.Literal{}, errors.Wrapf(ErrInvalidDocument, "unsupported value of type %T", v)
	}
}

func literals(vs []any) ([]fql.Literal, error) {
	out := make([]fql.Literal, 0, len(vs))
	for _, v := range vs {
		lit, err := literal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
	return out, nil
}
