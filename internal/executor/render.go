package executor

import (
	"regexp"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/predicate"
	"github.com/matthewbaird/filterspec/internal/schema"
)

var funcName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// renderer turns a predicate tree into an ent predicate, binding function
// parameters by name.
type renderer struct {
	dialect  string
	bindings map[string]any
}

func (r *renderer) render(p predicate.Predicate) (*entsql.Predicate, error) {
	switch p := p.(type) {
	case nil:
		return nil, nil

	case *predicate.Eq:
		if p.Value == nil {
			return entsql.IsNull(p.Path.Ident()), nil
		}
		return entsql.EQ(p.Path.Ident(), p.Value), nil

	case *predicate.Like:
		ident := p.Path.Ident()
		if p.Fold {
			lower := "LOWER"
			if r.dialect == dialect.SQLite {
				lower = foldFunc
			}
			return entsql.P(func(b *entsql.Builder) {
				b.WriteString(lower + "(CAST(").Ident(ident).WriteString(" AS TEXT)) LIKE ").Arg(p.Pattern)
			}), nil
		}
		if r.dialect == dialect.SQLite {
			// LIKE folds ASCII case in SQLite; GLOB does not.
			return entsql.P(func(b *entsql.Builder) {
				b.WriteString("CAST(").Ident(ident).WriteString(" AS TEXT) GLOB ").Arg(likeToGlob(p.Pattern))
			}), nil
		}
		return entsql.P(func(b *entsql.Builder) {
			b.WriteString("CAST(").Ident(ident).WriteString(" AS TEXT) LIKE ").Arg(p.Pattern)
		}), nil

	case *predicate.IsNull:
		return entsql.IsNull(p.Path.Ident()), nil

	case *predicate.NotNull:
		return entsql.NotNull(p.Path.Ident()), nil

	case *predicate.In:
		if len(p.Values) == 0 {
			return entsql.False(), nil
		}
		return entsql.In(p.Path.Ident(), p.Values...), nil

	case *predicate.Cmp:
		ident := p.Path.Ident()
		switch p.Op {
		case predicate.LT:
			return entsql.LT(ident, p.Value), nil
		case predicate.LTE:
			return entsql.LTE(ident, p.Value), nil
		case predicate.GT:
			return entsql.GT(ident, p.Value), nil
		default:
			return entsql.GTE(ident, p.Value), nil
		}

	case *predicate.Call:
		if !funcName.MatchString(p.Func) {
			return nil, errors.Wrapf(ErrInvalidFunction, "%q", p.Func)
		}
		args := make([]any, len(p.Params))
		for i, name := range p.Params {
			v, ok := r.bindings[name]
			if !ok {
				return nil, errors.Wrapf(ErrMissingParam, "%s parameter %q", p.Func, name)
			}
			args[i] = v
		}
		ident := p.Path.Ident()
		return entsql.P(func(b *entsql.Builder) {
			b.WriteString(p.Func).WriteByte('(').Ident(ident)
			for _, a := range args {
				b.Comma().Arg(a)
			}
			b.WriteString(") = TRUE")
		}), nil

	case predicate.Never:
		return entsql.False(), nil

	case *predicate.Conjunction:
		ps, err := r.renderAll(p.Predicates)
		if err != nil {
			return nil, err
		}
		return entsql.And(ps...), nil

	case *predicate.Disjunction:
		ps, err := r.renderAll(p.Predicates)
		if err != nil {
			return nil, err
		}
		return entsql.Or(ps...), nil

	case *predicate.Negation:
		inner, err := r.render(p.Predicate)
		if err != nil {
			return nil, err
		}
		return entsql.Not(inner), nil
	}
	return nil, errors.AssertionFailedf("unhandled predicate %T", p)
}

func (r *renderer) renderAll(ps []predicate.Predicate) ([]*entsql.Predicate, error) {
	out := make([]*entsql.Predicate, 0, len(ps))
	for _, p := range ps {
		rp, err := r.render(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, nil
}

// likeToGlob rewrites a LIKE pattern as a GLOB pattern: % and _ become * and
// ?, and GLOB metacharacters in the literal text are bracketed.
func likeToGlob(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteByte('*')
		case '_':
			sb.WriteByte('?')
		case '*', '?', '[':
			sb.WriteByte('[')
			sb.WriteRune(r)
			sb.WriteByte(']')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// suggest builds the hint attached to unknown-name errors.
func suggest(name string, es *schema.EntitySchema) string {
	if s := schema.SuggestFrom(name, es.Names(), 2); s != "" {
		return "did you mean '" + s + "'?"
	}
	return "valid names on " + es.Name + ": " + strings.Join(es.Names(), ", ")
}
