// Package predicate defines the predicate tree produced by the filter engine.
//
// Predicate is a sealed interface: only types in this package implement it,
// so renderers can switch over the node types exhaustively. Leaves reference
// attributes through Path values supplied by the query engine; the tree
// itself never holds column names or SQL.
//
// A nil Predicate is the neutral filter. The composition functions And and Or
// drop nil operands, so an empty conjunction or disjunction stays neutral.
package predicate

import (
	"fmt"
	"strings"
	"time"
)

// Path is an attribute reference produced by the query engine.
type Path interface {
	// Get navigates one step further into a nested attribute chain.
	Get(name string) (Path, error)
	// Ident returns the engine identifier used when rendering the path.
	Ident() string
}

// Predicate is one node of the predicate tree.
type Predicate interface {
	predicateNode()
	String() string
}

// CompareOp enumerates the ordering operators.
type CompareOp int

const (
	LT CompareOp = iota
	LTE
	GT
	GTE
)

// String returns the SQL-like operator symbol.
func (op CompareOp) String() string {
	switch op {
	case LT:
		return "<"
	case LTE:
		return "<="
	case GT:
		return ">"
	case GTE:
		return ">="
	default:
		return "?"
	}
}

// ── Leaves ──────────────────────────────────────────────────────────────────

// Eq is path = value.
type Eq struct {
	Path  Path
	Value any
}

// Like is a text pattern match. Pattern already carries its wildcards.
// Fold means both sides are compared lower-cased; Pattern is stored folded.
type Like struct {
	Path    Path
	Pattern string
	Fold    bool
}

// IsNull is path IS NULL.
type IsNull struct {
	Path Path
}

// NotNull is path IS NOT NULL.
type NotNull struct {
	Path Path
}

// In is set membership. An empty set matches nothing.
type In struct {
	Path   Path
	Values []any
}

// Cmp is an ordering comparison against a value of the path's comparable type.
type Cmp struct {
	Path  Path
	Op    CompareOp
	Value any
}

// Call invokes a named function with the path followed by one named
// placeholder per parameter, and holds when the function returns true.
// Values for Params are bound out of band by the executor.
type Call struct {
	Func   string
	Path   Path
	Params []string
}

// Never matches no rows.
type Never struct{}

func (*Eq) predicateNode()      {}
func (*Like) predicateNode()    {}
func (*IsNull) predicateNode()  {}
func (*NotNull) predicateNode() {}
func (*In) predicateNode()      {}
func (*Cmp) predicateNode()     {}
func (*Call) predicateNode()    {}
func (Never) predicateNode()    {}

// ── Composites ──────────────────────────────────────────────────────────────

// Conjunction holds when all of its operands hold.
type Conjunction struct {
	Predicates []Predicate
}

// Disjunction holds when any of its operands holds.
type Disjunction struct {
	Predicates []Predicate
}

// Negation holds when its operand does not.
type Negation struct {
	Predicate Predicate
}

func (*Conjunction) predicateNode() {}
func (*Disjunction) predicateNode() {}
func (*Negation) predicateNode()    {}

// And conjoins ps. Nil operands are dropped and nested conjunctions are
// flattened. It returns nil when nothing is left and the sole operand when
// only one is.
func And(ps ...Predicate) Predicate {
	var out []Predicate
	for _, p := range ps {
		switch p := p.(type) {
		case nil:
		case *Conjunction:
			out = append(out, p.Predicates...)
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return &Conjunction{Predicates: out}
}

// Or disjoins ps with the same nil and flattening rules as And.
func Or(ps ...Predicate) Predicate {
	var out []Predicate
	for _, p := range ps {
		switch p := p.(type) {
		case nil:
		case *Disjunction:
			out = append(out, p.Predicates...)
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return &Disjunction{Predicates: out}
}

// Not negates p. The negation of the neutral predicate is Never and the
// negation of Never is neutral.
func Not(p Predicate) Predicate {
	switch p := p.(type) {
	case nil:
		return Never{}
	case Never:
		return nil
	case *Negation:
		return p.Predicate
	}
	return &Negation{Predicate: p}
}

// Walk calls fn for p and every node below it, depth first.
func Walk(p Predicate, fn func(Predicate)) {
	if p == nil {
		return
	}
	fn(p)
	switch p := p.(type) {
	case *Conjunction:
		for _, c := range p.Predicates {
			Walk(c, fn)
		}
	case *Disjunction:
		for _, c := range p.Predicates {
			Walk(c, fn)
		}
	case *Negation:
		Walk(p.Predicate, fn)
	}
}

// ── Rendering ───────────────────────────────────────────────────────────────

func (p *Eq) String() string {
	return fmt.Sprintf("%s = %s", p.Path.Ident(), FormatValue(p.Value))
}

func (p *Like) String() string {
	if p.Fold {
		return fmt.Sprintf("lower(%s) LIKE %s", p.Path.Ident(), FormatValue(p.Pattern))
	}
	return fmt.Sprintf("%s LIKE %s", p.Path.Ident(), FormatValue(p.Pattern))
}

func (p *IsNull) String() string  { return p.Path.Ident() + " IS NULL" }
func (p *NotNull) String() string { return p.Path.Ident() + " IS NOT NULL" }

func (p *In) String() string {
	vals := make([]string, len(p.Values))
	for i, v := range p.Values {
		vals[i] = FormatValue(v)
	}
	return fmt.Sprintf("%s IN (%s)", p.Path.Ident(), strings.Join(vals, ", "))
}

func (p *Cmp) String() string {
	return fmt.Sprintf("%s %s %s", p.Path.Ident(), p.Op, FormatValue(p.Value))
}

func (p *Call) String() string {
	args := []string{p.Path.Ident()}
	for _, name := range p.Params {
		args = append(args, ":"+name)
	}
	return fmt.Sprintf("%s(%s) = TRUE", p.Func, strings.Join(args, ", "))
}

func (Never) String() string { return "FALSE" }

func (p *Conjunction) String() string { return joinOperands(p.Predicates, " AND ") }
func (p *Disjunction) String() string { return joinOperands(p.Predicates, " OR ") }

func (p *Negation) String() string { return "NOT (" + p.Predicate.String() + ")" }

func joinOperands(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		switch p.(type) {
		case *Conjunction, *Disjunction:
			parts[i] = "(" + p.String() + ")"
		default:
			parts[i] = p.String()
		}
	}
	return strings.Join(parts, sep)
}

// FormatValue renders a literal the way String shows it.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	default:
		return fmt.Sprint(v)
	}
}
