package predicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type col string

func (c col) Get(name string) (Path, error) { return col(string(c) + "." + name), nil }
func (c col) Ident() string                 { return string(c) }

func TestAndOr_NeutralAndFlatten(t *testing.T) {
	a := &Eq{Path: col("a"), Value: 1}
	b := &Eq{Path: col("b"), Value: 2}
	c := &Eq{Path: col("c"), Value: 3}

	assert.Nil(t, And())
	assert.Nil(t, Or(nil, nil))
	assert.Same(t, a, And(nil, a))
	assert.Same(t, a, Or(a, nil))

	and := And(And(a, b), c)
	assert.Equal(t, &Conjunction{Predicates: []Predicate{a, b, c}}, and)

	mixed := And(a, Or(b, c))
	assert.Equal(t, "a = 1 AND (b = 2 OR c = 3)", mixed.String())
}

func TestNot(t *testing.T) {
	a := &IsNull{Path: col("a")}
	assert.Equal(t, Never{}, Not(nil))
	assert.Nil(t, Not(Never{}))
	assert.Same(t, a, Not(Not(a)))
	assert.Equal(t, "NOT (a IS NULL)", Not(a).String())
}

func TestString(t *testing.T) {
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		p    Predicate
		want string
	}{
		{&Eq{Path: col("name"), Value: "O'Brien"}, "name = 'O''Brien'"},
		{&Eq{Path: col("name"), Value: nil}, "name = NULL"},
		{&Like{Path: col("name"), Pattern: "%a%", Fold: true}, "lower(name) LIKE '%a%'"},
		{&NotNull{Path: col("t.id")}, "t.id IS NOT NULL"},
		{&In{Path: col("n"), Values: []any{1, "x"}}, "n IN (1, 'x')"},
		{&Cmp{Path: col("at"), Op: LTE, Value: when}, "at <= '2025-03-01T12:00:00Z'"},
		{&Call{Func: "F", Path: col("x"), Params: []string{"p0", "p1"}}, "F(x, :p0, :p1) = TRUE"},
		{Never{}, "FALSE"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
}

func TestWalk(t *testing.T) {
	p := And(&Eq{Path: col("a")}, Not(Or(&IsNull{Path: col("b")}, &IsNull{Path: col("c")})))
	var n int
	Walk(p, func(Predicate) { n++ })
	assert.Equal(t, 6, n)
	Walk(nil, func(Predicate) { t.Fatal("walked nil") })
}
