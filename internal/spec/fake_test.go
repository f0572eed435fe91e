package spec

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

var errUnknownName = errors.New("unknown name")

// fakeQuery records the side effects a filter has on a query. Joined sides
// are aliased j1, j2, ... in join order.
type fakeQuery struct {
	root     *fakeSource
	count    bool
	joins    []string
	fetches  []string
	distinct bool
	unknown  map[string]bool
}

type fakeSource struct {
	q     *fakeQuery
	alias string
}

type fakePath struct{ ident string }

func newFakeQuery(count bool, unknown ...string) *fakeQuery {
	q := &fakeQuery{count: count, unknown: make(map[string]bool)}
	for _, name := range unknown {
		q.unknown[name] = true
	}
	q.root = &fakeSource{q: q, alias: "root"}
	return q
}

func (q *fakeQuery) Get(name string) (predicate.Path, error) { return q.root.Get(name) }

func (q *fakeQuery) Join(relation string, kind JoinKind) (Source, error) {
	return q.root.Join(relation, kind)
}

func (q *fakeQuery) Fetch(relation string, kind JoinKind) error {
	if q.unknown[relation] {
		return errUnknownName
	}
	q.fetches = append(q.fetches, fmt.Sprintf("%s root.%s", kind, relation))
	return nil
}

func (q *fakeQuery) Distinct()     { q.distinct = true }
func (q *fakeQuery) IsCount() bool { return q.count }

func (s *fakeSource) Get(name string) (predicate.Path, error) {
	if s.q.unknown[name] {
		return nil, errUnknownName
	}
	return fakePath{ident: s.alias + "." + name}, nil
}

func (s *fakeSource) Join(relation string, kind JoinKind) (Source, error) {
	if s.q.unknown[relation] {
		return nil, errUnknownName
	}
	alias := fmt.Sprintf("j%d", len(s.q.joins)+1)
	s.q.joins = append(s.q.joins, fmt.Sprintf("%s %s.%s AS %s", kind, s.alias, relation, alias))
	return &fakeSource{q: s.q, alias: alias}, nil
}

func (p fakePath) Get(name string) (predicate.Path, error) {
	return fakePath{ident: p.ident + "." + name}, nil
}

func (p fakePath) Ident() string { return p.ident }

type person struct {
	Name   string
	Status string
	Age    int
}

func newBuilder(t *testing.T) *Builder[person] {
	t.Helper()
	b, err := Of[person](WithNamer(SequentialNamer("p")))
	require.NoError(t, err)
	return b
}

func apply(t *testing.T, f *Filter[person], q *fakeQuery) predicate.Predicate {
	t.Helper()
	p, err := f.Apply(q)
	require.NoError(t, err)
	return p
}

// render prints the recorded query state for golden comparison.
func render(t *testing.T, f *Filter[person], q *fakeQuery) []byte {
	t.Helper()
	p := apply(t, f, q)

	var sb strings.Builder
	for _, j := range q.joins {
		fmt.Fprintf(&sb, "join  %s\n", j)
	}
	for _, j := range q.fetches {
		fmt.Fprintf(&sb, "fetch %s\n", j)
	}
	if q.distinct {
		sb.WriteString("distinct\n")
	}
	if p == nil {
		sb.WriteString("where <none>\n")
	} else {
		fmt.Fprintf(&sb, "where %s\n", p)
	}

	bindings, err := f.Bindings()
	require.NoError(t, err)
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "param %s = %s\n", name, predicate.FormatValue(bindings[name]))
	}
	return []byte(sb.String())
}

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
