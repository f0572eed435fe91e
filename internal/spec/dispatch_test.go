package spec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		kind      RelationKind
		wantIdent string
		wantJoins []string
		wantErr   error
	}{
		{name: "none keeps dots", path: "address.city", kind: RelationNone, wantIdent: "root.address.city"},
		{name: "to-one without dots", path: "name", kind: RelationToOne, wantIdent: "root.name"},
		{name: "to-one two segments", path: "company.name", kind: RelationToOne,
			wantIdent: "j1.name", wantJoins: []string{"LEFT root.company AS j1"}},
		{name: "to-one four segments", path: "company.address.geo.lat", kind: RelationToOne,
			wantIdent: "j1.address.geo.lat", wantJoins: []string{"LEFT root.company AS j1"}},
		{name: "to-many", path: "orders.total", kind: RelationToMany,
			wantIdent: "j1.total", wantJoins: []string{"LEFT root.orders AS j1"}},
		{name: "to-many one segment", path: "orders", kind: RelationToMany, wantErr: ErrMalformedPath},
		{name: "to-many three segments", path: "orders.items.sku", kind: RelationToMany, wantErr: ErrMalformedPath},
		{name: "to-many empty", path: "", kind: RelationToMany, wantErr: ErrMalformedPath},
		{name: "to-many empty attribute", path: "orders.", kind: RelationToMany, wantErr: ErrMalformedPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQuery(false)
			p, err := Resolve(q, tt.path, tt.kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, q.joins, "a rejected path performs no join")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIdent, p.Ident())
			assert.Equal(t, tt.wantJoins, q.joins)
		})
	}
}

func TestDispatch_JoinFetchOnCountMatchesJoin(t *testing.T) {
	joinQ := newFakeQuery(true)
	p, err := Dispatch(NewCriterion("orders", Join{Type: LeftJoin}), joinQ)
	require.NoError(t, err)
	assert.Nil(t, p)

	fetchQ := newFakeQuery(true)
	p, err = Dispatch(NewCriterion("orders", JoinFetch{Type: LeftJoin}), fetchQ)
	require.NoError(t, err)
	assert.Nil(t, p)

	assert.Equal(t, joinQ.joins, fetchQ.joins)
	assert.Empty(t, fetchQ.fetches)
	assert.False(t, fetchQ.distinct)
}

func TestDispatch_JoinFetchMarksDistinct(t *testing.T) {
	q := newFakeQuery(false)
	p, err := Dispatch(NewCriterion("orders", JoinFetch{Type: InnerJoin}), q)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, []string{"INNER root.orders"}, q.fetches)
	assert.True(t, q.distinct)
	assert.Empty(t, q.joins)
}

func TestDispatch_Like(t *testing.T) {
	q := newFakeQuery(false)

	p, err := Dispatch(NewCriterion("name", Like{Value: "AnN"}), q)
	require.NoError(t, err)
	assert.Equal(t, &predicate.Like{Path: fakePath{"root.name"}, Pattern: "%ann%", Fold: true}, p)

	p, err = Dispatch(NewCriterion("name", Like{Value: "AnN"}, CaseSensitive()), q)
	require.NoError(t, err)
	assert.Equal(t, &predicate.Like{Path: fakePath{"root.name"}, Pattern: "%AnN%"}, p)

	p, err = Dispatch(NewCriterion("code", LikeIgnoreCase{Value: 42}), q)
	require.NoError(t, err)
	assert.Equal(t, &predicate.Like{Path: fakePath{"root.code"}, Pattern: "%42%", Fold: true}, p)
}

func TestDispatch_CompareTypes(t *testing.T) {
	intType := reflect.TypeFor[int]()
	int64Type := reflect.TypeFor[int64]()
	floatType := reflect.TypeFor[float64]()
	uintType := reflect.TypeFor[uint8]()

	tests := []struct {
		name    string
		op      Compare
		want    any
		wantErr bool
	}{
		{name: "no tag", op: Compare{Op: predicate.LT, Value: 3}, wantErr: true},
		{name: "matching tag", op: Compare{Op: predicate.LT, Value: 3, Type: intType}, want: 3},
		{name: "int widens", op: Compare{Op: predicate.GT, Value: 3, Type: int64Type}, want: int64(3)},
		{name: "int to float", op: Compare{Op: predicate.GT, Value: 3, Type: floatType}, want: 3.0},
		{name: "float to int", op: Compare{Op: predicate.GT, Value: 3.5, Type: intType}, wantErr: true},
		{name: "negative to unsigned", op: Compare{Op: predicate.GT, Value: -1, Type: uintType}, wantErr: true},
		{name: "overflow", op: Compare{Op: predicate.GT, Value: 300, Type: uintType}, wantErr: true},
		{name: "string vs int", op: Compare{Op: predicate.GTE, Value: "3", Type: intType}, wantErr: true},
		{name: "nil value", op: Compare{Op: predicate.LTE, Type: intType}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQuery(false)
			p, err := Dispatch(NewCriterion("age", tt.op), q)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			cmp, ok := p.(*predicate.Cmp)
			require.True(t, ok)
			assert.Equal(t, tt.op.Op, cmp.Op)
			assert.Equal(t, tt.want, cmp.Value)
		})
	}
}

func TestDispatch_Nullity(t *testing.T) {
	q := newFakeQuery(false)
	p, err := Dispatch(NewCriterion("company.name", IsNull{}, ToOne()), q)
	require.NoError(t, err)
	assert.Equal(t, "j1.name IS NULL", p.String())

	p, err = Dispatch(NewCriterion("deletedAt", IsNotNull{}), q)
	require.NoError(t, err)
	assert.Equal(t, "root.deletedAt IS NOT NULL", p.String())
}

func TestFunctionPredicate(t *testing.T) {
	q := newFakeQuery(false)
	p, err := FunctionPredicate(q, "MATCH_KEYWORD", []string{"name", "company.name"}, []string{"k0_0"})
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH_KEYWORD(root.name, :k0_0) = TRUE OR MATCH_KEYWORD(j1.name, :k0_0) = TRUE",
		p.String(),
	)
	assert.Equal(t, []string{"LEFT root.company AS j1"}, q.joins)
}

func TestNamers(t *testing.T) {
	seq := SequentialNamer("kw")
	assert.Equal(t, "kw0_0", seq(0, 0))
	assert.Equal(t, "kw3_1", seq(3, 1))

	random := RandomNamer()
	a, b := random(0, 0), random(0, 0)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^fn0_[0-9a-f]{8}_0$`, a)
}

func TestOperationKinds(t *testing.T) {
	ops := []Operation{
		Join{}, JoinFetch{}, Equal{}, Like{}, LikeIgnoreCase{}, IsNull{}, IsNotNull{}, In{},
		Compare{Op: predicate.LT}, Compare{Op: predicate.LTE}, Compare{Op: predicate.GT}, Compare{Op: predicate.GTE},
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Kind().String())
	}
	assert.Equal(t, []string{
		"JOIN", "JOIN_FETCH", "EQUAL", "LIKE", "LIKE_IGNORE_CASE", "IS_NULL", "IS_NOT_NULL", "IN",
		"LESS_THAN", "LESS_THAN_OR_EQUAL_TO", "GREATER_THAN", "GREATER_THAN_OR_EQUAL_TO",
	}, names)
}
