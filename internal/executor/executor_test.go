package executor

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/filterspec/internal/executor/executortest"
	"github.com/matthewbaird/filterspec/internal/planner"
	"github.com/matthewbaird/filterspec/internal/predicate"
	"github.com/matthewbaird/filterspec/internal/schema"
	"github.com/matthewbaird/filterspec/internal/schema/schematest"
	"github.com/matthewbaird/filterspec/internal/spec"
)

// testExecutor returns an executor over a seeded in-memory database.
func testExecutor(t *testing.T) *Executor {
	t.Helper()
	require.NoError(t, RegisterFunctions())

	return New(executortest.Driver(t), schematest.Registry(t))
}

func people(t *testing.T) *spec.Builder[schema.Row] {
	t.Helper()
	b, err := spec.Of[schema.Row]()
	require.NoError(t, err)
	return b
}

func ids(rows []Row) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["id"].(int64))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestFindRows(t *testing.T) {
	x := testExecutor(t)
	ctx := context.Background()
	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		entity string
		filter *spec.Filter[schema.Row]
		want   []int64
	}{
		{"neutral", "person", nil, []int64{1, 2, 3, 4, 5}},
		{"equals", "person", people(t).Equals("status", "ACTIVE").Build(), []int64{1, 3}},
		{"split across groups", "person",
			people(t).Equals("status", "ACTIVE").Or().Equals("status", "PENDING").Build(), nil},
		{"or group", "person",
			people(t).Or().Equals("status", "ACTIVE").Equals("status", "PENDING").Build(), []int64{1, 2, 3, 5}},
		{"and plus or", "person",
			people(t).GreaterThan("age", 30).Or().Equals("status", "ACTIVE").Equals("status", "INACTIVE").Build(), []int64{1, 3}},
		{"to-one", "person", people(t).EqualsToOne("company.city", "Oslo").Build(), []int64{1, 4}},
		{"to-one chain", "purchase", people(t).EqualsToOne("person.company.name", "Acme").Build(), []int64{1, 2, 4}},
		{"to-many", "person", people(t).EqualsToMany("orders.status", "OPEN").Build(), []int64{1, 2}},
		{"many-to-many", "person", people(t).EqualsToMany("tags.label", "go").Build(), []int64{1, 4}},
		{"like folds case", "person", people(t).Like("name", "AN").Build(), []int64{1, 4}},
		{"like case sensitive", "person", people(t).Like("name", "An", spec.CaseSensitive()).Build(), []int64{1}},
		{"like ignore case", "person", people(t).LikeIgnoreCase("email", "ACME").Build(), []int64{1, 4}},
		{"is null", "person", people(t).IsNull("email").Build(), []int64{2, 5}},
		{"fk not null", "person", people(t).IsNotNull("company").Build(), []int64{1, 2, 4, 5}},
		{"no related row", "person", people(t).IsNull("profile").Build(), []int64{2, 4, 5}},
		{"in", "person", people(t).In("status", []string{"INACTIVE", "PENDING"}).Build(), []int64{2, 4, 5}},
		{"in empty", "person", people(t).In("status", []string{}).Build(), nil},
		{"range", "person", people(t).GreaterThan("age", 30).LessThanOrEqualTo("age", 45).Build(), []int64{1, 3}},
		{"time", "person", people(t).GreaterThanOrEqualTo("created_at", march).Build(), []int64{3, 4, 5}},
		{"float", "purchase", people(t).LessThan("total", 20).Build(), []int64{1, 4}},
		{"match keyword", "person",
			people(t).CustomFunction("MATCH_KEYWORD", []string{"name", "bio"}, "abc").Build(), []int64{2, 5}},
		{"match keyword on relation", "person",
			people(t).CustomFunction("MATCH_KEYWORD", []string{"company.name"}, "glob", "init").Build(), []int64{2, 5}},
		{"combined filters", "person",
			people(t).CustomFunction("MATCH_KEYWORD", []string{"bio"}, "abc").Build().
				Or(people(t).CustomFunction("MATCH_KEYWORD", []string{"bio"}, "databases").Build()),
			[]int64{1, 2}},
		{"negated", "person", people(t).Equals("status", "ACTIVE").Build().Not(), []int64{2, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := x.FindRows(ctx, tt.entity, tt.filter, QueryOptions{})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, rows)
				return
			}
			assert.Equal(t, tt.want, ids(rows))
		})
	}
}

func TestFindRows_Fetch(t *testing.T) {
	x := testExecutor(t)
	f := people(t).
		JoinFetch("orders", spec.LeftJoin).
		JoinFetch("company", spec.LeftJoin).
		JoinFetch("tags", spec.LeftJoin).
		In("id", []int{1, 3}).
		Build()

	rows, err := x.FindRows(context.Background(), "person", f, QueryOptions{OrderBy: []Order{{Field: "id"}}})
	require.NoError(t, err)
	require.Len(t, rows, 2, "fetch joins must not duplicate root rows")

	ann, cara := rows[0], rows[1]
	assert.Equal(t, "Ann", ann["name"])
	require.Len(t, ann["orders"], 2)
	assert.Equal(t, "Acme", ann["company"].(Row)["name"])
	var labels []string
	for _, tag := range ann["tags"].([]Row) {
		labels = append(labels, tag["label"].(string))
	}
	assert.ElementsMatch(t, []string{"go", "sql"}, labels)

	assert.Equal(t, []Row{}, cara["orders"])
	assert.Nil(t, cara["company"])
	assert.Equal(t, []Row{}, cara["tags"])
}

func TestFindRows_FoldsUnicode(t *testing.T) {
	require.NoError(t, RegisterFunctions())
	drv := executortest.Driver(t)
	ctx := context.Background()
	require.NoError(t, drv.Exec(ctx, `INSERT INTO people VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		[]any{9, "ÉLODIE", nil, nil, "ACTIVE", 30, executortest.Day(6, 1), nil}, nil))
	x := New(drv, schematest.Registry(t))

	tests := []struct {
		name string
		f    Filter
		want []int64
	}{
		{"ignore case exact", people(t).LikeIgnoreCase("name", "ÉLODIE").Build(), []int64{9}},
		{"lower pattern", people(t).Like("name", "élodie").Build(), []int64{9}},
		{"mixed prefix", people(t).Like("name", "Élo").Build(), []int64{9}},
		{"case sensitive", people(t).Like("name", "élodie", spec.CaseSensitive()).Build(), []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := x.FindRows(ctx, "person", tt.f, QueryOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(rows))
		})
	}

	stmt, err := x.Explain("person", people(t).Like("name", "élodie").Build(), QueryOptions{}, false)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "fold(CAST(`t0`.`name` AS TEXT)) LIKE ?")
}

func TestFindRows_Options(t *testing.T) {
	x := testExecutor(t)
	ctx := context.Background()

	rows, err := x.FindRows(ctx, "person", nil, QueryOptions{
		OrderBy: []Order{{Field: "age", Desc: true}},
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Cara", rows[0]["name"])
	assert.Equal(t, "Ann", rows[1]["name"])

	rows, err = x.FindRows(ctx, "person", nil, QueryOptions{OrderBy: []Order{{Field: "id"}}, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids(rows))

	_, err = x.FindRows(ctx, "person", nil, QueryOptions{OrderBy: []Order{{Field: "agee"}}})
	assert.ErrorIs(t, err, ErrUnknownField)

	limited := New(x.drv, x.registry, WithDefaultLimit(3))
	rows, err = limited.FindRows(ctx, "person", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestFindRows_Errors(t *testing.T) {
	x := testExecutor(t)
	ctx := context.Background()

	_, err := x.FindRows(ctx, "persons", nil, QueryOptions{})
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = x.FindRows(ctx, "person", people(t).Equals("nmae", "Ann").Build(), QueryOptions{})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = x.FindRows(ctx, "person", people(t).Join("friends", spec.InnerJoin).Build(), QueryOptions{})
	assert.ErrorIs(t, err, ErrUnknownRelation)

	_, err = x.FindRows(ctx, "person", people(t).EqualsToOne("name.first", "Ann").Build(), QueryOptions{})
	assert.ErrorIs(t, err, ErrUnknownRelation)

	_, err = x.FindRows(ctx, "person", people(t).EqualsToMany("orders.items.total", 1).Build(), QueryOptions{})
	assert.ErrorIs(t, err, spec.ErrMalformedPath)
}

func TestFindRows_NotRelation(t *testing.T) {
	x := testExecutor(t)
	f := spec.Where[schema.Row](func(q spec.Query) (predicate.Predicate, error) {
		p, err := q.Get("name")
		if err != nil {
			return nil, err
		}
		_, err = p.Get("first")
		return nil, err
	})
	_, err := x.FindRows(context.Background(), "person", f, QueryOptions{})
	assert.ErrorIs(t, err, ErrNotRelation)
}

func TestCountRows(t *testing.T) {
	x := testExecutor(t)
	ctx := context.Background()

	n, err := x.CountRows(ctx, "person", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = x.CountRows(ctx, "person", people(t).Equals("status", "PENDING").Build())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	fetch := people(t).JoinFetch("orders", spec.InnerJoin).Build()
	join := people(t).Join("orders", spec.InnerJoin).Build()
	nFetch, err := x.CountRows(ctx, "person", fetch)
	require.NoError(t, err)
	nJoin, err := x.CountRows(ctx, "person", join)
	require.NoError(t, err)
	assert.Equal(t, nJoin, nFetch)
	assert.Equal(t, 4, nFetch)

	fetchStmt, err := x.Explain("person", fetch, QueryOptions{}, true)
	require.NoError(t, err)
	joinStmt, err := x.Explain("person", join, QueryOptions{}, true)
	require.NoError(t, err)
	assert.Equal(t, joinStmt, fetchStmt)
	assert.NotContains(t, fetchStmt.SQL, "DISTINCT")
}

func TestExplain(t *testing.T) {
	x := testExecutor(t)
	f := people(t).
		EqualsToOne("company.city", "Oslo").
		CustomFunction("MATCH_KEYWORD", []string{"bio"}, "go").
		Build()

	stmt, err := x.Explain("person", f, QueryOptions{Limit: 10}, false)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "FROM `people` AS `t0`")
	assert.Contains(t, stmt.SQL, "LEFT JOIN `companies` AS `t1` ON `t0`.`company_id` = `t1`.`id`")
	assert.Contains(t, stmt.SQL, "MATCH_KEYWORD(`t0`.`bio`, ?) = TRUE")
	assert.Contains(t, stmt.SQL, "LIMIT 10")
	assert.Equal(t, []any{"Oslo", "go"}, stmt.Args)

	stmt, err = x.Explain("person", people(t).JoinFetch("tags", spec.LeftJoin).Build(), QueryOptions{}, false)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "SELECT DISTINCT")
	assert.Contains(t, stmt.SQL, "LEFT JOIN `person_tags` AS `t1` ON `t0`.`id` = `t1`.`person_id`")
	assert.Contains(t, stmt.SQL, "LEFT JOIN `tags` AS `t2` ON `t1`.`tag_id` = `t2`.`id`")
}

func TestRender_MissingParam(t *testing.T) {
	x := testExecutor(t)
	f := spec.Where[schema.Row](func(q spec.Query) (predicate.Predicate, error) {
		p, err := q.Get("name")
		if err != nil {
			return nil, err
		}
		return &predicate.Call{Func: "match_keyword", Path: p, Params: []string{"unbound"}}, nil
	})
	_, err := x.FindRows(context.Background(), "person", f, QueryOptions{})
	assert.ErrorIs(t, err, ErrMissingParam)

	g := spec.Where[schema.Row](func(q spec.Query) (predicate.Predicate, error) {
		p, err := q.Get("name")
		if err != nil {
			return nil, err
		}
		return &predicate.Call{Func: "x); DROP TABLE people; --", Path: p}, nil
	})
	_, err = x.FindRows(context.Background(), "person", g, QueryOptions{})
	assert.ErrorIs(t, err, ErrInvalidFunction)
}

type Person struct {
	ID        int       `sql:"id"`
	Name      string    `sql:"name"`
	Email     *string   `sql:"email"`
	Bio       *string   `sql:"bio"`
	Status    string    `sql:"status"`
	Age       int       `sql:"age"`
	CreatedAt time.Time `sql:"created_at"`
}

func TestFindTyped(t *testing.T) {
	x := testExecutor(t)
	ctx := context.Background()

	b, err := spec.Of[Person]()
	require.NoError(t, err)
	f := b.GreaterThanOrEqualTo("age", 40).Build()

	got, err := Find(ctx, x, f, QueryOptions{OrderBy: []Order{{Field: "age"}}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Cara", got[0].Name)
	assert.Nil(t, got[0].Bio)
	assert.Equal(t, "Abcde", got[1].Name)
	assert.Equal(t, executortest.Day(5, 30), got[1].CreatedAt.UTC())

	n, err := Count(ctx, x, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = Find(ctx, x, (*spec.Filter[struct{ X int }])(nil), QueryOptions{})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestFindTyped_FetchKeepsRootsDistinct(t *testing.T) {
	x := testExecutor(t)
	b, err := spec.Of[Person]()
	require.NoError(t, err)
	f := b.JoinFetch("orders", spec.LeftJoin).JoinFetch("tags", spec.LeftJoin).Build()

	got, err := Find(context.Background(), x, f, QueryOptions{OrderBy: []Order{{Field: "id"}}})
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, p := range got {
		assert.Equal(t, i+1, p.ID)
	}
}

func TestLikeToGlob(t *testing.T) {
	assert.Equal(t, "*An*", likeToGlob("%An%"))
	assert.Equal(t, "*a?b[*][?][[]*", likeToGlob("%a_b*?[%"))
}

func TestExecute(t *testing.T) {
	x := testExecutor(t)
	p := planner.New(x.Registry())
	ctx := context.Background()

	tests := []struct {
		input string
		want  []int64
		count int
	}{
		{`find person where status = "active" order by id`, []int64{1, 3}, -1},
		{`find person where age > 30 or status = "ACTIVE" or status = "INACTIVE"`, []int64{1, 3}, -1},
		{`find person where age > 30 and status = "ACTIVE" or status = "INACTIVE"`, nil, -1},
		{`find person where company.city = "Oslo"`, []int64{1, 4}, -1},
		{`find person where orders.status = "OPEN"`, []int64{1, 2}, -1},
		{`find person where tags.label in ["sql", "music"]`, []int64{1, 2}, -1},
		{`find person where name like "An"`, []int64{1, 4}, -1},
		{`find person where name like_cs "An"`, []int64{1}, -1},
		{`find person where name ilike "an"`, []int64{1, 4}, -1},
		{`find person where profile is null`, []int64{2, 4, 5}, -1},
		{`find person where email != "ann@acme.io"`, []int64{3, 4}, -1},
		{`find person where created_at >= "2024-03-01"`, []int64{3, 4, 5}, -1},
		{`find person where call match_keyword(name, bio) with "abc"`, []int64{2, 5}, -1},
		{`find purchase where person.company.name = "Acme" and total > 6`, []int64{1, 2}, -1},
		{`find person order by age desc limit 2 offset 1`, []int64{1, 3}, -1},
		{`count person where status in ["PENDING", "INACTIVE"]`, nil, 3},
		{`count person where join orders`, nil, 4},
		{`count person where fetch orders`, nil, 4},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			plan, err := p.PlanString(tt.input)
			require.NoError(t, err)
			res, err := x.Execute(ctx, plan)
			require.NoError(t, err)
			require.NotNil(t, res.Meta)
			assert.Equal(t, plan.Entity, res.Meta.Entity)

			if tt.count >= 0 {
				require.NotNil(t, res.Count)
				assert.Equal(t, tt.count, *res.Count)
				assert.Nil(t, res.Rows)
				return
			}
			if tt.want == nil {
				assert.Empty(t, res.Rows)
				return
			}
			assert.Equal(t, tt.want, ids(res.Rows))
			assert.Equal(t, len(tt.want), res.Meta.Total)
		})
	}
}

func TestExecute_Meta(t *testing.T) {
	x := testExecutor(t)
	plan, err := planner.New(x.Registry()).PlanString(":help")
	require.NoError(t, err)

	_, err = x.Execute(context.Background(), plan)
	assert.ErrorIs(t, err, ErrUnsupportedPlan)
	_, err = x.ExplainPlan(plan)
	assert.ErrorIs(t, err, ErrUnsupportedPlan)
}

func TestExplainPlan(t *testing.T) {
	x := testExecutor(t)
	plan, err := planner.New(x.Registry()).PlanString(`find person where call match_keyword(bio) with ("go", "sql") order by name limit 5`)
	require.NoError(t, err)

	stmt, err := x.ExplainPlan(plan)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `t0`.`id`, `t0`.`name`, `t0`.`email`, `t0`.`bio`, `t0`.`status`, `t0`.`age`, `t0`.`created_at` "+
			"FROM `people` AS `t0` WHERE match_keyword(`t0`.`bio`, ?, ?) = TRUE ORDER BY `t0`.`name` LIMIT 5",
		stmt.SQL)
	assert.Equal(t, []any{"go", "sql"}, stmt.Args)
}
