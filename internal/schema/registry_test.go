package schema

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Person struct{}

func TestLoad_CUEAndYAMLAgree(t *testing.T) {
	fromCUE, err := Load("testdata/schema.cue")
	require.NoError(t, err)
	fromYAML, err := Load("testdata/schema.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"company", "person", "profile", "purchase", "tag"}, fromCUE.EntityNames())
	assert.Equal(t, fromCUE.EntityNames(), fromYAML.EntityNames())
	for _, name := range fromCUE.EntityNames() {
		assert.Equal(t, fromCUE.Entity(name), fromYAML.Entity(name), name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	r, err := Load("testdata/schema.cue")
	require.NoError(t, err)

	person := r.Entity("person")
	require.NotNil(t, person)
	assert.Equal(t, "people", person.Table)
	assert.Equal(t, "id", person.ID)
	assert.Equal(t, "created_at", person.Fields["created_at"].Column)
	assert.Equal(t, FieldEnum, person.Fields["status"].Type)
	assert.Equal(t, []string{"ACTIVE", "PENDING", "INACTIVE"}, person.Fields["status"].EnumValues)
	assert.Equal(t, []string{"id", "name", "email", "bio", "status", "age", "created_at"}, person.Columns())

	col, ok := person.Column("id")
	assert.True(t, ok)
	assert.Equal(t, "id", col)
	_, ok = person.Column("company")
	assert.False(t, ok)
}

func TestEdges(t *testing.T) {
	r, err := Load("testdata/schema.yaml")
	require.NoError(t, err)
	person := r.Entity("person")

	tests := []struct {
		edge   string
		unique bool
		owns   bool
	}{
		{"company", true, true},
		{"orders", false, false},
		{"tags", false, false},
		{"profile", true, false},
	}
	for _, tt := range tests {
		e := person.Edge(tt.edge)
		require.NotNil(t, e, tt.edge)
		assert.Equal(t, tt.unique, e.Unique(), tt.edge)
		assert.Equal(t, tt.owns, e.OwnsFK(), tt.edge)
	}
	assert.Equal(t, [2]string{"person_id", "tag_id"}, person.Edge("tags").ThroughColumns)
	assert.True(t, r.Entity("profile").Edge("person").OwnsFK())
}

func TestEntityFor(t *testing.T) {
	r, err := Load("testdata/schema.cue")
	require.NoError(t, err)
	assert.Equal(t, "person", r.EntityFor(reflect.TypeFor[Person]()).Name)
	assert.Equal(t, "person", r.EntityFor(reflect.TypeFor[*Person]()).Name)
	assert.Nil(t, r.EntityFor(reflect.TypeFor[int]()))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cue  string
	}{
		{"unknown type", `entities: [{name: "a", fields: [{name: "x", type: "decimal"}]}]`},
		{"bad cardinality", `entities: [{name: "a", fields: [], edges: [{name: "b", target: "a", cardinality: "X"}]}]`},
		{"unknown target", `entities: [{name: "a", fields: [], edges: [{name: "b", target: "zz", cardinality: "M2O", column: "b_id"}]}]`},
		{"missing column", `entities: [{name: "a", fields: [], edges: [{name: "b", target: "a", cardinality: "M2O"}]}]`},
		{"m2m without through", `entities: [{name: "a", fields: [], edges: [{name: "b", target: "a", cardinality: "M2M"}]}]`},
		{"enum without values", `entities: [{name: "a", fields: [{name: "x", type: "enum"}]}]`},
		{"edge shadows field", `entities: [{name: "a", fields: [{name: "b", type: "int"}], edges: [{name: "b", target: "a", cardinality: "M2O", column: "b_id"}]}]`},
		{"duplicate entity", `entities: [{name: "a", fields: []}, {name: "a", fields: []}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCUE("test.cue", []byte(tt.cue))
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}

	_, err := LoadCUE("test.cue", []byte(`entities: [`))
	assert.Error(t, err)

	_, err = Load("testdata/missing.cue")
	assert.Error(t, err)
}

func TestFieldType(t *testing.T) {
	for ft, name := range fieldTypeNames {
		parsed, err := ParseFieldType(name)
		require.NoError(t, err)
		assert.Equal(t, ft, parsed)
	}
	assert.True(t, FieldTime.Comparable())
	assert.False(t, FieldBool.Comparable())
	assert.Equal(t, "unknown", FieldType(99).String())

	data, err := json.Marshal(&FieldMeta{Name: "status", Type: FieldEnum})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Type":"enum"`)
}
