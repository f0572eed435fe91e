package handler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/filterspec/internal/fql"
)

func decodeDocument(t *testing.T, s string) *QueryDocument {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc QueryDocument
	require.NoError(t, dec.Decode(&doc))
	return &doc
}

func TestDocument_FindStatement(t *testing.T) {
	doc := decodeDocument(t, `{
		"where": [
			{"op": "gt", "path": "Age", "value": 30},
			{"group": "or", "op": "eq", "path": "status", "value": "ACTIVE"},
			{"op": "in", "path": "id", "values": [1, 2.5, "x", true, null]},
			{"group": "and", "op": "fetch", "path": "company", "join": "left"},
			{"op": "call", "function": "match_keyword", "paths": ["bio", "name"], "values": ["go"]}
		],
		"order_by": [{"field": "name", "desc": true}, {"field": "id"}],
		"limit": 5,
		"offset": 10
	}`)

	stmt, err := doc.findStatement("Person")
	require.NoError(t, err)
	assert.Equal(t, "person", stmt.Entity)
	require.NotNil(t, stmt.Where)
	require.Len(t, stmt.Where.Terms, 5)

	terms := stmt.Where.Terms
	assert.Equal(t, &fql.ComparisonClause{
		Field: fql.FieldRef{Parts: []string{"age"}},
		Op:    fql.CompGT,
		Value: fql.Literal{Type: fql.LitInt, Raw: "30"},
	}, terms[0].Clause)
	assert.Equal(t, fql.ConnOr, terms[1].Conn)
	assert.Equal(t, []fql.Literal{
		{Type: fql.LitInt, Raw: "1"},
		{Type: fql.LitFloat, Raw: "2.5"},
		{Type: fql.LitString, Raw: "x"},
		{Type: fql.LitBool, Raw: "true"},
		{Type: fql.LitNull, Raw: "null"},
	}, terms[2].Clause.(*fql.InClause).Values)
	assert.Equal(t, fql.ConnAnd, terms[3].Conn)
	assert.Equal(t, &fql.JoinClause{Type: fql.JoinLeft, Relation: "company", Fetch: true}, terms[3].Clause)

	call := terms[4].Clause.(*fql.CallClause)
	assert.Equal(t, "match_keyword", call.Func)
	assert.Len(t, call.Fields, 2)
	assert.Equal(t, []fql.Literal{{Type: fql.LitString, Raw: "go"}}, call.Args)

	require.NotNil(t, stmt.OrderBy)
	assert.Equal(t, []fql.OrderItem{
		{Field: fql.FieldRef{Parts: []string{"name"}}, Desc: true},
		{Field: fql.FieldRef{Parts: []string{"id"}}},
	}, stmt.OrderBy.Items)
	assert.Equal(t, 5, stmt.Limit.Value)
	assert.Equal(t, 10, stmt.Offset.Value)
}

func TestDocument_Empty(t *testing.T) {
	var doc QueryDocument
	stmt, err := doc.findStatement("tag")
	require.NoError(t, err)
	assert.Nil(t, stmt.Where)
	assert.Nil(t, stmt.OrderBy)
	assert.Nil(t, stmt.Limit)

	count, err := doc.countStatement("tag")
	require.NoError(t, err)
	assert.Nil(t, count.Where)
}

func TestDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"missing op", `{"where": [{"path": "age"}]}`, "op is required"},
		{"unknown op", `{"where": [{"op": "near", "path": "age"}]}`, `unknown op "near"`},
		{"missing path", `{"where": [{"op": "is_null"}]}`, "is_null needs a path"},
		{"in without values", `{"where": [{"op": "in", "path": "id"}]}`, "in needs values"},
		{"like number", `{"where": [{"op": "ilike", "path": "name", "value": 1}]}`, "ilike needs a string value"},
		{"object value", `{"where": [{"op": "eq", "path": "name", "value": {"a": 1}}]}`, "unsupported value"},
		{"array value", `{"where": [{"op": "eq", "path": "name", "value": [1]}]}`, "unsupported value"},
		{"join type", `{"where": [{"op": "join", "path": "orders", "join": "outer"}]}`, `unknown join type "outer"`},
		{"call without paths", `{"where": [{"op": "call", "function": "f"}]}`, "call needs a function and paths"},
		{"order without field", `{"order_by": [{"desc": true}]}`, "order_by[0]"},
		{"negative offset", `{"offset": -2}`, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeDocument(t, tt.doc).findStatement("person")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDocument_TermIndexInError(t *testing.T) {
	_, err := decodeDocument(t, `{"where": [{"op": "is_null", "path": "email"}, {"op": "?"}]}`).findStatement("person")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "where[1]")
}

func TestDocument_CountRejectsPaging(t *testing.T) {
	for _, doc := range []string{`{"limit": 1}`, `{"offset": 1}`, `{"order_by": [{"field": "id"}]}`} {
		_, err := decodeDocument(t, doc).countStatement("person")
		assert.True(t, errors.Is(err, ErrInvalidDocument), doc)
	}
}
