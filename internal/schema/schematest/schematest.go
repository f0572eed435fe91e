// Package schematest provides the registry shared by package tests.
package schematest

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/filterspec/internal/schema"
)

//go:embed schema.cue
var document []byte

// Registry returns a registry with company, person, purchase, tag and
// profile entities covering every edge cardinality.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	r, err := schema.LoadCUE("schematest/schema.cue", document)
	require.NoError(t, err)
	return r
}
