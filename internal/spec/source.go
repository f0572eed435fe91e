package spec

import "github.com/matthewbaird/filterspec/internal/predicate"

// Source is anything attributes can be read from and relations joined on:
// the query root or a previously joined relation.
type Source interface {
	// Get returns the attribute named name.
	Get(name string) (predicate.Path, error)
	// Join joins the named relation and returns its side of the join.
	Join(relation string, kind JoinKind) (Source, error)
}

// Query is the root of one query under construction. Filters mutate it
// through joins, fetches and the distinct flag while producing predicates.
// A Query must not be shared between two Apply calls.
type Query interface {
	Source
	// Fetch joins relation and loads its rows with the result.
	Fetch(relation string, kind JoinKind) error
	// Distinct marks the query as returning distinct root rows.
	Distinct()
	// IsCount reports whether the query's result is a scalar count.
	IsCount() bool
}
