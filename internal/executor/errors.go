package executor

import "github.com/cockroachdb/errors"

var (
	ErrUnknownEntity   = errors.New("executor: unknown entity")
	ErrUnknownField    = errors.New("executor: unknown field")
	ErrUnknownRelation = errors.New("executor: unknown relation")
	// ErrNotRelation is returned when a path navigates into a plain column.
	ErrNotRelation = errors.New("executor: not a relation")
	// ErrMissingParam is returned when a function predicate names a
	// parameter the filter did not bind.
	ErrMissingParam = errors.New("executor: missing function parameter")
	// ErrInvalidFunction is returned for function names that are not plain
	// SQL identifiers.
	ErrInvalidFunction = errors.New("executor: invalid function name")
)
