package spec

import "github.com/cockroachdb/errors"

var (
	// ErrScalarRoot is returned by Of when the root type is a numeric scalar,
	// which is the result shape of a count query rather than an entity.
	ErrScalarRoot = errors.New("spec: filter root must be an entity type")

	// ErrTypeMismatch is returned when an ordering comparison has no
	// comparable type tag or its value is not of the tagged type.
	ErrTypeMismatch = errors.New("spec: comparison type mismatch")

	// ErrMalformedPath is returned when a to-many path is not exactly
	// "relation.attribute".
	ErrMalformedPath = errors.New("spec: malformed attribute path")

	// ErrParamCollision is returned by Bindings when two parameter groups
	// declare the same placeholder name.
	ErrParamCollision = errors.New("spec: duplicate function parameter name")
)
