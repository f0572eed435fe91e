package spec

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// Resolve turns an attribute path into an engine path.
//
// RelationNone reads path as one attribute of root. RelationToOne left-joins
// the first segment and chains the remaining segments; a path without dots
// behaves like RelationNone. RelationToMany requires exactly
// "relation.attribute" and left-joins the relation.
func Resolve(root Source, path string, kind RelationKind) (predicate.Path, error) {
	switch kind {
	case RelationToOne:
		parts := strings.Split(path, ".")
		if len(parts) == 1 {
			return get(root, path)
		}
		joined, err := join(root, parts[0])
		if err != nil {
			return nil, err
		}
		p, err := get(joined, parts[1])
		if err != nil {
			return nil, err
		}
		for _, name := range parts[2:] {
			if p, err = p.Get(name); err != nil {
				return nil, errors.Wrapf(err, "resolve %q", path)
			}
		}
		return p, nil

	case RelationToMany:
		parts := strings.Split(path, ".")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.WithHint(
				errors.Wrapf(ErrMalformedPath, "to-many path %q has %d segments", path, len(parts)),
				"to-many paths must be written as relation.attribute",
			)
		}
		joined, err := join(root, parts[0])
		if err != nil {
			return nil, err
		}
		return get(joined, parts[1])

	default:
		return get(root, path)
	}
}

func get(src Source, name string) (predicate.Path, error) {
	p, err := src.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve attribute %q", name)
	}
	return p, nil
}

func join(src Source, relation string) (Source, error) {
	s, err := src.Join(relation, LeftJoin)
	if err != nil {
		return nil, errors.Wrapf(err, "join %q", relation)
	}
	return s, nil
}
