package spec

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// ParamGroup maps the placeholder names of one CustomFunction call to the
// literal values bound to them.
type ParamGroup map[string]any

// ParamNamer names the arg-th parameter of the call-th function call.
// Names must be unique across one filter.
type ParamNamer func(call, arg int) string

// RandomNamer returns the default namer: call and argument indices around a
// random token, so filters built separately can be combined safely.
func RandomNamer() ParamNamer {
	return func(call, arg int) string {
		token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		return fmt.Sprintf("fn%d_%s_%d", call, token, arg)
	}
}

// SequentialNamer returns a deterministic namer producing prefix<call>_<arg>.
func SequentialNamer(prefix string) ParamNamer {
	return func(call, arg int) string {
		return fmt.Sprintf("%s%d_%d", prefix, call, arg)
	}
}

// FunctionPredicate builds fn(path, :name...) = TRUE for every path and ORs
// the results. Dotted paths are followed as to-one relations.
func FunctionPredicate(src Source, fn string, paths, names []string) (predicate.Predicate, error) {
	calls := make([]predicate.Predicate, 0, len(paths))
	for _, path := range paths {
		kind := RelationNone
		if strings.Contains(path, ".") {
			kind = RelationToOne
		}
		p, err := Resolve(src, path, kind)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", fn)
		}
		calls = append(calls, &predicate.Call{Func: fn, Path: p, Params: names})
	}
	return predicate.Or(calls...), nil
}
