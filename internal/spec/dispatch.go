package spec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// Dispatch applies one criterion to q. Join and JoinFetch mutate q and
// return a nil predicate; every other operation resolves the criterion path
// and returns one predicate fragment.
func Dispatch(c Criterion, q Query) (predicate.Predicate, error) {
	switch op := c.op.(type) {
	case Join:
		if _, err := q.Join(c.path, op.Type); err != nil {
			return nil, errors.Wrapf(err, "join %q", c.path)
		}
		return nil, nil

	case JoinFetch:
		if q.IsCount() {
			if _, err := q.Join(c.path, op.Type); err != nil {
				return nil, errors.Wrapf(err, "join %q", c.path)
			}
			return nil, nil
		}
		if err := q.Fetch(c.path, op.Type); err != nil {
			return nil, errors.Wrapf(err, "fetch %q", c.path)
		}
		q.Distinct()
		return nil, nil

	case Equal:
		p, err := Resolve(q, c.path, c.relation)
		if err != nil {
			return nil, err
		}
		return &predicate.Eq{Path: p, Value: op.Value}, nil

	case Like:
		return like(q, c, op.Value, !op.CaseSensitive)

	case LikeIgnoreCase:
		return like(q, c, op.Value, true)

	case IsNull:
		p, err := Resolve(q, c.path, c.relation)
		if err != nil {
			return nil, err
		}
		return &predicate.IsNull{Path: p}, nil

	case IsNotNull:
		p, err := Resolve(q, c.path, c.relation)
		if err != nil {
			return nil, err
		}
		return &predicate.NotNull{Path: p}, nil

	case In:
		p, err := Resolve(q, c.path, c.relation)
		if err != nil {
			return nil, err
		}
		return &predicate.In{Path: p, Values: op.Values}, nil

	case Compare:
		v, err := coerce(op.Value, op.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %q", op.Kind(), c.path)
		}
		p, err := Resolve(q, c.path, c.relation)
		if err != nil {
			return nil, err
		}
		return &predicate.Cmp{Path: p, Op: op.Op, Value: v}, nil
	}
	return nil, errors.AssertionFailedf("unhandled operation %T", c.op)
}

func like(q Query, c Criterion, value any, fold bool) (predicate.Predicate, error) {
	p, err := Resolve(q, c.path, c.relation)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprint(value)
	if fold {
		text = strings.ToLower(text)
	}
	return &predicate.Like{Path: p, Pattern: "%" + text + "%", Fold: fold}, nil
}

// coerce reads v as a value of type t. Integers widen to any integer or
// float type they fit in; nothing else converts.
func coerce(v any, t reflect.Type) (any, error) {
	if t == nil {
		return nil, errors.WithHint(
			errors.Wrap(ErrTypeMismatch, "no comparable type"),
			"ordering comparisons need a numeric, string or time value",
		)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errors.Wrapf(ErrTypeMismatch, "nil value for %s", t)
	}
	if rv.Type() == t {
		return v, nil
	}
	switch {
	case isInt(rv.Kind()) && isInt(t.Kind()):
		out := reflect.New(t).Elem()
		if isSigned(rv.Kind()) {
			n := rv.Int()
			if isSigned(t.Kind()) && !out.OverflowInt(n) {
				out.SetInt(n)
				return out.Interface(), nil
			}
			if !isSigned(t.Kind()) && n >= 0 && !out.OverflowUint(uint64(n)) {
				out.SetUint(uint64(n))
				return out.Interface(), nil
			}
		} else {
			n := rv.Uint()
			if !isSigned(t.Kind()) && !out.OverflowUint(n) {
				out.SetUint(n)
				return out.Interface(), nil
			}
			if isSigned(t.Kind()) && n <= 1<<63-1 && !out.OverflowInt(int64(n)) {
				out.SetInt(int64(n))
				return out.Interface(), nil
			}
		}
	case isInt(rv.Kind()) && isFloat(t.Kind()), isFloat(rv.Kind()) && isFloat(t.Kind()):
		return rv.Convert(t).Interface(), nil
	}
	return nil, errors.Wrapf(ErrTypeMismatch, "value of type %s is not %s", rv.Type(), t)
}

func isInt(k reflect.Kind) bool {
	return isSigned(k) || (k >= reflect.Uint && k <= reflect.Uintptr)
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
