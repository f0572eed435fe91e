package planner

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/schema"
)

// timeLayouts are tried in order for string literals compared with time
// fields. Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// coerceLiteral converts an FQL literal to a Go value appropriate for the
// target field type. If fm is nil, literals keep their natural Go type.
func coerceLiteral(lit fql.Literal, fm *schema.FieldMeta) (any, error) {
	if lit.Type == fql.LitNull {
		return nil, nil
	}
	if fm == nil {
		return natural(lit)
	}

	mismatch := func() error {
		return errors.Wrapf(ErrInvalidLiteral, "%s field cannot be compared with %s", fm.Type, lit)
	}

	switch fm.Type {
	case schema.FieldString, schema.FieldJSON:
		if lit.Type != fql.LitString && fm.Type == schema.FieldString {
			return nil, mismatch()
		}
		return natural(lit)

	case schema.FieldEnum:
		if lit.Type != fql.LitString {
			return nil, mismatch()
		}
		for _, ev := range fm.EnumValues {
			if strings.EqualFold(lit.Raw, ev) {
				return ev, nil
			}
		}
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidLiteral, "invalid enum value '%s'", lit.Raw),
			"valid values: "+strings.Join(fm.EnumValues, ", "),
		)

	case schema.FieldUUID:
		if lit.Type != fql.LitString {
			return nil, mismatch()
		}
		id, err := uuid.Parse(lit.Raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLiteral, "invalid UUID: %s", lit.Raw)
		}
		return id, nil

	case schema.FieldTime:
		if lit.Type != fql.LitString {
			return nil, mismatch()
		}
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, lit.Raw, time.UTC); err == nil {
				return t, nil
			}
		}
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidLiteral, "invalid time: %s", lit.Raw),
			"use RFC 3339 (2024-03-01T00:00:00Z) or a date (2024-03-01)",
		)

	case schema.FieldInt, schema.FieldInt64:
		if lit.Type != fql.LitInt {
			return nil, mismatch()
		}
		n, err := strconv.ParseInt(lit.Raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLiteral, "invalid integer: %s", lit.Raw)
		}
		if fm.Type == schema.FieldInt {
			return int(n), nil
		}
		return n, nil

	case schema.FieldFloat:
		if lit.Type != fql.LitInt && lit.Type != fql.LitFloat {
			return nil, mismatch()
		}
		f, err := strconv.ParseFloat(lit.Raw, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLiteral, "invalid float: %s", lit.Raw)
		}
		return f, nil

	case schema.FieldBool:
		if lit.Type != fql.LitBool {
			return nil, mismatch()
		}
		return strings.EqualFold(lit.Raw, "true"), nil
	}
	return natural(lit)
}

// natural returns the literal's own Go value.
func natural(lit fql.Literal) (any, error) {
	switch lit.Type {
	case fql.LitInt:
		n, err := strconv.ParseInt(lit.Raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLiteral, "invalid integer: %s", lit.Raw)
		}
		return n, nil
	case fql.LitFloat:
		f, err := strconv.ParseFloat(lit.Raw, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLiteral, "invalid float: %s", lit.Raw)
		}
		return f, nil
	case fql.LitBool:
		return strings.EqualFold(lit.Raw, "true"), nil
	case fql.LitNull:
		return nil, nil
	default:
		return lit.Raw, nil
	}
}
