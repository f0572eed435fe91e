package spec

import (
	"reflect"

	"github.com/matthewbaird/filterspec/internal/predicate"
)

// RelationKind says how an attribute path crosses relations.
type RelationKind int

const (
	// RelationNone reads the path as a single attribute of the root.
	RelationNone RelationKind = iota
	// RelationToOne follows single-valued relations, one join then a chain.
	RelationToOne
	// RelationToMany crosses one multi-valued relation: "relation.attribute".
	RelationToMany
)

func (k RelationKind) String() string {
	switch k {
	case RelationNone:
		return "NO_RELATION"
	case RelationToOne:
		return "TO_ONE"
	case RelationToMany:
		return "TO_MANY"
	default:
		return "UNKNOWN"
	}
}

// JoinKind is the SQL join flavour. The zero value is an inner join.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER"
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	default:
		return "UNKNOWN"
	}
}

// Group is the bucket a criterion contributes to when the filter is applied.
type Group int

const (
	GroupAnd Group = iota
	GroupOr
)

func (g Group) String() string {
	if g == GroupOr {
		return "OR"
	}
	return "AND"
}

// OpKind names an operation.
type OpKind int

const (
	OpJoin OpKind = iota
	OpJoinFetch
	OpEqual
	OpLike
	OpLikeIgnoreCase
	OpIsNull
	OpIsNotNull
	OpIn
	OpLessThan
	OpLessThanOrEqualTo
	OpGreaterThan
	OpGreaterThanOrEqualTo
)

var opKindNames = [...]string{
	OpJoin:                 "JOIN",
	OpJoinFetch:            "JOIN_FETCH",
	OpEqual:                "EQUAL",
	OpLike:                 "LIKE",
	OpLikeIgnoreCase:       "LIKE_IGNORE_CASE",
	OpIsNull:               "IS_NULL",
	OpIsNotNull:            "IS_NOT_NULL",
	OpIn:                   "IN",
	OpLessThan:             "LESS_THAN",
	OpLessThanOrEqualTo:    "LESS_THAN_OR_EQUAL_TO",
	OpGreaterThan:          "GREATER_THAN",
	OpGreaterThanOrEqualTo: "GREATER_THAN_OR_EQUAL_TO",
}

func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opKindNames) {
		return "UNKNOWN"
	}
	return opKindNames[k]
}

// Operation is what a criterion does with its path. The set of variants is
// closed; each carries exactly the data it needs.
type Operation interface {
	Kind() OpKind
	operation()
}

// Join joins the relation named by the criterion path.
type Join struct{ Type JoinKind }

// JoinFetch joins the relation and loads it with the result rows.
type JoinFetch struct{ Type JoinKind }

// Equal matches attribute = Value.
type Equal struct{ Value any }

// Like matches the attribute against %Value%. Matching folds case unless
// CaseSensitive is set.
type Like struct {
	Value         any
	CaseSensitive bool
}

// LikeIgnoreCase is Like with case folding forced on.
type LikeIgnoreCase struct{ Value any }

type IsNull struct{}

type IsNotNull struct{}

// In matches attributes whose value is one of Values.
type In struct{ Values []any }

// Compare orders the attribute against Value. Type is the comparable type
// both sides are read as; a nil Type fails at dispatch.
type Compare struct {
	Op    predicate.CompareOp
	Value any
	Type  reflect.Type
}

func (Join) Kind() OpKind           { return OpJoin }
func (JoinFetch) Kind() OpKind      { return OpJoinFetch }
func (Equal) Kind() OpKind          { return OpEqual }
func (Like) Kind() OpKind           { return OpLike }
func (LikeIgnoreCase) Kind() OpKind { return OpLikeIgnoreCase }
func (IsNull) Kind() OpKind         { return OpIsNull }
func (IsNotNull) Kind() OpKind      { return OpIsNotNull }
func (In) Kind() OpKind             { return OpIn }

func (c Compare) Kind() OpKind {
	switch c.Op {
	case predicate.LT:
		return OpLessThan
	case predicate.LTE:
		return OpLessThanOrEqualTo
	case predicate.GT:
		return OpGreaterThan
	default:
		return OpGreaterThanOrEqualTo
	}
}

func (Join) operation()           {}
func (JoinFetch) operation()      {}
func (Equal) operation()          {}
func (Like) operation()           {}
func (LikeIgnoreCase) operation() {}
func (IsNull) operation()         {}
func (IsNotNull) operation()      {}
func (In) operation()             {}
func (Compare) operation()        {}
