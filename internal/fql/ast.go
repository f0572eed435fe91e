package fql

import (
	"strconv"
	"strings"
)

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeType() string
	Pos() int // byte offset in source
}

// Statement is the interface for top-level FQL statements.
type Statement interface {
	Node
	stmtNode()
}

// ── Top-level statements ────────────────────────────────────────────────────

// FindStmt represents: find <entity> [where ...] [order by ...] [limit N] [offset N]
type FindStmt struct {
	TokenPos int
	Entity   string
	Where    *WhereClause
	OrderBy  *OrderByClause
	Limit    *LimitClause
	Offset   *OffsetClause
}

func (s *FindStmt) nodeType() string { return "FindStmt" }
func (s *FindStmt) Pos() int         { return s.TokenPos }
func (s *FindStmt) stmtNode()        {}

// CountStmt represents: count <entity> [where ...]
type CountStmt struct {
	TokenPos int
	Entity   string
	Where    *WhereClause
}

func (s *CountStmt) nodeType() string { return "CountStmt" }
func (s *CountStmt) Pos() int         { return s.TokenPos }
func (s *CountStmt) stmtNode()        {}

// MetaCmdStmt represents: :<command> [args...]
type MetaCmdStmt struct {
	TokenPos int
	Command  string   // e.g. "help", "schema", "explain"
	Args     []string // remaining tokens as raw strings
	Rest     string   // source text after the command, trimmed
}

func (s *MetaCmdStmt) nodeType() string { return "MetaCmdStmt" }
func (s *MetaCmdStmt) Pos() int         { return s.TokenPos }
func (s *MetaCmdStmt) stmtNode()        {}

// ── Clauses ─────────────────────────────────────────────────────────────────

// WhereClause is the ordered list of where-terms.
type WhereClause struct {
	Terms []Term
}

// Connective is the keyword that precedes a where-term.
type Connective int

const (
	ConnNone Connective = iota // first term
	ConnAnd
	ConnOr
)

func (c Connective) String() string {
	switch c {
	case ConnAnd:
		return "and"
	case ConnOr:
		return "or"
	default:
		return ""
	}
}

// Term is one where-term with the connective in front of it.
type Term struct {
	Conn   Connective
	Clause Clause
}

// OrderByClause holds ordering specifications.
type OrderByClause struct {
	Items []OrderItem
}

// OrderItem is a single ordering specification.
type OrderItem struct {
	Field FieldRef
	Desc  bool
}

// LimitClause holds the result limit.
type LimitClause struct {
	Value int
}

// OffsetClause holds the result offset.
type OffsetClause struct {
	Value int
}

// ── Field references ────────────────────────────────────────────────────────

// FieldRef is a possibly-dotted attribute path (e.g. "status" or "company.city").
type FieldRef struct {
	Parts []string
}

// String returns the dotted path.
func (fr FieldRef) String() string {
	return strings.Join(fr.Parts, ".")
}

// ── Where-terms ─────────────────────────────────────────────────────────────

// Clause is implemented by every where-term node.
type Clause interface {
	Node
	clauseNode()
}

// CompOp is a comparison operator.
type CompOp int

const (
	CompEQ CompOp = iota
	CompNEQ
	CompGT
	CompLT
	CompGTE
	CompLTE
)

// String returns the FQL operator symbol.
func (op CompOp) String() string {
	switch op {
	case CompEQ:
		return "="
	case CompNEQ:
		return "!="
	case CompGT:
		return ">"
	case CompLT:
		return "<"
	case CompGTE:
		return ">="
	case CompLTE:
		return "<="
	default:
		return "?"
	}
}

// ComparisonClause represents "field op value".
type ComparisonClause struct {
	TokenPos int
	Field    FieldRef
	Op       CompOp
	Value    Literal
}

// LikeClause represents "field like value", which ignores case ("ilike"
// is a synonym), or "field like_cs value".
type LikeClause struct {
	TokenPos      int
	Field         FieldRef
	Value         Literal
	CaseSensitive bool
}

// NullClause represents "field is null" or "field is not null".
type NullClause struct {
	TokenPos int
	Field    FieldRef
	Not      bool
}

// InClause represents "field in [val1, val2, ...]".
type InClause struct {
	TokenPos int
	Field    FieldRef
	Values   []Literal
}

// JoinType is the SQL join flavor of a join or fetch term.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
)

func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	default:
		return "inner"
	}
}

// JoinClause represents "join [inner|left|right] relation" or the fetch
// form, which also loads the relation with each result row.
type JoinClause struct {
	TokenPos int
	Type     JoinType
	Relation string
	Fetch    bool
}

// CallClause represents "call fn(field, ...) with (value, ...)".
type CallClause struct {
	TokenPos int
	Func     string
	Fields   []FieldRef
	Args     []Literal
}

func (c *ComparisonClause) nodeType() string { return "ComparisonClause" }
func (c *ComparisonClause) Pos() int         { return c.TokenPos }
func (c *ComparisonClause) clauseNode()      {}

func (c *LikeClause) nodeType() string { return "LikeClause" }
func (c *LikeClause) Pos() int         { return c.TokenPos }
func (c *LikeClause) clauseNode()      {}

func (c *NullClause) nodeType() string { return "NullClause" }
func (c *NullClause) Pos() int         { return c.TokenPos }
func (c *NullClause) clauseNode()      {}

func (c *InClause) nodeType() string { return "InClause" }
func (c *InClause) Pos() int         { return c.TokenPos }
func (c *InClause) clauseNode()      {}

func (c *JoinClause) nodeType() string { return "JoinClause" }
func (c *JoinClause) Pos() int         { return c.TokenPos }
func (c *JoinClause) clauseNode()      {}

func (c *CallClause) nodeType() string { return "CallClause" }
func (c *CallClause) Pos() int         { return c.TokenPos }
func (c *CallClause) clauseNode()      {}

// ── Literal values ──────────────────────────────────────────────────────────

// Literal represents a constant value in FQL.
type Literal struct {
	TokenPos int
	Type     LiteralType
	Raw      string // raw token text, unquoted for strings
}

// LiteralType classifies a literal value.
type LiteralType int

const (
	LitString LiteralType = iota
	LitInt
	LitFloat
	LitBool
	LitNull
)

func (l Literal) nodeType() string { return "Literal" }
func (l Literal) Pos() int         { return l.TokenPos }

// String renders the literal as it would be written in FQL.
func (l Literal) String() string {
	if l.Type == LitString {
		return strconv.Quote(l.Raw)
	}
	return l.Raw
}
