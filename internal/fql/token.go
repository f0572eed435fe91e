// Package fql implements the lexer, parser, and AST for FQL, the filter
// query language.
//
// A statement names an entity and a flat list of where-terms joined by
// "and" / "or". The connectives select the group each following term is
// added to, the same way the builder's And() and Or() toggles do:
//
//	find person where age > 30 and status = "ACTIVE" or email is null or bio like "go"
//
// reads as age > 30 AND status = 'ACTIVE' AND (email IS NULL OR lower(bio) LIKE '%go%').
// like ignores case; like_cs keeps it.
package fql

import "strings"

// TokenType identifies the kind of lexical token.
type TokenType int

const (
	// Literals and identifiers
	TokenEOF    TokenType = iota
	TokenIdent            // unquoted identifier (entity, field, relation, function)
	TokenString           // "quoted string"
	TokenInt              // 123, -4
	TokenFloat            // 1.23
	TokenBool             // true / false
	TokenNull             // null

	// Operators
	TokenEQ    // =
	TokenNEQ   // !=
	TokenGT    // >
	TokenLT    // <
	TokenGTE   // >=
	TokenLTE   // <=
	TokenDot   // .
	TokenComma // ,

	// Grouping
	TokenLParen // (
	TokenRParen // )
	TokenLBrack // [
	TokenRBrack // ]

	// Keywords: verbs
	TokenFind
	TokenCount

	// Keywords: clauses
	TokenWhere
	TokenOrder
	TokenBy
	TokenLimit
	TokenOffset
	TokenAsc
	TokenDesc

	// Keywords: where-terms
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenLike
	TokenILike
	TokenLikeCS
	TokenIs
	TokenJoin
	TokenFetch
	TokenInner
	TokenLeft
	TokenRight
	TokenCall
	TokenWith

	// Special
	TokenMetaCmd // :help, :schema, etc.
	TokenComment // -- comment text
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenIdent:   "identifier",
	TokenString:  "string",
	TokenInt:     "integer",
	TokenFloat:   "float",
	TokenBool:    "boolean",
	TokenNull:    "null",
	TokenEQ:      "=",
	TokenNEQ:     "!=",
	TokenGT:      ">",
	TokenLT:      "<",
	TokenGTE:     ">=",
	TokenLTE:     "<=",
	TokenDot:     ".",
	TokenComma:   ",",
	TokenLParen:  "(",
	TokenRParen:  ")",
	TokenLBrack:  "[",
	TokenRBrack:  "]",
	TokenMetaCmd: "meta-command",
	TokenComment: "comment",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for kw, tt := range keywords {
		if tt == t && tt != TokenBool {
			return kw
		}
	}
	return "unknown"
}

// Token represents a single lexical token in an FQL statement.
type Token struct {
	Type    TokenType
	Literal string // raw text of the token
	Pos     int    // byte offset in source
	Line    int    // 1-based line number
	Col     int    // 1-based column number
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"find":    TokenFind,
	"count":   TokenCount,
	"where":   TokenWhere,
	"order":   TokenOrder,
	"by":      TokenBy,
	"limit":   TokenLimit,
	"offset":  TokenOffset,
	"asc":     TokenAsc,
	"desc":    TokenDesc,
	"and":     TokenAnd,
	"or":      TokenOr,
	"not":     TokenNot,
	"in":      TokenIn,
	"like":    TokenLike,
	"ilike":   TokenILike,
	"like_cs": TokenLikeCS,
	"is":      TokenIs,
	"join":    TokenJoin,
	"fetch":   TokenFetch,
	"inner":   TokenInner,
	"left":    TokenLeft,
	"right":   TokenRight,
	"call":    TokenCall,
	"with":    TokenWith,
	"true":    TokenBool,
	"false":   TokenBool,
	"null":    TokenNull,
}

// Keywords returns the reserved words, lowercase.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for kw := range keywords {
		out = append(out, kw)
	}
	return out
}

// LookupKeyword returns the keyword token type for an identifier, or
// TokenIdent if the identifier is not a keyword. Lookup is case-insensitive.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return TokenIdent
}

// IsVerb returns true if the token type starts a statement.
func (t TokenType) IsVerb() bool {
	return t == TokenFind || t == TokenCount
}

// IsClause returns true if the token type begins a clause.
func (t TokenType) IsClause() bool {
	switch t {
	case TokenWhere, TokenOrder, TokenLimit, TokenOffset:
		return true
	}
	return false
}
