package fql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matthewbaird/filterspec/internal/schema"
)

// Parser implements a recursive descent parser for FQL.
type Parser struct {
	tokens []Token
	pos    int
	src    string
	errors []*ParseError
}

// NewParser creates a parser from a token slice (typically from Lexer.Tokenize).
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses input. Lexer and parser errors are returned
// together as an ErrorList.
func Parse(input string) ([]Statement, error) {
	tokens, lexErrs := NewLexer(input).Tokenize()
	if len(lexErrs) > 0 {
		return nil, ErrorList(lexErrs)
	}
	p := NewParser(tokens)
	p.src = input
	stmts, errs := p.Parse()
	if len(errs) > 0 {
		return nil, ErrorList(errs)
	}
	return stmts, nil
}

// ParseOne parses input that must hold exactly one statement.
func ParseOne(input string) (Statement, error) {
	stmts, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, ErrorList{{Message: fmt.Sprintf("expected one statement, got %d", len(stmts)), Line: 1, Col: 1}}
	}
	return stmts[0], nil
}

// Parse parses the token stream into a list of statements.
func (p *Parser) Parse() ([]Statement, []*ParseError) {
	var stmts []Statement
	for !p.atEnd() {
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, p.errors
}

// ── Token navigation ────────────────────────────────────────────────────────

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) match(types ...TokenType) (Token, bool) {
	for _, t := range types {
		if p.check(t) {
			return p.advance(), true
		}
	}
	return Token{}, false
}

func (p *Parser) expect(t TokenType) (Token, bool) {
	if p.check(t) {
		return p.advance(), true
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("expected %s, got %s", t, describe(tok)))
	return tok, false
}

func (p *Parser) addError(tok Token, msg string) {
	p.errors = append(p.errors, newParseErrorf(tok, "%s", msg))
}

func (p *Parser) addErrorWithSuggestion(tok Token, msg, suggestion string) {
	err := newParseErrorf(tok, "%s", msg)
	err.Suggestion = suggestion
	p.errors = append(p.errors, err)
}

// synchronize skips tokens until a statement boundary (verb or meta-command).
func (p *Parser) synchronize() {
	for !p.atEnd() {
		tok := p.peek()
		if tok.Type.IsVerb() || tok.Type == TokenMetaCmd {
			return
		}
		p.advance()
	}
}

// atStatementEnd reports whether the current token ends the statement.
func (p *Parser) atStatementEnd() bool {
	t := p.peek().Type
	return t == TokenEOF || t.IsVerb() || t == TokenMetaCmd
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return fmt.Sprintf("identifier '%s'", tok.Literal)
	case TokenString:
		return fmt.Sprintf("string %q", tok.Literal)
	}
	return tok.Type.String()
}

// suggestKeyword returns a hint when an identifier looks like a misspelt
// keyword from candidates.
func suggestKeyword(tok Token, candidates ...string) string {
	if tok.Type != TokenIdent {
		return ""
	}
	if s := schema.SuggestFrom(strings.ToLower(tok.Literal), candidates, 2); s != "" {
		return fmt.Sprintf("did you mean '%s'?", s)
	}
	return ""
}

// ── Statement parsing ───────────────────────────────────────────────────────

func (p *Parser) parseStatement() Statement {
	tok := p.peek()

	switch tok.Type {
	case TokenFind:
		return p.parseFind()
	case TokenCount:
		return p.parseCount()
	case TokenMetaCmd:
		return p.parseMetaCmd()
	default:
		p.addErrorWithSuggestion(tok,
			fmt.Sprintf("expected find, count or a meta-command, got %s", describe(tok)),
			suggestKeyword(tok, "find", "count"))
		p.advance()
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseEntity() (string, bool) {
	tok, ok := p.expect(TokenIdent)
	if !ok {
		return "", false
	}
	return strings.ToLower(tok.Literal), true
}

// ── find ─────────────────────────────────────────────────────────────────────

func (p *Parser) parseFind() Statement {
	tok := p.advance() // 'find'
	stmt := &FindStmt{TokenPos: tok.Pos}
	errs := len(p.errors)

	entity, ok := p.parseEntity()
	if !ok {
		p.synchronize()
		return nil
	}
	stmt.Entity = entity

	// Clauses in any order, each at most once.
	for !p.atStatementEnd() {
		clauseTok := p.peek()
		dup := false
		switch clauseTok.Type {
		case TokenWhere:
			dup = stmt.Where != nil
			if !dup {
				stmt.Where = p.parseWhere()
			}
		case TokenOrder:
			dup = stmt.OrderBy != nil
			if !dup {
				stmt.OrderBy = p.parseOrderBy()
			}
		case TokenLimit:
			dup = stmt.Limit != nil
			if !dup {
				stmt.Limit = &LimitClause{Value: p.parseNonNegative("limit")}
			}
		case TokenOffset:
			dup = stmt.Offset != nil
			if !dup {
				stmt.Offset = &OffsetClause{Value: p.parseNonNegative("offset")}
			}
		default:
			p.addErrorWithSuggestion(clauseTok,
				fmt.Sprintf("unexpected %s in find statement", describe(clauseTok)),
				suggestKeyword(clauseTok, "where", "order", "limit", "offset"))
			p.advance()
			p.synchronize()
			return nil
		}
		if dup {
			p.addError(clauseTok, fmt.Sprintf("duplicate '%s' clause", clauseTok.Type))
			p.advance()
			p.synchronize()
			return nil
		}
		if len(p.errors) > errs {
			p.synchronize()
			return nil
		}
	}
	return stmt
}

// ── count ────────────────────────────────────────────────────────────────────

func (p *Parser) parseCount() Statement {
	tok := p.advance() // 'count'
	stmt := &CountStmt{TokenPos: tok.Pos}
	errs := len(p.errors)

	entity, ok := p.parseEntity()
	if !ok {
		p.synchronize()
		return nil
	}
	stmt.Entity = entity

	if p.check(TokenWhere) {
		stmt.Where = p.parseWhere()
	}
	if !p.atStatementEnd() {
		next := p.peek()
		p.addErrorWithSuggestion(next,
			fmt.Sprintf("unexpected %s in count statement", describe(next)),
			suggestKeyword(next, "where"))
		p.synchronize()
		return nil
	}
	if len(p.errors) > errs {
		p.synchronize()
		return nil
	}
	return stmt
}

// ── meta-command ─────────────────────────────────────────────────────────────

func (p *Parser) parseMetaCmd() *MetaCmdStmt {
	tok := p.advance()
	stmt := &MetaCmdStmt{
		TokenPos: tok.Pos,
		Command:  strings.ToLower(strings.TrimPrefix(tok.Literal, ":")),
	}

	// Meta-commands consume the rest of the input up to the next one.
	restStart := tok.Pos + len(tok.Literal)
	for !p.atEnd() && !p.check(TokenMetaCmd) {
		stmt.Args = append(stmt.Args, p.advance().Literal)
	}
	if p.src != "" {
		restEnd := len(p.src)
		if !p.atEnd() {
			restEnd = p.peek().Pos
		}
		stmt.Rest = strings.TrimSpace(p.src[restStart:restEnd])
	}
	return stmt
}

// ── WHERE clause ─────────────────────────────────────────────────────────────

func (p *Parser) parseWhere() *WhereClause {
	p.advance() // 'where'
	clause := &WhereClause{}
	conn := ConnNone
	for {
		c := p.parseTerm()
		if c == nil {
			return clause
		}
		clause.Terms = append(clause.Terms, Term{Conn: conn, Clause: c})

		switch {
		case p.check(TokenAnd):
			conn = ConnAnd
		case p.check(TokenOr):
			conn = ConnOr
		default:
			return clause
		}
		p.advance()
	}
}

func (p *Parser) parseTerm() Clause {
	tok := p.peek()
	switch tok.Type {
	case TokenJoin, TokenFetch:
		return p.parseJoin()
	case TokenCall:
		return p.parseCall()
	case TokenIdent:
		return p.parsePredicate()
	case TokenNot:
		p.addError(tok, "'not' is only supported as 'is not null'; use != for inequality")
		return nil
	case TokenLParen:
		p.addError(tok, "parenthesized groups are not supported; 'and' and 'or' select the group of the next term")
		return nil
	default:
		p.addError(tok, fmt.Sprintf("expected field name, join, fetch or call, got %s", describe(tok)))
		return nil
	}
}

func (p *Parser) parseJoin() Clause {
	tok := p.advance() // 'join' or 'fetch'
	clause := &JoinClause{TokenPos: tok.Pos, Fetch: tok.Type == TokenFetch}
	if kind, ok := p.match(TokenInner, TokenLeft, TokenRight); ok {
		switch kind.Type {
		case TokenLeft:
			clause.Type = JoinLeft
		case TokenRight:
			clause.Type = JoinRight
		}
	}
	rel, ok := p.expect(TokenIdent)
	if !ok {
		return nil
	}
	clause.Relation = strings.ToLower(rel.Literal)
	return clause
}

func (p *Parser) parseCall() Clause {
	tok := p.advance() // 'call'
	fn, ok := p.expect(TokenIdent)
	if !ok {
		return nil
	}
	clause := &CallClause{TokenPos: tok.Pos, Func: fn.Literal}

	if _, ok := p.expect(TokenLParen); !ok {
		return nil
	}
	for {
		if !p.check(TokenIdent) {
			p.addError(p.peek(), fmt.Sprintf("expected field name in call arguments, got %s", describe(p.peek())))
			return nil
		}
		clause.Fields = append(clause.Fields, p.parseFieldRef())
		if _, ok := p.match(TokenComma); !ok {
			break
		}
	}
	if _, ok := p.expect(TokenRParen); !ok {
		return nil
	}

	if _, ok := p.match(TokenWith); ok {
		if p.check(TokenLParen) {
			clause.Args = p.parseList(TokenLParen, TokenRParen)
		} else {
			clause.Args = []Literal{p.parseLiteral()}
		}
	}
	return clause
}

func (p *Parser) parsePredicate() Clause {
	start := p.peek()
	field := p.parseFieldRef()

	switch op := p.peek(); op.Type {
	case TokenIn:
		p.advance()
		openTok, closeTok := TokenLBrack, TokenRBrack
		if p.check(TokenLParen) {
			openTok, closeTok = TokenLParen, TokenRParen
		}
		return &InClause{TokenPos: start.Pos, Field: field, Values: p.parseList(openTok, closeTok)}

	case TokenLike, TokenILike, TokenLikeCS:
		p.advance()
		return &LikeClause{TokenPos: start.Pos, Field: field, Value: p.parseLiteral(), CaseSensitive: op.Type == TokenLikeCS}

	case TokenIs:
		p.advance()
		_, not := p.match(TokenNot)
		if _, ok := p.expect(TokenNull); !ok {
			return nil
		}
		return &NullClause{TokenPos: start.Pos, Field: field, Not: not}
	}

	cmp, ok := p.parseCompOp()
	if !ok {
		tok := p.peek()
		p.addErrorWithSuggestion(tok,
			fmt.Sprintf("expected operator (=, !=, >, <, >=, <=, like, ilike, like_cs, in, is) after '%s', got %s", field, describe(tok)),
			suggestKeyword(tok, "like", "ilike", "like_cs", "in", "is"))
		return nil
	}
	return &ComparisonClause{TokenPos: start.Pos, Field: field, Op: cmp, Value: p.parseLiteral()}
}

func (p *Parser) parseCompOp() (CompOp, bool) {
	ops := map[TokenType]CompOp{
		TokenEQ:  CompEQ,
		TokenNEQ: CompNEQ,
		TokenGT:  CompGT,
		TokenLT:  CompLT,
		TokenGTE: CompGTE,
		TokenLTE: CompLTE,
	}
	op, ok := ops[p.peek().Type]
	if ok {
		p.advance()
	}
	return op, ok
}

func (p *Parser) parseLiteral() Literal {
	tok := p.peek()
	types := map[TokenType]LiteralType{
		TokenString: LitString,
		TokenInt:    LitInt,
		TokenFloat:  LitFloat,
		TokenBool:   LitBool,
		TokenNull:   LitNull,
	}
	if lt, ok := types[tok.Type]; ok {
		p.advance()
		return Literal{TokenPos: tok.Pos, Type: lt, Raw: tok.Literal}
	}
	p.addError(tok, fmt.Sprintf("expected literal value, got %s", describe(tok)))
	p.advance()
	return Literal{TokenPos: tok.Pos, Type: LitNull, Raw: "null"}
}

// parseList reads a comma-separated literal list between openTok and closeTok.
func (p *Parser) parseList(openTok, closeTok TokenType) []Literal {
	if _, ok := p.expect(openTok); !ok {
		return nil
	}
	values := []Literal{}
	for !p.check(closeTok) && !p.atEnd() {
		values = append(values, p.parseLiteral())
		if !p.check(closeTok) {
			if _, ok := p.expect(TokenComma); !ok {
				return values
			}
		}
	}
	p.expect(closeTok)
	return values
}

// ── ORDER BY / LIMIT / OFFSET ───────────────────────────────────────────────

func (p *Parser) parseOrderBy() *OrderByClause {
	p.advance() // 'order'
	if _, ok := p.expect(TokenBy); !ok {
		return nil
	}

	clause := &OrderByClause{}
	for {
		if !p.check(TokenIdent) {
			p.addError(p.peek(), fmt.Sprintf("expected field name in order by, got %s", describe(p.peek())))
			return nil
		}
		item := OrderItem{Field: p.parseFieldRef()}
		if _, ok := p.match(TokenDesc); ok {
			item.Desc = true
		} else {
			p.match(TokenAsc)
		}
		clause.Items = append(clause.Items, item)
		if _, ok := p.match(TokenComma); !ok {
			return clause
		}
	}
}

// parseCount_ reads the non-negative integer after a limit or offset keyword.
func (p *Parser) parseNonNegative(what string) int {
	p.advance() // keyword
	tok, ok := p.expect(TokenInt)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(tok.Literal)
	if err != nil || n < 0 {
		p.addError(tok, fmt.Sprintf("invalid %s value: %s", what, tok.Literal))
		return 0
	}
	return n
}

// ── Field references ────────────────────────────────────────────────────────

func (p *Parser) parseFieldRef() FieldRef {
	ref := FieldRef{}
	tok := p.advance() // first identifier
	ref.Parts = append(ref.Parts, strings.ToLower(tok.Literal))

	for p.check(TokenDot) {
		p.advance()
		if !p.check(TokenIdent) {
			p.addError(p.peek(), "expected field name after '.'")
			break
		}
		tok = p.advance()
		ref.Parts = append(ref.Parts, strings.ToLower(tok.Literal))
	}
	return ref
}
