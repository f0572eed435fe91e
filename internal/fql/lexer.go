package fql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes FQL source text.
type Lexer struct {
	input  string
	pos    int // current byte position
	line   int // 1-based
	col    int // 1-based
	tokens []Token
	errors []*ParseError
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize scans the entire input and returns all tokens plus any errors.
// Comments are dropped.
func (l *Lexer) Tokenize() ([]Token, []*ParseError) {
	for {
		tok := l.next()
		if tok.Type == TokenComment {
			continue
		}
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return l.tokens, l.errors
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

func (l *Lexer) peekAt(offset int) rune {
	p := l.pos + offset
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.peek() {
		case ' ', '\t', '\r', '\n', ';':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) token(typ TokenType, lit string, start Token) Token {
	start.Type = typ
	start.Literal = lit
	return start
}

var twoCharOps = map[string]TokenType{
	"!=": TokenNEQ,
	"<>": TokenNEQ,
	">=": TokenGTE,
	"<=": TokenLTE,
}

// next scans and returns the next token.
func (l *Lexer) next() Token {
	l.skipWhitespace()
	start := Token{Pos: l.pos, Line: l.line, Col: l.col}
	if l.pos >= len(l.input) {
		return l.token(TokenEOF, "", start)
	}

	r := l.peek()
	switch {
	case r == ':':
		return l.scanMetaCmd(start)
	case r == '"' || r == '\'':
		return l.scanString(start)
	case isDigit(r), r == '-' && isDigit(l.peekAt(1)):
		return l.scanNumber(start)
	case isIdentStart(r):
		return l.scanIdent(start)
	case r == '-' && l.peekAt(1) == '-':
		return l.scanComment(start)
	}

	if l.pos+1 < len(l.input) {
		if typ, ok := twoCharOps[l.input[l.pos:l.pos+2]]; ok {
			lit := l.input[l.pos : l.pos+2]
			l.advance()
			l.advance()
			return l.token(typ, lit, start)
		}
	}

	l.advance()
	switch r {
	case '=':
		return l.token(TokenEQ, "=", start)
	case '>':
		return l.token(TokenGT, ">", start)
	case '<':
		return l.token(TokenLT, "<", start)
	case '.':
		return l.token(TokenDot, ".", start)
	case ',':
		return l.token(TokenComma, ",", start)
	case '(':
		return l.token(TokenLParen, "(", start)
	case ')':
		return l.token(TokenRParen, ")", start)
	case '[':
		return l.token(TokenLBrack, "[", start)
	case ']':
		return l.token(TokenRBrack, "]", start)
	}

	l.errors = append(l.errors, newParseErrorf(start, "unexpected character %q", r))
	return l.token(TokenIdent, string(r), start)
}

// scanString reads a quoted string literal. Backslash escapes \n, \t, \\
// and the quote characters.
func (l *Lexer) scanString(start Token) Token {
	quote := l.advance()
	var b strings.Builder
	for l.pos < len(l.input) {
		r := l.advance()
		if r == quote {
			return l.token(TokenString, b.String(), start)
		}
		if r == '\\' {
			next := l.advance()
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteRune(next)
			default:
				b.WriteByte('\\')
				b.WriteRune(next)
			}
			continue
		}
		b.WriteRune(r)
	}
	l.errors = append(l.errors, newParseErrorf(start, "unterminated string"))
	return l.token(TokenString, b.String(), start)
}

// scanNumber reads an integer or float literal with an optional leading
// minus sign.
func (l *Lexer) scanNumber(start Token) Token {
	begin := l.pos
	if l.peek() == '-' {
		l.advance()
	}
	isFloat := false
scan:
	for l.pos < len(l.input) {
		r := l.peek()
		switch {
		case isDigit(r):
			l.advance()
		case r == '.' && !isFloat && isDigit(l.peekAt(1)):
			isFloat = true
			l.advance()
		default:
			break scan
		}
	}
	lit := l.input[begin:l.pos]
	if isFloat {
		return l.token(TokenFloat, lit, start)
	}
	return l.token(TokenInt, lit, start)
}

func (l *Lexer) scanIdent(start Token) Token {
	begin := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	lit := l.input[begin:l.pos]
	return l.token(LookupKeyword(lit), lit, start)
}

// scanMetaCmd reads a meta-command such as :help or :explain.
func (l *Lexer) scanMetaCmd(start Token) Token {
	l.advance() // ':'
	begin := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	return l.token(TokenMetaCmd, ":"+l.input[begin:l.pos], start)
}

// scanComment reads a -- comment to end of line.
func (l *Lexer) scanComment(start Token) Token {
	begin := l.pos
	for l.pos < len(l.input) && l.peek() != '\n' {
		l.advance()
	}
	return l.token(TokenComment, l.input[begin:l.pos], start)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
