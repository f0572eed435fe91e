package fql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Keywords(t *testing.T) {
	tokens, errs := NewLexer(`find person where status = "ACTIVE" limit 10`).Tokenize()
	require.Empty(t, errs)

	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenFind, "find"},
		{TokenIdent, "person"},
		{TokenWhere, "where"},
		{TokenIdent, "status"},
		{TokenEQ, "="},
		{TokenString, "ACTIVE"},
		{TokenLimit, "limit"},
		{TokenInt, "10"},
		{TokenEOF, ""},
	}

	require.Len(t, tokens, len(expected))
	for i, exp := range expected {
		assert.Equal(t, exp.typ, tokens[i].Type, "token %d type", i)
		assert.Equal(t, exp.lit, tokens[i].Literal, "token %d literal", i)
	}
}

func TestLexer_CaseInsensitiveKeywords(t *testing.T) {
	tokens, errs := NewLexer("COUNT Person WHERE Name ILIKE 'a'").Tokenize()
	require.Empty(t, errs)

	assert.Equal(t, TokenCount, tokens[0].Type)
	assert.Equal(t, TokenIdent, tokens[1].Type)
	assert.Equal(t, TokenWhere, tokens[2].Type)
	assert.Equal(t, TokenIdent, tokens[3].Type)
	assert.Equal(t, TokenILike, tokens[4].Type)
}

func TestLexer_Operators(t *testing.T) {
	tokens, errs := NewLexer(`= != <> > < >= <= . , ( ) [ ]`).Tokenize()
	require.Empty(t, errs)

	expected := []TokenType{
		TokenEQ, TokenNEQ, TokenNEQ, TokenGT, TokenLT, TokenGTE, TokenLTE,
		TokenDot, TokenComma, TokenLParen, TokenRParen, TokenLBrack, TokenRBrack, TokenEOF,
	}
	require.Len(t, tokens, len(expected))
	for i, exp := range expected {
		assert.Equal(t, exp, tokens[i].Type, "token %d", i)
	}
}

func TestLexer_StringLiterals(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"hello"`, "hello"},
		{`'world'`, "world"},
		{`"with \"escape\""`, `with "escape"`},
		{`'it\'s'`, "it's"},
		{`"line\nbreak"`, "line\nbreak"},
		{`"50%_off"`, "50%_off"},
	}

	for _, tt := range tests {
		tokens, errs := NewLexer(tt.input).Tokenize()
		require.Empty(t, errs)
		require.Len(t, tokens, 2)
		assert.Equal(t, TokenString, tokens[0].Type)
		assert.Equal(t, tt.expected, tokens[0].Literal)
	}
}

func TestLexer_Numbers(t *testing.T) {
	tokens, errs := NewLexer(`42 3.14 -7 -0.5 1.`).Tokenize()
	require.Empty(t, errs)

	assert.Equal(t, Token{Type: TokenInt, Literal: "42", Pos: 0, Line: 1, Col: 1}, tokens[0])
	assert.Equal(t, TokenFloat, tokens[1].Type)
	assert.Equal(t, "3.14", tokens[1].Literal)
	assert.Equal(t, TokenInt, tokens[2].Type)
	assert.Equal(t, "-7", tokens[2].Literal)
	assert.Equal(t, TokenFloat, tokens[3].Type)
	assert.Equal(t, "-0.5", tokens[3].Literal)
	// A trailing dot is not part of the number.
	assert.Equal(t, TokenInt, tokens[4].Type)
	assert.Equal(t, TokenDot, tokens[5].Type)
}

func TestLexer_BoolAndNull(t *testing.T) {
	tokens, errs := NewLexer(`true FALSE null`).Tokenize()
	require.Empty(t, errs)
	assert.Equal(t, TokenBool, tokens[0].Type)
	assert.Equal(t, TokenBool, tokens[1].Type)
	assert.Equal(t, "FALSE", tokens[1].Literal)
	assert.Equal(t, TokenNull, tokens[2].Type)
}

func TestLexer_MetaCommand(t *testing.T) {
	tokens, errs := NewLexer(`:explain find person`).Tokenize()
	require.Empty(t, errs)
	assert.Equal(t, TokenMetaCmd, tokens[0].Type)
	assert.Equal(t, ":explain", tokens[0].Literal)
	assert.Equal(t, TokenFind, tokens[1].Type)
}

func TestLexer_CommentsAndSemicolons(t *testing.T) {
	input := "find person -- everyone\n;count person;"
	tokens, errs := NewLexer(input).Tokenize()
	require.Empty(t, errs)

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{TokenFind, TokenIdent, TokenCount, TokenIdent, TokenEOF}, types)
	assert.Equal(t, 2, tokens[2].Line)
	assert.Equal(t, 2, tokens[2].Col)
}

func TestLexer_Errors(t *testing.T) {
	_, errs := NewLexer(`find person where name = "open`).Tokenize()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "unterminated string")
	assert.Equal(t, 26, errs[0].Col)

	_, errs = NewLexer(`find person where a @ 1`).Tokenize()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `unexpected character '@'`)
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "identifier", TokenIdent.String())
	assert.Equal(t, ">=", TokenGTE.String())
	assert.Equal(t, "where", TokenWhere.String())
	assert.Equal(t, "ilike", TokenILike.String())
	assert.Equal(t, "like_cs", TokenLikeCS.String())
	assert.Equal(t, "boolean", TokenBool.String())
	assert.True(t, TokenFind.IsVerb())
	assert.False(t, TokenWhere.IsVerb())
	assert.True(t, TokenOrder.IsClause())
}
