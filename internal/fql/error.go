package fql

import "fmt"

// ParseError is a structured error from the lexer or parser with position
// information and an optional suggestion.
type ParseError struct {
	Message    string `json:"message"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
	Pos        int    `json:"pos"`
	Suggestion string `json:"suggestion,omitempty"` // "did you mean 'where'?" or ""
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Message)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

func newParseErrorf(tok Token, format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Col:     tok.Col,
		Pos:     tok.Pos,
	}
}

// ErrorList is the set of errors reported for one input.
type ErrorList []*ParseError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}
