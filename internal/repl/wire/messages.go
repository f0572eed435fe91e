// Package wire defines the REPL WebSocket protocol and its connection
// handler.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/repl/autocomplete"
)

// Client message types.
const (
	TypeExecute      = "execute"
	TypeAutocomplete = "autocomplete"
	TypePing         = "ping"
	TypeCancel       = "cancel"
)

// Server message types.
const (
	TypeSession     = "session"
	TypeMeta        = "meta"
	TypeRows        = "rows"
	TypeCount       = "count"
	TypeOutput      = "output"
	TypeDone        = "done"
	TypeError       = "error"
	TypeCompletions = "completions"
	TypePong        = "pong"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is a message sent from the client to the server.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ExecuteData is the payload for an "execute" message.
type ExecuteData struct {
	FQL string `json:"fql"`
}

// AutocompleteData is the payload for an "autocomplete" message.
type AutocompleteData struct {
	FQL    string `json:"fql"`
	Cursor int    `json:"cursor"`
}

// CancelData is the payload for a "cancel" message. RequestID names the
// execute message to cancel.
type CancelData struct {
	RequestID string `json:"request_id"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is a message sent from the server to the client.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// MetaData describes the result set before rows are streamed.
type MetaData struct {
	Entity string `json:"entity"`
	Total  int    `json:"total"`
}

// RowsData carries one batch of result rows.
type RowsData struct {
	Rows []executor.Row `json:"rows"`
}

// CountData carries the result of a count statement.
type CountData struct {
	Count int `json:"count"`
}

// OutputData carries the text output of a meta-command.
type OutputData struct {
	Output string `json:"output"`
	Clear  bool   `json:"clear,omitempty"`
}

// DoneData signals the end of a request.
type DoneData struct {
	Total   int    `json:"total"`
	Elapsed string `json:"elapsed"`
}

// ErrorData describes a failed request. Line and Col are set for syntax
// errors.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
}

// CompletionsData carries autocomplete suggestions.
type CompletionsData struct {
	Items []autocomplete.CompletionItem `json:"items"`
}

// SessionData announces the session bound to the connection.
type SessionData struct {
	SessionID string `json:"session_id"`
	Resumed   bool   `json:"resumed,omitempty"`
}
