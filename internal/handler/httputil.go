package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/planner"
	"github.com/matthewbaird/filterspec/internal/spec"
)

// maxBodyBytes bounds request documents.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string           `json:"error"`
	Code    string           `json:"code"`
	Hint    string           `json:"hint,omitempty"`
	Details []*fql.ParseError `json:"details,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("encode response")
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Error: message, Code: code})
}

// decodeJSON decodes the request body into v. Numbers decode as
// json.Number so integer literals stay exact. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseNonNegative reads an optional non-negative integer query parameter.
func parseNonNegative(r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// queryErrorToHTTP maps parse, planning and execution errors to HTTP
// responses.
func queryErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	var list fql.ErrorList
	if errors.As(err, &list) {
		resp := errorResponse{Error: err.Error(), Code: "SYNTAX_ERROR", Details: list}
		writeJSON(w, r, http.StatusBadRequest, resp)
		return
	}

	status, code := http.StatusInternalServerError, ""
	switch {
	case errors.Is(err, planner.ErrUnknownEntity), errors.Is(err, executor.ErrUnknownEntity):
		status, code = http.StatusNotFound, "UNKNOWN_ENTITY"
	case errors.Is(err, ErrInvalidDocument):
		status, code = http.StatusBadRequest, "INVALID_DOCUMENT"
	case errors.Is(err, planner.ErrUnknownField), errors.Is(err, executor.ErrUnknownField):
		status, code = http.StatusBadRequest, "UNKNOWN_FIELD"
	case errors.Is(err, planner.ErrUnknownRelation), errors.Is(err, executor.ErrUnknownRelation):
		status, code = http.StatusBadRequest, "UNKNOWN_RELATION"
	case errors.Is(err, planner.ErrInvalidPath), errors.Is(err, executor.ErrNotRelation), errors.Is(err, spec.ErrMalformedPath):
		status, code = http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, planner.ErrInvalidLiteral), errors.Is(err, spec.ErrTypeMismatch):
		status, code = http.StatusBadRequest, "INVALID_VALUE"
	case errors.Is(err, planner.ErrUnsupported), errors.Is(err, executor.ErrUnsupportedPlan),
		errors.Is(err, executor.ErrInvalidFunction), errors.Is(err, executor.ErrMissingParam):
		status, code = http.StatusBadRequest, "UNSUPPORTED"
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("query failed")
		writeError(w, r, status, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeJSON(w, r, status, errorResponse{
		Error: err.Error(),
		Code:  code,
		Hint:  errors.FlattenHints(err),
	})
}
