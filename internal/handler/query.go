// Package handler implements the HTTP query API: JSON filter documents and
// FQL statements run against the schema's entities.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/planner"
)

// Runner executes query plans and renders their statements.
type Runner interface {
	Execute(ctx context.Context, plan *planner.QueryPlan) (*executor.Result, error)
	ExplainPlan(plan *planner.QueryPlan) (*executor.Statement, error)
}

// QueryHandler implements the HTTP query endpoints.
type QueryHandler struct {
	planner *planner.Planner
	runner  Runner
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(p *planner.Planner, runner Runner) *QueryHandler {
	return &QueryHandler{planner: p, runner: runner}
}

// queryResponse is the body of a successful query.
type queryResponse struct {
	Entity  string              `json:"entity"`
	Rows    []executor.Row      `json:"rows,omitzero"`
	Count   *int                `json:"count,omitempty"`
	Total   int                 `json:"total"`
	Explain *executor.Statement `json:"explain,omitempty"`
	Elapsed string              `json:"elapsed"`
}

type fqlRequest struct {
	FQL string `json:"fql"`
}

// Query runs a filter document against {entity} and returns the matching
// rows. ?limit and ?offset override the document's paging; ?explain=true
// adds the SQL statement to the response.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var doc QueryDocument
	if !h.decodeDocument(w, r, &doc) {
		return
	}
	limit, ok := parseNonNegative(r, "limit")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAM", "limit must be a non-negative integer")
		return
	}
	if limit > 0 {
		doc.Limit = limit
	}
	offset, ok := parseNonNegative(r, "offset")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAM", "offset must be a non-negative integer")
		return
	}
	if offset > 0 {
		doc.Offset = offset
	}

	stmt, err := doc.findStatement(chi.URLParam(r, "entity"))
	if err != nil {
		queryErrorToHTTP(w, r, err)
		return
	}
	h.run(w, r, stmt)
}

// Count runs a filter document against {entity} and returns the number of
// matching rows.
func (h *QueryHandler) Count(w http.ResponseWriter, r *http.Request) {
	var doc QueryDocument
	if !h.decodeDocument(w, r, &doc) {
		return
	}
	stmt, err := doc.countStatement(chi.URLParam(r, "entity"))
	if err != nil {
		queryErrorToHTTP(w, r, err)
		return
	}
	h.run(w, r, stmt)
}

// FQL runs one find or count statement given as {"fql": "..."}.
func (h *QueryHandler) FQL(w http.ResponseWriter, r *http.Request) {
	var req fqlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if strings.TrimSpace(req.FQL) == "" {
		writeError(w, r, http.StatusBadRequest, "EMPTY_QUERY", "fql is required")
		return
	}
	stmt, err := fql.ParseOne(req.FQL)
	if err != nil {
		queryErrorToHTTP(w, r, err)
		return
	}
	if _, ok := stmt.(*fql.MetaCmdStmt); ok {
		writeError(w, r, http.StatusBadRequest, "UNSUPPORTED", "meta-commands are only available in the REPL")
		return
	}
	h.run(w, r, stmt)
}

func (h *QueryHandler) decodeDocument(w http.ResponseWriter, r *http.Request, doc *QueryDocument) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := decodeJSON(w, r, doc); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

func (h *QueryHandler) run(w http.ResponseWriter, r *http.Request, stmt fql.Statement) {
	start := time.Now()
	plan, err := h.planner.Plan(stmt)
	if err != nil {
		queryErrorToHTTP(w, r, err)
		return
	}

	var explain *executor.Statement
	if r.URL.Query().Get("explain") == "true" {
		if explain, err = h.runner.ExplainPlan(plan); err != nil {
			queryErrorToHTTP(w, r, err)
			return
		}
	}

	result, err := h.runner.Execute(r.Context(), plan)
	if err != nil {
		queryErrorToHTTP(w, r, err)
		return
	}

	resp := queryResponse{
		Entity:  plan.Entity,
		Rows:    result.Rows,
		Count:   result.Count,
		Explain: explain,
		Elapsed: time.Since(start).String(),
	}
	if result.Meta != nil {
		resp.Total = result.Meta.Total
	}
	if plan.Type == planner.PlanFind && resp.Rows == nil {
		resp.Rows = []executor.Row{}
	}
	writeJSON(w, r, http.StatusOK, resp)
}
