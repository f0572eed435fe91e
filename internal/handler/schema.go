package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/filterspec/internal/schema"
)

// SchemaHandler serves the entity registry.
type SchemaHandler struct {
	registry *schema.Registry
}

// NewSchemaHandler creates a SchemaHandler.
func NewSchemaHandler(registry *schema.Registry) *SchemaHandler {
	return &SchemaHandler{registry: registry}
}

type entityResponse struct {
	Name      string             `json:"name"`
	Table     string             `json:"table"`
	ID        string             `json:"id"`
	Fields    []fieldResponse    `json:"fields"`
	Relations []relationResponse `json:"relations,omitempty"`
}

type fieldResponse struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Optional bool     `json:"optional,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

type relationResponse struct {
	Name        string `json:"name"`
	Target      string `json:"target"`
	Cardinality string `json:"cardinality"`
	ToMany      bool   `json:"to_many"`
}

// List returns every entity in name order.
func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	out := make([]entityResponse, 0, len(h.registry.EntityNames()))
	for _, name := range h.registry.EntityNames() {
		out = append(out, describeEntity(h.registry.Entity(name)))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// Get returns the entity named by {entity}.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "entity"))
	es := h.registry.Entity(name)
	if es == nil {
		resp := errorResponse{Error: "unknown entity '" + name + "'", Code: "UNKNOWN_ENTITY"}
		if s := schema.SuggestFrom(name, h.registry.EntityNames(), 2); s != "" {
			resp.Hint = "did you mean '" + s + "'?"
		}
		writeJSON(w, r, http.StatusNotFound, resp)
		return
	}
	writeJSON(w, r, http.StatusOK, describeEntity(es))
}

func describeEntity(es *schema.EntitySchema) entityResponse {
	out := entityResponse{Name: es.Name, Table: es.Table, ID: es.ID, Fields: []fieldResponse{}}
	for _, name := range es.FieldOrder {
		f := es.Fields[name]
		out.Fields = append(out.Fields, fieldResponse{
			Name:     f.Name,
			Type:     f.Type.String(),
			Optional: f.Optional,
			Enum:     f.EnumValues,
		})
	}
	for _, name := range es.EdgeOrder {
		e := es.Edges[name]
		out.Relations = append(out.Relations, relationResponse{
			Name:        e.Name,
			Target:      e.Target,
			Cardinality: string(e.Cardinality),
			ToMany:      !e.Unique(),
		})
	}
	return out
}
