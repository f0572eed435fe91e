// Package schema provides the entity metadata registry.
//
// The registry is loaded from a CUE or YAML schema document at startup and
// consumed by the planner (validation, relation kinds) and the executor
// (tables, columns and join conditions). The filter engine itself never
// consults it.
package schema

import (
	"reflect"
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrInvalidSchema is returned when a schema document is inconsistent.
var ErrInvalidSchema = errors.New("schema: invalid schema")

// FieldType classifies how a field is compared and how literals are coerced.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldInt64
	FieldFloat
	FieldBool
	FieldTime
	FieldEnum
	FieldUUID
	FieldJSON
)

var fieldTypeNames = map[FieldType]string{
	FieldString: "string",
	FieldInt:    "int",
	FieldInt64:  "int64",
	FieldFloat:  "float",
	FieldBool:   "bool",
	FieldTime:   "time",
	FieldEnum:   "enum",
	FieldUUID:   "uuid",
	FieldJSON:   "json",
}

// String returns the schema-document type name.
func (ft FieldType) String() string {
	if s, ok := fieldTypeNames[ft]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the type by name in JSON schema listings.
func (ft FieldType) MarshalText() ([]byte, error) {
	return []byte(ft.String()), nil
}

// ParseFieldType is the inverse of String.
func ParseFieldType(s string) (FieldType, error) {
	for ft, name := range fieldTypeNames {
		if name == s {
			return ft, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidSchema, "unknown field type %q", s)
}

// Comparable returns true if the field type supports ordering operators.
func (ft FieldType) Comparable() bool {
	switch ft {
	case FieldInt, FieldInt64, FieldFloat, FieldTime, FieldString:
		return true
	default:
		return false
	}
}

// Cardinality of an edge.
type Cardinality string

const (
	O2O Cardinality = "O2O"
	O2M Cardinality = "O2M"
	M2O Cardinality = "M2O"
	M2M Cardinality = "M2M"
)

// FieldMeta describes a single field on an entity.
type FieldMeta struct {
	Name       string    // filter name, e.g. "created_at"
	Column     string    // table column, defaults to Name
	Type       FieldType // logical type for operator validation
	Optional   bool      // nullable
	EnumValues []string  // non-nil for enum fields
}

// EdgeMeta describes a relation from one entity to another.
//
// Column is the foreign key. For M2O edges, and O2O edges that are not
// Inverse, it lives on the source table; for O2M and inverse O2O edges it
// lives on the target table. M2M edges go through the Through table, whose
// ThroughColumns reference the source and the target in that order.
type EdgeMeta struct {
	Name           string
	Target         string
	Cardinality    Cardinality
	Column         string
	Inverse        bool
	Through        string
	ThroughColumns [2]string
}

// Unique reports whether the edge yields at most one row.
func (e *EdgeMeta) Unique() bool {
	return e.Cardinality == O2O || e.Cardinality == M2O
}

// OwnsFK reports whether the foreign key column is on the source table.
func (e *EdgeMeta) OwnsFK() bool {
	return e.Cardinality == M2O || (e.Cardinality == O2O && !e.Inverse)
}

// EntitySchema holds the complete metadata for one entity.
type EntitySchema struct {
	Name       string                // filter name, e.g. "person"
	EntName    string                // Go type name, e.g. "Person"
	Table      string                // defaults to Name
	ID         string                // primary key column, defaults to "id"
	Fields     map[string]*FieldMeta // field name -> metadata
	Edges      map[string]*EdgeMeta  // edge name -> metadata
	FieldOrder []string              // fields in declaration order
	EdgeOrder  []string              // edges in declaration order
}

// Field returns the named field, or nil.
func (es *EntitySchema) Field(name string) *FieldMeta {
	return es.Fields[name]
}

// Edge returns the named edge, or nil.
func (es *EntitySchema) Edge(name string) *EdgeMeta {
	return es.Edges[name]
}

// Column maps a field name to its column. The primary key is addressable by
// its column name even when it is not declared as a field.
func (es *EntitySchema) Column(name string) (string, bool) {
	if f, ok := es.Fields[name]; ok {
		return f.Column, true
	}
	if name == es.ID {
		return es.ID, true
	}
	return "", false
}

// Columns returns the primary key followed by every field column, in
// declaration order.
func (es *EntitySchema) Columns() []string {
	cols := []string{es.ID}
	for _, name := range es.FieldOrder {
		if c := es.Fields[name].Column; c != es.ID {
			cols = append(cols, c)
		}
	}
	return cols
}

// Registry holds schema metadata for all entities. It is safe for
// concurrent reads once loading has finished.
type Registry struct {
	entities    map[string]*EntitySchema // name -> schema
	byGoName    map[string]*EntitySchema // EntName -> schema
	entityOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*EntitySchema),
		byGoName: make(map[string]*EntitySchema),
	}
}

// Register adds an entity schema to the registry, filling defaults.
func (r *Registry) Register(es *EntitySchema) {
	if es.Table == "" {
		es.Table = es.Name
	}
	if es.ID == "" {
		es.ID = "id"
	}
	if es.Fields == nil {
		es.Fields = make(map[string]*FieldMeta)
	}
	if es.Edges == nil {
		es.Edges = make(map[string]*EdgeMeta)
	}
	for _, f := range es.Fields {
		if f.Column == "" {
			f.Column = f.Name
		}
	}
	if _, ok := r.entities[es.Name]; !ok {
		r.entityOrder = append(r.entityOrder, es.Name)
		sort.Strings(r.entityOrder)
	}
	r.entities[es.Name] = es
	if es.EntName != "" {
		r.byGoName[es.EntName] = es
	}
}

// Entity returns the schema for a named entity, or nil if not found.
func (r *Registry) Entity(name string) *EntitySchema {
	return r.entities[name]
}

// EntityFor returns the schema whose Go name matches t's type name.
func (r *Registry) EntityFor(t reflect.Type) *EntitySchema {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return nil
	}
	return r.byGoName[t.Name()]
}

// EntityNames returns all registered entity names in sorted order.
func (r *Registry) EntityNames() []string {
	return r.entityOrder
}

// AllEntities returns all entity schemas.
func (r *Registry) AllEntities() map[string]*EntitySchema {
	return r.entities
}

// Validate checks that every edge points at a registered entity and carries
// the columns its cardinality needs.
func (r *Registry) Validate() error {
	for _, name := range r.entityOrder {
		es := r.entities[name]
		for _, fname := range es.FieldOrder {
			if es.Fields[fname] == nil {
				return errors.Wrapf(ErrInvalidSchema, "%s: field order names unknown field %q", name, fname)
			}
		}
		for _, ename := range es.EdgeOrder {
			e := es.Edges[ename]
			if e == nil {
				return errors.Wrapf(ErrInvalidSchema, "%s: edge order names unknown edge %q", name, ename)
			}
			if r.entities[e.Target] == nil {
				return errors.Wrapf(ErrInvalidSchema, "%s.%s: unknown target entity %q", name, ename, e.Target)
			}
			if _, clash := es.Fields[ename]; clash {
				return errors.Wrapf(ErrInvalidSchema, "%s.%s: edge name shadows a field", name, ename)
			}
			switch e.Cardinality {
			case M2M:
				if e.Through == "" || e.ThroughColumns[0] == "" || e.ThroughColumns[1] == "" {
					return errors.Wrapf(ErrInvalidSchema, "%s.%s: M2M edge needs a through table and two columns", name, ename)
				}
			case O2O, O2M, M2O:
				if e.Column == "" {
					return errors.Wrapf(ErrInvalidSchema, "%s.%s: %s edge needs a column", name, ename, e.Cardinality)
				}
			default:
				return errors.Wrapf(ErrInvalidSchema, "%s.%s: unknown cardinality %q", name, ename, e.Cardinality)
			}
		}
	}
	return nil
}

// Row is one dynamically typed entity instance keyed by field and edge name.
type Row map[string]any
