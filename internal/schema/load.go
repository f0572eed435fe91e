package schema

import (
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// definitions constrains CUE schema documents before they are decoded.
const definitions = `
#Field: {
	name:      =~"^[a-z_][a-z0-9_]*$"
	column?:   string
	type:      "string" | "int" | "int64" | "float" | "bool" | "time" | "enum" | "uuid" | "json"
	optional?: bool
	enum?: [...string]
}

#Edge: {
	name:        =~"^[a-z_][a-z0-9_]*$"
	target:      string
	cardinality: "O2O" | "O2M" | "M2O" | "M2M"
	column?:     string
	inverse?:    bool
	through?:    string
	through_columns?: [string, string]
}

#Entity: {
	name:   =~"^[a-z_][a-z0-9_]*$"
	go?:    string
	table?: string
	id?:    string
	fields: [...#Field]
	edges?: [...#Edge]
}

entities: [...#Entity]
`

type document struct {
	Entities []entityDoc `json:"entities" yaml:"entities"`
}

type entityDoc struct {
	Name   string     `json:"name" yaml:"name"`
	Go     string     `json:"go,omitempty" yaml:"go"`
	Table  string     `json:"table,omitempty" yaml:"table"`
	ID     string     `json:"id,omitempty" yaml:"id"`
	Fields []fieldDoc `json:"fields" yaml:"fields"`
	Edges  []edgeDoc  `json:"edges,omitempty" yaml:"edges"`
}

type fieldDoc struct {
	Name     string   `json:"name" yaml:"name"`
	Column   string   `json:"column,omitempty" yaml:"column"`
	Type     string   `json:"type" yaml:"type"`
	Optional bool     `json:"optional,omitempty" yaml:"optional"`
	Enum     []string `json:"enum,omitempty" yaml:"enum"`
}

type edgeDoc struct {
	Name           string   `json:"name" yaml:"name"`
	Target         string   `json:"target" yaml:"target"`
	Cardinality    string   `json:"cardinality" yaml:"cardinality"`
	Column         string   `json:"column,omitempty" yaml:"column"`
	Inverse        bool     `json:"inverse,omitempty" yaml:"inverse"`
	Through        string   `json:"through,omitempty" yaml:"through"`
	ThroughColumns []string `json:"through_columns,omitempty" yaml:"through_columns"`
}

// Load reads a schema document, choosing the format by file extension
// (.cue, .yaml or .yml).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path, data)
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return nil, errors.Newf("schema %s: unsupported format %q", path, filepath.Ext(path))
	}
}

// LoadCUE builds a registry from a CUE document. filename is used in error
// positions only.
func LoadCUE(filename string, data []byte) (*Registry, error) {
	ctx := cuecontext.New()
	defs := ctx.CompileString(definitions, cue.Filename("definitions.cue"))
	if err := defs.Err(); err != nil {
		return nil, errors.Wrap(err, "compile schema definitions")
	}
	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, errors.Wrapf(err, "compile %s", filename)
	}
	entities := defs.Unify(doc).LookupPath(cue.ParsePath("entities"))
	if err := entities.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.Wrapf(ErrInvalidSchema, "%s: %v", filename, err)
	}
	var d document
	if err := entities.Decode(&d.Entities); err != nil {
		return nil, errors.Wrapf(err, "decode %s", filename)
	}
	return d.registry()
}

// LoadYAML builds a registry from a YAML document.
func LoadYAML(data []byte) (*Registry, error) {
	var d document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "decode yaml schema")
	}
	return d.registry()
}

func (d *document) registry() (*Registry, error) {
	r := NewRegistry()
	for _, ed := range d.Entities {
		if ed.Name == "" {
			return nil, errors.Wrap(ErrInvalidSchema, "entity without a name")
		}
		if r.Entity(ed.Name) != nil {
			return nil, errors.Wrapf(ErrInvalidSchema, "duplicate entity %q", ed.Name)
		}
		es := &EntitySchema{
			Name:    ed.Name,
			EntName: ed.Go,
			Table:   ed.Table,
			ID:      ed.ID,
			Fields:  make(map[string]*FieldMeta, len(ed.Fields)),
			Edges:   make(map[string]*EdgeMeta, len(ed.Edges)),
		}
		for _, fd := range ed.Fields {
			ft, err := ParseFieldType(fd.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", ed.Name, fd.Name)
			}
			if ft == FieldEnum && len(fd.Enum) == 0 {
				return nil, errors.Wrapf(ErrInvalidSchema, "%s.%s: enum field without values", ed.Name, fd.Name)
			}
			if _, dup := es.Fields[fd.Name]; dup {
				return nil, errors.Wrapf(ErrInvalidSchema, "%s: duplicate field %q", ed.Name, fd.Name)
			}
			es.Fields[fd.Name] = &FieldMeta{
				Name:       fd.Name,
				Column:     fd.Column,
				Type:       ft,
				Optional:   fd.Optional,
				EnumValues: fd.Enum,
			}
			es.FieldOrder = append(es.FieldOrder, fd.Name)
		}
		for _, eg := range ed.Edges {
			if _, dup := es.Edges[eg.Name]; dup {
				return nil, errors.Wrapf(ErrInvalidSchema, "%s: duplicate edge %q", ed.Name, eg.Name)
			}
			e := &EdgeMeta{
				Name:        eg.Name,
				Target:      eg.Target,
				Cardinality: Cardinality(eg.Cardinality),
				Column:      eg.Column,
				Inverse:     eg.Inverse,
				Through:     eg.Through,
			}
			if len(eg.ThroughColumns) > 0 {
				if len(eg.ThroughColumns) != 2 {
					return nil, errors.Wrapf(ErrInvalidSchema, "%s.%s: through_columns needs two entries", ed.Name, eg.Name)
				}
				e.ThroughColumns = [2]string{eg.ThroughColumns[0], eg.ThroughColumns[1]}
			}
			es.Edges[eg.Name] = e
			es.EdgeOrder = append(es.EdgeOrder, eg.Name)
		}
		r.Register(es)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
