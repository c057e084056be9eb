// Package manifest is the serialized form of a compiled program. A manifest
// carries everything the runtime needs to execute statements and to
// invalidate queries, so applications can load it without the compiler.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/querygen"
)

// Format is a manifest encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension, defaulting to JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Type is a serialized core.IntermediateType.
type Type struct {
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Custom   string `json:"custom,omitempty" yaml:"custom,omitempty"`
	Dialect  string `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	GoType   string `json:"go_type" yaml:"go_type"`
}

func typeOf(t core.IntermediateType) Type {
	out := Type{
		Type:     t.Type.String(),
		Nullable: t.Nullable,
		Custom:   t.CustomType,
		GoType:   t.GoType(),
	}
	if t.Dialect != nil {
		out.Dialect = t.Dialect.Name()
	}
	return out
}

// Storage returns the base type, TypeNull when the name is unknown.
func (t Type) Storage() core.SemanticType {
	st, _ := core.ParseSemanticType(t.Type)
	return st.Storage()
}

// Column is one result column.
type Column struct {
	Name   string `json:"name" yaml:"name"`
	GoName string `json:"go_name" yaml:"go_name"`
	Type   Type   `json:"type" yaml:"type"`
}

// Argument is one statement parameter.
type Argument struct {
	Index  int    `json:"index" yaml:"index"`
	Name   string `json:"name" yaml:"name"`
	GoName string `json:"go_name" yaml:"go_name"`
	Type   Type   `json:"type" yaml:"type"`
	Array  bool   `json:"array,omitempty" yaml:"array,omitempty"`
}

// Statement is one named statement with its execution plan.
type Statement struct {
	ID        uint32        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	File      string        `json:"file" yaml:"file"`
	Doc       string        `json:"doc,omitempty" yaml:"doc,omitempty"`
	Kind      compiler.Kind `json:"kind" yaml:"kind"`
	Tables    []string      `json:"tables,omitempty" yaml:"tables,omitempty"`
	Arguments []Argument    `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Columns   []Column      `json:"columns,omitempty" yaml:"columns,omitempty"`
	// Table and Target are set for mutators.
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Affected lists the ids of the queries a mutator can change.
	Affected []uint32      `json:"affected,omitempty" yaml:"affected,omitempty"`
	Plan     querygen.Plan `json:"plan" yaml:"plan"`
}

// QualifiedName is File.name with the file extension removed.
func (s *Statement) QualifiedName() string {
	return strings.TrimSuffix(s.File, compiler.QueriesExt) + "." + s.Name
}

// Migration is one versioned migration.
type Migration struct {
	Version    int      `json:"version" yaml:"version"`
	File       string   `json:"file" yaml:"file"`
	Statements []string `json:"statements" yaml:"statements"`
}

// Manifest is a compiled program.
type Manifest struct {
	Dialect    string      `json:"dialect" yaml:"dialect"`
	Version    int         `json:"version" yaml:"version"`
	Schema     []string    `json:"schema,omitempty" yaml:"schema,omitempty"`
	Migrations []Migration `json:"migrations,omitempty" yaml:"migrations,omitempty"`
	Statements []Statement `json:"statements" yaml:"statements"`
}

// FromProgram converts a compiled program.
func FromProgram(p *compiler.Program) *Manifest {
	m := &Manifest{Dialect: p.Dialect.Name, Version: p.Version()}
	for _, s := range p.Schema {
		m.Schema = append(m.Schema, s.SQL)
	}
	for _, mg := range p.Migrations {
		m.Migrations = append(m.Migrations, Migration{Version: mg.Version, File: mg.File, Statements: mg.Statements})
	}
	for _, q := range p.Queries {
		s := statement(&q.Statement)
		s.Columns = columns(q.Columns)
		m.Statements = append(m.Statements, s)
	}
	for _, mu := range p.Mutators {
		s := statement(&mu.Statement)
		s.Columns = columns(mu.Columns)
		s.Table = mu.Table
		s.Target = mu.Target
		s.Affected = mu.Affected
		m.Statements = append(m.Statements, s)
	}
	for _, e := range p.Executes {
		m.Statements = append(m.Statements, statement(&e.Statement))
	}
	return m
}

func statement(s *compiler.Statement) Statement {
	out := Statement{
		ID:     s.ID,
		Name:   s.Name,
		File:   s.File,
		Doc:    s.Doc,
		Kind:   s.Kind,
		Tables: s.Tables,
		Plan:   querygen.Build(s),
	}
	for _, a := range s.Arguments {
		out.Arguments = append(out.Arguments, Argument{
			Index:  a.Index,
			Name:   a.Name,
			GoName: a.GoName,
			Type:   typeOf(a.Type),
			Array:  a.Array,
		})
	}
	return out
}

func columns(cols []compiler.Column) []Column {
	var out []Column
	for _, c := range cols {
		out = append(out, Column{Name: c.Name, GoName: c.GoName, Type: typeOf(c.Type)})
	}
	return out
}

// Lookup finds a statement by label or by File.label. A bare label shared
// by several files is an error.
func (m *Manifest) Lookup(name string) (*Statement, error) {
	var found []*Statement
	for i := range m.Statements {
		s := &m.Statements[i]
		if s.QualifiedName() == name {
			return s, nil
		}
		if s.Name == name {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf(compiler.ErrStatementNotFound, name)
	case 1:
		return found[0], nil
	default:
		files := make([]string, len(found))
		for i, s := range found {
			files[i] = s.File
		}
		return nil, fmt.Errorf(compiler.ErrAmbiguousName, name, strings.Join(files, ", "))
	}
}

// Statement returns the statement with the given id.
func (m *Manifest) Statement(id uint32) (*Statement, bool) {
	i := slices.IndexFunc(m.Statements, func(s Statement) bool { return s.ID == id })
	if i < 0 {
		return nil, false
	}
	return &m.Statements[i], true
}

// Encode writes the manifest in the given format.
func (m *Manifest) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown manifest format %q", format)
	}
}

// Decode reads a manifest in the given format.
func Decode(r io.Reader, format Format) (*Manifest, error) {
	m := &Manifest{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(m)
	case FormatJSON, "":
		err = json.NewDecoder(r).Decode(m)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Save writes the manifest to path, choosing the format by extension.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := m.Encode(f, FormatOf(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads the manifest at path, choosing the format by extension.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f, FormatOf(path))
}
