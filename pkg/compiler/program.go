package compiler

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/infer"
	"github.com/leapstack-labs/leapquery/pkg/schema"
)

// Kind classifies a named statement.
type Kind string

// Kind constants.
const (
	KindQuery   Kind = "query"
	KindInsert  Kind = "insert"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindExecute Kind = "execute"
)

// Argument is one parameter of a named statement. Repeated occurrences of
// the same named or indexed placeholder share one Argument.
type Argument struct {
	Index  int    // 1-based position in the argument list
	Name   string // allocated accessor name
	GoName string
	Type   core.IntermediateType
	Array  bool // bound to a runtime-length IN list
	Binds  []*core.BindParam
}

// Column is one result column of a query or RETURNING clause.
type Column struct {
	Name   string // allocated accessor name
	GoName string
	Type   core.IntermediateType
}

// Statement is what the named statement kinds share.
type Statement struct {
	ID        uint32
	Name      string // the label
	File      string
	Doc       string
	Kind      Kind
	SQL       string // statement text without label
	Offset    int    // byte offset of SQL within the source file
	Stmt      core.Stmt
	Arguments []*Argument
	Tables    []string // observed base tables, sorted
}

// QualifiedName is File.name with the file extension removed.
func (s *Statement) QualifiedName() string {
	return strings.TrimSuffix(s.File, QueriesExt) + "." + s.Name
}

// NamedQuery is a labeled SELECT.
type NamedQuery struct {
	Statement
	Columns []Column
}

// NamedMutator is a labeled INSERT, UPDATE or DELETE.
type NamedMutator struct {
	Statement
	// Table is the single base table the statement writes.
	Table string
	// Target is the table or view named in the statement.
	Target string
	// Columns holds the RETURNING columns, if any.
	Columns []Column
	// Affected holds the ids of the queries the mutation can change.
	Affected []uint32
}

// NamedExecute is any other labeled statement.
type NamedExecute struct {
	Statement
}

// SchemaStatement is one unlabeled statement creating the schema.
type SchemaStatement struct {
	File string
	SQL  string
}

// Migration is one .sqm file.
type Migration struct {
	Version    int
	File       string
	Statements []string
}

// Program is the output of a compile run.
type Program struct {
	Dialect    *dialect.Dialect
	Catalog    *schema.Catalog
	Queries    []*NamedQuery
	Mutators   []*NamedMutator
	Executes   []*NamedExecute
	Schema     []SchemaStatement
	Migrations []Migration

	engine   *infer.Engine
	triggers map[string][]write // trigger name to the writes of its body
}

// Version is the schema version: one more than the highest migration.
func (p *Program) Version() int {
	v := 0
	for _, m := range p.Migrations {
		v = max(v, m.Version)
	}
	return v + 1
}

// StatementID derives the stable id of a labeled statement.
func StatementID(file, label string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(file + ":" + label))
	return h.Sum32()
}

// Statements returns every named statement.
func (p *Program) Statements() []*Statement {
	var out []*Statement
	for _, q := range p.Queries {
		out = append(out, &q.Statement)
	}
	for _, m := range p.Mutators {
		out = append(out, &m.Statement)
	}
	for _, e := range p.Executes {
		out = append(out, &e.Statement)
	}
	return out
}

// Lookup finds a statement by label or by File.label. A bare label shared
// by several files is an error.
func (p *Program) Lookup(name string) (*Statement, error) {
	var found []*Statement
	for _, s := range p.Statements() {
		if s.QualifiedName() == name {
			return s, nil
		}
		if s.Name == name {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf(ErrStatementNotFound, name)
	case 1:
		return found[0], nil
	default:
		files := make([]string, len(found))
		for i, s := range found {
			files[i] = s.File
		}
		return nil, fmt.Errorf(ErrAmbiguousName, name, strings.Join(files, ", "))
	}
}

// Query returns the named query with the given id.
func (p *Program) Query(id uint32) (*NamedQuery, bool) {
	for _, q := range p.Queries {
		if q.ID == id {
			return q, true
		}
	}
	return nil, false
}

// Mutator returns the named mutator with the given id.
func (p *Program) Mutator(id uint32) (*NamedMutator, bool) {
	for _, m := range p.Mutators {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}
