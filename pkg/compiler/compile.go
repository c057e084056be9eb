package compiler

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/infer"
	"github.com/leapstack-labs/leapquery/pkg/schema"
)

// Compile analyzes every file of the context into a Program. The program
// holds every statement that compiled; the returned error joins all
// diagnostics of the run, including those collected while loading.
func Compile(c *Context) (*Program, error) {
	start := time.Now()
	p := &Program{
		Dialect:  c.Dialect,
		Catalog:  c.Catalog,
		triggers: make(map[string][]write),
	}

	c.buildSchema(p)
	for _, err := range c.Catalog.Validate() {
		c.report("", err)
	}

	p.engine = infer.New(c.Catalog)
	c.resolveTriggers(p)
	for _, f := range c.Files {
		c.compileFile(p, f)
	}
	for _, m := range p.Mutators {
		for _, q := range p.AffectedQueries(m) {
			m.Affected = append(m.Affected, q.ID)
		}
	}

	c.logger.Info("compiled",
		"queries", len(p.Queries),
		"mutators", len(p.Mutators),
		"executes", len(p.Executes),
		"diagnostics", len(c.Diagnostics),
		"duration_ms", time.Since(start).Milliseconds())
	return p, c.Diagnostics.Err()
}

// buildSchema applies the schema DDL to the catalog: the unlabeled
// statements of the .sq files, or the migrations when the schema is derived
// from them.
func (c *Context) buildSchema(p *Program) {
	versions := make(map[int]string)
	for _, f := range c.Migrations() {
		if prev, ok := versions[f.Version]; ok {
			c.addDiagnostic(Diagnostic{File: f.Name, Message: fmt.Sprintf(ErrDuplicateVersion, f.Version, prev, f.Name)})
			continue
		}
		versions[f.Version] = f.Name

		m := Migration{Version: f.Version, File: f.Name}
		for _, ls := range f.Parsed.Statements {
			if ls.Label != "" {
				continue
			}
			m.Statements = append(m.Statements, ls.SQL(f.Source))
			if c.deriveFromMigrations {
				c.report(f.Name, c.Catalog.Apply(f.Name, ls.Stmt))
				p.Schema = append(p.Schema, SchemaStatement{File: f.Name, SQL: ls.SQL(f.Source)})
			}
		}
		p.Migrations = append(p.Migrations, m)
	}
	if c.deriveFromMigrations {
		return
	}

	for _, f := range c.QueryFiles() {
		for _, ls := range f.Parsed.Statements {
			if ls.Label != "" {
				continue
			}
			c.report(f.Name, c.Catalog.Apply(f.Name, ls.Stmt))
			p.Schema = append(p.Schema, SchemaStatement{File: f.Name, SQL: ls.SQL(f.Source)})
		}
	}
}

// resolveTriggers records the writes of every trigger body. A body
// statement whose target does not resolve to one table is an error.
func (c *Context) resolveTriggers(p *Program) {
	for _, tr := range c.Catalog.Triggers() {
		for _, stmt := range tr.Body {
			tn := mutationTarget(stmt)
			if tn == nil {
				continue
			}
			table, err := p.engine.SingleTable(tn)
			if err != nil {
				c.report(tr.File, err)
				continue
			}
			p.triggers[tr.Name] = append(p.triggers[tr.Name], writeOf(stmt, table, c.Catalog.Normalize(tn.Name)))
		}
	}
}

func (c *Context) compileFile(p *Program, f *SourceFile) {
	seen := make(map[string]bool)
	for _, ls := range f.Parsed.Statements {
		if ls.Label == "" {
			// Seed data in .sq files is checked but not exposed. Data
			// statements of migrations ran against an older schema.
			if !schema.IsDDL(ls.Stmt) && !f.Migration() {
				_, err := p.engine.Analyze(ls.Stmt)
				c.report(f.Name, err)
			}
			continue
		}
		if seen[ls.Label] {
			c.addDiagnostic(Diagnostic{File: f.Name, Pos: ls.LabelPos, Message: ErrDuplicateLabel})
			continue
		}
		seen[ls.Label] = true

		analyzed, err := p.engine.Analyze(ls.Stmt)
		if err != nil {
			c.report(f.Name, err)
			continue
		}
		base := Statement{
			ID:        StatementID(f.Name, ls.Label),
			Name:      ls.Label,
			File:      f.Name,
			Doc:       ls.Doc,
			SQL:       ls.SQL(f.Source),
			Offset:    ls.Stmt.Pos().Offset,
			Stmt:      ls.Stmt,
			Arguments: arguments(p.engine, analyzed),
			Tables:    analyzed.Tables,
		}

		switch ls.Stmt.(type) {
		case *core.SelectStmt:
			base.Kind = KindQuery
			p.Queries = append(p.Queries, &NamedQuery{Statement: base, Columns: columns(analyzed.Columns)})
		case *core.InsertStmt, *core.UpdateStmt, *core.DeleteStmt:
			base.Kind = mutationKind(ls.Stmt)
			p.Mutators = append(p.Mutators, &NamedMutator{
				Statement: base,
				Table:     analyzed.Target,
				Target:    analyzed.TargetName,
				Columns:   columns(analyzed.Columns),
			})
		default:
			base.Kind = KindExecute
			p.Executes = append(p.Executes, &NamedExecute{Statement: base})
		}
		c.logger.Debug("compiled statement", "file", f.Name, "name", ls.Label, "kind", base.Kind, "id", base.ID)
	}
}

func mutationKind(stmt core.Stmt) Kind {
	switch stmt.(type) {
	case *core.InsertStmt:
		return KindInsert
	case *core.UpdateStmt:
		return KindUpdate
	case *core.DeleteStmt:
		return KindDelete
	}
	return KindExecute
}

func mutationTarget(stmt core.Stmt) *core.TableName {
	switch s := stmt.(type) {
	case *core.InsertStmt:
		return s.Table
	case *core.UpdateStmt:
		return s.Table
	case *core.DeleteStmt:
		return s.Table
	}
	return nil
}
