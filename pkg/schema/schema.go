package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Column is one column of a table.
type Column struct {
	Name         string
	DeclaredType string
	Type         core.SemanticType
	NotNull      bool
	PrimaryKey   bool
	HasDefault   bool
	CustomType   string
	Dialect      core.DialectType
	Pos          token.Position
}

// IntermediateType returns the inferred type of a reference to the column.
func (c *Column) IntermediateType() core.IntermediateType {
	t := core.NewType(c.Type).WithName(c.Name)
	t.Nullable = !c.NotNull
	t.CustomType = c.CustomType
	t.Dialect = c.Dialect
	return t
}

// ForeignKey is a REFERENCES clause of a table.
type ForeignKey struct {
	Columns    []string // referencing columns; one for a column constraint
	Table      string   // referenced table, normalized
	RefColumns []string
	OnDelete   core.FKAction
	OnUpdate   core.FKAction
	Pos        token.Position
}

// Trigger is a CREATE TRIGGER definition.
type Trigger struct {
	Name    string
	Table   string // target table or view, normalized
	Timing  core.TriggerTiming
	Event   core.TriggerEvent
	Columns []string // UPDATE OF columns
	Body    []core.Stmt
	File    string
	Pos     token.Position
	stmt    *core.CreateTriggerStmt
}

// FiresOnUpdateOf reports whether an UPDATE assigning columns fires the
// trigger. A trigger without an UPDATE OF list fires for every update.
func (t *Trigger) FiresOnUpdateOf(columns []string) bool {
	if t.Event != core.TriggerUpdate {
		return false
	}
	if len(t.Columns) == 0 {
		return true
	}
	for _, c := range columns {
		for _, tc := range t.Columns {
			if strings.EqualFold(c, tc) {
				return true
			}
		}
	}
	return false
}

// Index is a CREATE INDEX definition.
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// Table is a table or view of the catalog.
type Table struct {
	Name         string
	Columns      []*Column // nil for views and CREATE TABLE ... AS SELECT
	ForeignKeys  []*ForeignKey
	View         bool
	Virtual      bool
	WithoutRowID bool
	Select       *core.SelectStmt // view body or AS SELECT source
	ColumnNames  []string         // explicit view column list
	File         string
	Pos          token.Position
}

// Column looks a column up by name, case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// Derived reports whether the table's columns come from a SELECT.
func (t *Table) Derived() bool {
	return t.Select != nil
}

// Catalog holds every schema object declared so far.
type Catalog struct {
	dialect  *dialect.Dialect
	tables   map[string]*Table
	order    []string
	indexes  map[string]*Index
	triggers map[string]*Trigger
	trigOrd  []string
}

// New returns an empty catalog. The dialect decides name normalization and
// dialect column types; it may be nil for plain SQLite semantics.
func New(d *dialect.Dialect) *Catalog {
	return &Catalog{
		dialect:  d,
		tables:   make(map[string]*Table),
		indexes:  make(map[string]*Index),
		triggers: make(map[string]*Trigger),
	}
}

// Normalize returns the lookup key of a name.
func (c *Catalog) Normalize(name string) string {
	if c.dialect == nil {
		return strings.ToLower(name)
	}
	return c.dialect.NormalizeName(name)
}

// Dialect returns the catalog's dialect.
func (c *Catalog) Dialect() *dialect.Dialect { return c.dialect }

// Table returns a table or view by name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[c.Normalize(name)]
	return t, ok
}

// Tables returns all tables and views in declaration order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.tables[key])
	}
	return out
}

// Indexes returns all indexes sorted by name.
func (c *Catalog) Indexes() []*Index {
	out := make([]*Index, 0, len(c.indexes))
	for _, idx := range c.indexes {
		out = append(out, idx)
	}
	slices.SortFunc(out, func(a, b *Index) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Triggers returns all triggers in declaration order.
func (c *Catalog) Triggers() []*Trigger {
	out := make([]*Trigger, 0, len(c.trigOrd))
	for _, key := range c.trigOrd {
		out = append(out, c.triggers[key])
	}
	return out
}

// TriggersOn returns the triggers whose target is the named table or view.
func (c *Catalog) TriggersOn(table string) []*Trigger {
	key := c.Normalize(table)
	var out []*Trigger
	for _, t := range c.Triggers() {
		if t.Table == key {
			out = append(out, t)
		}
	}
	return out
}

// ReferencingTables returns the tables holding a foreign key to table
// whose action for the event modifies referencing rows.
func (c *Catalog) ReferencingTables(table string, event core.TriggerEvent) []*Table {
	key := c.Normalize(table)
	var out []*Table
	for _, t := range c.Tables() {
		for _, fk := range t.ForeignKeys {
			if fk.Table != key {
				continue
			}
			action := fk.OnDelete
			if event == core.TriggerUpdate {
				action = fk.OnUpdate
			}
			if action.Modifies() {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Apply adds the effect of one DDL statement. Statements that are not DDL
// are ignored.
func (c *Catalog) Apply(file string, stmt core.Stmt) error {
	switch s := stmt.(type) {
	case *core.CreateTableStmt:
		return c.createTable(file, s)
	case *core.CreateViewStmt:
		return c.createView(file, s)
	case *core.CreateIndexStmt:
		return c.createIndex(file, s)
	case *core.CreateTriggerStmt:
		return c.createTrigger(file, s)
	case *core.AlterTableStmt:
		return c.alterTable(file, s)
	case *core.DropStmt:
		return c.drop(file, s)
	}
	return nil
}

// IsDDL reports whether Apply handles the statement.
func IsDDL(stmt core.Stmt) bool {
	switch stmt.(type) {
	case *core.CreateTableStmt, *core.CreateViewStmt, *core.CreateIndexStmt,
		*core.CreateTriggerStmt, *core.AlterTableStmt, *core.DropStmt:
		return true
	}
	return false
}

func (c *Catalog) addTable(t *Table, ifNotExists bool, exists string) error {
	key := c.Normalize(t.Name)
	if _, ok := c.tables[key]; ok {
		if ifNotExists {
			return nil
		}
		return newError(t.File, t.Pos, exists, t.Name)
	}
	c.tables[key] = t
	c.order = append(c.order, key)
	return nil
}

func (c *Catalog) createTable(file string, s *core.CreateTableStmt) error {
	t := &Table{
		Name:         s.Name,
		Virtual:      s.Virtual,
		WithoutRowID: s.WithoutRowID,
		Select:       s.AsSelect,
		File:         file,
		Pos:          s.Pos(),
	}
	for _, def := range s.Columns {
		if _, dup := t.Column(def.Name); dup {
			return newError(file, def.Pos(), ErrColumnExists, def.Name)
		}
		col := c.column(def)
		if s.Virtual {
			col.NotNull = false
		}
		t.Columns = append(t.Columns, col)
		if def.References != nil {
			t.ForeignKeys = append(t.ForeignKeys, c.foreignKey([]string{def.Name}, def.References))
		}
	}
	for _, con := range s.Constraints {
		switch con.Kind {
		case core.ConstraintPrimaryKey:
			for _, name := range con.Columns {
				col, ok := t.Column(name)
				if !ok {
					return newError(file, con.Pos(), ErrNoColumn, name)
				}
				col.PrimaryKey = true
				col.NotNull = true
			}
		case core.ConstraintForeignKey:
			for _, name := range con.Columns {
				if _, ok := t.Column(name); !ok {
					return newError(file, con.Pos(), ErrNoColumn, name)
				}
			}
			t.ForeignKeys = append(t.ForeignKeys, c.foreignKey(con.Columns, con.References))
		}
	}
	return c.addTable(t, s.IfNotExists, ErrTableExists)
}

func (c *Catalog) column(def *core.ColumnDef) *Column {
	col := &Column{
		Name:         def.Name,
		DeclaredType: def.TypeName,
		Type:         Affinity(def.TypeName),
		NotNull:      def.NotNull || def.PrimaryKey,
		PrimaryKey:   def.PrimaryKey,
		HasDefault:   def.Default != nil,
		CustomType:   def.CustomType,
		Pos:          def.Pos(),
	}
	if c.dialect != nil {
		if dt, ok := c.dialect.ColumnType(def.TypeName); ok {
			col.Dialect = dt
			col.Type = dt.Storage()
		}
	}
	return col
}

func (c *Catalog) foreignKey(columns []string, ref *core.ForeignKeyClause) *ForeignKey {
	return &ForeignKey{
		Columns:    columns,
		Table:      c.Normalize(ref.Table),
		RefColumns: ref.Columns,
		OnDelete:   ref.OnDelete,
		OnUpdate:   ref.OnUpdate,
		Pos:        ref.Pos(),
	}
}

func (c *Catalog) createView(file string, s *core.CreateViewStmt) error {
	return c.addTable(&Table{
		Name:        s.Name,
		View:        true,
		Select:      s.Select,
		ColumnNames: s.Columns,
		File:        file,
		Pos:         s.Pos(),
	}, s.IfNotExists, ErrViewExists)
}

func (c *Catalog) createIndex(file string, s *core.CreateIndexStmt) error {
	key := c.Normalize(s.Name)
	if _, ok := c.indexes[key]; ok {
		if s.IfNotExists {
			return nil
		}
		return newError(file, s.Pos(), ErrIndexExists, s.Name)
	}
	t, ok := c.Table(s.Table)
	if !ok || t.View {
		return newError(file, s.Pos(), ErrNoTable, s.Table)
	}
	if !t.Derived() {
		for _, name := range s.Columns {
			if _, ok := t.Column(name); !ok {
				return newError(file, s.Pos(), ErrNoColumn, name)
			}
		}
	}
	c.indexes[key] = &Index{Name: s.Name, Table: c.Normalize(s.Table), Columns: s.Columns, Unique: s.Unique}
	return nil
}

func (c *Catalog) createTrigger(file string, s *core.CreateTriggerStmt) error {
	key := c.Normalize(s.Name)
	if _, ok := c.triggers[key]; ok {
		if s.IfNotExists {
			return nil
		}
		return newError(file, s.Pos(), ErrTriggerExists, s.Name)
	}
	tr := &Trigger{
		Name:   s.Name,
		Table:  c.Normalize(s.Table),
		Timing: s.Timing,
		Event:  s.Event,
		Body:   s.Body,
		File:   file,
		Pos:    s.Pos(),
		stmt:   s,
	}
	for _, id := range s.Columns {
		tr.Columns = append(tr.Columns, id.Name)
	}
	c.triggers[key] = tr
	c.trigOrd = append(c.trigOrd, key)
	return nil
}

func (c *Catalog) alterTable(file string, s *core.AlterTableStmt) error {
	key := c.Normalize(s.Table)
	t, ok := c.tables[key]
	if !ok || t.View {
		return newError(file, s.Pos(), ErrNoTable, s.Table)
	}
	switch {
	case s.RenameTo != "":
		newKey := c.Normalize(s.RenameTo)
		if _, exists := c.tables[newKey]; exists && newKey != key {
			return newError(file, s.Pos(), ErrTableExists, s.RenameTo)
		}
		delete(c.tables, key)
		t.Name = s.RenameTo
		c.tables[newKey] = t
		c.order[slices.Index(c.order, key)] = newKey
		for _, other := range c.tables {
			for _, fk := range other.ForeignKeys {
				if fk.Table == key {
					fk.Table = newKey
				}
			}
		}
		for _, tr := range c.triggers {
			if tr.Table == key {
				tr.Table = newKey
			}
		}
		for _, idx := range c.indexes {
			if idx.Table == key {
				idx.Table = newKey
			}
		}
	case s.RenameColumn != "":
		col, ok := t.Column(s.RenameColumn)
		if !ok {
			return newError(file, s.Pos(), ErrNoColumn, s.RenameColumn)
		}
		if _, dup := t.Column(s.ColumnTo); dup {
			return newError(file, s.Pos(), ErrColumnExists, s.ColumnTo)
		}
		col.Name = s.ColumnTo
		for _, fk := range t.ForeignKeys {
			renameIn(fk.Columns, s.RenameColumn, s.ColumnTo)
		}
		for _, other := range c.tables {
			for _, fk := range other.ForeignKeys {
				if fk.Table == key {
					renameIn(fk.RefColumns, s.RenameColumn, s.ColumnTo)
				}
			}
		}
		for _, tr := range c.triggers {
			if tr.Table == key {
				renameIn(tr.Columns, s.RenameColumn, s.ColumnTo)
			}
		}
	case s.AddColumn != nil:
		if _, dup := t.Column(s.AddColumn.Name); dup {
			return newError(file, s.AddColumn.Pos(), ErrColumnExists, s.AddColumn.Name)
		}
		t.Columns = append(t.Columns, c.column(s.AddColumn))
		if s.AddColumn.References != nil {
			t.ForeignKeys = append(t.ForeignKeys, c.foreignKey([]string{s.AddColumn.Name}, s.AddColumn.References))
		}
	case s.DropColumn != "":
		i := slices.IndexFunc(t.Columns, func(col *Column) bool { return strings.EqualFold(col.Name, s.DropColumn) })
		if i < 0 {
			return newError(file, s.Pos(), ErrNoColumn, s.DropColumn)
		}
		t.Columns = slices.Delete(t.Columns, i, i+1)
	}
	return nil
}

func renameIn(names []string, from, to string) {
	for i, n := range names {
		if strings.EqualFold(n, from) {
			names[i] = to
		}
	}
}

func (c *Catalog) drop(file string, s *core.DropStmt) error {
	key := c.Normalize(s.Name)
	missing := func(format string) error {
		if s.IfExists {
			return nil
		}
		return newError(file, s.Pos(), format, s.Name)
	}
	switch s.Kind {
	case core.ObjectTable, core.ObjectView:
		t, ok := c.tables[key]
		if !ok || t.View != (s.Kind == core.ObjectView) {
			if s.Kind == core.ObjectView {
				return missing(ErrNoView)
			}
			return missing(ErrNoTable)
		}
		delete(c.tables, key)
		c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
		// Dropping a table drops its indexes and triggers with it.
		for name, tr := range c.triggers {
			if tr.Table == key {
				c.dropTrigger(name)
			}
		}
		for name, idx := range c.indexes {
			if idx.Table == key {
				delete(c.indexes, name)
			}
		}
	case core.ObjectIndex:
		if _, ok := c.indexes[key]; !ok {
			return missing(ErrNoIndex)
		}
		delete(c.indexes, key)
	case core.ObjectTrigger:
		if _, ok := c.triggers[key]; !ok {
			return missing(ErrNoTrigger)
		}
		c.dropTrigger(key)
	default:
		return fmt.Errorf("unsupported drop kind %d", s.Kind)
	}
	return nil
}

func (c *Catalog) dropTrigger(key string) {
	delete(c.triggers, key)
	c.trigOrd = slices.DeleteFunc(c.trigOrd, func(k string) bool { return k == key })
}

// Validate checks the cross references of the catalog: foreign key targets
// and their column counts, trigger targets and UPDATE OF columns. It
// returns every problem found.
func (c *Catalog) Validate() []error {
	var errs []error
	for _, t := range c.Tables() {
		for _, fk := range t.ForeignKeys {
			ref, ok := c.tables[fk.Table]
			if !ok || ref.View {
				errs = append(errs, newError(t.File, fk.Pos, ErrNoTable, fk.Table))
				continue
			}
			if len(fk.RefColumns) > 0 && len(fk.RefColumns) != len(fk.Columns) {
				errs = append(errs, newError(t.File, fk.Pos, ErrReferenceColumns, len(fk.RefColumns), ref.Name, len(fk.Columns)))
				continue
			}
			if ref.Derived() {
				continue
			}
			for _, name := range fk.RefColumns {
				if _, ok := ref.Column(name); !ok {
					errs = append(errs, newError(t.File, fk.Pos, ErrNoColumn, name))
				}
			}
		}
	}
	for _, tr := range c.Triggers() {
		t, ok := c.tables[tr.Table]
		if !ok {
			errs = append(errs, newError(tr.File, tr.Pos, ErrNoTable, tr.stmt.Table))
			continue
		}
		if t.Derived() {
			continue
		}
		for i, name := range tr.Columns {
			if _, ok := t.Column(name); !ok {
				errs = append(errs, newError(tr.File, tr.stmt.Columns[i].Pos(), ErrNoColumn, name))
			}
		}
	}
	return errs
}
