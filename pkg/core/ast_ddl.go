package core

// ---------- Schema Statements ----------

// CreateTableStmt represents CREATE TABLE.
type CreateTableStmt struct {
	NodeInfo
	Temp         bool
	IfNotExists  bool
	Virtual      bool
	Schema       string
	Name         string
	Columns      []*ColumnDef
	Constraints  []*TableConstraint
	AsSelect     *SelectStmt
	WithoutRowID bool
}

func (*CreateTableStmt) stmtNode() {}

// ColumnDef is one column of CREATE TABLE or ALTER TABLE ADD COLUMN.
type ColumnDef struct {
	NodeInfo
	Name          string
	TypeName      string // as declared: INTEGER, VARCHAR(20), TINYINT(1)
	CustomType    string // adapter type from "<type> AS <CustomType>"
	NotNull       bool
	PrimaryKey    bool
	Unique        bool
	AutoIncrement bool
	Default       Expr
	References    *ForeignKeyClause
}

// FKAction is an ON DELETE / ON UPDATE action.
type FKAction int

// FKAction constants. FKActionNone means the clause was absent.
const (
	FKActionNone FKAction = iota
	FKNoAction
	FKRestrict
	FKSetNull
	FKSetDefault
	FKCascade
)

// Modifies reports whether the action changes referencing rows.
func (a FKAction) Modifies() bool {
	return a == FKCascade || a == FKSetNull || a == FKSetDefault
}

// String returns the SQL spelling of the action.
func (a FKAction) String() string {
	switch a {
	case FKNoAction:
		return "NO ACTION"
	case FKRestrict:
		return "RESTRICT"
	case FKSetNull:
		return "SET NULL"
	case FKSetDefault:
		return "SET DEFAULT"
	case FKCascade:
		return "CASCADE"
	default:
		return ""
	}
}

// ForeignKeyClause is REFERENCES table(cols) [ON DELETE ..] [ON UPDATE ..].
type ForeignKeyClause struct {
	NodeInfo
	Table    string
	Columns  []string
	OnDelete FKAction
	OnUpdate FKAction
}

// ConstraintKind classifies a table constraint.
type ConstraintKind int

// ConstraintKind constants.
const (
	ConstraintPrimaryKey ConstraintKind = iota
	ConstraintUnique
	ConstraintCheck
	ConstraintForeignKey
)

// TableConstraint is a table-level constraint.
type TableConstraint struct {
	NodeInfo
	Name       string
	Kind       ConstraintKind
	Columns    []string
	Check      Expr
	References *ForeignKeyClause
}

// CreateViewStmt represents CREATE VIEW.
type CreateViewStmt struct {
	NodeInfo
	Temp        bool
	IfNotExists bool
	Name        string
	Columns     []string
	Select      *SelectStmt
}

func (*CreateViewStmt) stmtNode() {}

// CreateIndexStmt represents CREATE INDEX.
type CreateIndexStmt struct {
	NodeInfo
	Unique      bool
	IfNotExists bool
	Name        string
	Table       string
	Columns     []string
	Where       Expr
}

func (*CreateIndexStmt) stmtNode() {}

// TriggerTiming is BEFORE, AFTER or INSTEAD OF.
type TriggerTiming int

// TriggerTiming constants.
const (
	TriggerBefore TriggerTiming = iota
	TriggerAfter
	TriggerInsteadOf
)

// TriggerEvent is the operation that fires a trigger.
type TriggerEvent int

// TriggerEvent constants.
const (
	TriggerDelete TriggerEvent = iota
	TriggerInsert
	TriggerUpdate
)

// String returns the SQL keyword for the event.
func (e TriggerEvent) String() string {
	switch e {
	case TriggerDelete:
		return "DELETE"
	case TriggerInsert:
		return "INSERT"
	default:
		return "UPDATE"
	}
}

// CreateTriggerStmt represents CREATE TRIGGER.
type CreateTriggerStmt struct {
	NodeInfo
	Temp        bool
	IfNotExists bool
	Name        string
	Timing      TriggerTiming
	Event       TriggerEvent
	Columns     []*Ident // UPDATE OF columns
	Table       string
	ForEachRow  bool
	When        Expr
	Body        []Stmt
}

func (*CreateTriggerStmt) stmtNode() {}

// AlterTableStmt represents ALTER TABLE.
type AlterTableStmt struct {
	NodeInfo
	Table        string
	RenameTo     string
	RenameColumn string
	ColumnTo     string
	AddColumn    *ColumnDef
	DropColumn   string
}

func (*AlterTableStmt) stmtNode() {}

// ObjectKind names a schema object type.
type ObjectKind int

// ObjectKind constants.
const (
	ObjectTable ObjectKind = iota
	ObjectView
	ObjectIndex
	ObjectTrigger
)

// DropStmt represents DROP TABLE|VIEW|INDEX|TRIGGER.
type DropStmt struct {
	NodeInfo
	Kind     ObjectKind
	IfExists bool
	Name     string
}

func (*DropStmt) stmtNode() {}
