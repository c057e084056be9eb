package core

// ---------- Query Statements ----------

// SelectStmt represents a (possibly compound) SELECT statement.
type SelectStmt struct {
	NodeInfo
	With    *WithClause
	Cores   []*SelectCore // compound members in source order
	Ops     []CompoundOp  // len(Cores)-1 operators joining the members
	OrderBy []*OrderingTerm
	Limit   Expr
	Offset  Expr
}

func (*SelectStmt) stmtNode() {}

// CompoundOp joins two members of a compound select.
type CompoundOp int

// CompoundOp constants.
const (
	OpUnion CompoundOp = iota
	OpUnionAll
	OpIntersect
	OpExcept
)

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	NodeInfo
	Name    string
	Columns []string
	Select  *SelectStmt
}

// SelectCore is one SELECT ... or VALUES ... member.
type SelectCore struct {
	NodeInfo
	Distinct bool
	Columns  []*ResultColumn
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	Values   [][]Expr
}

// ResultColumn is one item of a select list or RETURNING clause.
type ResultColumn struct {
	NodeInfo
	Star      bool   // *
	TableStar string // t.*
	Expr      Expr
	Alias     string
}

// OrderingTerm is one ORDER BY item.
type OrderingTerm struct {
	Expr Expr
	Desc bool
}

// ---------- Mutations ----------

// ConflictAction is the OR clause of INSERT/UPDATE.
type ConflictAction int

// ConflictAction constants.
const (
	ConflictNone ConflictAction = iota
	ConflictRollback
	ConflictAbort
	ConflictReplace
	ConflictFail
	ConflictIgnore
)

// InsertStmt represents INSERT/REPLACE.
type InsertStmt struct {
	NodeInfo
	With          *WithClause
	Or            ConflictAction
	Table         *TableName
	Columns       []*Ident
	Values        [][]Expr
	Select        *SelectStmt
	DefaultValues bool
	Upsert        *UpsertClause
	Returning     []*ResultColumn
}

func (*InsertStmt) stmtNode() {}

// UpsertClause represents ON CONFLICT [(target)] DO NOTHING | DO UPDATE SET ...
type UpsertClause struct {
	NodeInfo
	Target    []string
	DoNothing bool
	Sets      []*SetClause
	Where     Expr
}

// SetClause assigns one value to one or more columns.
type SetClause struct {
	Columns []*Ident
	Value   Expr
}

// UpdateStmt represents UPDATE.
type UpdateStmt struct {
	NodeInfo
	With      *WithClause
	Or        ConflictAction
	Table     *TableName
	Sets      []*SetClause
	From      *FromClause
	Where     Expr
	Returning []*ResultColumn
	OrderBy   []*OrderingTerm
	Limit     Expr
	Offset    Expr
}

func (*UpdateStmt) stmtNode() {}

// AssignedColumns returns the names assigned by the SET clause.
func (u *UpdateStmt) AssignedColumns() []string {
	return assigned(u.Sets)
}

// AssignedColumns returns the names assigned by DO UPDATE SET.
func (u *UpsertClause) AssignedColumns() []string {
	return assigned(u.Sets)
}

func assigned(sets []*SetClause) []string {
	var out []string
	for _, s := range sets {
		for _, c := range s.Columns {
			out = append(out, c.Name)
		}
	}
	return out
}

// DeleteStmt represents DELETE.
type DeleteStmt struct {
	NodeInfo
	With      *WithClause
	Table     *TableName
	Where     Expr
	Returning []*ResultColumn
	OrderBy   []*OrderingTerm
	Limit     Expr
	Offset    Expr
}

func (*DeleteStmt) stmtNode() {}

// RawStmt is a statement leapquery passes through without analysis
// (PRAGMA, VACUUM, ANALYZE, ...).
type RawStmt struct {
	NodeInfo
	Keyword string
}

func (*RawStmt) stmtNode() {}

// Ident is a name with its position.
type Ident struct {
	NodeInfo
	Name string
}
