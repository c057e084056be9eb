package core

// ---------- Table Reference Types ----------

// TableRef is a FROM-clause source.
type TableRef interface {
	Node
	tableRefNode()
}

// TableName represents a table name reference.
type TableName struct {
	NodeInfo
	Schema string
	Name   string
	Alias  string
}

func (*TableName) tableRefNode() {}

// DerivedTable represents a subquery in FROM clause.
type DerivedTable struct {
	NodeInfo
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) tableRefNode() {}

// FromClause is the source table followed by joins.
type FromClause struct {
	NodeInfo
	Source TableRef
	Joins  []*Join
}

// JoinType represents the type of join.
type JoinType int

// JoinType constants.
const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// Join is one JOIN clause.
type Join struct {
	NodeInfo
	Type    JoinType
	Natural bool
	Right   TableRef
	On      Expr
	Using   []string
}

// Outer reports whether the join may produce NULL rows for the right side.
func (j *Join) Outer() bool {
	return j.Type == JoinLeft || j.Type == JoinFull
}
