package core

import "github.com/leapstack-labs/leapquery/pkg/token"

// ---------- Expression Types ----------

// LiteralKind classifies a literal value.
type LiteralKind int

// LiteralKind constants.
const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBlob
	LiteralNull
	LiteralBool
	LiteralCurrentTime
	LiteralCurrentDate
	LiteralCurrentTimestamp
)

// Literal represents a literal value.
type Literal struct {
	NodeInfo
	Kind  LiteralKind
	Value string
}

func (*Literal) exprNode() {}

// ColumnRef represents a column reference (possibly qualified).
type ColumnRef struct {
	NodeInfo
	Schema string
	Table  string // optional table/alias qualifier
	Column string
}

func (*ColumnRef) exprNode() {}

// BindParam is an argument placeholder.
type BindParam struct {
	NodeInfo
	Text  string // as written: ?, ?2, :id, @id, $id
	Name  string // identifier of a named parameter
	Index int    // explicit index of ?NNN, 0 otherwise
}

func (*BindParam) exprNode() {}

// Named reports whether the placeholder carries a name.
func (b *BindParam) Named() bool { return b.Name != "" }

// BinaryExpr represents a binary operator application.
type BinaryExpr struct {
	NodeInfo
	Left   Expr
	Op     token.TokenType
	OpText string     // operator as written (==, <>, AND)
	OpSpan token.Span // location of the operator for rewriting
	Right  Expr
}

func (*BinaryExpr) exprNode() {}

// IsEquality reports whether the operator is = or != in any spelling.
func (b *BinaryExpr) IsEquality() bool {
	return b.Op == token.EQ || b.Op == token.NE
}

// UnaryExpr represents a prefix operator (-, +, ~, NOT).
type UnaryExpr struct {
	NodeInfo
	Op   token.TokenType
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	NodeInfo
	Name     string
	Distinct bool
	Star     bool // count(*)
	Args     []Expr
}

func (*FuncCall) exprNode() {}

// CaseExpr represents CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	NodeInfo
	Operand Expr
	Whens   []*WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN/THEN pair.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type).
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr represents expr [NOT] IN (list | select | table).
type InExpr struct {
	NodeInfo
	Expr     Expr
	Not      bool
	List     []Expr
	Query    *SelectStmt
	Table    string
	ListSpan token.Span // the parenthesized list, or the bare placeholder of "IN ?"
}

func (*InExpr) exprNode() {}

// ArrayParam returns the placeholder when the list is a single bind
// parameter, which is expanded to a runtime-length list at execution.
func (e *InExpr) ArrayParam() *BindParam {
	if len(e.List) != 1 {
		return nil
	}
	b, _ := e.List[0].(*BindParam)
	return b
}

// BetweenExpr represents expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsExpr represents left IS [NOT] right.
type IsExpr struct {
	NodeInfo
	Left  Expr
	Not   bool
	Right Expr
}

func (*IsExpr) exprNode() {}

// NullTest represents expr ISNULL, expr NOTNULL and expr NOT NULL.
type NullTest struct {
	NodeInfo
	Expr Expr
	Not  bool
}

func (*NullTest) exprNode() {}

// LikeExpr represents LIKE, GLOB, REGEXP and MATCH.
type LikeExpr struct {
	NodeInfo
	Left   Expr
	Op     token.TokenType
	Not    bool
	Right  Expr
	Escape Expr
}

func (*LikeExpr) exprNode() {}

// CollateExpr represents expr COLLATE name.
type CollateExpr struct {
	NodeInfo
	Expr      Expr
	Collation string
}

func (*CollateExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	NodeInfo
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// ExistsExpr represents [NOT] EXISTS (select).
type ExistsExpr struct {
	NodeInfo
	Not   bool
	Query *SelectStmt
}

func (*ExistsExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	NodeInfo
	Query *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// RaiseExpr represents RAISE(action[, message]) inside trigger bodies.
type RaiseExpr struct {
	NodeInfo
	Action  token.TokenType
	Message string
}

func (*RaiseExpr) exprNode() {}
