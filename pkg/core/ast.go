package core

import "github.com/leapstack-labs/leapquery/pkg/token"

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a marker interface for expression nodes.
//
// The set of expression kinds is closed: every implementation lives in this
// package and consumers switch over them exhaustively.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// NodeInfo holds the source span shared by every node.
type NodeInfo struct {
	Span token.Span
}

// Pos implements Node.
func (n NodeInfo) Pos() token.Position { return n.Span.Start }

// End implements Node.
func (n NodeInfo) End() token.Position { return n.Span.End }

// LabeledStmt is one statement of a source file. Label is empty for schema
// statements; labeled statements become named queries, mutators or executes.
type LabeledStmt struct {
	NodeInfo
	Label    string
	LabelPos token.Position
	Doc      string
	Stmt     Stmt
}

// SQL returns the statement's source text without its label.
func (l *LabeledStmt) SQL(src string) string {
	return token.Span{Start: l.Stmt.Pos(), End: l.Stmt.End()}.Text(src)
}
