package core

import "fmt"

// Inspect traverses the tree rooted at node in source order, calling f for
// each node with its parent. Children are skipped when f returns false.
func Inspect(node Node, f func(n, parent Node) bool) {
	walk(node, nil, f)
}

func walk(n, parent Node, f func(n, parent Node) bool) {
	if isNil(n) {
		return
	}
	if !f(n, parent) {
		return
	}
	exprs := func(list []Expr) {
		for _, e := range list {
			walk(e, n, f)
		}
	}
	columns := func(list []*ResultColumn) {
		for _, c := range list {
			walk(c, n, f)
		}
	}
	ordering := func(list []*OrderingTerm) {
		for _, o := range list {
			walk(o.Expr, n, f)
		}
	}
	sets := func(list []*SetClause) {
		for _, s := range list {
			walk(s.Value, n, f)
		}
	}

	switch v := n.(type) {
	// Expressions
	case *Literal, *ColumnRef, *BindParam, *RaiseExpr:
	case *BinaryExpr:
		walk(v.Left, n, f)
		walk(v.Right, n, f)
	case *UnaryExpr:
		walk(v.Expr, n, f)
	case *FuncCall:
		exprs(v.Args)
	case *CaseExpr:
		walk(v.Operand, n, f)
		for _, w := range v.Whens {
			walk(w.Condition, n, f)
			walk(w.Result, n, f)
		}
		walk(v.Else, n, f)
	case *CastExpr:
		walk(v.Expr, n, f)
	case *InExpr:
		walk(v.Expr, n, f)
		exprs(v.List)
		walk(v.Query, n, f)
	case *BetweenExpr:
		walk(v.Expr, n, f)
		walk(v.Low, n, f)
		walk(v.High, n, f)
	case *IsExpr:
		walk(v.Left, n, f)
		walk(v.Right, n, f)
	case *NullTest:
		walk(v.Expr, n, f)
	case *LikeExpr:
		walk(v.Left, n, f)
		walk(v.Right, n, f)
		walk(v.Escape, n, f)
	case *CollateExpr:
		walk(v.Expr, n, f)
	case *ParenExpr:
		walk(v.Expr, n, f)
	case *ExistsExpr:
		walk(v.Query, n, f)
	case *SubqueryExpr:
		walk(v.Query, n, f)

	// Queries
	case *SelectStmt:
		walk(v.With, n, f)
		for _, c := range v.Cores {
			walk(c, n, f)
		}
		ordering(v.OrderBy)
		walk(v.Limit, n, f)
		walk(v.Offset, n, f)
	case *WithClause:
		for _, c := range v.CTEs {
			walk(c, n, f)
		}
	case *CTE:
		walk(v.Select, n, f)
	case *SelectCore:
		columns(v.Columns)
		walk(v.From, n, f)
		walk(v.Where, n, f)
		exprs(v.GroupBy)
		walk(v.Having, n, f)
		for _, row := range v.Values {
			exprs(row)
		}
	case *ResultColumn:
		walk(v.Expr, n, f)
	case *FromClause:
		walk(v.Source, n, f)
		for _, j := range v.Joins {
			walk(j, n, f)
		}
	case *Join:
		walk(v.Right, n, f)
		walk(v.On, n, f)
	case *TableName:
	case *DerivedTable:
		walk(v.Select, n, f)

	// Mutations
	case *InsertStmt:
		walk(v.With, n, f)
		walk(v.Table, n, f)
		for _, row := range v.Values {
			exprs(row)
		}
		walk(v.Select, n, f)
		walk(v.Upsert, n, f)
		columns(v.Returning)
	case *UpsertClause:
		sets(v.Sets)
		walk(v.Where, n, f)
	case *UpdateStmt:
		walk(v.With, n, f)
		walk(v.Table, n, f)
		sets(v.Sets)
		walk(v.From, n, f)
		walk(v.Where, n, f)
		columns(v.Returning)
		ordering(v.OrderBy)
		walk(v.Limit, n, f)
		walk(v.Offset, n, f)
	case *DeleteStmt:
		walk(v.With, n, f)
		walk(v.Table, n, f)
		walk(v.Where, n, f)
		columns(v.Returning)
		ordering(v.OrderBy)
		walk(v.Limit, n, f)
		walk(v.Offset, n, f)

	// Schema
	case *CreateTableStmt:
		for _, c := range v.Columns {
			walk(c, n, f)
		}
		for _, c := range v.Constraints {
			walk(c.Check, n, f)
		}
		walk(v.AsSelect, n, f)
	case *ColumnDef:
		walk(v.Default, n, f)
	case *CreateViewStmt:
		walk(v.Select, n, f)
	case *CreateIndexStmt:
		walk(v.Where, n, f)
	case *CreateTriggerStmt:
		walk(v.When, n, f)
		for _, s := range v.Body {
			walk(s, n, f)
		}
	case *AlterTableStmt:
		walk(v.AddColumn, n, f)
	case *LabeledStmt:
		walk(v.Stmt, n, f)
	case *DropStmt, *RawStmt, *Ident:
	default:
		panic(fmt.Sprintf("core: unexpected node %T", n))
	}
}

// isNil reports whether n is nil or a typed nil pointer.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SelectStmt:
		return v == nil
	case *WithClause:
		return v == nil
	case *FromClause:
		return v == nil
	case *UpsertClause:
		return v == nil
	case *ColumnDef:
		return v == nil
	case *TableName:
		return v == nil
	}
	return false
}
