package infer

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// ArgumentType returns the type a bind parameter is exposed with. It is
// taken from the closest enclosing expression that determines one, or from
// the statement slot the parameter fills.
func (e *Engine) ArgumentType(b *core.BindParam) core.IntermediateType {
	return e.inferred(b).WithBind(b)
}

// anyType is the type of a parameter nothing constrains.
func anyType() core.IntermediateType {
	return core.NewType(core.TypeNull).AsNullable()
}

// known types an expression, treating failures as unconstrained.
func (e *Engine) known(expr core.Expr) core.IntermediateType {
	if expr == nil {
		return core.NewType(core.TypeArgument)
	}
	t, err := e.Type(expr)
	if err != nil {
		return core.NewType(core.TypeArgument)
	}
	return t
}

func (e *Engine) inferred(expr core.Expr) core.IntermediateType {
	switch p := e.parents[expr].(type) {
	case core.Expr:
		t := e.argumentIn(p, expr)
		if t.Type == core.TypeArgument {
			return e.inferred(p)
		}
		return t

	case *core.InsertStmt:
		for _, row := range p.Values {
			if i := slices.Index(row, expr); i >= 0 {
				return e.insertColumn(p, i)
			}
		}

	case *core.UpsertClause:
		if insert, ok := e.parents[p].(*core.InsertStmt); ok {
			if t, ok := e.setTarget(p.Sets, expr, insert.Table); ok {
				return t
			}
		}

	case *core.UpdateStmt:
		if t, ok := e.setTarget(p.Sets, expr, p.Table); ok {
			return t
		}
		if expr == p.Limit || expr == p.Offset {
			return core.NewType(core.TypeInteger)
		}

	case *core.DeleteStmt:
		if expr == p.Limit || expr == p.Offset {
			return core.NewType(core.TypeInteger)
		}

	case *core.SelectStmt:
		if expr == p.Limit || expr == p.Offset {
			return core.NewType(core.TypeInteger)
		}

	case *core.SelectCore:
		for _, row := range p.Values {
			if i := slices.Index(row, expr); i >= 0 {
				return e.valuesColumn(p, i)
			}
		}

	case *core.ResultColumn:
		if t, ok := e.resultColumnSlot(p); ok {
			return t
		}
	}
	return anyType()
}

// argumentIn is the type parent expects for its child arg. ARGUMENT means
// the parent does not decide and the question moves up a level.
func (e *Engine) argumentIn(parent, arg core.Expr) core.IntermediateType {
	argument := core.NewType(core.TypeArgument)
	switch p := parent.(type) {
	case *core.InExpr:
		if arg == p.Expr {
			for _, item := range p.List {
				if t := e.known(item); t.Type != core.TypeArgument {
					return t
				}
			}
			if p.Query != nil {
				if cols := e.results[p.Query]; len(cols) > 0 {
					return cols[0].Type
				}
			}
			return argument
		}
		return e.known(p.Expr)

	case *core.CaseExpr:
		return e.caseArgument(p, arg)

	case *core.BetweenExpr:
		return lastKnown(e, arg, p.Expr, p.Low, p.High)

	case *core.BinaryExpr:
		return lastKnown(e, arg, p.Left, p.Right)

	case *core.IsExpr:
		return lastKnown(e, arg, p.Left, p.Right)

	case *core.NullTest:
		return anyType()

	case *core.LikeExpr:
		other := p.Right
		if arg != p.Left {
			other = p.Left
		}
		name := "value"
		if t := e.known(other); t.Type != core.TypeArgument {
			name = t.Name
		}
		return core.NewType(core.TypeText).WithName(name)

	case *core.CollateExpr, *core.CastExpr, *core.ParenExpr, *core.UnaryExpr:
		return argument

	case *core.FuncCall:
		if strings.EqualFold(p.Name, "instr") && len(p.Args) > 1 && arg == p.Args[1] {
			return core.NewType(core.TypeText)
		}
		t, err := e.Type(p)
		if err != nil {
			return anyType()
		}
		return t
	}
	return argument
}

// lastKnown returns the type of the last sibling of arg whose type is not
// itself an unresolved argument.
func lastKnown(e *Engine, arg core.Expr, siblings ...core.Expr) core.IntermediateType {
	for i := len(siblings) - 1; i >= 0; i-- {
		s := siblings[i]
		if s == nil || s == arg {
			continue
		}
		if t := e.known(s); t.Type != core.TypeArgument {
			return t
		}
	}
	return core.NewType(core.TypeArgument)
}

// caseArgument types a placeholder inside CASE. The operand and the WHEN
// values compare against each other; the results share one type; a WHEN
// without operand is a condition.
func (e *Engine) caseArgument(c *core.CaseExpr, arg core.Expr) core.IntermediateType {
	conditions := make([]core.Expr, 0, len(c.Whens))
	results := make([]core.Expr, 0, len(c.Whens)+1)
	for _, w := range c.Whens {
		conditions = append(conditions, w.Condition)
		results = append(results, w.Result)
	}
	results = append(results, c.Else)

	switch {
	case arg == c.Operand:
		return lastKnown(e, arg, conditions...)
	case slices.Contains(conditions, arg):
		if c.Operand == nil {
			return boolean()
		}
		return lastKnown(e, arg, append([]core.Expr{c.Operand}, conditions...)...)
	default:
		return lastKnown(e, arg, results...)
	}
}

// setTarget types the value assigned to a column by SET.
func (e *Engine) setTarget(sets []*core.SetClause, expr core.Expr, table *core.TableName) (core.IntermediateType, bool) {
	for _, set := range sets {
		if set.Value != expr || len(set.Columns) != 1 {
			continue
		}
		cols := e.tableColumns(table.Name)
		for _, c := range cols {
			if strings.EqualFold(c.Name, set.Columns[0].Name) {
				return c.Type, true
			}
		}
	}
	return core.IntermediateType{}, false
}

// tableColumns returns the columns of a table or view.
func (e *Engine) tableColumns(name string) []Column {
	t, ok := e.catalog.Table(name)
	if !ok {
		return nil
	}
	if t.Derived() {
		r, err := e.view(t)
		if err != nil {
			return nil
		}
		return r.columns
	}
	cols := make([]Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = Column{Name: c.Name, Type: c.IntermediateType()}
	}
	return cols
}

// insertColumn is the type of the i-th value of an INSERT row.
func (e *Engine) insertColumn(s *core.InsertStmt, i int) core.IntermediateType {
	cols := e.tableColumns(s.Table.Name)
	if len(s.Columns) > 0 {
		if i >= len(s.Columns) {
			return anyType()
		}
		for _, c := range cols {
			if strings.EqualFold(c.Name, s.Columns[i].Name) {
				return c.Type
			}
		}
		return anyType()
	}
	if i >= len(cols) {
		return anyType()
	}
	return cols[i].Type
}

// valuesColumn types a placeholder of a VALUES row inside a SELECT: the
// inserted column under INSERT ... SELECT, the merged compound column
// otherwise.
func (e *Engine) valuesColumn(c *core.SelectCore, i int) core.IntermediateType {
	sel, ok := e.parents[c].(*core.SelectStmt)
	if !ok {
		return anyType()
	}
	if insert, ok := e.parents[sel].(*core.InsertStmt); ok && insert.Select == sel {
		return e.insertColumn(insert, i)
	}
	cols := e.results[sel]
	if i < len(cols) && cols[i].Type.Type != core.TypeArgument {
		return cols[i].Type
	}
	return anyType()
}

// resultColumnSlot types a placeholder used directly as a result column. It
// is known when the select feeds an INSERT, directly or as a subquery of
// another such result column.
func (e *Engine) resultColumnSlot(rc *core.ResultColumn) (core.IntermediateType, bool) {
	c, ok := e.parents[rc].(*core.SelectCore)
	if !ok {
		return core.IntermediateType{}, false
	}
	index := slices.Index(c.Columns, rc)
	sel, ok := e.parents[c].(*core.SelectStmt)
	if !ok || index < 0 {
		return core.IntermediateType{}, false
	}
	if insert, ok := e.parents[sel].(*core.InsertStmt); ok && insert.Select == sel {
		return e.insertColumn(insert, index), true
	}
	for n := e.parents[sel]; n != nil; n = e.parents[n] {
		if outer, ok := n.(*core.ResultColumn); ok {
			return e.resultColumnSlot(outer)
		}
	}
	return core.IntermediateType{}, false
}
