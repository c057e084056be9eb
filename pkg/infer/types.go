package infer

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/schema"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// encapsulating is the priority order of arithmetic and coalesce-like
// results.
var encapsulating = []core.SemanticType{core.TypeInteger, core.TypeReal, core.TypeText, core.TypeBlob}

// Type returns the type of an expression. Column references must have been
// resolved by Analyze.
func (e *Engine) Type(expr core.Expr) (core.IntermediateType, error) {
	if t, ok := e.types[expr]; ok {
		return t, nil
	}
	t, err := e.exprType(expr)
	if err != nil {
		return core.IntermediateType{}, err
	}
	e.types[expr] = t
	return t, nil
}

func boolean() core.IntermediateType {
	return core.NewType(core.TypeBoolean)
}

func (e *Engine) exprType(expr core.Expr) (core.IntermediateType, error) {
	switch x := expr.(type) {
	case *core.Literal:
		return literalType(x), nil

	case *core.ColumnRef:
		t, ok := e.refs[x]
		if !ok {
			return core.IntermediateType{}, newError(x.Pos(), ErrNoColumn, refName(x))
		}
		return t, nil

	case *core.BindParam:
		return core.NewType(core.TypeArgument).WithBind(x), nil

	case *core.BinaryExpr:
		switch x.Op {
		case token.EQ, token.NE, token.AND, token.OR, token.LT, token.LE, token.GT, token.GE:
			return boolean(), nil
		}
		operands, err := e.types2(x.Left, x.Right)
		if err != nil {
			return core.IntermediateType{}, err
		}
		return core.EncapsulatingType(operands, encapsulating...), nil

	case *core.UnaryExpr:
		if x.Op == token.NOT {
			if _, err := e.Type(x.Expr); err != nil {
				return core.IntermediateType{}, err
			}
			return boolean(), nil
		}
		return e.Type(x.Expr)

	case *core.FuncCall:
		return e.functionType(x)

	case *core.CaseExpr:
		return e.caseType(x)

	case *core.CastExpr:
		inner, err := e.Type(x.Expr)
		if err != nil {
			return core.IntermediateType{}, err
		}
		t := core.NewType(schema.Affinity(x.TypeName)).WithName(inner.Name)
		if e.dialect != nil {
			if dt, ok := e.dialect.ColumnType(x.TypeName); ok {
				t.Type = dt.Storage()
				t.Dialect = dt
			}
		}
		return t.NullableIf(inner.Nullable || inner.Type == core.TypeNull), nil

	case *core.InExpr, *core.BetweenExpr, *core.IsExpr, *core.NullTest, *core.LikeExpr, *core.ExistsExpr:
		return boolean(), nil

	case *core.CollateExpr:
		return e.Type(x.Expr)

	case *core.ParenExpr:
		return e.Type(x.Expr)

	case *core.SubqueryExpr:
		cols, ok := e.results[x.Query]
		if !ok || len(cols) == 0 {
			return core.NewType(core.TypeNull).AsNullable(), nil
		}
		// A scalar subquery yields NULL when it returns no row.
		return cols[0].Type.AsNullable(), nil

	case *core.RaiseExpr:
		return core.NewType(core.TypeNull).AsNullable(), nil

	default:
		panic(fmt.Sprintf("infer: unexpected expression %T", expr))
	}
}

func literalType(l *core.Literal) core.IntermediateType {
	switch l.Kind {
	case core.LiteralString:
		return core.NewType(core.TypeText)
	case core.LiteralBlob:
		return core.NewType(core.TypeBlob)
	case core.LiteralNumber:
		if strings.Contains(l.Value, ".") {
			return core.NewType(core.TypeReal)
		}
		return core.NewType(core.TypeInteger)
	case core.LiteralCurrentTime, core.LiteralCurrentDate, core.LiteralCurrentTimestamp:
		return core.NewType(core.TypeText)
	case core.LiteralNull:
		return core.NewType(core.TypeNull).AsNullable()
	case core.LiteralBool:
		return core.NewType(core.TypeBoolean)
	default:
		return core.NewType(core.TypeBlob).AsNullable()
	}
}

func (e *Engine) types2(exprs ...core.Expr) ([]core.IntermediateType, error) {
	out := make([]core.IntermediateType, 0, len(exprs))
	for _, x := range exprs {
		t, err := e.Type(x)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// caseType is the encapsulating type of the THEN and ELSE results. Without
// an ELSE branch the expression may yield NULL.
func (e *Engine) caseType(x *core.CaseExpr) (core.IntermediateType, error) {
	results := make([]core.Expr, 0, len(x.Whens)+1)
	for _, w := range x.Whens {
		results = append(results, w.Result)
	}
	if x.Else != nil {
		results = append(results, x.Else)
	}
	types, err := e.types2(results...)
	if err != nil {
		return core.IntermediateType{}, err
	}
	t := core.EncapsulatingType(types, encapsulating...)
	if len(types) > 0 {
		t.Name = types[0].Name
		// A single custom or dialect type survives when all results agree.
		first := types[0]
		same := true
		for _, o := range types[1:] {
			if o.Type == core.TypeNull {
				continue
			}
			same = same && o.Storage() == first.Storage() && o.CustomType == first.CustomType && o.Dialect == first.Dialect
		}
		if same && first.Type != core.TypeNull && first.Type != core.TypeArgument {
			t.Type = first.Type
			t.CustomType = first.CustomType
			t.Dialect = first.Dialect
		}
	}
	for _, r := range types {
		t = t.NullableIf(r.Nullable)
	}
	return t.NullableIf(x.Else == nil), nil
}

func refName(ref *core.ColumnRef) string {
	if ref.Table != "" {
		return ref.Table + "." + ref.Column
	}
	return ref.Column
}

// ExprName is the accessor name suggested by an expression.
func ExprName(expr core.Expr) string {
	switch x := expr.(type) {
	case *core.CastExpr:
		return ExprName(x.Expr)
	case *core.ParenExpr:
		return ExprName(x.Expr)
	case *core.FuncCall:
		return x.Name
	case *core.ColumnRef:
		return x.Column
	default:
		return "expr"
	}
}

// SuperType merges the types of one result column of two compound select
// members. ARGUMENT defers to the other side and NULL makes it nullable.
// Different storage classes widen to the later of INTEGER, REAL, TEXT and
// BLOB.
func SuperType(a, b core.IntermediateType) core.IntermediateType {
	switch {
	case a.Type == core.TypeArgument:
		return b.WithName(a.Name)
	case b.Type == core.TypeArgument:
		return a
	case a.Type == core.TypeNull:
		return b.AsNullable().WithName(a.Name)
	case b.Type == core.TypeNull:
		return a.AsNullable()
	}
	nullable := a.Nullable || b.Nullable
	if a.Storage() == b.Storage() && a.CustomType == b.CustomType && a.Dialect == b.Dialect {
		return a.NullableIf(nullable)
	}
	t := core.EncapsulatingType([]core.IntermediateType{a.AsNonNullable(), b.AsNonNullable()}, encapsulating...)
	return t.WithName(a.Name).NullableIf(nullable)
}
