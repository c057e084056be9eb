// Package querygen turns a compiled statement into an execution plan: the
// statement text with every placeholder located, and the rules to render it
// for a set of argument values.
//
// A plan is plain data. It is written into manifests and rendered at run
// time without the compiler.
package querygen

import (
	"slices"

	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Arg describes how the values of one argument are bound.
type Arg struct {
	Name     string        `json:"name" yaml:"name"`
	Kind     core.BindKind `json:"kind" yaml:"kind"`
	Dialect  string        `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Nullable bool          `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Array    bool          `json:"array,omitempty" yaml:"array,omitempty"`
}

// Site is one placeholder occurrence. Offsets are bytes into Plan.SQL. An
// array site covers the whole IN list.
type Site struct {
	Start int  `json:"start" yaml:"start"`
	End   int  `json:"end" yaml:"end"`
	Arg   int  `json:"arg" yaml:"arg"`
	Array bool `json:"array,omitempty" yaml:"array,omitempty"`
}

// Equality is an = or <> operator comparing against a nullable argument.
// It becomes IS or IS NOT when the value is null.
type Equality struct {
	Start int  `json:"start" yaml:"start"`
	End   int  `json:"end" yaml:"end"`
	Site  int  `json:"site" yaml:"site"` // Start of the compared placeholder
	Not   bool `json:"not,omitempty" yaml:"not,omitempty"`
}

// Plan is the execution contract of one statement.
type Plan struct {
	ID         uint32     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	SQL        string     `json:"sql" yaml:"sql"`
	Args       []Arg      `json:"args,omitempty" yaml:"args,omitempty"`
	Sites      []Site     `json:"sites,omitempty" yaml:"sites,omitempty"`
	Equalities []Equality `json:"equalities,omitempty" yaml:"equalities,omitempty"`
	// Cacheable is false when the text depends on the values, which is
	// the case for array arguments and nullable equalities.
	Cacheable bool `json:"cacheable" yaml:"cacheable"`
}

// Build derives the plan of a compiled statement.
func Build(s *compiler.Statement) Plan {
	p := Plan{ID: s.ID, Name: s.QualifiedName(), SQL: s.SQL}

	argOf := make(map[*core.BindParam]int)
	for i, a := range s.Arguments {
		arg := Arg{
			Name:     a.Name,
			Kind:     a.Type.BindKind(),
			Nullable: a.Type.Nullable,
			Array:    a.Array,
		}
		if a.Type.Dialect != nil {
			arg.Dialect = a.Type.Dialect.Name()
		}
		p.Args = append(p.Args, arg)
		for _, b := range a.Binds {
			argOf[b] = i
		}
	}

	base := s.Offset
	core.Inspect(s.Stmt, func(n, _ core.Node) bool {
		switch x := n.(type) {
		case *core.BindParam:
			i, ok := argOf[x]
			if !ok || s.Arguments[i].Array {
				return true
			}
			p.Sites = append(p.Sites, Site{Start: x.Pos().Offset - base, End: x.End().Offset - base, Arg: i})

		case *core.InExpr:
			b := x.ArrayParam()
			if i, ok := argOf[b]; ok && s.Arguments[i].Array {
				p.Sites = append(p.Sites, Site{
					Start: x.ListSpan.Start.Offset - base,
					End:   x.ListSpan.End.Offset - base,
					Arg:   i,
					Array: true,
				})
			}

		case *core.BinaryExpr:
			if !x.IsEquality() {
				return true
			}
			for _, side := range []core.Expr{x.Right, x.Left} {
				b, ok := side.(*core.BindParam)
				if !ok {
					continue
				}
				if i, ok := argOf[b]; ok && s.Arguments[i].Type.Nullable && !s.Arguments[i].Array {
					p.Equalities = append(p.Equalities, Equality{
						Start: x.OpSpan.Start.Offset - base,
						End:   x.OpSpan.End.Offset - base,
						Site:  b.Pos().Offset - base,
						Not:   x.Op == token.NE,
					})
					break
				}
			}
		}
		return true
	})
	slices.SortFunc(p.Sites, func(a, b Site) int { return a.Start - b.Start })

	p.Cacheable = len(p.Equalities) == 0
	for _, a := range p.Args {
		p.Cacheable = p.Cacheable && !a.Array
	}
	return p
}
