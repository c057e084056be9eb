package compiler

import (
	gotoken "go/token"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/infer"
)

// nameAllocator hands out unique identifiers within one statement. A
// colliding suggestion gets underscores appended until it is free.
type nameAllocator struct {
	used map[string]bool
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]bool)}
}

func (a *nameAllocator) newName(suggestion string) string {
	name := sanitize(suggestion)
	for a.used[name] {
		name += "_"
	}
	a.used[name] = true
	return name
}

func sanitize(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "value"
	}
	if gotoken.IsKeyword(out) {
		out += "_"
	}
	return out
}

// ExportedName converts an accessor name to an exported Go identifier:
// first_name becomes FirstName.
func ExportedName(name string) string {
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' }) {
		b.WriteString(title.String(part))
	}
	if b.Len() == 0 {
		return "Value"
	}
	return b.String()
}

// arguments groups the placeholders of a statement into its argument
// list, in order of first appearance.
func arguments(e *infer.Engine, s *infer.Statement) []*Argument {
	arrays := arrayBinds(s.Stmt)
	byKey := make(map[string]*Argument)
	var args []*Argument
	for _, b := range s.Binds {
		t := e.ArgumentType(b)
		if b.Named() {
			t = t.WithName(b.Name)
		}
		key := ""
		switch {
		case b.Named():
			key = ":" + b.Name
		case b.Index > 0:
			key = "?" + strconv.Itoa(b.Index)
		}
		if arg, ok := byKey[key]; ok {
			arg.Type = mergeArgument(arg.Type, t)
			arg.Array = arg.Array || arrays[b]
			arg.Binds = append(arg.Binds, b)
			continue
		}
		arg := &Argument{
			Index: len(args) + 1,
			Type:  t,
			Array: arrays[b],
			Binds: []*core.BindParam{b},
		}
		args = append(args, arg)
		if key != "" {
			byKey[key] = arg
		}
	}

	names, goNames := newNameAllocator(), newNameAllocator()
	for _, a := range args {
		a.Name = names.newName(a.Type.Name)
		a.GoName = goNames.newName(ExportedName(a.Name))
	}
	return args
}

// mergeArgument combines two occurrences of one argument. The first
// concrete type wins and any nullable occurrence makes it nullable.
func mergeArgument(first, next core.IntermediateType) core.IntermediateType {
	merged := first
	if !concrete(first) && concrete(next) {
		merged = next.WithName(first.Name).WithBind(first.Bind)
	}
	merged.Nullable = first.Nullable || next.Nullable
	return merged
}

func concrete(t core.IntermediateType) bool {
	return t.Type != core.TypeNull && t.Type != core.TypeArgument
}

// arrayBinds finds the placeholders that stand for a whole IN list.
func arrayBinds(stmt core.Stmt) map[*core.BindParam]bool {
	out := make(map[*core.BindParam]bool)
	core.Inspect(stmt, func(n, _ core.Node) bool {
		if in, ok := n.(*core.InExpr); ok {
			if b := in.ArrayParam(); b != nil {
				out[b] = true
			}
		}
		return true
	})
	return out
}

func columns(cols []infer.Column) []Column {
	names, goNames := newNameAllocator(), newNameAllocator()
	out := make([]Column, len(cols))
	for i, c := range cols {
		name := names.newName(c.Name)
		out[i] = Column{Name: name, GoName: goNames.newName(ExportedName(name)), Type: c.Type.WithName(name)}
	}
	return out
}
