package querygen

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

// ErrArgumentCount is returned when the number of values does not match
// the plan's arguments.
var ErrArgumentCount = errors.New("wrong number of arguments")

// Bind is one value bound to a positional parameter.
type Bind struct {
	Position int // 1-based
	Kind     core.BindKind
	Value    any
}

// Rendered is a statement ready for the driver.
type Rendered struct {
	// ID is nil when the statement must not be served from the statement
	// cache.
	ID         *uint32
	SQL        string
	ParamCount int
	Binds      []Bind
}

type edit struct {
	start, end int
	text       func() (string, error)
}

// Render produces the final statement for values, one per argument. Named
// and indexed placeholders become positional ones in lexical order, array
// arguments expand to one placeholder per element, and nullable equalities
// compare with IS NULL when their value is nil.
func (p Plan) Render(d *dialect.Dialect, values []any) (*Rendered, error) {
	if len(values) != len(p.Args) {
		return nil, fmt.Errorf("%s: %w: want %d, got %d", p.Name, ErrArgumentCount, len(p.Args), len(values))
	}
	values = slices.Clone(values)
	for i := range values {
		values[i] = indirect(values[i])
	}

	// Placeholders compared by IS are replaced by a NULL literal.
	nulls := make(map[int]bool)
	var edits []edit
	for _, eq := range p.Equalities {
		arg := p.siteArg(eq.Site)
		if arg < 0 || values[arg] != nil {
			continue
		}
		nulls[eq.Site] = true
		op := "IS"
		if eq.Not {
			op = "IS NOT"
		}
		text := p.pad(eq.Start, eq.End, op)
		edits = append(edits, edit{start: eq.Start, end: eq.End, text: func() (string, error) { return text, nil }})
	}

	out := &Rendered{}
	for _, site := range p.Sites {
		arg := p.Args[site.Arg]
		value := values[site.Arg]
		switch {
		case nulls[site.Start]:
			edits = append(edits, edit{start: site.Start, end: site.End, text: func() (string, error) { return "NULL", nil }})

		case site.Array:
			edits = append(edits, edit{start: site.Start, end: site.End, text: func() (string, error) {
				elems, err := elements(value)
				if err != nil {
					return "", fmt.Errorf("%s: argument %s: %w", p.Name, arg.Name, err)
				}
				marks := make([]string, len(elems))
				for i, e := range elems {
					b, err := p.bind(d, arg, out, e)
					if err != nil {
						return "", err
					}
					marks[i] = d.FormatPlaceholder(b.Position)
				}
				return "(" + strings.Join(marks, ", ") + ")", nil
			}})

		default:
			edits = append(edits, edit{start: site.Start, end: site.End, text: func() (string, error) {
				b, err := p.bind(d, arg, out, value)
				if err != nil {
					return "", err
				}
				return d.FormatPlaceholder(b.Position), nil
			}})
		}
	}

	// Positions follow the order of appearance, so edits apply left to
	// right.
	slices.SortFunc(edits, func(a, b edit) int { return a.start - b.start })
	var sb strings.Builder
	last := 0
	for _, e := range edits {
		text, err := e.text()
		if err != nil {
			return nil, err
		}
		sb.WriteString(p.SQL[last:e.start])
		sb.WriteString(text)
		last = e.end
	}
	sb.WriteString(p.SQL[last:])

	out.SQL = sb.String()
	out.ParamCount = len(out.Binds)
	if p.Cacheable {
		id := p.ID
		out.ID = &id
	}
	return out, nil
}

func (p Plan) bind(d *dialect.Dialect, arg Arg, out *Rendered, value any) (Bind, error) {
	value = indirect(value)
	if arg.Dialect != "" && value != nil && d != nil {
		if t, ok := d.TypeByName(arg.Dialect); ok {
			encoded, err := t.Encode(value)
			if err != nil {
				return Bind{}, fmt.Errorf("%s: argument %s: %w", p.Name, arg.Name, err)
			}
			value = encoded
		}
	}
	b := Bind{Position: len(out.Binds) + 1, Kind: arg.Kind, Value: value}
	out.Binds = append(out.Binds, b)
	return b, nil
}

func (p Plan) siteArg(start int) int {
	for _, s := range p.Sites {
		if s.Start == start {
			return s.Arg
		}
	}
	return -1
}

// pad surrounds a replacement operator with spaces where the source had
// none, as in a=?.
func (p Plan) pad(start, end int, op string) string {
	if start > 0 && !isSpace(p.SQL[start-1]) {
		op = " " + op
	}
	if end < len(p.SQL) && !isSpace(p.SQL[end]) {
		op += " "
	}
	return op
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// indirect dereferences pointers; a nil pointer is a NULL value.
func indirect(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// elements lists the values of an array argument. []byte is a single
// value, not a list.
func elements(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.([]byte); ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
