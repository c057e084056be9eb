package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
	"github.com/leapstack-labs/leapquery/pkg/runtime"
)

// QueryOptions holds options for the exec command.
type QueryOptions struct {
	One bool
}

// NewQueryCommand creates the exec command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}
	cmd := &cobra.Command{
		Use:     "exec <statement> [args...]",
		Aliases: []string{"query"},
		Short:   "Run a named statement against the target database",
		Long: `Run a labeled statement with positional arguments against the configured
target.

Arguments are converted to the inferred argument types. NULL binds a null
value; a list argument takes comma-separated values. Queries print their
rows; other statements print the number of rows changed and, for
mutations, the queries they invalidate.`,
		Example: `  leapquery exec Player.selectByTeam red
  leapquery exec insertPlayer 7 Alice red
  leapquery query selectByIds 1,2,3 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], args[1:], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.One, "one", false, "Expect exactly one row")
	return cmd
}

func runQuery(cmd *cobra.Command, name string, raw []string, opts *QueryOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	m, err := buildManifest(ctx, cc)
	if err != nil {
		return err
	}
	s, err := m.Lookup(name)
	if err != nil {
		return err
	}
	args, err := parseArgs(s, raw)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(ctx, cc, m)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if s.Kind == compiler.KindQuery {
		q, err := db.Query(name, args...)
		if err != nil {
			return err
		}
		var rows []runtime.Row
		if opts.One {
			row, err := q.ExecuteAsOne(ctx)
			if err != nil {
				return err
			}
			rows = []runtime.Row{row}
		} else if rows, err = q.ExecuteAsList(ctx); err != nil {
			return err
		}
		return renderRows(r, s.Columns, rows)
	}

	n, err := db.Execute(ctx, name, args...)
	if err != nil {
		return err
	}
	return renderExecuted(r, m, s, n, s.Affected)
}

// parseArgs converts command-line strings to the argument types of s.
func parseArgs(s *manifest.Statement, raw []string) ([]any, error) {
	if len(raw) != len(s.Arguments) {
		names := make([]string, len(s.Arguments))
		for i, a := range s.Arguments {
			names[i] = a.Name
		}
		return nil, fmt.Errorf("%s takes %d arguments (%s), got %d",
			s.QualifiedName(), len(s.Arguments), strings.Join(names, ", "), len(raw))
	}
	out := make([]any, len(raw))
	for i, a := range s.Arguments {
		if a.Array {
			var elems []any
			for _, part := range strings.Split(raw[i], ",") {
				v, err := parseArg(a, strings.TrimSpace(part))
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
			}
			out[i] = elems
			continue
		}
		v, err := parseArg(a, raw[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(a manifest.Argument, s string) (any, error) {
	if strings.EqualFold(s, "null") {
		if !a.Type.Nullable {
			return nil, fmt.Errorf("argument %s is not nullable", a.Name)
		}
		return nil, nil
	}
	t, _ := core.ParseSemanticType(a.Type.Type)
	switch {
	case t == core.TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %q is not a boolean", a.Name, s)
		}
		return b, nil
	case t.Storage() == core.TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %q is not an integer", a.Name, s)
		}
		return n, nil
	case t.Storage() == core.TypeReal:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %q is not a number", a.Name, s)
		}
		return f, nil
	case t.Storage() == core.TypeBlob:
		return []byte(s), nil
	default:
		return s, nil
	}
}

// renderExecuted reports a statement run and the queries it invalidates.
func renderExecuted(r *output.Renderer, m *manifest.Manifest, s *manifest.Statement, n int64, affected []uint32) error {
	names := make([]string, 0, len(affected))
	for _, id := range affected {
		if q, ok := m.Statement(id); ok {
			names = append(names, q.QualifiedName())
		}
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{
			"statement":     s.QualifiedName(),
			"rows_affected": n,
			"invalidated":   names,
		})
	}
	r.Success(fmt.Sprintf("%s: %d rows affected", s.QualifiedName(), n))
	for _, name := range names {
		r.StatusLine(name, "warn", "invalidated")
	}
	return nil
}
