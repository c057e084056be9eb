package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
)

// NewAffectedCommand creates the affected command.
func NewAffectedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "affected <mutator>",
		Short: "Show the queries a mutation invalidates",
		Long: `Show the tables an INSERT, UPDATE or DELETE statement can change and the
queries observing them.

The table set follows foreign key actions and triggers transitively, so a
DELETE on a parent table lists the child tables its ON DELETE CASCADE
reaches.`,
		Example: `  leapquery affected Team.deleteTeam`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAffected(cmd, args[0])
		},
	}
}

func runAffected(cmd *cobra.Command, name string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	res, err := compileProject(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	if len(res.Diagnostics) > 0 {
		renderDiagnostics(r, res.Diagnostics)
		return errCompileFailed
	}

	s, err := res.Program.Lookup(name)
	if err != nil {
		return err
	}
	m, ok := res.Program.Mutator(s.ID)
	if !ok {
		return fmt.Errorf("%s is a %s statement, not an insert, update or delete", s.QualifiedName(), s.Kind)
	}

	tables := res.Program.AffectedTables(m)
	queries := res.Program.AffectedQueries(m)

	if r.EffectiveMode() == output.ModeJSON {
		names := make([]string, 0, len(queries))
		for _, q := range queries {
			names = append(names, q.QualifiedName())
		}
		return r.JSON(map[string]any{
			"mutator": m.QualifiedName(),
			"tables":  tables,
			"queries": names,
		})
	}

	r.Header(1, m.QualifiedName())
	r.Printf("Writes %s; affects tables: %s\n", m.Table, strings.Join(tables, ", "))
	if len(queries) == 0 {
		r.Muted("No queries observe these tables")
		return nil
	}
	rows := make([][]any, 0, len(queries))
	for _, q := range queries {
		rows = append(rows, []any{q.QualifiedName(), q.ID, strings.Join(q.Tables, ", ")})
	}
	return r.Table([]string{"query", "id", "observes"}, rows)
}
