package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded compile runs",
		Long: `List the compile runs recorded in the state database, newest first.

With a run id, show that run and the content hash of every file it read.`,
		Example: `  leapquery history
  leapquery history --limit 5
  leapquery history 2f1c9a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(cmd, id, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, id string, opts *HistoryOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	if _, err := os.Stat(cc.Cfg.StatePath); os.IsNotExist(err) {
		r.Muted("No compile runs recorded")
		return nil
	}
	store := state.NewSQLiteStore(cc.Logger)
	if err := store.Open(cc.Cfg.StatePath); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(); err != nil {
		return err
	}

	if id != "" {
		run, err := store.GetRun(ctx, id)
		if err != nil {
			return err
		}
		return renderRun(r, run)
	}

	runs, err := store.Runs(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Muted("No compile runs recorded")
		return nil
	}
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration.String(),
			run.Dialect,
			run.SchemaVersion,
			run.Statements,
			run.Diagnostics,
		})
	}
	return r.Table([]string{"id", "started", "duration", "dialect", "version", "statements", "errors"}, rows)
}

func renderRun(r *output.Renderer, run *state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}
	r.Header(2, "Run "+run.ID)
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format("2006-01-02 15:04:05")))
	r.Println(output.FormatKeyValue("Duration", run.Duration.String()))
	r.Println(output.FormatKeyValue("Dialect", run.Dialect))
	r.Println(output.FormatKeyValue("Schema version", fmt.Sprint(run.SchemaVersion)))
	r.Println(output.FormatKeyValue("Statements", fmt.Sprint(run.Statements)))
	r.Println(output.FormatKeyValue("Errors", fmt.Sprint(run.Diagnostics)))
	if len(run.Files) == 0 {
		return nil
	}
	r.Println("")
	rows := make([][]any, 0, len(run.Files))
	for _, f := range run.Files {
		hash := f.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows = append(rows, []any{f.Path, hash})
	}
	return r.Table([]string{"file", "hash"}, rows)
}
