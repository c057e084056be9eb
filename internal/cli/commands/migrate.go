package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/migrate"
)

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	Create bool
	Status bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply .sqm migrations to the target database",
		Long: `Apply pending .sqm migrations to the configured target in version order.

Migration N upgrades the schema from version N to N+1. Applied versions are
tracked in the goose_db_version table.

--create builds a fresh database from the schema statements instead and
marks every migration applied.`,
		Example: `  # Apply pending migrations
  leapquery migrate

  # Create a new database at the current version
  leapquery migrate --create

  # Show applied and pending migrations
  leapquery migrate --status`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Create, "create", false, "Create the schema and mark all migrations applied")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "Show migration status without applying")
	cmd.MarkFlagsMutuallyExclusive("create", "status")
	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	m, err := buildManifest(ctx, cc)
	if err != nil {
		return err
	}
	db, d, err := openDatabase(ctx, cc, m)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	mg, err := migrate.New(d.DB(), cc.Cfg.Target.Type, m, cc.Logger)
	if err != nil {
		return err
	}

	switch {
	case opts.Status:
		statuses, err := mg.Status(ctx)
		if err != nil {
			return err
		}
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(statuses)
		}
		if len(statuses) == 0 {
			r.Muted("No migrations")
			return nil
		}
		rows := make([][]any, 0, len(statuses))
		for _, s := range statuses {
			applied := "pending"
			if s.Applied {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []any{s.Version, s.File, applied})
		}
		return r.Table([]string{"version", "file", "applied"}, rows)

	case opts.Create:
		if err := db.Schema().Create(ctx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		if _, err := mg.Baseline(ctx); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Created schema at version %d", db.Schema().Version()))
		return nil
	}

	results, err := mg.Up(ctx)
	for _, res := range results {
		r.StatusLine(res.File, "success", res.Duration.String())
	}
	if err != nil {
		return err
	}
	v, err := mg.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		r.Success(fmt.Sprintf("Schema is up to date at version %d", v))
		return nil
	}
	r.Success(fmt.Sprintf("Applied %d migrations, schema version %d", len(results), v))
	return nil
}
