package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	NoHistory bool
	Stdout    bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile SQL sources into a manifest",
		Long: `Compile every .sq and .sqm file, infer statement types and write the
manifest the runtime loads.

Each run is recorded in the state database with the content hash of every
source file, so later runs report which files changed.`,
		Example: `  # Compile into the configured manifest
  leapquery compile

  # Print the manifest instead of writing it
  leapquery compile --stdout`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run in the state database")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "Write the manifest to stdout")
	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions) error {
	cc := NewCommandContext(cmd)
	cfg := cc.Cfg
	r := cc.Renderer
	start := time.Now()

	res, err := compileProject(cmd.Context(), cfg, cc.Logger)
	if err != nil {
		return err
	}

	run := &state.Run{
		StartedAt:   start.UTC(),
		Dialect:     cfg.Dialect,
		Diagnostics: len(res.Diagnostics),
	}
	for _, f := range res.Context.Files {
		run.Files = append(run.Files, state.FileHash{Path: relPath(cfg, f.Path), Hash: f.Hash})
	}
	if res.Program != nil {
		run.SchemaVersion = res.Program.Version()
		run.Statements = len(res.Program.Statements())
	}

	var changed []string
	if !opts.NoHistory {
		run.Duration = time.Since(start)
		changed, err = recordRun(cmd.Context(), cc, run)
		if err != nil {
			cc.Logger.Warn("failed to record compile run", "error", err)
		}
	}

	if len(res.Diagnostics) > 0 {
		renderDiagnostics(r, res.Diagnostics)
		return errCompileFailed
	}

	m := manifest.FromProgram(res.Program)
	if opts.Stdout {
		return m.Encode(cmd.OutOrStdout(), cfg.ManifestFormat())
	}
	if err := writeManifest(m, cfg.Manifest.Path, cfg.ManifestFormat()); err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{
			"manifest":       relPath(cfg, cfg.Manifest.Path),
			"statements":     run.Statements,
			"schema_version": run.SchemaVersion,
			"changed":        changed,
		})
	}
	for _, f := range changed {
		r.StatusLine(f, "warn", "changed")
	}
	r.Success(fmt.Sprintf("Compiled %d statements (schema version %d) into %s",
		run.Statements, run.SchemaVersion, relPath(cfg, cfg.Manifest.Path)))
	return nil
}

// recordRun stores run and returns the files changed since the previous
// run.
func recordRun(ctx context.Context, cc *CommandContext, run *state.Run) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(cc.Cfg.StatePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	store := state.NewSQLiteStore(cc.Logger)
	if err := store.Open(cc.Cfg.StatePath); err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(); err != nil {
		return nil, err
	}

	prev, err := store.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.RecordRun(ctx, run); err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}
	return state.Changed(prev, run.Files), nil
}

// writeManifest writes m to path in format, creating the directory.
func writeManifest(m *manifest.Manifest, path string, format manifest.Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if err := m.Encode(f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
