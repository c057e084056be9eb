package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/driver/logdriver"
	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
	"github.com/leapstack-labs/leapquery/pkg/runtime"

	// Dialects and backends selectable from configuration.
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	_ "github.com/leapstack-labs/leapquery/pkg/drivers/duckdb"
	_ "github.com/leapstack-labs/leapquery/pkg/drivers/mysql"
	_ "github.com/leapstack-labs/leapquery/pkg/drivers/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/drivers/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the loaded configuration, or the defaults rooted at
// the working directory when no load happened.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg := config.Default()
	cwd, err := os.Getwd()
	if err != nil {
		return cfg
	}
	cfg.ProjectRoot = cwd
	for i, dir := range cfg.SourceDirs {
		cfg.SourceDirs[i] = filepath.Join(cwd, dir)
	}
	cfg.Manifest.Path = filepath.Join(cwd, cfg.Manifest.Path)
	cfg.StatePath = filepath.Join(cwd, cfg.StatePath)
	cfg.Target.DSN = filepath.Join(cwd, cfg.Target.DSN)
	return cfg
}

// compileResult is the outcome of compiling the project sources.
type compileResult struct {
	Context     *compiler.Context
	Program     *compiler.Program
	Diagnostics compiler.Diagnostics
}

// compileProject loads and compiles every source directory. Diagnostics do
// not fail the call; only I/O and configuration errors do.
func compileProject(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...*compiler.SourceFile) (*compileResult, error) {
	d, err := dialect.Lookup(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, err
	}
	c := compiler.NewContext(d,
		compiler.WithLogger(logger),
		compiler.WithSchemaFromMigrations(cfg.DeriveSchemaFromMigrations),
	)
	if err := c.Load(ctx, cfg.Dirs()...); err != nil {
		return nil, err
	}
	for _, f := range extra {
		c.AddFile(f.Path, f.Source)
	}
	p, err := compiler.Compile(c)
	res := &compileResult{Context: c, Program: p, Diagnostics: c.Diagnostics}
	if err != nil && len(c.Diagnostics) == 0 {
		return nil, err
	}
	return res, nil
}

// errCompileFailed is returned by commands that need a clean compile.
var errCompileFailed = errors.New("compilation failed")

// buildManifest compiles the project and fails on any diagnostic.
func buildManifest(ctx context.Context, cc *CommandContext) (*manifest.Manifest, error) {
	res, err := compileProject(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, err
	}
	if len(res.Diagnostics) > 0 {
		renderDiagnostics(cc.Renderer, res.Diagnostics)
		return nil, errCompileFailed
	}
	return manifest.FromProgram(res.Program), nil
}

// openTarget connects to the configured target. File-backed targets get
// their directory created.
func openTarget(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqldriver.Driver, error) {
	t := *cfg.Target
	switch t.Type {
	case "sqlite", "duckdb":
		if t.DSN != "" && t.DSN != ":memory:" && filepath.IsAbs(t.DSN) {
			if err := os.MkdirAll(filepath.Dir(t.DSN), 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	return sqldriver.Open(ctx, t, logger)
}

// openDatabase binds m to the configured target. Statements are logged at
// debug level.
func openDatabase(ctx context.Context, cc *CommandContext, m *manifest.Manifest) (*runtime.Database, *sqldriver.Driver, error) {
	d, err := openTarget(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	db, err := runtime.New(logdriver.New(d, cc.Logger, slog.LevelDebug), m, runtime.WithLogger(cc.Logger))
	if err != nil {
		_ = d.Close()
		return nil, nil, err
	}
	return db, d, nil
}

// relPath shortens path against the project root for display.
func relPath(cfg *config.Config, path string) string {
	if rel, err := filepath.Rel(cfg.ProjectRoot, path); err == nil {
		return rel
	}
	return path
}
