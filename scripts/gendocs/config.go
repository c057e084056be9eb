package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Category    string // "project", "logging", "target"
}

// getConfigSchema returns the configuration schema definition.
// This follows internal/cli/config.Config and sqldriver.Config.
func getConfigSchema() []ConfigField {
	def := config.Default()
	return []ConfigField{
		{Name: "source_dirs", Type: "[]string", Default: strings.Join(def.SourceDirs, ", "), Description: "Directories of .sq and .sqm files", Category: "project"},
		{Name: "migration_dirs", Type: "[]string", Description: "Extra directories of .sqm migrations", Category: "project"},
		{Name: "dialect", Type: "string", Default: def.Dialect, Description: "SQL dialect: sqlite, mysql, postgresql", Category: "project"},
		{Name: "derive_schema_from_migrations", Type: "bool", Default: "false", Description: "Build the schema from migrations instead of CREATE statements in .sq files", Category: "project"},
		{Name: "manifest.path", Type: "string", Default: def.Manifest.Path, Description: "Where compile writes the manifest", Category: "project"},
		{Name: "manifest.format", Type: "string", Description: "json or yaml; empty picks it from the path", Category: "project"},
		{Name: "state_path", Type: "string", Default: def.StatePath, Description: "SQLite database of compile history", Category: "project"},
		{Name: "environment", Type: "string", Default: def.Environment, Description: "Environment whose target overrides apply", Category: "project"},
		{Name: "output", Type: "string", Default: def.OutputFormat, Description: "Output format: auto, text, markdown, json", Category: "project"},

		{Name: "log_level", Type: "string", Default: def.LogLevel, Description: "debug, info, warn or error", Category: "logging"},
		{Name: "log_format", Type: "string", Default: def.LogFormat, Description: "text or json", Category: "logging"},
		{Name: "verbose", Type: "bool", Default: "false", Description: "Debug logging and config file reporting", Category: "logging"},

		{Name: "target.type", Type: "string", Default: def.Target.Type, Description: "Backend: sqlite, postgres, mysql, duckdb", Category: "target"},
		{Name: "target.dsn", Type: "string", Default: def.Target.DSN, Description: "Connection string or database file; ${VAR} is expanded", Category: "target"},
		{Name: "target.statement_cache_size", Type: "int", Default: strconv.Itoa(sqldriver.DefaultCacheSize), Description: "Prepared statements kept per connection", Category: "target"},
		{Name: "target.options", Type: "map[string]any", Description: "Backend specific options", Category: "target"},
	}
}

// generateConfigDocs generates the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "leapquery configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("leapquery is configured via `leapquery.yaml` in your project root. Values are layered: defaults, the file, " +
		InlineCode(config.EnvPrefix+"*") + " environment variables, then command-line flags.")

	fields := getConfigSchema()
	sections := []struct{ category, title string }{
		{"project", "Project Settings"},
		{"logging", "Logging"},
		{"target", "Target"},
	}
	headers := []string{"Field", "Type", "Default", "Description"}
	for _, sec := range sections {
		w.Header(2, sec.title)
		var rows [][]string
		for _, f := range fields {
			if f.Category != sec.category {
				continue
			}
			defVal := "-"
			if f.Default != "" {
				defVal = InlineCode(f.Default)
			}
			rows = append(rows, []string{InlineCode(f.Name), f.Type, defVal, f.Description})
		}
		w.Table(headers, rows)
	}

	w.Header(2, "Environments")
	w.Paragraph("Entries under `environments` override the base target. Select one with `environment` or `--target`.")

	w.Header(2, "Example")
	w.CodeBlock("yaml", `# leapquery.yaml
source_dirs: [sql]
dialect: sqlite
manifest:
  path: .leapquery/manifest.json

target:
  type: sqlite
  dsn: .leapquery/dev.db

environments:
  prod:
    target:
      type: postgres
      dsn: ${DATABASE_URL}
      statement_cache_size: 50`)

	log.Printf("  Generated configuration.md")
	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}
