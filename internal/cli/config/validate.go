package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/manifest"
)

var (
	validDialects   = []string{"sqlite", "mysql", "postgresql"}
	validTargets    = []string{"sqlite", "postgres", "mysql", "duckdb"}
	validLogFormats = []string{"text", "json"}
)

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Validate checks the configuration values. Directory existence is checked
// separately so help and version work anywhere.
func (c *Config) Validate() error {
	if len(c.SourceDirs) == 0 && len(c.MigrationDirs) == 0 {
		return fmt.Errorf("source_dirs is required")
	}
	if !oneOf(c.Dialect, validDialects) {
		return fmt.Errorf("invalid dialect %q (valid: %s)", c.Dialect, strings.Join(validDialects, ", "))
	}
	switch manifest.Format(strings.ToLower(c.Manifest.Format)) {
	case "", manifest.FormatJSON, manifest.FormatYAML:
	default:
		return fmt.Errorf("invalid manifest format %q (valid: json, yaml)", c.Manifest.Format)
	}
	if c.LogFormat != "" && !oneOf(c.LogFormat, validLogFormats) {
		return fmt.Errorf("invalid log_format %q (valid: text, json)", c.LogFormat)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.Target == nil || c.Target.Type == "" {
		return fmt.Errorf("invalid target configuration: target type is required")
	}
	if !oneOf(c.Target.Type, validTargets) {
		return fmt.Errorf("invalid target configuration: unknown driver type %q (valid: %s)",
			c.Target.Type, strings.Join(validTargets, ", "))
	}
	return nil
}

// ValidateDirectories checks that the source directories exist.
func (c *Config) ValidateDirectories() error {
	for _, dir := range c.Dirs() {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("source directory does not exist: %s\nHint: Create the directory or use --source-dir to specify a different path", dir)
		}
	}
	return nil
}

// ManifestFormat is the configured format, or the one implied by the path.
func (c *Config) ManifestFormat() manifest.Format {
	if c.Manifest.Format != "" {
		return manifest.Format(strings.ToLower(c.Manifest.Format))
	}
	return manifest.FormatOf(c.Manifest.Path)
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q (valid: debug, info, warn, error)", s)
	}
	return level, nil
}
