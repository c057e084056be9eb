// Package config loads the leapquery.yaml project configuration.
//
// Values are layered with koanf: defaults, then the config file, then
// LEAPQUERY_ environment variables, then explicitly set flags.
package config

import (
	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
)

// TargetConfig is the database the runtime commands connect to.
type TargetConfig = sqldriver.Config

// ManifestConfig is where compile writes the manifest.
type ManifestConfig struct {
	Path string `koanf:"path"`
	// Format is json or yaml. Empty picks it from the path extension.
	Format string `koanf:"format"`
}

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`

	SourceDirs                 []string             `koanf:"source_dirs"`
	MigrationDirs              []string             `koanf:"migration_dirs"`
	Dialect                    string               `koanf:"dialect"`
	DeriveSchemaFromMigrations bool                 `koanf:"derive_schema_from_migrations"`
	Manifest                   ManifestConfig       `koanf:"manifest"`
	StatePath                  string               `koanf:"state_path"`
	Environment                string               `koanf:"environment"`
	Verbose                    bool                 `koanf:"verbose"`
	OutputFormat               string               `koanf:"output"`
	LogLevel                   string               `koanf:"log_level"`
	LogFormat                  string               `koanf:"log_format"`
	Target                     *TargetConfig        `koanf:"target"`
	Environments               map[string]EnvConfig `koanf:"environments"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	Target *TargetConfig `koanf:"target"`
}

// Dirs returns the source and migration directories, in that order.
func (c *Config) Dirs() []string {
	dirs := make([]string, 0, len(c.SourceDirs)+len(c.MigrationDirs))
	dirs = append(dirs, c.SourceDirs...)
	return append(dirs, c.MigrationDirs...)
}

// Default configuration values.
const (
	DefaultConfigFile   = "leapquery.yaml"
	DefaultSourceDir    = "sql"
	DefaultDialect      = "sqlite"
	DefaultManifestPath = ".leapquery/manifest.json"
	DefaultStateFile    = ".leapquery/state.db"
	DefaultTargetType   = "sqlite"
	DefaultTargetDSN    = ".leapquery/dev.db"
	DefaultEnv          = "dev"
	DefaultOutput       = "auto" // TTY=text, non-TTY=markdown
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"
)

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		SourceDirs:   []string{DefaultSourceDir},
		Dialect:      DefaultDialect,
		Manifest:     ManifestConfig{Path: DefaultManifestPath},
		StatePath:    DefaultStateFile,
		Environment:  DefaultEnv,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Target:       &TargetConfig{Type: DefaultTargetType, DSN: DefaultTargetDSN},
	}
}
