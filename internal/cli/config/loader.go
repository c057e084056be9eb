package config

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// EnvPrefix prefixes environment variable overrides.
const EnvPrefix = "LEAPQUERY_"

var configNames = []string{DefaultConfigFile, "leapquery.yml"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"state":      "state_path",
	"source-dir": "source_dirs",
	"manifest":   "manifest.path",
	"env":        "environment",
	"dsn":        "target.dsn",
	"driver":     "target.type",
}

// loaderFlags steer loading and are not config values.
var loaderFlags = map[string]bool{"config": true, "target": true, "project-dir": true}

// nestedEnv are the config sections reachable from flat env names, so
// LEAPQUERY_TARGET_DSN sets target.dsn.
var nestedEnv = []string{"manifest", "target"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range nestedEnv {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

func configExistsIn(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a config file.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if configExistsIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Explicit --project-dir flag
//  2. Directory of an explicit config file
//  3. Search upward from CWD for leapquery.yaml
//  4. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if flags != nil && flags.Lookup("project-dir") != nil && flags.Changed("project-dir") {
		if dir, _ := flags.GetString("project-dir"); dir != "" {
			if abs, err := filepath.Abs(dir); err == nil {
				return abs
			}
			return filepath.Clean(dir)
		}
	}
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithTarget(cfgFile, "", flags)
}

// LoadConfigWithTarget loads configuration, merging the target of the
// named environment over the base target. An empty targetOverride uses the
// configured environment.
func LoadConfigWithTarget(cfgFile, targetOverride string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	projectRoot := inferProjectRoot(cfgFile, flags)

	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"source_dirs":   def.SourceDirs,
		"dialect":       def.Dialect,
		"manifest.path": def.Manifest.Path,
		"state_path":    def.StatePath,
		"environment":   def.Environment,
		"verbose":       false,
		"output":        def.OutputFormat,
		"log_level":     def.LogLevel,
		"log_format":    def.LogFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Flags given on the command line are relative to the working
	// directory, not the project root.
	flagPaths := make(map[string]bool)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || loaderFlags[f.Name] {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			flagPaths[key] = true
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	cwd, _ := os.Getwd()
	base := func(key string) string {
		if flagPaths[key] && cwd != "" {
			return cwd
		}
		return projectRoot
	}
	for i, dir := range cfg.SourceDirs {
		cfg.SourceDirs[i] = resolvePathRelativeTo(dir, base("source_dirs"))
	}
	for i, dir := range cfg.MigrationDirs {
		cfg.MigrationDirs[i] = resolvePathRelativeTo(dir, base("migration_dirs"))
	}
	cfg.Manifest.Path = resolvePathRelativeTo(cfg.Manifest.Path, base("manifest.path"))
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, base("state_path"))

	envName := cfg.Environment
	if targetOverride != "" {
		envName = targetOverride
	}
	if envCfg, ok := cfg.Environments[envName]; ok && envCfg.Target != nil {
		cfg.Target = MergeTargetConfig(cfg.Target, envCfg.Target)
	}
	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	if cfg.Target.Type == "" {
		cfg.Target.Type = DefaultTargetType
		if cfg.Target.DSN == "" {
			cfg.Target.DSN = DefaultTargetDSN
		}
	}
	cfg.Target.DSN = expandEnvVars(cfg.Target.DSN)
	if fileBacked(cfg.Target) {
		cfg.Target.DSN = resolvePathRelativeTo(cfg.Target.DSN, base("target.dsn"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currentConfig = &cfg
	return &cfg, nil
}

// fileBacked reports whether the target DSN is a plain file path.
func fileBacked(t *TargetConfig) bool {
	switch t.Type {
	case "sqlite", "duckdb":
	default:
		return false
	}
	return t.DSN != "" && t.DSN != ":memory:" && !strings.HasPrefix(t.DSN, "file:")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration of the last successful load.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns. Unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &TargetConfig{
		Type:               base.Type,
		DSN:                base.DSN,
		StatementCacheSize: base.StatementCacheSize,
		Options:            make(map[string]any),
	}
	maps.Copy(merged.Options, base.Options)

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.DSN != "" {
		merged.DSN = override.DSN
	}
	if override.StatementCacheSize != 0 {
		merged.StatementCacheSize = override.StatementCacheSize
	}
	maps.Copy(merged.Options, override.Options)
	return merged
}
