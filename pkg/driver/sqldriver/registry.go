package sqldriver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// Config selects and configures a backend.
type Config struct {
	Type               string         `koanf:"type"`
	DSN                string         `koanf:"dsn"`
	Options            map[string]any `koanf:"options"`
	StatementCacheSize int            `koanf:"statement_cache_size"`
}

// Backend opens a database for one database/sql driver.
type Backend interface {
	// Open returns a database for cfg. Options are backend specific.
	Open(ctx context.Context, cfg Config) (*sql.DB, error)
	// Dialect names the SQL dialect statements are compiled for.
	Dialect() string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register adds a backend to the registry.
// Called by backend implementations in their init() functions.
func Register(name string, b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = b
}

// Get retrieves a backend by name.
func Get(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

// ListBackends returns all registered backend names (sorted).
func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownBackendError is returned when an unknown backend type is requested.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown driver type %q\nAvailable drivers: %v\nHint: Check your target.type in leapquery.yaml", e.Type, e.Available)
}

// Open connects the backend named by cfg.Type and wraps it in a Driver.
// A nil logger discards output.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Driver, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("driver type not specified")
	}
	b, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownBackendError{Type: cfg.Type, Available: ListBackends()}
	}
	db, err := b.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Type, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}
	if logger != nil {
		logger = logger.With("driver", cfg.Type)
	}
	return New(db, WithCacheSize(cfg.StatementCacheSize), WithLogger(logger))
}

// DecodeOptions decodes backend options into out, a pointer to a struct
// with mapstructure tags. Unknown keys are errors.
func DecodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("decode driver options: %w", err)
	}
	return nil
}
