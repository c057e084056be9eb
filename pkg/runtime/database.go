package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/driver"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
	"github.com/leapstack-labs/leapquery/pkg/querygen"

	// Dialects named by manifests.
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
)

// Row is one decoded result row keyed by accessor name.
type Row map[string]any

// ColumnAdapter converts values of a custom column type (declared with
// AS in the schema) between their Go and stored forms.
type ColumnAdapter interface {
	Encode(v any) (any, error)
	Decode(v any) (any, error)
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *Database) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithColumnAdapter registers the adapter for a custom type.
func WithColumnAdapter(customType string, a ColumnAdapter) Option {
	return func(db *Database) { db.adapters[customType] = a }
}

// Database executes the statements of a manifest on a driver.
type Database struct {
	*Transacter
	manifest *manifest.Manifest
	dialect  *dialect.Dialect
	driver   driver.Driver
	adapters map[string]ColumnAdapter
	logger   *slog.Logger
}

// New binds m to d.
func New(d driver.Driver, m *manifest.Manifest, opts ...Option) (*Database, error) {
	dia, err := dialect.Lookup(m.Dialect)
	if err != nil {
		return nil, err
	}
	db := &Database{
		manifest: m,
		dialect:  dia,
		driver:   d,
		adapters: make(map[string]ColumnAdapter),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.Transacter = NewTransacter(d, NewRegistry(), db.logger)
	return db, nil
}

// FromProgram binds a compiled program to d.
func FromProgram(d driver.Driver, p *compiler.Program, opts ...Option) (*Database, error) {
	return New(d, manifest.FromProgram(p), opts...)
}

// Manifest returns the bound manifest.
func (db *Database) Manifest() *manifest.Manifest { return db.manifest }

// Driver returns the underlying driver.
func (db *Database) Driver() driver.Driver { return db.driver }

// Close closes the driver.
func (db *Database) Close() error { return db.driver.Close() }

// Query returns a listenable query for the named statement bound to args,
// one per argument.
func (db *Database) Query(name string, args ...any) (*Query[Row], error) {
	s, err := db.manifest.Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("%s: %w", s.QualifiedName(), ErrNotQuery)
	}
	if len(args) != len(s.Arguments) {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", s.QualifiedName(), len(s.Arguments), len(args))
	}
	values, err := db.encodeArgs(s, args)
	if err != nil {
		return nil, err
	}

	execute := func(ctx context.Context) (driver.Cursor, error) {
		r, err := s.Plan.Render(db.dialect, values)
		if err != nil {
			return nil, err
		}
		return db.driver.ExecuteQuery(ctx, r.ID, r.SQL, r.ParamCount, binder(r.Binds))
	}
	mapper := func(c driver.Cursor) (Row, error) {
		return db.decodeRow(c, s.Columns)
	}
	return NewQuery(db.Registry(), s.ID, s.QualifiedName(), execute, mapper), nil
}

// Execute runs the named statement and returns the number of affected
// rows. Queries affected by a mutation are notified once the enclosing
// transaction commits, or immediately outside a transaction.
func (db *Database) Execute(ctx context.Context, name string, args ...any) (int64, error) {
	s, err := db.manifest.Lookup(name)
	if err != nil {
		return 0, err
	}
	if len(args) != len(s.Arguments) {
		return 0, fmt.Errorf("%s: want %d arguments, got %d", s.QualifiedName(), len(s.Arguments), len(args))
	}
	values, err := db.encodeArgs(s, args)
	if err != nil {
		return 0, err
	}
	r, err := s.Plan.Render(db.dialect, values)
	if err != nil {
		return 0, err
	}
	n, err := db.driver.Execute(ctx, r.ID, r.SQL, r.ParamCount, binder(r.Binds))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.QualifiedName(), err)
	}

	switch s.Kind {
	case compiler.KindInsert, compiler.KindUpdate, compiler.KindDelete:
		affected := s.Affected
		if err := db.NotifyQueries(ctx, s.ID, func() []uint32 { return affected }); err != nil {
			return n, err
		}
	}
	return n, nil
}

func binder(binds []querygen.Bind) driver.Binder {
	return func(s driver.PreparedStatement) error {
		for _, b := range binds {
			if err := driver.Bind(s, b.Position, b.Kind, b.Value); err != nil {
				return err
			}
		}
		return nil
	}
}

// encodeArgs applies column adapters to arguments of custom types.
func (db *Database) encodeArgs(s *manifest.Statement, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, v := range args {
		out[i] = v
		a, ok := db.adapters[s.Arguments[i].Type.Custom]
		if !ok || v == nil || s.Arguments[i].Type.Custom == "" {
			continue
		}
		if s.Arguments[i].Array {
			elems, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("%s: argument %s: custom list arguments must be []any", s.QualifiedName(), s.Arguments[i].Name)
			}
			encoded := make([]any, len(elems))
			for j, e := range elems {
				ev, err := a.Encode(e)
				if err != nil {
					return nil, fmt.Errorf("%s: argument %s: %w", s.QualifiedName(), s.Arguments[i].Name, err)
				}
				encoded[j] = ev
			}
			out[i] = encoded
			continue
		}
		ev, err := a.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %s: %w", s.QualifiedName(), s.Arguments[i].Name, err)
		}
		out[i] = ev
	}
	return out, nil
}

func (db *Database) decodeRow(c driver.Cursor, cols []manifest.Column) (Row, error) {
	row := make(Row, len(cols))
	for i, col := range cols {
		v, err := db.decodeColumn(c, i, col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		row[col.Name] = v
	}
	return row, c.Err()
}

// decodeColumn reads column i with the accessor of its type. NULL decodes
// to nil.
func (db *Database) decodeColumn(c driver.Cursor, i int, t manifest.Type) (any, error) {
	var dt core.DialectType
	kind := core.BindDynamic
	if t.Dialect != "" {
		if found, ok := db.dialect.TypeByName(t.Dialect); ok {
			dt = found
			kind = found.BindKind()
		}
	}
	st, _ := core.ParseSemanticType(t.Type)
	if dt == nil {
		kind = st.BindKind()
	}

	var v any
	switch kind {
	case core.BindLong:
		if n := c.Long(i); n != nil {
			v = *n
		}
	case core.BindDouble:
		if f := c.Double(i); f != nil {
			v = *f
		}
	case core.BindBytes:
		if b := c.Bytes(i); b != nil {
			v = b
		}
	default:
		if s := c.String(i); s != nil {
			v = *s
		}
	}
	if v == nil {
		return nil, nil
	}

	var err error
	switch {
	case dt != nil:
		if v, err = dt.Decode(v); err != nil {
			return nil, err
		}
	case st == core.TypeBoolean:
		v = v.(int64) != 0
	}
	if a, ok := db.adapters[t.Custom]; ok && t.Custom != "" {
		return a.Decode(v)
	}
	return v, nil
}
