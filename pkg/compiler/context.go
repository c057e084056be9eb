package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/parser"
	"github.com/leapstack-labs/leapquery/pkg/schema"
)

// File extensions recognized by Load.
const (
	QueriesExt   = ".sq"
	MigrationExt = ".sqm"
)

// SourceFile is one loaded .sq or .sqm file.
type SourceFile struct {
	Name    string // base name, used in diagnostics
	Path    string
	Source  string
	Hash    string // sha256 of Source
	Version int    // migration version, 0 for .sq files
	Parsed  *parser.File
}

// Migration reports whether the file is a .sqm migration.
func (f *SourceFile) Migration() bool {
	return strings.HasSuffix(f.Name, MigrationExt)
}

// Context is the state of one compilation run: the dialect, the schema
// catalog being built, the source files and the diagnostics collected so
// far. It is passed explicitly; nothing is global.
type Context struct {
	Dialect     *dialect.Dialect
	Catalog     *schema.Catalog
	Files       []*SourceFile
	Diagnostics Diagnostics

	deriveFromMigrations bool
	logger               *slog.Logger
	mu                   sync.Mutex
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used during loading and compilation.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// WithSchemaFromMigrations builds the schema from the .sqm files in version
// order instead of from the DDL of the .sq files.
func WithSchemaFromMigrations(derive bool) Option {
	return func(c *Context) { c.deriveFromMigrations = derive }
}

// NewContext creates an empty compilation context for a dialect.
func NewContext(d *dialect.Dialect, opts ...Option) *Context {
	c := &Context{
		Dialect: d,
		Catalog: schema.New(d),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// AddFile parses src and adds it to the context. Parse errors become
// diagnostics; the statements that did parse are kept.
func (c *Context) AddFile(path, src string) *SourceFile {
	f := c.parse(path, src)
	c.mu.Lock()
	c.Files = append(c.Files, f)
	c.mu.Unlock()
	return f
}

func (c *Context) parse(path, src string) *SourceFile {
	sum := sha256.Sum256([]byte(src))
	f := &SourceFile{
		Name:   filepath.Base(path),
		Path:   path,
		Source: src,
		Hash:   hex.EncodeToString(sum[:]),
	}
	parsed, err := parser.ParseFile(f.Name, src, c.Dialect)
	f.Parsed = parsed
	c.report(f.Name, err)

	if f.Migration() {
		base := strings.TrimSuffix(f.Name, MigrationExt)
		v, convErr := strconv.Atoi(base)
		if convErr != nil || v < 0 {
			c.addDiagnostic(Diagnostic{File: f.Name, Message: fmt.Sprintf(ErrMigrationName, f.Name)})
		}
		f.Version = v
	}
	c.logger.Debug("parsed source file", "file", f.Name, "statements", len(parsed.Statements))
	return f
}

// Load reads every .sq and .sqm file below dirs and parses them
// concurrently. Only I/O failures are returned; SQL errors are collected in
// Diagnostics.
func (c *Context) Load(ctx context.Context, dirs ...string) error {
	var paths []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case QueriesExt, MigrationExt:
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	slices.Sort(paths)

	files := make([]*SourceFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from WalkDir
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			files[i] = c.parse(path, string(content))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	c.Files = append(c.Files, files...)
	c.mu.Unlock()
	c.logger.Info("loaded sources", "files", len(files), "dirs", len(dirs))
	return nil
}

// QueryFiles returns the .sq files in load order.
func (c *Context) QueryFiles() []*SourceFile {
	var out []*SourceFile
	for _, f := range c.Files {
		if !f.Migration() {
			out = append(out, f)
		}
	}
	return out
}

// Migrations returns the .sqm files sorted by version.
func (c *Context) Migrations() []*SourceFile {
	var out []*SourceFile
	for _, f := range c.Files {
		if f.Migration() {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b *SourceFile) int { return a.Version - b.Version })
	return out
}

func (c *Context) report(file string, err error) {
	if err == nil {
		return
	}
	diags := diagnose(file, err)
	c.mu.Lock()
	c.Diagnostics = append(c.Diagnostics, diags...)
	c.mu.Unlock()
}

func (c *Context) addDiagnostic(d Diagnostic) {
	c.mu.Lock()
	c.Diagnostics = append(c.Diagnostics, d)
	c.mu.Unlock()
}
