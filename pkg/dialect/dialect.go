// Package dialect provides SQL dialect configuration and function typing.
//
// This package contains the public contract for dialect definitions used by
// the parser, the type inference engine and the runtime. Concrete dialect
// implementations are registered from pkg/dialects/*/ packages.
package dialect

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// FunctionType computes the result type of a dialect function from the
// inferred types of its arguments.
type FunctionType func(args []core.IntermediateType) core.IntermediateType

// ColumnTypeMatcher maps a declared column type to a dialect type.
type ColumnTypeMatcher func(typeName string) (core.DialectType, bool)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Placeholder is how query parameters are formatted
	Placeholder core.PlaceholderStyle

	// SupportsReturning enables RETURNING clauses
	SupportsReturning bool

	functions     map[string]FunctionType
	columnTypes   []ColumnTypeMatcher
	types         map[string]core.DialectType
	reservedWords map[string]struct{}
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	return &core.DialectConfig{
		Name:              d.Name,
		Identifiers:       d.Identifiers,
		Placeholder:       d.Placeholder,
		SupportsReturning: d.SupportsReturning,
	}
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	return d.Identifiers.Normalize(name)
}

// FunctionType returns the dialect-specific result type for a function the
// common rule set does not recognize.
func (d *Dialect) FunctionType(name string, args []core.IntermediateType) (core.IntermediateType, bool) {
	fn, ok := d.functions[strings.ToLower(name)]
	if !ok {
		return core.IntermediateType{}, false
	}
	return fn(args), true
}

// HasFunction reports whether the dialect types the named function.
func (d *Dialect) HasFunction(name string) bool {
	_, ok := d.functions[strings.ToLower(name)]
	return ok
}

// ColumnType resolves a declared column type to a dialect type. The
// dialect-specific table is consulted before the common affinity rules.
func (d *Dialect) ColumnType(typeName string) (core.DialectType, bool) {
	for _, m := range d.columnTypes {
		if t, ok := m(typeName); ok {
			return t, true
		}
	}
	return nil, false
}

// TypeByName returns a dialect type by its SQL name, as written in a
// manifest.
func (d *Dialect) TypeByName(name string) (core.DialectType, bool) {
	t, ok := d.types[strings.ToUpper(name)]
	return t, ok
}

// FormatPlaceholder returns the placeholder for the 1-based parameter index.
func (d *Dialect) FormatPlaceholder(index int) string {
	return d.Placeholder.Format(index)
}

// IsReservedWord returns true if the word must be quoted as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes a name with the dialect's identifier quotes.
func (d *Dialect) QuoteIdentifier(name string) string {
	q, qe := d.Identifiers.Quote, d.Identifiers.QuoteEnd
	return q + strings.ReplaceAll(name, qe, qe+qe) + qe
}

// QuoteIdentifierIfNeeded quotes reserved words and names that are not
// plain identifiers.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) || !plainIdentifier(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

func plainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ---------- Builder ----------

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// New creates a dialect builder from a DialectConfig.
func New(cfg *core.DialectConfig) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:              cfg.Name,
			Identifiers:       cfg.Identifiers,
			Placeholder:       cfg.Placeholder,
			SupportsReturning: cfg.SupportsReturning,
			functions:         make(map[string]FunctionType),
			types:             make(map[string]core.DialectType),
			reservedWords:     make(map[string]struct{}),
		},
	}
}

// Function registers a typed dialect function.
func (b *Builder) Function(name string, fn FunctionType) *Builder {
	b.dialect.functions[strings.ToLower(name)] = fn
	return b
}

// ColumnTypes registers a matcher for declared column types.
func (b *Builder) ColumnTypes(m ColumnTypeMatcher) *Builder {
	b.dialect.columnTypes = append(b.dialect.columnTypes, m)
	return b
}

// Types registers the dialect's type variants by name.
func (b *Builder) Types(types ...core.DialectType) *Builder {
	for _, t := range types {
		b.dialect.types[strings.ToUpper(t.Name())] = t
	}
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}

// ---------- Function helpers ----------

// Returns types a function with a fixed non-null result.
func Returns(t core.SemanticType) FunctionType {
	return func([]core.IntermediateType) core.IntermediateType {
		return core.NewType(t)
	}
}

// Encapsulating types a function as the encapsulating type of its
// arguments under the given order.
func Encapsulating(order ...core.SemanticType) FunctionType {
	return func(args []core.IntermediateType) core.IntermediateType {
		return core.EncapsulatingType(args, order...)
	}
}

// Concat types concat(): TEXT, nullable only when every argument is.
func Concat(args []core.IntermediateType) core.IntermediateType {
	all := len(args) > 0
	for _, a := range args {
		all = all && a.Nullable
	}
	return core.NewType(core.TypeText).NullableIf(all)
}
