package core

import (
	"strconv"
	"strings"
)

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data; function typing and column types live in
// pkg/dialect.Dialect, which embeds this config.
type DialectConfig struct {
	// Name is the dialect identifier (sqlite, mysql, postgresql)
	Name string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// SupportsReturning enables RETURNING on INSERT/UPDATE/DELETE
	SupportsReturning bool
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormCaseSensitive preserves identifier case exactly.
	NormCaseSensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// Format returns the placeholder for the 1-based parameter index.
func (p PlaceholderStyle) Format(index int) string {
	if p == PlaceholderDollar {
		return "$" + strconv.Itoa(index)
	}
	return "?"
}

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `
	QuoteEnd      string                // End quote character (usually same as Quote)
	Normalization NormalizationStrategy // How to normalize identifiers for lookup
}

// Normalize returns the catalog key for a name.
func (c IdentifierConfig) Normalize(name string) string {
	if c.Normalization == NormCaseSensitive {
		return name
	}
	return strings.ToLower(name)
}
