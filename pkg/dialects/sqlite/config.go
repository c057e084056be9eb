// Package sqlite provides the SQLite SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import "github.com/leapstack-labs/leapquery/pkg/core"

// Config is the SQLite dialect configuration.
var Config = &core.DialectConfig{
	Name:        "sqlite",
	Placeholder: core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Normalization: core.NormLowercase, // SQLite matches names case-insensitively
	},
	SupportsReturning: true,
}
