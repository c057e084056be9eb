// Package schema builds the catalog of tables, views, indexes and triggers
// declared by the DDL statements of a compilation.
//
// The catalog is filled in statement order with Apply. Cross references
// (foreign keys, trigger targets) may point forward within a compilation,
// so they are checked once every statement has been applied, by Validate.
//
// View columns are not computed here. A view keeps its SELECT and the
// inference engine derives its columns on first use.
package schema
