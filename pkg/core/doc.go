// Package core defines the shared language of leapquery.
//
// This package contains:
//   - The SQL AST (expressions, queries, mutations, schema statements)
//   - The inference types (SemanticType, IntermediateType, DialectType)
//   - Dialect configuration data (DialectConfig)
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
