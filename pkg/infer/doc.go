// Package infer computes the type of every expression, bind parameter and
// result column of a statement.
//
// An Engine is bound to one schema catalog. Analyze resolves the names of
// a statement against the catalog (tables, views, CTEs, aliases and outer
// scopes) and records what each column reference points at. After that,
// Type answers for any expression of the statement and ArgumentType
// answers for its bind parameters.
//
// Typing follows fixed per-node rules. Comparisons are non-null booleans.
// Arithmetic takes the encapsulating type of its operands, nullable only
// when every operand is nullable. Functions come from a fixed table with a
// per-dialect fallback. A bind parameter takes its type from the
// expression or statement slot it appears in.
//
// An Engine is not safe for concurrent use.
package infer
