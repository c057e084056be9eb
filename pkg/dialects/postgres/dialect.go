package postgres

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(Postgres, "postgres", "pg")
}

// PostgreSQL integer column types.
var (
	SmallInt = dialect.IntType{SQLName: "SMALLINT", Bits: 16}
	Integer  = dialect.IntType{SQLName: "INTEGER", Bits: 32}
	BigInt   = dialect.IntType{SQLName: "BIGINT", Bits: 64}
)

// postgresReservedWords contains common PostgreSQL reserved words.
// This is a manually maintained list of frequently problematic identifiers.
var postgresReservedWords = []string{
	"user", "order", "group", "table", "select", "from", "where", "index",
	"all", "and", "any", "array", "as", "asc", "asymmetric", "authorization",
	"between", "binary", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "cross", "current_catalog", "current_date",
	"current_role", "current_schema", "current_time", "current_timestamp",
	"current_user", "default", "deferrable", "desc", "distinct", "do", "else",
	"end", "except", "false", "fetch", "for", "foreign", "freeze", "full",
	"grant", "having", "ilike", "in", "initially", "inner", "intersect",
	"into", "is", "isnull", "join", "lateral", "leading", "left", "like",
	"limit", "localtime", "localtimestamp", "natural", "not", "notnull",
	"null", "offset", "on", "only", "or", "outer", "overlaps", "placing",
	"primary", "references", "returning", "right", "session_user", "similar",
	"some", "symmetric", "then", "to", "trailing", "true", "union", "unique",
	"using", "variadic", "verbose", "when", "window", "with",
}

func columnType(typeName string) (core.DialectType, bool) {
	switch strings.ToUpper(strings.TrimSpace(typeName)) {
	case "SMALLINT", "INT2", "SMALLSERIAL":
		return SmallInt, true
	case "INT", "INTEGER", "INT4", "SERIAL":
		return Integer, true
	case "BIGINT", "INT8", "BIGSERIAL":
		return BigInt, true
	}
	return nil, false
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.New(Config).
	Function("greatest", dialect.Encapsulating(core.TypeInteger, core.TypeReal, core.TypeText, core.TypeBlob)).
	Function("concat", dialect.Concat).
	ColumnTypes(columnType).
	Types(SmallInt, Integer, BigInt).
	WithReservedWords(postgresReservedWords...).
	Build()
