package mysql

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
}

// MySQL integer column types.
var (
	TinyInt     = dialect.IntType{SQLName: "TINYINT", Bits: 8}
	TinyIntBool = dialect.BoolType{SQLName: "TINYINT(1)"}
	SmallInt    = dialect.IntType{SQLName: "SMALLINT", Bits: 16}
	Integer     = dialect.IntType{SQLName: "INTEGER", Bits: 32}
	BigInt      = dialect.IntType{SQLName: "BIGINT", Bits: 64}
	Bit         = dialect.BoolType{SQLName: "BIT"}
)

var mysqlReservedWords = []string{
	"add", "all", "alter", "and", "as", "asc", "between", "by", "case",
	"check", "column", "condition", "constraint", "create", "cross",
	"database", "default", "delete", "desc", "distinct", "div", "drop",
	"else", "exists", "false", "for", "foreign", "from", "group", "having",
	"in", "index", "inner", "insert", "interval", "into", "is", "join", "key",
	"keys", "left", "like", "limit", "match", "not", "null", "on", "or",
	"order", "outer", "primary", "range", "references", "regexp", "rename",
	"replace", "right", "select", "set", "table", "then", "to", "true",
	"union", "unique", "update", "usage", "using", "values", "when", "where",
	"with",
}

var typeSize = regexp.MustCompile(`^([A-Z]+)\s*(?:\(\s*(\d+)\s*\))?`)

// columnType maps declared MySQL integer types. TINYINT(1) and BOOLEAN
// are booleans.
func columnType(typeName string) (core.DialectType, bool) {
	m := typeSize.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(typeName)))
	if m == nil {
		return nil, false
	}
	switch m[1] {
	case "BOOL", "BOOLEAN":
		return TinyIntBool, true
	case "TINYINT":
		if m[2] == "1" {
			return TinyIntBool, true
		}
		return TinyInt, true
	case "SMALLINT":
		return SmallInt, true
	case "INT", "INTEGER", "MEDIUMINT":
		return Integer, true
	case "BIGINT":
		return BigInt, true
	case "BIT":
		return Bit, true
	}
	return nil, false
}

// MySQL is the MySQL dialect.
var MySQL = dialect.New(Config).
	Function("greatest", dialect.Encapsulating(core.TypeInteger, core.TypeReal, core.TypeText, core.TypeBlob)).
	Function("concat", dialect.Concat).
	Function("last_insert_id", dialect.Returns(core.TypeInteger)).
	Function("month", dialect.Returns(core.TypeInteger)).
	Function("year", dialect.Returns(core.TypeInteger)).
	Function("minute", dialect.Returns(core.TypeInteger)).
	Function("sin", dialect.Returns(core.TypeReal)).
	Function("cos", dialect.Returns(core.TypeReal)).
	Function("tan", dialect.Returns(core.TypeReal)).
	ColumnTypes(columnType).
	Types(TinyInt, TinyIntBool, SmallInt, Integer, BigInt, Bit).
	WithReservedWords(mysqlReservedWords...).
	Build()
