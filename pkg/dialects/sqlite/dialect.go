package sqlite

import "github.com/leapstack-labs/leapquery/pkg/dialect"

func init() {
	dialect.Register(SQLite, "sqlite3")
}

// sqliteReservedWords are the keywords SQLite refuses as bare identifiers.
var sqliteReservedWords = []string{
	"add", "all", "alter", "and", "as", "autoincrement", "between", "case",
	"check", "collate", "commit", "constraint", "create", "default",
	"deferrable", "delete", "distinct", "drop", "else", "escape", "except",
	"exists", "foreign", "from", "group", "having", "if", "in", "index",
	"insert", "intersect", "into", "is", "isnull", "join", "limit", "not",
	"notnull", "null", "on", "or", "order", "primary", "references", "select",
	"set", "table", "then", "to", "transaction", "union", "unique", "update",
	"using", "values", "when", "where",
}

// SQLite is the SQLite dialect. Its functions are the common rule set of
// the type inference engine, so no extension functions are registered.
var SQLite = dialect.New(Config).
	WithReservedWords(sqliteReservedWords...).
	Build()
