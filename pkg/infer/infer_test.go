package infer_test

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/dialects/mysql"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/infer"
	"github.com/leapstack-labs/leapquery/pkg/parser"
	"github.com/leapstack-labs/leapquery/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE team (
  name TEXT NOT NULL PRIMARY KEY,
  captain INTEGER,
  founded REAL NOT NULL
);

CREATE TABLE player (
  id INTEGER NOT NULL PRIMARY KEY,
  name TEXT NOT NULL,
  number INTEGER,
  team TEXT REFERENCES team(name),
  score REAL
);

CREATE VIEW roster AS
SELECT player.name, team.name AS team_name
FROM player JOIN team ON player.team = team.name;

CREATE VIEW named AS SELECT name FROM player;
`

func newEngine(t *testing.T, d *dialect.Dialect, ddl string) *infer.Engine {
	t.Helper()
	file, err := parser.ParseFile("Test.sq", ddl, d)
	require.NoError(t, err)
	cat := schema.New(d)
	for _, stmt := range file.Statements {
		require.NoError(t, cat.Apply("Test.sq", stmt.Stmt))
	}
	require.Empty(t, cat.Validate())
	return infer.New(cat)
}

func analyze(t *testing.T, e *infer.Engine, sql string) *infer.Statement {
	t.Helper()
	stmt, err := parser.ParseStatement(sql, sqlite.SQLite)
	require.NoError(t, err)
	out, err := e.Analyze(stmt)
	require.NoError(t, err)
	return out
}

func columnTypes(s *infer.Statement) []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Type.String()
	}
	return out
}

func TestLiterals(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	s := analyze(t, e, "SELECT 1, 1.5, 'a', x'00', NULL, CURRENT_TIMESTAMP, .5")
	assert.Equal(t, []string{"INTEGER", "REAL", "TEXT", "BLOB", "NULL?", "TEXT", "REAL"}, columnTypes(s))
}

func TestExpressionTypes(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	tests := []struct {
		expr string
		want string
	}{
		// comparisons are non-null booleans whatever the operands
		{"number = score", "BOOLEAN"},
		{"number < 3", "BOOLEAN"},
		{"number IN (1, 2)", "BOOLEAN"},
		{"number BETWEEN 1 AND 2", "BOOLEAN"},
		{"number IS NULL", "BOOLEAN"},
		{"team IS NOT name", "BOOLEAN"},
		{"team LIKE 'a%'", "BOOLEAN"},
		{"number > 1 AND score < 2", "BOOLEAN"},
		{"NOT number", "BOOLEAN"},
		{"EXISTS (SELECT 1 FROM team)", "BOOLEAN"},

		// arithmetic is nullable only when every operand is
		{"number + score", "REAL?"},
		{"id + score", "REAL"},
		{"number + 1", "INTEGER"},
		{"number || name", "TEXT"},
		{"-number", "INTEGER?"},
		{"(number)", "INTEGER?"},
		{"name COLLATE NOCASE", "TEXT"},

		{"CAST(number AS TEXT)", "TEXT?"},
		{"CAST(id AS REAL)", "REAL"},
		{"CASE WHEN id > 1 THEN name ELSE 'x' END", "TEXT"},
		{"CASE id WHEN 1 THEN score END", "REAL?"},
		{"CASE WHEN id > 1 THEN 1 ELSE 2.5 END", "REAL"},
		{"(SELECT count(*) FROM team)", "INTEGER?"},

		// functions
		{"round(score)", "INTEGER?"},
		{"round(id)", "INTEGER"},
		{"round(score, 2)", "REAL?"},
		{"sum(id)", "INTEGER"},
		{"sum(number)", "REAL?"},
		{"sum(score)", "REAL?"},
		{"count(*)", "INTEGER"},
		{"count(number)", "INTEGER"},
		{"avg(id)", "REAL"},
		{"avg(number)", "REAL"},
		{"total(number)", "REAL"},
		{"max(id)", "INTEGER?"},
		{"max(id, score)", "REAL?"},
		{"min(name, id)", "INTEGER?"},
		{"coalesce(number, 0)", "INTEGER"},
		{"coalesce(number, score)", "REAL?"},
		{"ifnull(number, name)", "TEXT"},
		{"nullif(id, 1)", "INTEGER?"},
		{"lower(name)", "TEXT"},
		{"upper(team)", "TEXT?"},
		{"group_concat(team)", "TEXT?"},
		{"length(team)", "INTEGER?"},
		{"instr(name, 'a')", "INTEGER"},
		{"abs(number)", "INTEGER?"},
		{"date('now')", "TEXT"},
		{"random()", "INTEGER"},
		{"randomblob(4)", "BLOB"},
		{"json_valid(name)", "BOOLEAN"},
		{"json_type(name)", "TEXT?"},
		{"json_quote(team)", "TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s := analyze(t, e, "SELECT "+tt.expr+" FROM player")
			require.Len(t, s.Columns, 1)
			assert.Equal(t, tt.want, s.Columns[0].Type.String())
		})
	}
}

func TestDialectFunctions(t *testing.T) {
	ddl := "CREATE TABLE t (name TEXT, flag TINYINT(1) NOT NULL);"

	e := newEngine(t, mysql.MySQL, ddl)
	stmt, err := parser.ParseStatement("SELECT greatest(1, 2.5), last_insert_id(), concat(name, name), sin(1), flag FROM t", mysql.MySQL)
	require.NoError(t, err)
	s, err := e.Analyze(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"REAL", "INTEGER", "TEXT?", "REAL", "TINYINT(1)"}, columnTypes(s))
	assert.Equal(t, "bool", s.Columns[4].Type.GoType())

	e = newEngine(t, sqlite.SQLite, ddl)
	stmt, err = parser.ParseStatement("SELECT greatest(1, 2) FROM t", sqlite.SQLite)
	require.NoError(t, err)
	_, err = e.Analyze(stmt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown function greatest")
}

func TestResultColumns(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)

	s := analyze(t, e, "SELECT *, name AS alias, count(*), CAST(captain AS TEXT), 1 + 1 FROM team")
	var names []string
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"name", "captain", "founded", "alias", "count", "captain", "expr"}, names)

	s = analyze(t, e, "SELECT p.*, t.founded FROM player p JOIN team t ON p.team = t.name")
	assert.Len(t, s.Columns, 6)
	assert.Equal(t, "REAL", s.Columns[5].Type.String())

	s = analyze(t, e, "SELECT team.name, player.name FROM team LEFT JOIN player ON player.team = team.name")
	assert.Equal(t, []string{"TEXT", "TEXT?"}, columnTypes(s))

	s = analyze(t, e, "SELECT * FROM roster")
	assert.Equal(t, []string{"TEXT", "TEXT"}, columnTypes(s))
	assert.Equal(t, "team_name", s.Columns[1].Name)

	s = analyze(t, e, "SELECT rowid FROM player")
	assert.Equal(t, []string{"INTEGER"}, columnTypes(s))
}

func TestCompoundSelect(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT 1 UNION SELECT 1.5", []string{"REAL"}},
		{"SELECT NULL UNION SELECT 1", []string{"INTEGER?"}},
		{"SELECT id, name FROM player UNION ALL SELECT captain, 'x' FROM team", []string{"INTEGER?", "TEXT"}},
		{"SELECT name FROM team UNION SELECT x'00'", []string{"BLOB"}},
		{"VALUES (1, 'a'), (2.5, NULL)", []string{"REAL", "TEXT?"}},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, columnTypes(analyze(t, e, tt.sql)))
		})
	}
}

func TestSuperType(t *testing.T) {
	integer := core.NewType(core.TypeInteger)
	arg := core.NewType(core.TypeArgument)
	null := core.NewType(core.TypeNull).AsNullable()
	text := core.NewType(core.TypeText)

	assert.Equal(t, "INTEGER", infer.SuperType(arg, integer).String())
	assert.Equal(t, "INTEGER", infer.SuperType(integer, arg).String())
	assert.Equal(t, "INTEGER?", infer.SuperType(null, integer).String())
	assert.Equal(t, "TEXT?", infer.SuperType(text, null).String())
	assert.Equal(t, "TEXT", infer.SuperType(integer, text).String())
	assert.Equal(t, "TEXT?", infer.SuperType(integer.AsNullable(), text).String())
}

func TestArgumentTypes(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM player WHERE number = ? AND name LIKE ? LIMIT ? OFFSET ?", []string{"INTEGER?", "TEXT", "INTEGER", "INTEGER"}},
		{"SELECT * FROM player WHERE id IN ?", []string{"INTEGER"}},
		{"SELECT * FROM player WHERE id IN (?, ?)", []string{"INTEGER", "INTEGER"}},
		{"SELECT * FROM player WHERE ? IN (id, number)", []string{"INTEGER"}},
		{"INSERT INTO player (name, number) VALUES (?, ?)", []string{"TEXT", "INTEGER?"}},
		{"INSERT INTO player VALUES (?, ?, ?, ?, ?)", []string{"INTEGER", "TEXT", "INTEGER?", "TEXT?", "REAL?"}},
		{"UPDATE player SET score = ?, name = :name WHERE id = :id", []string{"REAL?", "TEXT", "INTEGER"}},
		{"INSERT INTO team (name, founded) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET founded = ?", []string{"TEXT", "REAL", "REAL"}},
		{"SELECT CASE number WHEN ? THEN ? ELSE name END FROM player", []string{"INTEGER?", "TEXT"}},
		{"SELECT CASE WHEN ? THEN 1 END FROM player", []string{"BOOLEAN"}},
		{"SELECT * FROM player WHERE score BETWEEN ? AND ?", []string{"REAL?", "REAL?"}},
		{"SELECT * FROM player WHERE number IS ?", []string{"INTEGER?"}},
		{"SELECT * FROM player WHERE ? IS NULL", []string{"NULL?"}},
		{"INSERT INTO team (name, captain) SELECT ?, id FROM player", []string{"TEXT"}},
		{"SELECT * FROM player WHERE abs(number) = ?", []string{"INTEGER?"}},
		{"SELECT * FROM player WHERE number = abs(?)", []string{"INTEGER?"}},
		{"SELECT * FROM player WHERE instr(name, ?) > 0", []string{"TEXT"}},
		{"SELECT * FROM player WHERE name = lower(?)", []string{"TEXT"}},
		{"SELECT * FROM player WHERE id = (?)", []string{"INTEGER"}},
		{"SELECT * FROM player WHERE id = ? + 1", []string{"INTEGER"}},
		{"SELECT ? FROM player", []string{"NULL?"}},
		{"DELETE FROM player WHERE team = ?", []string{"TEXT?"}},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			s := analyze(t, e, tt.sql)
			require.Len(t, s.Binds, len(tt.want))
			for i, b := range s.Binds {
				arg := e.ArgumentType(b)
				assert.Equal(t, tt.want[i], arg.String(), "argument %d", i)
				assert.Same(t, b, arg.Bind)
			}
		})
	}
}

func TestArgumentNames(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	s := analyze(t, e, "SELECT * FROM player WHERE number = ? AND team LIKE ?")
	assert.Equal(t, "number", e.ArgumentType(s.Binds[0]).Name)
	assert.Equal(t, "team", e.ArgumentType(s.Binds[1]).Name)
}

func TestObservedTables(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM roster", []string{"player", "team"}},
		{"SELECT * FROM named", []string{"player"}},
		{"WITH t AS (SELECT * FROM team) SELECT * FROM t", []string{"team"}},
		{"SELECT * FROM player WHERE team IN (SELECT name FROM team)", []string{"player", "team"}},
		{"SELECT (SELECT 1 FROM team) FROM player", []string{"player", "team"}},
		{"SELECT * FROM (SELECT name FROM Team)", []string{"team"}},
		{"SELECT 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, analyze(t, e, tt.sql).Tables)
		})
	}
}

func TestRecursiveCTE(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	s := analyze(t, e, "WITH RECURSIVE cnt(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM cnt LIMIT 10) SELECT x FROM cnt")
	assert.Equal(t, []string{"INTEGER"}, columnTypes(s))
	assert.Empty(t, s.Tables)
}

func TestMutationTargets(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)

	s := analyze(t, e, "DELETE FROM named WHERE name = ?")
	assert.Equal(t, "player", s.Target)
	assert.Equal(t, "named", s.TargetName)

	s = analyze(t, e, "UPDATE Player SET name = 'x' RETURNING id")
	assert.Equal(t, "player", s.Target)
	assert.Equal(t, []string{"INTEGER"}, columnTypes(s))

	stmt, err := parser.ParseStatement("DELETE FROM roster", sqlite.SQLite)
	require.NoError(t, err)
	_, err = e.Analyze(stmt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Table roster resolves to 2 tables")
}

func TestAnalyzeErrors(t *testing.T) {
	e := newEngine(t, sqlite.SQLite, testSchema)
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT nope FROM player", "line 1:8 - No column found with name nope"},
		{"SELECT p.nope FROM player p", "No column found with name p.nope"},
		{"SELECT * FROM missing", "line 1:15 - No table found with name missing"},
		{"SELECT foo(id) FROM player", "line 1:8 - Unknown function foo"},
		{"SELECT * FROM player WHERE foo(id) = 1", "line 1:28 - Unknown function foo"},
		{"SELECT lower() FROM player", "Function lower expects at least 1 argument(s)"},
		{"SELECT 1, 2 UNION SELECT 1", "do not have the same number of result columns"},
		{"INSERT INTO player (nope) VALUES (1)", "No column found with name nope"},
		{"UPDATE player SET nope = 1", "No column found with name nope"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			stmt, err := parser.ParseStatement(tt.sql, sqlite.SQLite)
			require.NoError(t, err)
			_, err = e.Analyze(stmt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExprName(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"first_name", "first_name"},
		{"p.first_name", "first_name"},
		{"CAST(p.id AS TEXT)", "id"},
		{"(count(*))", "count"},
		{"1 + 1", "expr"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			expr, err := parser.ParseExpr(tt.expr, sqlite.SQLite)
			require.NoError(t, err)
			assert.Equal(t, tt.want, infer.ExprName(expr))
		})
	}
}
