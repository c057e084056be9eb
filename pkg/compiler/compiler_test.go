package compiler_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playerSQ = `
CREATE TABLE team (
  name TEXT NOT NULL PRIMARY KEY,
  coach TEXT NOT NULL
);

CREATE TABLE player (
  id INTEGER NOT NULL PRIMARY KEY,
  name TEXT NOT NULL,
  number INTEGER,
  team TEXT REFERENCES team(name)
);

/**
 * Every player of a team.
 */
forTeam:
SELECT player.*, team.name
FROM player
JOIN team ON player.team = team.name
WHERE team.name = :team;

byNumbers:
SELECT * FROM player WHERE number IN :numbers AND (:team IS NULL OR team = :team);

insertPlayer:
INSERT INTO player (name, number, team) VALUES (?, ?, ?);

changeNumber:
UPDATE player SET number = ? WHERE id = ?;

vacuum:
VACUUM;
`

func compileFiles(t *testing.T, files map[string]string, opts ...compiler.Option) (*compiler.Program, error) {
	t.Helper()
	opts = append(opts, compiler.WithLogger(testutil.NewTestLogger(t)))
	c := compiler.NewContext(sqlite.SQLite, opts...)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c.AddFile(name, files[name])
	}
	return compiler.Compile(c)
}

func mustCompile(t *testing.T, files map[string]string, opts ...compiler.Option) *compiler.Program {
	t.Helper()
	p, err := compileFiles(t, files, opts...)
	require.NoError(t, err)
	return p
}

func TestCompile(t *testing.T) {
	p := mustCompile(t, map[string]string{"Player.sq": playerSQ})

	require.Len(t, p.Queries, 2)
	require.Len(t, p.Mutators, 2)
	require.Len(t, p.Executes, 1)
	require.Len(t, p.Schema, 2)

	forTeam := p.Queries[0]
	assert.Equal(t, "forTeam", forTeam.Name)
	assert.Equal(t, compiler.StatementID("Player.sq", "forTeam"), forTeam.ID)
	assert.Equal(t, compiler.KindQuery, forTeam.Kind)
	assert.Contains(t, forTeam.Doc, "Every player of a team.")
	assert.Equal(t, []string{"player", "team"}, forTeam.Tables)
	assert.Equal(t, "Player.forTeam", forTeam.QualifiedName())
	assert.True(t, len(forTeam.SQL) > 0 && forTeam.SQL[:6] == "SELECT")

	var names, goNames []string
	for _, c := range forTeam.Columns {
		names = append(names, c.Name)
		goNames = append(goNames, c.GoName)
	}
	assert.Equal(t, []string{"id", "name", "number", "team", "name_"}, names)
	assert.Equal(t, []string{"Id", "Name", "Number", "Team", "Name_"}, goNames)

	require.Len(t, forTeam.Arguments, 1)
	assert.Equal(t, "team", forTeam.Arguments[0].Name)
	assert.Equal(t, "TEXT", forTeam.Arguments[0].Type.String())

	insert := p.Mutators[0]
	assert.Equal(t, compiler.KindInsert, insert.Kind)
	assert.Equal(t, "player", insert.Table)
	var argNames []string
	for _, a := range insert.Arguments {
		argNames = append(argNames, a.Name+" "+a.Type.String())
	}
	assert.Equal(t, []string{"name TEXT", "number INTEGER?", "team TEXT?"}, argNames)

	assert.Equal(t, compiler.KindExecute, p.Executes[0].Kind)
}

func TestRepeatedAndArrayArguments(t *testing.T) {
	p := mustCompile(t, map[string]string{"Player.sq": playerSQ})
	byNumbers := p.Queries[1]

	require.Len(t, byNumbers.Arguments, 2)
	numbers := byNumbers.Arguments[0]
	assert.Equal(t, 1, numbers.Index)
	assert.Equal(t, "numbers", numbers.Name)
	assert.True(t, numbers.Array)
	assert.Equal(t, "INTEGER?", numbers.Type.String())

	// :team IS NULL is unconstrained and nullable, team = :team gives TEXT.
	team := byNumbers.Arguments[1]
	assert.Equal(t, 2, team.Index)
	assert.False(t, team.Array)
	assert.Len(t, team.Binds, 2)
	assert.Equal(t, "TEXT?", team.Type.String())
}

func TestArgumentNameAllocation(t *testing.T) {
	p := mustCompile(t, map[string]string{"A.sq": `
CREATE TABLE t (a INTEGER NOT NULL, b INTEGER NOT NULL, func TEXT);

q:
SELECT * FROM t WHERE a = ? OR a = ? OR func = ? OR ?5 = b;
`})
	args := p.Queries[0].Arguments
	var names []string
	for _, a := range args {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"a", "a_", "func_", "b"}, names)
	assert.Equal(t, "Func", args[2].GoName)
	assert.Equal(t, "A_", args[1].GoName)
}

func TestDiagnostics(t *testing.T) {
	_, err := compileFiles(t, map[string]string{
		"Player.sq": `
CREATE TABLE player (id INTEGER NOT NULL PRIMARY KEY, name TEXT);

bad:
SELECT nope FROM player;

dup:
SELECT 1;

dup:
SELECT 2;

unknownFn:
SELECT foo(id) FROM player;
`,
		"Team.sq": `
CREATE TABLE team (id INTEGER REFERENCES missing(id));

broken:
SELECT FROM WHERE;
`,
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Player.sq line 5:8 - No column found with name nope")
	assert.Contains(t, msg, "Player.sq line 10:1 - Duplicate SQL identifier")
	assert.Contains(t, msg, "Player.sq line 14:8 - Unknown function foo")
	assert.Contains(t, msg, "Team.sq line 2:")
	assert.Contains(t, msg, "No table found with name missing")
	assert.Contains(t, msg, "Team.sq line 5:")
}

func TestDiagnosticsKeepValidStatements(t *testing.T) {
	p, err := compileFiles(t, map[string]string{"A.sq": `
CREATE TABLE t (id INTEGER);

good:
SELECT id FROM t;

bad:
SELECT nope FROM t;
`})
	require.Error(t, err)
	require.Len(t, p.Queries, 1)
	assert.Equal(t, "good", p.Queries[0].Name)
}

func TestLookup(t *testing.T) {
	p := mustCompile(t, map[string]string{
		"A.sq": "CREATE TABLE a (id INTEGER);\n\nselectAll:\nSELECT * FROM a;\n\nonlyA:\nSELECT 1;",
		"B.sq": "CREATE TABLE b (id INTEGER);\n\nselectAll:\nSELECT * FROM b;",
	})

	s, err := p.Lookup("onlyA")
	require.NoError(t, err)
	assert.Equal(t, "A.sq", s.File)

	s, err = p.Lookup("B.selectAll")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, s.Tables)

	_, err = p.Lookup("selectAll")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A.sq, B.sq")

	_, err = p.Lookup("missing")
	require.Error(t, err)
}

func TestLoadAndMigrations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write("migrations/1.sqm", "CREATE TABLE player (id INTEGER NOT NULL PRIMARY KEY);")
	write("migrations/2.sqm", "ALTER TABLE player ADD COLUMN name TEXT;\nINSERT INTO player (id) VALUES (1);")
	write("queries/Player.sq", "selectNames:\nSELECT name FROM player;")
	write("queries/README.md", "ignored")

	c := compiler.NewContext(sqlite.SQLite, compiler.WithSchemaFromMigrations(true), compiler.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, c.Load(t.Context(), dir))
	require.Len(t, c.Files, 3)

	p, err := compiler.Compile(c)
	require.NoError(t, err)
	require.Len(t, p.Migrations, 2)
	assert.Equal(t, 1, p.Migrations[0].Version)
	assert.Len(t, p.Migrations[1].Statements, 2)
	assert.Equal(t, 3, p.Version())
	assert.Len(t, p.Schema, 3)
	require.Len(t, p.Queries, 1)
	assert.Equal(t, "TEXT?", p.Queries[0].Columns[0].Type.String())

	for _, f := range c.Files {
		assert.Len(t, f.Hash, 64)
	}
}

func TestMigrationErrors(t *testing.T) {
	_, err := compileFiles(t, map[string]string{
		"one.sqm": "CREATE TABLE a (id INTEGER);",
		"1.sqm":   "CREATE TABLE b (id INTEGER);",
		"01.sqm":  "CREATE TABLE c (id INTEGER);",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Migration file name must be a version number, got one.sqm")
	assert.Contains(t, err.Error(), "Migration version 1 is defined by")
}

func TestLoadMissingDir(t *testing.T) {
	c := compiler.NewContext(sqlite.SQLite)
	err := c.Load(t.Context(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestExportedName(t *testing.T) {
	tests := map[string]string{
		"first_name": "FirstName",
		"id":         "Id",
		"value_":     "Value",
		"camelCase":  "CamelCase",
		"":           "Value",
	}
	for in, want := range tests {
		assert.Equal(t, want, compiler.ExportedName(in), in)
	}
}
