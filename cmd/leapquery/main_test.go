package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/internal/cli"
	"github.com/leapstack-labs/leapquery/internal/cli/testutil"
)

const teamSQ = `
CREATE TABLE team (
  name TEXT NOT NULL PRIMARY KEY,
  coach TEXT NOT NULL
);

CREATE TABLE player (
  id INTEGER NOT NULL PRIMARY KEY,
  name TEXT NOT NULL,
  team TEXT REFERENCES team(name) ON DELETE CASCADE
);

selectAll:
SELECT * FROM team;

playersOf:
SELECT name FROM player WHERE team = :team;

insertTeam:
INSERT INTO team (name, coach) VALUES (?, ?);

deleteTeam:
DELETE FROM team WHERE name = ?;
`

const projectConfig = "dialect: sqlite\noutput: json\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapquery v")
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"init", "compile", "check", "affected", "migrate", "exec", "repl", "watch", "history"} {
		assert.Contains(t, out, name)
	}
}

func TestCompileCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, projectConfig, map[string]string{"Team.sq": teamSQ})

	_, err := execute(t, "compile")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".leapquery", "manifest.json"))
	require.NoError(t, err)
	var m struct {
		Dialect    string `json:"dialect"`
		Statements []struct {
			Name string `json:"name"`
		} `json:"statements"`
	}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "sqlite", m.Dialect)
	var names []string
	for _, s := range m.Statements {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"selectAll", "playersOf", "insertTeam", "deleteTeam"}, names)

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, `"Dialect": "sqlite"`)
}

func TestCheckCommandReportsDiagnostics(t *testing.T) {
	testutil.SetupTestProject(t, projectConfig, map[string]string{"Team.sq": teamSQ + "\nbroken:\nSELECT missing FROM team;\n"})

	out, err := execute(t, "check")
	require.Error(t, err)
	assert.Contains(t, out, "Team.sq")
	assert.Contains(t, out, "missing")
}

func TestAffectedCommand(t *testing.T) {
	testutil.SetupTestProject(t, projectConfig, map[string]string{"Team.sq": teamSQ})

	out, err := execute(t, "affected", "Team.deleteTeam")
	require.NoError(t, err)
	assert.Contains(t, out, "player")
	assert.Contains(t, out, "playersOf")
}

func TestInitThenCompile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := execute(t, "init", "--example")
	require.NoError(t, err)
	_, err = execute(t, "compile")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".leapquery", "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "playersOf")

	_, err = execute(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestMigrateAndExec(t *testing.T) {
	testutil.SetupTestProject(t, projectConfig, map[string]string{"Team.sq": teamSQ})

	out, err := execute(t, "migrate", "--create")
	require.NoError(t, err)
	assert.Contains(t, out, "Created schema at version 1")

	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date at version 1")

	out, err = execute(t, "exec", "Team.insertTeam", "red", "alice")
	require.NoError(t, err)
	var executed struct {
		RowsAffected int64    `json:"rows_affected"`
		Invalidated  []string `json:"invalidated"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&executed))
	assert.Equal(t, int64(1), executed.RowsAffected)
	assert.Contains(t, executed.Invalidated, "Team.selectAll")
	assert.NotContains(t, executed.Invalidated, "Team.playersOf")

	out, err = execute(t, "exec", "Team.selectAll")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&rows))
	assert.Equal(t, []map[string]any{{"name": "red", "coach": "alice"}}, rows)

	_, err = execute(t, "exec", "Team.insertTeam", "red")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes 2 arguments")
}

func TestHistoryShowsRun(t *testing.T) {
	testutil.SetupTestProject(t, projectConfig, map[string]string{"Team.sq": teamSQ})

	_, err := execute(t, "compile")
	require.NoError(t, err)
	_, err = execute(t, "compile")
	require.NoError(t, err)

	out, err := execute(t, "history", "--limit", "1")
	require.NoError(t, err)
	var runs []struct {
		ID         string
		Statements int
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Statements)

	out, err = execute(t, "history", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)
	assert.Contains(t, out, "Team.sq")
}

func TestWatchRecompilesOnChange(t *testing.T) {
	dir := testutil.SetupTestProject(t, projectConfig, map[string]string{"Team.sq": teamSQ})
	manifestPath := filepath.Join(dir, ".leapquery", "manifest.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := cli.NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"watch"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	manifestContains := func(s string) func() bool {
		return func() bool {
			data, err := os.ReadFile(manifestPath)
			return err == nil && strings.Contains(string(data), s)
		}
	}
	require.Eventually(t, manifestContains("selectAll"), 5*time.Second, 20*time.Millisecond)

	src := teamSQ + "\ncoaches:\nSELECT coach FROM team;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sql", "Team.sq"), []byte(src), 0o600))
	require.Eventually(t, manifestContains("coaches"), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, "completion", shell)
			require.NoError(t, err)
			assert.True(t, strings.Contains(out, "leapquery"), "completion script names the binary")
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "unknown-command")
	assert.Error(t, err)
}
