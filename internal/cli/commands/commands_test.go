package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/internal/cli/testutil"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

func argument(name, typ string, nullable, array bool) manifest.Argument {
	return manifest.Argument{Name: name, Type: manifest.Type{Type: typ, Nullable: nullable}, Array: array}
}

func TestParseArgs(t *testing.T) {
	s := &manifest.Statement{
		Name: "byNumbers",
		File: "Player.sq",
		Arguments: []manifest.Argument{
			argument("numbers", "INTEGER", false, true),
			argument("team", "TEXT", true, false),
			argument("active", "BOOLEAN", false, false),
			argument("rating", "REAL", false, false),
		},
	}

	got, err := parseArgs(s, []string{"1, 2,3", "null", "true", "2.5"})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1), int64(2), int64(3)}, nil, true, 2.5}, got)

	_, err = parseArgs(s, []string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Player.byNumbers takes 4 arguments")

	_, err = parseArgs(s, []string{"x", "a", "true", "1"})
	assert.ErrorContains(t, err, "is not an integer")

	_, err = parseArgs(s, []string{"1", "a", "null", "1"})
	assert.ErrorContains(t, err, "active is not nullable")
}

func TestRenderDiagnosticsSortsByFileAndPosition(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	renderDiagnostics(tr.Renderer, compiler.Diagnostics{
		{File: "b.sq", Pos: token.Position{Line: 1, Column: 1, Offset: 0}, Message: "second file"},
		{File: "a.sq", Pos: token.Position{Line: 3, Column: 2, Offset: 20}, Message: "later"},
		{File: "a.sq", Pos: token.Position{Line: 1, Column: 5, Offset: 4}, Message: "earlier"},
	})

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertContains(t, out, "3 errors")
	assert.Less(t, strings.Index(out, "earlier"), strings.Index(out, "later"))
	assert.Less(t, strings.Index(out, "later"), strings.Index(out, "second file"))
	testutil.AssertContains(t, out, "1:5")
}

func TestRenderDiagnosticsJSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	renderDiagnostics(tr.Renderer, compiler.Diagnostics{
		{File: "a.sq", Pos: token.Position{Line: 2, Column: 1}, Message: "No column found with name x"},
	})
	testutil.AssertOutputMode(t, tr, "json")
	testutil.AssertContains(t, tr.Output(), `"message": "No column found with name x"`)
	testutil.AssertContains(t, tr.Output(), `"line": 2`)
}

func TestRenderRun(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	run := &state.Run{
		ID:            "run-1",
		StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:      12 * time.Millisecond,
		Dialect:       "sqlite",
		SchemaVersion: 2,
		Statements:    7,
		Files:         []state.FileHash{{Path: "sql/Team.sq", Hash: "0123456789abcdef"}},
	}
	require.NoError(t, renderRun(tr.Renderer, run))

	out := tr.Output()
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertContains(t, out, "run-1")
	testutil.AssertContains(t, out, "sql/Team.sq")
	testutil.AssertContains(t, out, "0123456789ab")
	testutil.AssertNotContains(t, out, "0123456789abcdef")
}
