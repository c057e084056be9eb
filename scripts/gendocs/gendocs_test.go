package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownWriterTable(t *testing.T) {
	w := NewMarkdownWriter()
	w.Header(2, "Flags")
	w.Table([]string{"Option", "Description"}, [][]string{{InlineCode("--output"), "auto|text"}})

	assert.Equal(t, "## Flags\n\n| Option | Description |\n| --- | --- |\n| `--output` | auto\\|text |\n\n", string(w.Bytes()))
}

func TestCleanExample(t *testing.T) {
	got := cleanExample("  # Check all\n  leapquery check\n\n    indented")
	assert.Equal(t, "# Check all\nleapquery check\n\n  indented", got)
}

func TestGenerateDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(filepath.Join(dir, "cli")))
	require.NoError(t, generateConfigDocs(dir))

	index, err := os.ReadFile(filepath.Join(dir, "cli", "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "[`compile`](/cli/compile)")
	assert.Contains(t, string(index), "LEAPQUERY_TARGET_DSN")

	page, err := os.ReadFile(filepath.Join(dir, "cli", "watch.md"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "leapquery watch")

	cfg, err := os.ReadFile(filepath.Join(dir, "configuration.md"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "`target.statement_cache_size`")
	assert.Contains(t, string(cfg), "`20`")
}
