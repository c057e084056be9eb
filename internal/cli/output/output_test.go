package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"markdown", ModeMarkdown},
		{"json", ModeJSON},
		{"xml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTest(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTest(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTest(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestMessages(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)
	r.Success("compiled")
	r.Error("broken")
	r.Warning("careful")

	assert.Equal(t, "✓ compiled\n", out.String())
	assert.Contains(t, errOut.String(), "✗ broken")
	assert.Contains(t, errOut.String(), "! careful")
}

func TestHeader(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Header(2, "Queries")
	assert.Equal(t, "## Queries\n", out.String())

	r, out, _ = newTest(ModeJSON, false)
	r.Header(1, "Queries")
	assert.Empty(t, out.String())
}

func TestTable(t *testing.T) {
	rows := [][]any{{"id", "INTEGER"}, {"name", nil}}

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		require.NoError(t, r.Table([]string{"column", "type"}, rows))
		assert.Contains(t, out.String(), "| id | INTEGER |")
		assert.Contains(t, out.String(), "| name | NULL |")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Table([]string{"column", "type"}, rows))
		var got []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "INTEGER", got[0]["type"])
		assert.Nil(t, got[1]["type"])
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		require.NoError(t, r.Table([]string{"column"}, [][]any{{"id"}}))
		assert.Contains(t, out.String(), "COLUMN")
		assert.Contains(t, out.String(), "id")
	})
}

func TestPlainStylesHaveNoEscapes(t *testing.T) {
	r, _, _ := newTest(ModeText, false)
	assert.Equal(t, "x", r.Styles().Error.Render("x"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# A", FormatHeader(0, "A"))
	assert.Equal(t, "- **File:** a.sq", FormatKeyValue("File", "a.sq"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
}
