package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table writes rows under header: a box table for text, a pipe table for
// markdown, an array of objects keyed by header for json.
func (r *Renderer) Table(header []string, rows [][]any) error {
	if r.EffectiveMode() == ModeJSON {
		objects := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]any, len(header))
			for i, h := range header {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			objects = append(objects, obj)
		}
		return r.JSON(objects)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	t.AppendHeader(hr)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = FormatValue(v)
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

// FormatValue renders a cell. nil is NULL and byte slices are shown as
// text.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case *string:
		if v == nil {
			return "NULL"
		}
		return *v
	default:
		return fmt.Sprintf("%v", v)
	}
}
