package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
	"github.com/leapstack-labs/leapquery/pkg/runtime"
)

// renderRows prints decoded rows in result column order.
func renderRows(r *output.Renderer, cols []manifest.Column, rows []runtime.Row) error {
	if r.EffectiveMode() == output.ModeJSON {
		if rows == nil {
			rows = []runtime.Row{}
		}
		return r.JSON(rows)
	}
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	table := make([][]any, 0, len(rows))
	for _, row := range rows {
		cells := make([]any, len(cols))
		for i, c := range cols {
			cells[i] = row[c.Name]
		}
		table = append(table, cells)
	}
	if err := r.Table(header, table); err != nil {
		return err
	}
	r.Println(fmt.Sprintf("(%d rows)", len(rows)))
	return nil
}
