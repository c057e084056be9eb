package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [statement...]",
		Short: "Type-check the SQL sources",
		Long: `Compile every .sq and .sqm file and report diagnostics without writing
a manifest.

With statement names, also print the inferred arguments and result columns
of each statement. Names are labels or File.label.`,
		Example: `  # Check all sources
  leapquery check

  # Show the signature of a statement
  leapquery check Player.selectByTeam`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
}

func runCheck(cmd *cobra.Command, names []string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	res, err := compileProject(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	if len(res.Diagnostics) > 0 {
		renderDiagnostics(r, res.Diagnostics)
		return errCompileFailed
	}

	if len(names) == 0 {
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(statementSummaries(res.Program))
		}
		r.Success(fmt.Sprintf("%d queries, %d mutators, %d other statements",
			len(res.Program.Queries), len(res.Program.Mutators), len(res.Program.Executes)))
		return nil
	}

	for _, name := range names {
		s, err := res.Program.Lookup(name)
		if err != nil {
			return err
		}
		if err := renderSignature(r, res.Program, s); err != nil {
			return err
		}
	}
	return nil
}

// renderDiagnostics prints diagnostics sorted by file and position.
func renderDiagnostics(r *output.Renderer, diags compiler.Diagnostics) {
	sorted := slices.Clone(diags)
	slices.SortStableFunc(sorted, func(a, b compiler.Diagnostic) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return a.Pos.Offset - b.Pos.Offset
	})

	if r.EffectiveMode() == output.ModeJSON {
		type jsonDiag struct {
			File    string `json:"file"`
			Line    int    `json:"line,omitempty"`
			Column  int    `json:"column,omitempty"`
			Message string `json:"message"`
		}
		out := make([]jsonDiag, 0, len(sorted))
		for _, d := range sorted {
			out = append(out, jsonDiag{File: d.File, Line: d.Pos.Line, Column: d.Pos.Column, Message: d.Message})
		}
		_ = r.JSON(map[string]any{"diagnostics": out})
		return
	}

	styles := r.Styles()
	file := ""
	for _, d := range sorted {
		if d.File != file {
			file = d.File
			r.Println(styles.FilePath.Render(file))
		}
		loc := "-"
		if d.Pos.IsValid() {
			loc = fmt.Sprintf("%d:%d", d.Pos.Line, d.Pos.Column)
		}
		r.Printf("  %s  %s  %s\n",
			styles.Muted.Render(fmt.Sprintf("%-7s", loc)),
			styles.Error.Render("error"),
			d.Message,
		)
	}
	r.Println("")
	r.Printf("%d errors\n", len(sorted))
}

type statementSummary struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Arguments int      `json:"arguments"`
	Columns   int      `json:"columns"`
	Tables    []string `json:"tables,omitempty"`
}

func statementSummaries(p *compiler.Program) []statementSummary {
	var out []statementSummary
	for _, q := range p.Queries {
		out = append(out, statementSummary{q.QualifiedName(), string(q.Kind), len(q.Arguments), len(q.Columns), q.Tables})
	}
	for _, m := range p.Mutators {
		out = append(out, statementSummary{m.QualifiedName(), string(m.Kind), len(m.Arguments), len(m.Columns), m.Tables})
	}
	for _, e := range p.Executes {
		out = append(out, statementSummary{e.QualifiedName(), string(e.Kind), len(e.Arguments), 0, e.Tables})
	}
	return out
}

// renderSignature prints the arguments and result columns of s.
func renderSignature(r *output.Renderer, p *compiler.Program, s *compiler.Statement) error {
	var cols []compiler.Column
	if q, ok := p.Query(s.ID); ok {
		cols = q.Columns
	} else if m, ok := p.Mutator(s.ID); ok {
		cols = m.Columns
	}

	if r.EffectiveMode() == output.ModeJSON {
		type field struct {
			Name string `json:"name"`
			Type string `json:"type"`
			Go   string `json:"go_type"`
		}
		sig := struct {
			Name      string  `json:"name"`
			Kind      string  `json:"kind"`
			Doc       string  `json:"doc,omitempty"`
			Arguments []field `json:"arguments"`
			Columns   []field `json:"columns"`
		}{Name: s.QualifiedName(), Kind: string(s.Kind), Doc: s.Doc}
		for _, a := range s.Arguments {
			sig.Arguments = append(sig.Arguments, field{a.Name, a.Type.String(), a.Type.GoType()})
		}
		for _, c := range cols {
			sig.Columns = append(sig.Columns, field{c.Name, c.Type.String(), c.Type.GoType()})
		}
		return r.JSON(sig)
	}

	r.Header(2, fmt.Sprintf("%s (%s)", s.QualifiedName(), s.Kind))
	if s.Doc != "" {
		r.Muted(s.Doc)
	}
	if len(s.Arguments) > 0 {
		rows := make([][]any, 0, len(s.Arguments))
		for _, a := range s.Arguments {
			name := a.Name
			if a.Array {
				name += "..."
			}
			rows = append(rows, []any{a.Index, name, a.Type.String(), a.Type.GoType()})
		}
		if err := r.Table([]string{"#", "argument", "type", "go type"}, rows); err != nil {
			return err
		}
	}
	if len(cols) > 0 {
		rows := make([][]any, 0, len(cols))
		for _, c := range cols {
			rows = append(rows, []any{c.Name, c.Type.String(), c.Type.GoType()})
		}
		if err := r.Table([]string{"column", "type", "go type"}, rows); err != nil {
			return err
		}
	}
	r.Println("")
	return nil
}
