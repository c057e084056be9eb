package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
)

// replFile is the source name ad hoc statements are compiled under.
const (
	replFile  = "_repl" + compiler.QueriesExt
	replLabel = "input"
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Infer types of ad hoc statements interactively",
		Long: `Start an interactive prompt that type-checks statements against the
project schema.

Each statement is compiled as if it were labeled in a .sq file; the prompt
prints its arguments and result columns, or the diagnostics. Statements end
with a semicolon and may span lines.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
}

func runREPL(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	res, err := compileProject(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	if len(res.Diagnostics) > 0 {
		r.Warning(fmt.Sprintf("project has %d compile errors; inference may be incomplete", len(res.Diagnostics)))
	}

	if err := os.MkdirAll(filepath.Dir(cc.Cfg.StatePath), 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "leapquery> ",
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history"),
		AutoComplete:    newTableCompleter(res.Program),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Printf("leapquery type REPL (dialect: %s)\n", cc.Cfg.Dialect)
	r.Println("Type .help for commands, .quit to exit")
	r.Println("")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt("leapquery> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(r, res.Program, line); quit {
				break
			}
			continue
		}

		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt("      ...> ")
			continue
		}
		rl.SetPrompt("leapquery> ")

		stmt := buf.String()
		buf.Reset()
		if err := inferAndRender(ctx, cc, stmt); err != nil {
			r.Error(err.Error())
		}
		r.Println("")
	}
	return nil
}

// inferStatement compiles sql with the project sources and returns the
// resulting statement and program. Diagnostics in sql are returned as the
// error.
func inferStatement(ctx context.Context, cc *CommandContext, sql string) (*compiler.Program, *compiler.Statement, error) {
	src := replLabel + ":\n" + strings.TrimSpace(sql)
	if !strings.HasSuffix(src, ";") {
		src += ";"
	}
	res, err := compileProject(ctx, cc.Cfg, cc.Logger, &compiler.SourceFile{Path: replFile, Source: src})
	if err != nil {
		return nil, nil, err
	}
	var errs []error
	for _, d := range res.Diagnostics {
		if d.File == replFile {
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	s, err := res.Program.Lookup(strings.TrimSuffix(replFile, compiler.QueriesExt) + "." + replLabel)
	if err != nil {
		return nil, nil, err
	}
	return res.Program, s, nil
}

func inferAndRender(ctx context.Context, cc *CommandContext, sql string) error {
	p, s, err := inferStatement(ctx, cc, sql)
	if err != nil {
		return err
	}
	return renderSignature(cc.Renderer, p, s)
}

func handleDotCommand(r *output.Renderer, p *compiler.Program, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(r.Writer())
	case ".tables":
		for _, t := range p.Catalog.Tables() {
			kind := "table"
			if t.View {
				kind = "view"
			}
			r.Printf("%s %s\n", t.Name, r.Styles().Muted.Render(kind))
		}
	case ".statements":
		for _, s := range p.Statements() {
			r.Printf("%s %s\n", s.QualifiedName(), r.Styles().Muted.Render(string(s.Kind)))
		}
	case ".show":
		if len(parts) < 2 {
			r.Error("Usage: .show <statement>")
			return false
		}
		s, err := p.Lookup(parts[1])
		if err != nil {
			r.Error(err.Error())
			return false
		}
		if err := renderSignature(r, p, s); err != nil {
			r.Error(err.Error())
		}
	default:
		r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", parts[0]))
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .tables           List tables and views of the schema
  .statements       List the named statements
  .show <name>      Show the signature of a named statement
  .quit / .exit     Exit the REPL

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter completes dot commands, table names and statement
// names.
func newTableCompleter(p *compiler.Program) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	if p != nil {
		for _, t := range p.Catalog.Tables() {
			items = append(items, readline.PcItem(t.Name))
		}
		var names []readline.PrefixCompleterInterface
		for _, s := range p.Statements() {
			names = append(names, readline.PcItem(s.QualifiedName()))
		}
		items = append(items, readline.PcItem(".show", names...))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".statements"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
