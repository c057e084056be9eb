package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/schema"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Error messages
const (
	ErrDuplicateLabel    = "Duplicate SQL identifier"
	ErrMigrationName     = "Migration file name must be a version number, got %s"
	ErrDuplicateVersion  = "Migration version %d is defined by %s and %s"
	ErrTriggerBody       = "Trigger %s: %s"
	ErrStatementNotFound = "no statement named %q"
	ErrAmbiguousName     = "statement name %q is defined in %s; qualify it as File.name"
)

// positioned is implemented by the parser, schema and inference errors.
type positioned interface {
	error
	Position() token.Position
	Msg() string
}

// Diagnostic is one compile error located in a source file.
type Diagnostic struct {
	File    string
	Pos     token.Position
	Message string
}

func (d Diagnostic) Error() string {
	if !d.Pos.IsValid() {
		return fmt.Sprintf("%s - %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s line %d:%d - %s", d.File, d.Pos.Line, d.Pos.Column, d.Message)
}

// Diagnostics collects every error of a compile run.
type Diagnostics []Diagnostic

// Err joins the diagnostics in file and position order, or returns nil.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	sorted := slices.Clone(d)
	slices.SortStableFunc(sorted, func(a, b Diagnostic) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return a.Pos.Offset - b.Pos.Offset
	})
	errs := make([]error, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, diag := range sorted {
		msg := diag.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		errs = append(errs, diag)
	}
	return errors.Join(errs...)
}

// diagnose flattens err into diagnostics for file. Joined errors and error
// lists are expanded; errors carrying their own file keep it.
func diagnose(file string, err error) Diagnostics {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out Diagnostics
		for _, e := range multi.Unwrap() {
			out = append(out, diagnose(file, e)...)
		}
		return out
	}
	var diag Diagnostic
	if errors.As(err, &diag) {
		return Diagnostics{diag}
	}
	var se *schema.SchemaError
	if errors.As(err, &se) && se.File != "" {
		file = se.File
	}
	var p positioned
	if errors.As(err, &p) {
		return Diagnostics{{File: file, Pos: p.Position(), Message: p.Msg()}}
	}
	return Diagnostics{{File: file, Message: err.Error()}}
}
