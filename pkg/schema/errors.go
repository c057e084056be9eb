package schema

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/token"
)

// SchemaError is a malformed or unresolvable schema definition.
type SchemaError struct {
	File    string
	Pos     token.Position
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s line %d:%d - %s", e.File, e.Pos.Line, e.Pos.Column, e.Message)
}

// Position returns where the error occurred.
func (e *SchemaError) Position() token.Position { return e.Pos }

// Msg returns the message without position.
func (e *SchemaError) Msg() string { return e.Message }

// Error messages
const (
	ErrTableExists      = "Table already defined with name %s"
	ErrViewExists       = "View already defined with name %s"
	ErrIndexExists      = "Index already defined with name %s"
	ErrTriggerExists    = "Trigger already defined with name %s"
	ErrNoTable          = "No table found with name %s"
	ErrNoView           = "No view found with name %s"
	ErrNoIndex          = "No index found with name %s"
	ErrNoTrigger        = "No trigger found with name %s"
	ErrNoColumn         = "No column found with name %s"
	ErrColumnExists     = "Duplicate column name %s"
	ErrReferenceColumns = "Foreign key references %d columns of %s but declares %d"
)

func newError(file string, pos token.Position, format string, args ...any) *SchemaError {
	return &SchemaError{File: file, Pos: pos, Message: fmt.Sprintf(format, args...)}
}
