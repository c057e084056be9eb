package infer

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/token"
)

// TypeError is an expression that cannot be typed: an unknown function,
// table or column.
type TypeError struct {
	Pos     token.Position
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("line %d:%d - %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Position returns where the error occurred.
func (e *TypeError) Position() token.Position { return e.Pos }

// Msg returns the message without position.
func (e *TypeError) Msg() string { return e.Message }

// Error messages
const (
	ErrUnknownFunction = "Unknown function %s"
	ErrArgumentCount   = "Function %s expects at least %d argument(s)"
	ErrNoTable         = "No table found with name %s"
	ErrNoColumn        = "No column found with name %s"
	ErrRecursiveView   = "View %s refers to itself"
	ErrColumnCount     = "%s has %d columns but %d names were given"
	ErrAmbiguousTarget = "Table %s resolves to %d tables; a mutation needs exactly one"
	ErrCompoundColumns = "SELECTs to the left and right of %s do not have the same number of result columns"
)

func newError(pos token.Position, format string, args ...any) *TypeError {
	return &TypeError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}
