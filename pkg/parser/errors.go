package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Position returns where the error occurred.
func (e *ParseError) Position() token.Position { return e.Pos }

// Msg returns the message without position.
func (e *ParseError) Msg() string { return e.Message }

// LexError represents a lexical analysis error.
type LexError struct {
	Pos     token.Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Position returns where the error occurred.
func (e *LexError) Position() token.Position { return e.Pos }

// Msg returns the message without position.
func (e *LexError) Msg() string { return e.Message }

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected token %s, expected %s"
	ErrUnexpectedStatement = "unexpected token %s at start of statement"
	ErrExpectedExpression  = "expected expression, got %s"
	ErrExpectedIdentifier  = "expected identifier, got %s"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedIdent   = "unterminated quoted identifier"
	ErrUnterminatedComment = "unterminated block comment"
	ErrInvalidNumber       = "invalid number literal"
	ErrInvalidBlob         = "invalid blob literal"
	ErrLabelNotAllowed     = "statement labels are not allowed in %s"
	ErrNaturalJoinOn       = "NATURAL JOIN cannot have ON or USING"
	ErrEmptyTriggerBody    = "trigger body must contain at least one statement"
)
