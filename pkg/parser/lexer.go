package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// Comments collected during lexing (doc comments attach to labels)
	Comments []*token.Comment

	// Errors collected during lexing
	Errors []error
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	if l.pos < len(l.input) && l.readPos > 0 && l.input[l.pos] == '\n' {
		l.line++
		l.col = 0
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	if l.atEOF() {
		return token.Token{Type: token.EOF, Pos: pos, End: pos}
	}

	var typ token.TokenType
	var lit string

	switch ch := l.ch; {
	case ch == '\'':
		return l.readString(pos)
	case ch == '"' || ch == '`':
		return l.readQuotedIdent(pos, ch)
	case ch == '[':
		return l.readQuotedIdent(pos, ']')
	case (ch == 'x' || ch == 'X') && l.peekChar() == '\'':
		return l.readBlob(pos)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)
	case isIdentStart(ch):
		return l.readIdentifier(pos)
	case ch == '?':
		return l.readBind(pos)
	case (ch == ':' || ch == '@' || ch == '$') && isIdentStart(l.peekChar()):
		return l.readBind(pos)
	}

	switch l.ch {
	case '+':
		typ, lit = token.PLUS, "+"
	case '-':
		typ, lit = token.MINUS, "-"
	case '*':
		typ, lit = token.STAR, "*"
	case '/':
		typ, lit = token.SLASH, "/"
	case '%':
		typ, lit = token.PERCENT, "%"
	case '~':
		typ, lit = token.TILDE, "~"
	case '&':
		typ, lit = token.AMP, "&"
	case '.':
		typ, lit = token.DOT, "."
	case ',':
		typ, lit = token.COMMA, ","
	case '(':
		typ, lit = token.LPAREN, "("
	case ')':
		typ, lit = token.RPAREN, ")"
	case ';':
		typ, lit = token.SEMICOLON, ";"
	case ':':
		typ, lit = token.COLON, ":"
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			typ, lit = token.DPIPE, "||"
		} else {
			typ, lit = token.PIPE, "|"
		}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			typ, lit = token.EQ, "=="
		} else {
			typ, lit = token.EQ, "="
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			typ, lit = token.NE, "!="
		} else {
			typ, lit = token.ILLEGAL, "!"
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			typ, lit = token.LE, "<="
		case '>':
			l.readChar()
			typ, lit = token.NE, "<>"
		case '<':
			l.readChar()
			typ, lit = token.SHL, "<<"
		default:
			typ, lit = token.LT, "<"
		}
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			typ, lit = token.GE, ">="
		case '>':
			l.readChar()
			typ, lit = token.SHR, ">>"
		default:
			typ, lit = token.GT, ">"
		}
	default:
		typ, lit = token.ILLEGAL, string(l.ch)
	}
	l.readChar()

	if typ == token.ILLEGAL {
		l.addError(pos, "unexpected character "+lit)
	}
	return token.Token{Type: typ, Literal: lit, Pos: pos, End: l.currentPos()}
}

func (l *Lexer) addError(pos token.Position, msg string) {
	l.Errors = append(l.Errors, &LexError{Pos: pos, Message: msg})
}

// skipWhitespaceAndComments skips whitespace, recording comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			l.readLineComment()
		case l.ch == '/' && l.peekChar() == '*':
			l.readBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) readLineComment() {
	start := l.currentPos()
	for !l.atEOF() && l.ch != '\n' {
		l.readChar()
	}
	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.LineComment,
		Text: l.input[start.Offset:l.pos],
		Span: token.Span{Start: start, End: l.currentPos()},
	})
}

func (l *Lexer) readBlockComment() {
	start := l.currentPos()
	l.readChar() // /
	l.readChar() // *
	for !l.atEOF() && (l.ch != '*' || l.peekChar() != '/') {
		l.readChar()
	}
	if l.atEOF() {
		l.addError(start, ErrUnterminatedComment)
	} else {
		l.readChar() // *
		l.readChar() // /
	}
	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.BlockComment,
		Text: l.input[start.Offset:l.pos],
		Span: token.Span{Start: start, End: l.currentPos()},
	})
}

// readString reads a single-quoted string; '' escapes a quote.
func (l *Lexer) readString(pos token.Position) token.Token {
	var sb strings.Builder
	l.readChar() // opening quote
	for {
		if l.atEOF() {
			l.addError(pos, ErrUnterminatedString)
			return token.Token{Type: token.ILLEGAL, Literal: sb.String(), Pos: pos, End: l.currentPos()}
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return token.Token{Type: token.STRING, Literal: sb.String(), Pos: pos, End: l.currentPos()}
}

// readQuotedIdent reads "ident", `ident` or [ident].
func (l *Lexer) readQuotedIdent(pos token.Position, closing byte) token.Token {
	var sb strings.Builder
	l.readChar() // opening quote
	for {
		if l.atEOF() {
			l.addError(pos, ErrUnterminatedIdent)
			return token.Token{Type: token.ILLEGAL, Literal: sb.String(), Pos: pos, End: l.currentPos()}
		}
		if l.ch == closing {
			if closing != ']' && l.peekChar() == closing {
				sb.WriteByte(closing)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return token.Token{Type: token.IDENT, Literal: sb.String(), Pos: pos, End: l.currentPos()}
}

// readBlob reads x'hex'.
func (l *Lexer) readBlob(pos token.Position) token.Token {
	l.readChar() // x
	str := l.readString(pos)
	if str.Type != token.STRING {
		return str
	}
	for i := 0; i < len(str.Literal); i++ {
		if !isHexDigit(str.Literal[i]) {
			l.addError(pos, ErrInvalidBlob)
			break
		}
	}
	if len(str.Literal)%2 != 0 {
		l.addError(pos, ErrInvalidBlob)
	}
	return token.Token{Type: token.BLOB, Literal: str.Literal, Pos: pos, End: str.End}
}

// readNumber reads integer, decimal, exponent and hex literals.
func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return token.Token{Type: token.NUMBER, Literal: l.input[start:l.pos], Pos: pos, End: l.currentPos()}
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				l.addError(pos, ErrInvalidNumber)
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return token.Token{Type: token.NUMBER, Literal: l.input[start:l.pos], Pos: pos, End: l.currentPos()}
}

// readIdentifier reads a bare identifier or keyword.
func (l *Lexer) readIdentifier(pos token.Position) token.Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return token.Token{
		Type:    token.LookupIdent(strings.ToLower(lit)),
		Literal: lit,
		Pos:     pos,
		End:     l.currentPos(),
	}
}

// readBind reads ?, ?NNN, :name, @name and $name.
func (l *Lexer) readBind(pos token.Position) token.Token {
	start := l.pos
	if l.ch == '?' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	} else {
		l.readChar() // sigil
		for isIdentPart(l.ch) {
			l.readChar()
		}
	}
	return token.Token{Type: token.BIND, Literal: l.input[start:l.pos], Pos: pos, End: l.currentPos()}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch byte) bool {
	if ch >= utf8.RuneSelf {
		return true
	}
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}
