// Package parser provides SQL parsing for leapquery source files.
//
// # Usage
//
//	file, err := parser.ParseFile("Player.sq", src, d)
//	if err != nil {
//	    // err is an ErrorList; file still holds every statement that parsed
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for the SQLite grammar:
//
//	file          → (statement ";")*
//	statement     → [label ":"] (select | insert | update | delete | ddl)
//	select        → [WITH cte_list] select_core (compound_op select_core)*
//	                [ORDER BY order_list] [LIMIT expr [(OFFSET | ",") expr]]
//	select_core   → SELECT [DISTINCT | ALL] result_cols [FROM from_clause]
//	                [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	              | VALUES "(" expr_list ")" ("," "(" expr_list ")")*
//	ddl           → create_table | create_view | create_index
//	              | create_trigger | alter_table | drop
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// File is a parsed source file.
type File struct {
	Name       string
	Source     string
	Statements []*core.LabeledStmt
	Comments   []*token.Comment
}

// ErrorList collects every error of a parse. It preserves source order.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the individual errors to errors.Is/As.
func (l ErrorList) Unwrap() []error { return l }

// Parser parses SQL into an AST.
type Parser struct {
	lexer   *Lexer
	src     string
	prev    token.Token // last consumed token
	token   token.Token // current token
	peek    token.Token // lookahead token
	peek2   token.Token // second lookahead token
	errors  []error
	dialect *dialect.Dialect // optional
}

// NewParser creates a new parser for the given SQL input. The dialect may
// be nil, in which case every SQLite construct is accepted.
func NewParser(sql string, d *dialect.Dialect) *Parser {
	p := &Parser{
		lexer:   NewLexer(sql),
		src:     sql,
		dialect: d,
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// ParseFile parses a .sq or .sqm file. Statements that fail to parse are
// skipped; the returned error is an ErrorList holding every failure.
func ParseFile(name, src string, d *dialect.Dialect) (*File, error) {
	p := NewParser(src, d)
	file := &File{Name: name, Source: src}
	file.Statements = p.parseStatementList(true)
	file.Comments = p.lexer.Comments
	return file, p.err()
}

// ParseStatement parses a single unlabeled statement.
func ParseStatement(sql string, d *dialect.Dialect) (core.Stmt, error) {
	p := NewParser(sql, d)
	stmts := p.parseStatementList(false)
	if err := p.err(); err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("expected exactly one statement, got %d", len(stmts))
	}
	return stmts[0].Stmt, nil
}

// ParseExpr parses a standalone expression.
func ParseExpr(sql string, d *dialect.Dialect) (core.Expr, error) {
	p := NewParser(sql, d)
	expr := p.parseExpression()
	if !p.check(token.EOF) && !p.check(token.SEMICOLON) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.EOF))
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) err() error {
	all := append(append([]error(nil), p.lexer.Errors...), p.errors...)
	if len(all) == 0 {
		return nil
	}
	sortErrors(all)
	return ErrorList(all)
}

// sortErrors orders positioned errors by source offset (insertion sort,
// lists are short).
func sortErrors(errs []error) {
	offset := func(err error) int {
		var pe *ParseError
		if errors.As(err, &pe) {
			return pe.Pos.Offset
		}
		var le *LexError
		if errors.As(err, &le) {
			return le.Pos.Offset
		}
		return 0
	}
	for i := 1; i < len(errs); i++ {
		for j := i; j > 0 && offset(errs[j]) < offset(errs[j-1]); j-- {
			errs[j], errs[j-1] = errs[j-1], errs[j]
		}
	}
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prev = p.token
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// addError adds a parse error at the current token.
func (p *Parser) addError(msg string) {
	p.addErrorAt(p.token.Pos, msg)
}

func (p *Parser) addErrorAt(pos token.Position, msg string) {
	// One error per position keeps cascades out of the report.
	for _, err := range p.errors {
		if pe, ok := err.(*ParseError); ok && pe.Pos.Offset == pos.Offset {
			return
		}
	}
	p.errors = append(p.errors, &ParseError{Pos: pos, Message: msg})
}

// span returns the span from start to the end of the last consumed token.
func (p *Parser) span(start token.Position) token.Span {
	return token.Span{Start: start, End: p.prev.End}
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "EOF"
	case token.IDENT, token.NUMBER, token.BIND:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING:
		return fmt.Sprintf("STRING '%s'", tok.Literal)
	default:
		return tok.Type.String()
	}
}

// isIdent reports whether tok can be used as a name.
func isIdent(tok token.Token) bool {
	return tok.Type == token.IDENT || token.IsSoftKeyword(tok.Type)
}

// parseIdent consumes an identifier (or a keyword SQLite allows as one).
func (p *Parser) parseIdent() (string, bool) {
	if isIdent(p.token) {
		name := p.token.Literal
		p.nextToken()
		return name, true
	}
	p.addError(fmt.Sprintf(ErrExpectedIdentifier, describe(p.token)))
	return "", false
}

// parseIdentNode is parseIdent keeping the position.
func (p *Parser) parseIdentNode() *core.Ident {
	start := p.token.Pos
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	return &core.Ident{NodeInfo: core.NodeInfo{Span: p.span(start)}, Name: name}
}

// parseQualifiedName parses [schema.]name.
func (p *Parser) parseQualifiedName() (schema, name string) {
	name, _ = p.parseIdent()
	if p.match(token.DOT) {
		schema = name
		name, _ = p.parseIdent()
	}
	return schema, name
}

// parseIdentList parses "(" ident ("," ident)* ")".
func (p *Parser) parseIdentList() []string {
	var out []string
	if !p.expect(token.LPAREN) {
		return nil
	}
	for {
		name, ok := p.parseIdent()
		if !ok {
			return out
		}
		p.skipIndexedColumnSuffix()
		out = append(out, name)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return out
}

// skipIndexedColumnSuffix consumes COLLATE x and ASC/DESC after a column.
func (p *Parser) skipIndexedColumnSuffix() {
	if p.match(token.COLLATE) {
		p.parseIdent()
	}
	if !p.match(token.ASC) {
		p.match(token.DESC)
	}
}

// ---------- Statements ----------

// parseStatementList parses statements separated by semicolons. Labels are
// accepted only when allowLabels is set.
func (p *Parser) parseStatementList(allowLabels bool) []*core.LabeledStmt {
	var out []*core.LabeledStmt
	prevEnd := 0
	for !p.check(token.EOF) {
		if p.match(token.SEMICOLON) {
			continue
		}
		errCount := len(p.errors)
		stmt := p.parseLabeledStatement(allowLabels, prevEnd)
		if len(p.errors) > errCount || stmt == nil {
			p.synchronize()
		} else {
			out = append(out, stmt)
			if !p.check(token.EOF) && !p.expect(token.SEMICOLON) {
				p.synchronize()
			}
		}
		prevEnd = p.prev.End.Offset
	}
	return out
}

// synchronize skips to the token after the next semicolon.
func (p *Parser) synchronize() {
	for !p.check(token.EOF) && !p.check(token.SEMICOLON) {
		p.nextToken()
	}
	p.match(token.SEMICOLON)
}

func (p *Parser) parseLabeledStatement(allowLabels bool, prevEnd int) *core.LabeledStmt {
	start := p.token.Pos
	labeled := &core.LabeledStmt{}
	if isIdent(p.token) && p.checkPeek(token.COLON) {
		if !allowLabels {
			p.addError(fmt.Sprintf(ErrLabelNotAllowed, "this context"))
			return nil
		}
		labeled.Label = p.token.Literal
		labeled.LabelPos = p.token.Pos
		labeled.Doc = p.docComment(prevEnd, start.Offset)
		p.nextToken() // label
		p.nextToken() // :
	}
	stmt := p.parseStatement()
	if stmt == nil {
		return nil
	}
	labeled.Stmt = stmt
	labeled.Span = p.span(start)
	return labeled
}

// docComment returns the text of the last /** */ comment between two
// offsets.
func (p *Parser) docComment(from, to int) string {
	doc := ""
	for _, c := range p.lexer.Comments {
		if c.Span.Start.Offset >= from && c.Span.End.Offset <= to && c.IsDoc() {
			doc = c.DocText()
		}
	}
	return doc
}

// parseStatement dispatches on the leading keyword.
func (p *Parser) parseStatement() core.Stmt {
	switch p.token.Type {
	case token.WITH:
		return p.parseWithStatement()
	case token.SELECT, token.VALUES:
		return p.parseSelect(nil)
	case token.INSERT, token.REPLACE:
		return p.parseInsert(nil)
	case token.UPDATE:
		return p.parseUpdate(nil)
	case token.DELETE:
		return p.parseDelete(nil)
	case token.CREATE:
		return p.parseCreate()
	case token.ALTER:
		return p.parseAlterTable()
	case token.DROP:
		return p.parseDrop()
	case token.IDENT, token.BEGIN, token.ROLLBACK, token.END:
		return p.parseRaw()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedStatement, describe(p.token)))
		return nil
	}
}

// parseWithStatement parses WITH ... followed by a query or mutation.
func (p *Parser) parseWithStatement() core.Stmt {
	with := p.parseWith()
	switch p.token.Type {
	case token.SELECT, token.VALUES:
		return p.parseSelect(with)
	case token.INSERT, token.REPLACE:
		return p.parseInsert(with)
	case token.UPDATE:
		return p.parseUpdate(with)
	case token.DELETE:
		return p.parseDelete(with)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT, INSERT, UPDATE or DELETE"))
		return nil
	}
}

// parseRaw consumes a statement leapquery does not analyze (PRAGMA,
// VACUUM, ...), keeping its span.
func (p *Parser) parseRaw() core.Stmt {
	start := p.token.Pos
	keyword := strings.ToUpper(p.token.Literal)
	depth := 0
	for !p.check(token.EOF) {
		if p.check(token.SEMICOLON) && depth == 0 {
			break
		}
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		p.nextToken()
	}
	return &core.RawStmt{NodeInfo: core.NodeInfo{Span: p.span(start)}, Keyword: keyword}
}

// parseBindParam converts the current BIND token.
func (p *Parser) parseBindParam() *core.BindParam {
	tok := p.token
	p.nextToken()
	b := &core.BindParam{
		NodeInfo: core.NodeInfo{Span: token.Span{Start: tok.Pos, End: tok.End}},
		Text:     tok.Literal,
	}
	if strings.HasPrefix(tok.Literal, "?") {
		if len(tok.Literal) > 1 {
			n, err := strconv.Atoi(tok.Literal[1:])
			if err != nil || n < 1 {
				p.addErrorAt(tok.Pos, fmt.Sprintf("invalid parameter index %s", tok.Literal))
			}
			b.Index = n
		}
	} else {
		b.Name = tok.Literal[1:]
	}
	return b
}
