package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Expression grammar (precedence climbing, lowest first):
//
//	expr        → or_expr
//	or_expr     → and_expr (OR and_expr)*
//	and_expr    → not_expr (AND not_expr)*
//	not_expr    → NOT not_expr | equality
//	equality    → compare ((= | != | IS [NOT] | [NOT] IN | [NOT] LIKE
//	              | [NOT] BETWEEN | ISNULL | NOTNULL | NOT NULL) compare)*
//	compare     → bitwise ((< | <= | > | >=) bitwise)*
//	bitwise     → additive ((& | "|" | << | >>) additive)*
//	additive    → multiply ((+ | -) multiply)*
//	multiply    → concat ((* | / | %) concat)*
//	concat      → unary ("||" unary)*
//	unary       → (- | + | ~) unary | collate
//	collate     → primary [COLLATE name]

// Precedence levels.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precEquality
	precCompare
	precBitwise
	precAdditive
	precMultiply
	precConcat
	precUnary
	precCollate
)

// parseExpression parses a full expression.
func (p *Parser) parseExpression() core.Expr {
	return p.parseExprPrec(precLowest)
}

// parseExprPrec parses operators binding tighter than minPrec.
func (p *Parser) parseExprPrec(minPrec int) core.Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for {
		prec := p.infixPrecedence()
		if prec <= minPrec {
			return left
		}
		left = p.parseInfix(left, prec)
		if left == nil {
			return nil
		}
	}
}

// infixPrecedence returns the precedence of the operator at the current
// token, or precLowest when there is none.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NE, token.IS, token.IN, token.LIKE, token.GLOB,
		token.MATCH, token.REGEXP, token.BETWEEN, token.ISNULL, token.NOTNULL:
		return precEquality
	case token.NOT:
		switch p.peek.Type {
		case token.IN, token.LIKE, token.GLOB, token.MATCH, token.REGEXP, token.BETWEEN, token.NULL:
			return precEquality
		}
		return precLowest
	case token.LT, token.LE, token.GT, token.GE:
		return precCompare
	case token.AMP, token.PIPE, token.SHL, token.SHR:
		return precBitwise
	case token.PLUS, token.MINUS:
		return precAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiply
	case token.DPIPE:
		return precConcat
	case token.COLLATE:
		return precCollate
	}
	return precLowest
}

func (p *Parser) parseInfix(left core.Expr, prec int) core.Expr {
	start := left.Pos()
	switch p.token.Type {
	case token.COLLATE:
		p.nextToken()
		name, _ := p.parseIdent()
		return &core.CollateExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Expr: left, Collation: name}
	case token.ISNULL, token.NOTNULL:
		not := p.token.Type == token.NOTNULL
		p.nextToken()
		return &core.NullTest{NodeInfo: core.NodeInfo{Span: p.span(start)}, Expr: left, Not: not}
	case token.IS:
		return p.parseIs(left)
	case token.NOT, token.IN, token.LIKE, token.GLOB, token.MATCH, token.REGEXP, token.BETWEEN:
		not := p.match(token.NOT)
		switch p.token.Type {
		case token.NULL:
			p.nextToken()
			return &core.NullTest{NodeInfo: core.NodeInfo{Span: p.span(start)}, Expr: left, Not: true}
		case token.IN:
			return p.parseIn(left, not)
		case token.BETWEEN:
			return p.parseBetween(left, not)
		default:
			return p.parseLike(left, not)
		}
	}

	op := p.token
	p.nextToken()
	right := p.parseExprPrec(prec)
	if right == nil {
		return nil
	}
	return &core.BinaryExpr{
		NodeInfo: core.NodeInfo{Span: p.span(start)},
		Left:     left,
		Op:       op.Type,
		OpText:   op.Literal,
		OpSpan:   token.Span{Start: op.Pos, End: op.End},
		Right:    right,
	}
}

// parseIs parses IS [NOT] [DISTINCT FROM] expr.
func (p *Parser) parseIs(left core.Expr) core.Expr {
	start := left.Pos()
	p.nextToken() // IS
	not := p.match(token.NOT)
	if p.match(token.DISTINCT) {
		p.expect(token.FROM)
		not = !not
	}
	right := p.parseExprPrec(precEquality)
	if right == nil {
		return nil
	}
	return &core.IsExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Left: left, Not: not, Right: right}
}

// parseIn parses IN (list) | IN (select) | IN ? | IN table.
func (p *Parser) parseIn(left core.Expr, not bool) core.Expr {
	start := left.Pos()
	p.nextToken() // IN
	in := &core.InExpr{Expr: left, Not: not}

	switch {
	case p.check(token.BIND):
		bind := p.parseBindParam()
		in.List = []core.Expr{bind}
		in.ListSpan = bind.Span
	case p.check(token.LPAREN):
		listStart := p.token.Pos
		p.nextToken()
		if p.startsSelect() {
			in.Query = p.parseSelectStmt()
		} else if !p.check(token.RPAREN) {
			in.List = p.parseExprList()
		}
		p.expect(token.RPAREN)
		in.ListSpan = p.span(listStart)
	case isIdent(p.token):
		schema, name := p.parseQualifiedName()
		if schema != "" {
			name = schema + "." + name
		}
		in.Table = name
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "( after IN"))
		return nil
	}
	in.Span = p.span(start)
	return in
}

func (p *Parser) parseBetween(left core.Expr, not bool) core.Expr {
	start := left.Pos()
	p.nextToken() // BETWEEN
	low := p.parseExprPrec(precEquality)
	if low == nil || !p.expect(token.AND) {
		return nil
	}
	high := p.parseExprPrec(precEquality)
	if high == nil {
		return nil
	}
	return &core.BetweenExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Expr: left, Not: not, Low: low, High: high}
}

func (p *Parser) parseLike(left core.Expr, not bool) core.Expr {
	start := left.Pos()
	op := p.token.Type
	switch op {
	case token.LIKE, token.GLOB, token.MATCH, token.REGEXP:
		p.nextToken()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "IN, LIKE, BETWEEN or NULL after NOT"))
		return nil
	}
	right := p.parseExprPrec(precEquality)
	if right == nil {
		return nil
	}
	like := &core.LikeExpr{Left: left, Op: op, Not: not, Right: right}
	if p.match(token.ESCAPE) {
		like.Escape = p.parseExprPrec(precEquality)
	}
	like.Span = p.span(start)
	return like
}

// parsePrefix parses a primary expression or a prefix operator.
func (p *Parser) parsePrefix() core.Expr {
	start := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return p.literal(start, core.LiteralNumber, tok.Literal)
	case token.STRING:
		p.nextToken()
		return p.literal(start, core.LiteralString, tok.Literal)
	case token.BLOB:
		p.nextToken()
		return p.literal(start, core.LiteralBlob, tok.Literal)
	case token.NULL:
		p.nextToken()
		return p.literal(start, core.LiteralNull, "NULL")
	case token.TRUE, token.FALSE:
		p.nextToken()
		return p.literal(start, core.LiteralBool, strings.ToUpper(tok.Literal))
	case token.CURRENT_TIME:
		p.nextToken()
		return p.literal(start, core.LiteralCurrentTime, tok.Literal)
	case token.CURRENT_DATE:
		p.nextToken()
		return p.literal(start, core.LiteralCurrentDate, tok.Literal)
	case token.CURRENT_TIMESTAMP:
		p.nextToken()
		return p.literal(start, core.LiteralCurrentTimestamp, tok.Literal)
	case token.BIND:
		return p.parseBindParam()
	case token.MINUS, token.PLUS, token.TILDE:
		p.nextToken()
		operand := p.parseExprPrec(precUnary)
		if operand == nil {
			return nil
		}
		return &core.UnaryExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Op: tok.Type, Expr: operand}
	case token.NOT:
		p.nextToken()
		if p.check(token.EXISTS) {
			exists := p.parseExists(start)
			if exists == nil {
				return nil
			}
			exists.Not = true
			return exists
		}
		operand := p.parseExprPrec(precNot)
		if operand == nil {
			return nil
		}
		return &core.UnaryExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Op: token.NOT, Expr: operand}
	case token.EXISTS:
		if exists := p.parseExists(start); exists != nil {
			return exists
		}
		return nil
	case token.LPAREN:
		return p.parseParen()
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		return p.parseCast()
	case token.RAISE:
		if p.checkPeek(token.LPAREN) {
			return p.parseRaise()
		}
	}

	if isIdent(tok) {
		if p.checkPeek(token.LPAREN) {
			return p.parseFuncCall()
		}
		return p.parseColumnRef()
	}

	p.addError(fmt.Sprintf(ErrExpectedExpression, describe(tok)))
	return nil
}

func (p *Parser) literal(start token.Position, kind core.LiteralKind, value string) *core.Literal {
	return &core.Literal{NodeInfo: core.NodeInfo{Span: p.span(start)}, Kind: kind, Value: value}
}

// parseColumnRef parses [[schema.]table.]column.
func (p *Parser) parseColumnRef() core.Expr {
	start := p.token.Pos
	parts := []string{p.token.Literal}
	p.nextToken()
	for len(parts) < 3 && p.check(token.DOT) && isIdent(p.peek) {
		p.nextToken()
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}
	ref := &core.ColumnRef{}
	switch len(parts) {
	case 1:
		ref.Column = parts[0]
	case 2:
		ref.Table, ref.Column = parts[0], parts[1]
	default:
		ref.Schema, ref.Table, ref.Column = parts[0], parts[1], parts[2]
	}
	ref.Span = p.span(start)
	return ref
}

// parseFuncCall parses name([DISTINCT] args | *).
func (p *Parser) parseFuncCall() core.Expr {
	start := p.token.Pos
	call := &core.FuncCall{Name: p.token.Literal}
	p.nextToken() // name
	p.nextToken() // (
	switch {
	case p.match(token.STAR):
		call.Star = true
	case p.check(token.RPAREN):
	default:
		call.Distinct = p.match(token.DISTINCT)
		call.Args = p.parseExprList()
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	call.Span = p.span(start)
	return call
}

// parseParen parses "(" expr ")" or a scalar subquery.
func (p *Parser) parseParen() core.Expr {
	start := p.token.Pos
	p.nextToken() // (
	if p.startsSelect() {
		q := p.parseSelectStmt()
		if q == nil || !p.expect(token.RPAREN) {
			return nil
		}
		return &core.SubqueryExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Query: q}
	}
	inner := p.parseExpression()
	if inner == nil || !p.expect(token.RPAREN) {
		return nil
	}
	return &core.ParenExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Expr: inner}
}

// parseExists parses EXISTS (select); start covers a leading NOT.
func (p *Parser) parseExists(start token.Position) *core.ExistsExpr {
	p.nextToken() // EXISTS
	if !p.expect(token.LPAREN) {
		return nil
	}
	q := p.parseSelectStmt()
	if q == nil || !p.expect(token.RPAREN) {
		return nil
	}
	return &core.ExistsExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Query: q}
}

// parseCase parses CASE [operand] (WHEN expr THEN expr)+ [ELSE expr] END.
func (p *Parser) parseCase() core.Expr {
	start := p.token.Pos
	p.nextToken() // CASE
	c := &core.CaseExpr{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(token.WHEN) {
		cond := p.parseExpression()
		if cond == nil || !p.expect(token.THEN) {
			return nil
		}
		result := p.parseExpression()
		if result == nil {
			return nil
		}
		c.Whens = append(c.Whens, &core.WhenClause{Condition: cond, Result: result})
	}
	if len(c.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.WHEN))
		return nil
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	if !p.expect(token.END) {
		return nil
	}
	c.Span = p.span(start)
	return c
}

// parseCast parses CAST(expr AS type).
func (p *Parser) parseCast() core.Expr {
	start := p.token.Pos
	p.nextToken() // CAST
	if !p.expect(token.LPAREN) {
		return nil
	}
	inner := p.parseExpression()
	if inner == nil || !p.expect(token.AS) {
		return nil
	}
	typeName := p.parseTypeName()
	if !p.expect(token.RPAREN) {
		return nil
	}
	return &core.CastExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Expr: inner, TypeName: typeName}
}

// parseRaise parses RAISE(IGNORE) and RAISE(ROLLBACK|ABORT|FAIL, 'msg').
func (p *Parser) parseRaise() core.Expr {
	start := p.token.Pos
	p.nextToken() // RAISE
	p.nextToken() // (
	r := &core.RaiseExpr{Action: p.token.Type}
	switch p.token.Type {
	case token.IGNORE:
		p.nextToken()
	case token.ROLLBACK, token.ABORT, token.FAIL:
		p.nextToken()
		if !p.expect(token.COMMA) {
			return nil
		}
		r.Message = p.token.Literal
		if !p.expect(token.STRING) {
			return nil
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "IGNORE, ROLLBACK, ABORT or FAIL"))
		return nil
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	r.Span = p.span(start)
	return r
}

// parseTypeName parses a declared type: one or more names with an
// optional (n[, m]) suffix, e.g. VARCHAR(20), UNSIGNED BIG INT.
func (p *Parser) parseTypeName() string {
	var words []string
	for isIdent(p.token) {
		words = append(words, p.token.Literal)
		p.nextToken()
	}
	if len(words) == 0 {
		p.addError(fmt.Sprintf(ErrExpectedIdentifier, describe(p.token)))
		return ""
	}
	name := strings.Join(words, " ")
	if p.check(token.LPAREN) {
		start := p.token.Pos
		p.nextToken()
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			p.nextToken()
		}
		p.expect(token.RPAREN)
		name += strings.ReplaceAll(p.span(start).Text(p.src), " ", "")
	}
	return name
}

// parseExprList parses expr ("," expr)*.
func (p *Parser) parseExprList() []core.Expr {
	var list []core.Expr
	for {
		e := p.parseExpression()
		if e == nil {
			return list
		}
		list = append(list, e)
		if !p.match(token.COMMA) {
			return list
		}
	}
}

// startsSelect reports whether the current token begins a query.
func (p *Parser) startsSelect() bool {
	return p.check(token.SELECT) || p.check(token.WITH) || p.check(token.VALUES)
}
