package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// SELECT grammar:
//
//	select_stmt   → [with] select_core (compound_op select_core)*
//	                [ORDER BY ordering_term ("," ordering_term)*]
//	                [LIMIT expr [(OFFSET | ",") expr]]
//	with          → WITH [RECURSIVE] cte ("," cte)*
//	cte           → name ["(" columns ")"] AS [[NOT] MATERIALIZED] "(" select_stmt ")"
//	compound_op   → UNION [ALL] | INTERSECT | EXCEPT
//	result_column → "*" | table "." "*" | expr [[AS] alias]
//	from          → table_or_subquery (join_op table_or_subquery [join_constraint])*
//	join_op       → "," | [NATURAL] [LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | INNER | CROSS] JOIN

// parseSelect parses a SELECT statement whose WITH clause (if any) has
// already been consumed.
func (p *Parser) parseSelect(with *core.WithClause) core.Stmt {
	stmt := p.parseSelectBody(with)
	if stmt == nil {
		return nil
	}
	return stmt
}

// parseSelectStmt parses a nested query, including its own WITH clause.
func (p *Parser) parseSelectStmt() *core.SelectStmt {
	var with *core.WithClause
	if p.check(token.WITH) {
		with = p.parseWith()
		if with == nil {
			return nil
		}
	}
	return p.parseSelectBody(with)
}

func (p *Parser) parseSelectBody(with *core.WithClause) *core.SelectStmt {
	start := p.token.Pos
	if with != nil {
		start = with.Pos()
	}
	stmt := &core.SelectStmt{With: with}

	core0 := p.parseSelectCore()
	if core0 == nil {
		return nil
	}
	stmt.Cores = append(stmt.Cores, core0)

compound:
	for {
		var op core.CompoundOp
		switch {
		case p.match(token.UNION):
			op = core.OpUnion
			if p.match(token.ALL) {
				op = core.OpUnionAll
			}
		case p.match(token.INTERSECT):
			op = core.OpIntersect
		case p.match(token.EXCEPT):
			op = core.OpExcept
		default:
			break compound
		}
		next := p.parseSelectCore()
		if next == nil {
			return nil
		}
		stmt.Ops = append(stmt.Ops, op)
		stmt.Cores = append(stmt.Cores, next)
	}

	if p.check(token.ORDER) {
		stmt.OrderBy = p.parseOrderBy()
	}
	if p.match(token.LIMIT) {
		stmt.Limit, stmt.Offset = p.parseLimit()
	}
	stmt.Span = p.span(start)
	return stmt
}

// parseLimit parses the operands of LIMIT; "LIMIT a, b" is offset a,
// limit b.
func (p *Parser) parseLimit() (limit, offset core.Expr) {
	limit = p.parseExpression()
	switch {
	case p.match(token.OFFSET):
		offset = p.parseExpression()
	case p.match(token.COMMA):
		offset = limit
		limit = p.parseExpression()
	}
	return limit, offset
}

// parseWith parses WITH [RECURSIVE] cte_list.
func (p *Parser) parseWith() *core.WithClause {
	start := p.token.Pos
	p.nextToken() // WITH
	with := &core.WithClause{Recursive: p.match(token.RECURSIVE)}
	for {
		cte := p.parseCTE()
		if cte == nil {
			return nil
		}
		with.CTEs = append(with.CTEs, cte)
		if !p.match(token.COMMA) {
			break
		}
	}
	with.Span = p.span(start)
	return with
}

func (p *Parser) parseCTE() *core.CTE {
	start := p.token.Pos
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	cte := &core.CTE{Name: name}
	if p.check(token.LPAREN) {
		cte.Columns = p.parseIdentList()
	}
	if !p.expect(token.AS) {
		return nil
	}
	p.match(token.NOT)
	if p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "materialized") {
		p.nextToken()
	}
	if !p.expect(token.LPAREN) {
		return nil
	}
	cte.Select = p.parseSelectStmt()
	if cte.Select == nil || !p.expect(token.RPAREN) {
		return nil
	}
	cte.Span = p.span(start)
	return cte
}

// parseSelectCore parses SELECT ... or VALUES ....
func (p *Parser) parseSelectCore() *core.SelectCore {
	start := p.token.Pos
	sc := &core.SelectCore{}

	if p.match(token.VALUES) {
		for {
			if !p.expect(token.LPAREN) {
				return nil
			}
			row := p.parseExprList()
			if !p.expect(token.RPAREN) {
				return nil
			}
			sc.Values = append(sc.Values, row)
			if !p.match(token.COMMA) {
				break
			}
		}
		sc.Span = p.span(start)
		return sc
	}

	if !p.expect(token.SELECT) {
		return nil
	}
	if p.match(token.DISTINCT) {
		sc.Distinct = true
	} else {
		p.match(token.ALL)
	}

	sc.Columns = p.parseResultColumns()
	if sc.Columns == nil {
		return nil
	}
	if p.match(token.FROM) {
		sc.From = p.parseFrom()
		if sc.From == nil {
			return nil
		}
	}
	if p.match(token.WHERE) {
		if sc.Where = p.parseExpression(); sc.Where == nil {
			return nil
		}
	}
	if p.match(token.GROUP) {
		if !p.expect(token.BY) {
			return nil
		}
		sc.GroupBy = p.parseExprList()
		if p.match(token.HAVING) {
			sc.Having = p.parseExpression()
		}
	}
	sc.Span = p.span(start)
	return sc
}

// parseResultColumns parses the select list (also used by RETURNING).
func (p *Parser) parseResultColumns() []*core.ResultColumn {
	var cols []*core.ResultColumn
	for {
		col := p.parseResultColumn()
		if col == nil {
			return nil
		}
		cols = append(cols, col)
		if !p.match(token.COMMA) {
			return cols
		}
	}
}

func (p *Parser) parseResultColumn() *core.ResultColumn {
	start := p.token.Pos
	col := &core.ResultColumn{}
	switch {
	case p.match(token.STAR):
		col.Star = true
	case isIdent(p.token) && p.checkPeek(token.DOT) && p.peek2.Type == token.STAR:
		col.TableStar = p.token.Literal
		p.nextToken()
		p.nextToken()
		p.nextToken()
	default:
		col.Expr = p.parseExpression()
		if col.Expr == nil {
			return nil
		}
		col.Alias = p.parseAlias()
	}
	col.Span = p.span(start)
	return col
}

// parseAlias parses [AS] alias. Without AS, only identifiers qualify.
func (p *Parser) parseAlias() string {
	if p.match(token.AS) {
		if p.check(token.STRING) {
			alias := p.token.Literal
			p.nextToken()
			return alias
		}
		alias, _ := p.parseIdent()
		return alias
	}
	if isIdent(p.token) {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	return ""
}

// parseFrom parses the FROM clause body.
func (p *Parser) parseFrom() *core.FromClause {
	start := p.token.Pos
	errCount := len(p.errors)
	from := &core.FromClause{Source: p.parseTableOrSubquery()}
	if from.Source == nil {
		return nil
	}
	for {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}
	if len(p.errors) > errCount {
		return nil
	}
	from.Span = p.span(start)
	return from
}

// parseJoin parses one join operator with its right side and constraint.
// It returns nil when no join follows.
func (p *Parser) parseJoin() *core.Join {
	start := p.token.Pos
	join := &core.Join{Type: core.JoinInner}

	if p.match(token.COMMA) {
		join.Right = p.parseTableOrSubquery()
		if join.Right == nil {
			return nil
		}
		join.Span = p.span(start)
		return join
	}

	join.Natural = p.match(token.NATURAL)
	switch {
	case p.match(token.LEFT):
		join.Type = core.JoinLeft
		p.match(token.OUTER)
	case p.match(token.RIGHT):
		join.Type = core.JoinRight
		p.match(token.OUTER)
	case p.match(token.FULL):
		join.Type = core.JoinFull
		p.match(token.OUTER)
	case p.match(token.INNER):
	case p.match(token.CROSS):
		join.Type = core.JoinCross
	case !p.check(token.JOIN):
		if join.Natural {
			p.expect(token.JOIN)
		}
		return nil
	}
	if !p.expect(token.JOIN) {
		return nil
	}

	join.Right = p.parseTableOrSubquery()
	if join.Right == nil {
		return nil
	}

	switch {
	case p.match(token.ON):
		if join.Natural {
			p.addError(ErrNaturalJoinOn)
			return nil
		}
		join.On = p.parseExpression()
		if join.On == nil {
			return nil
		}
	case p.check(token.USING):
		if join.Natural {
			p.addError(ErrNaturalJoinOn)
			return nil
		}
		p.nextToken()
		join.Using = p.parseIdentList()
	}
	join.Span = p.span(start)
	return join
}

// parseTableOrSubquery parses a table name or a parenthesized query with
// optional alias.
func (p *Parser) parseTableOrSubquery() core.TableRef {
	start := p.token.Pos
	if p.match(token.LPAREN) {
		if !p.startsSelect() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.SELECT))
			return nil
		}
		q := p.parseSelectStmt()
		if q == nil || !p.expect(token.RPAREN) {
			return nil
		}
		dt := &core.DerivedTable{Select: q, Alias: p.parseAlias()}
		dt.Span = p.span(start)
		return dt
	}

	tn := p.parseTableName()
	if tn == nil {
		return nil
	}
	// Table-valued function arguments (json_each(...)) are not analyzed.
	if p.check(token.LPAREN) {
		p.nextToken()
		if !p.check(token.RPAREN) {
			p.parseExprList()
		}
		p.expect(token.RPAREN)
	}
	tn.Alias = p.parseAlias()
	p.skipIndexedBy()
	tn.Span = p.span(start)
	return tn
}

// parseTableName parses [schema.]name without an alias.
func (p *Parser) parseTableName() *core.TableName {
	start := p.token.Pos
	schema, name := p.parseQualifiedName()
	if name == "" {
		return nil
	}
	return &core.TableName{NodeInfo: core.NodeInfo{Span: p.span(start)}, Schema: schema, Name: name}
}

// skipIndexedBy consumes INDEXED BY name and NOT INDEXED.
func (p *Parser) skipIndexedBy() {
	switch {
	case p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "indexed"):
		p.nextToken()
		p.expect(token.BY)
		p.parseIdent()
	case p.check(token.NOT) && p.peek.Type == token.IDENT && strings.EqualFold(p.peek.Literal, "indexed"):
		p.nextToken()
		p.nextToken()
	}
}

// parseOrderBy parses ORDER BY ordering_term ("," ordering_term)*.
func (p *Parser) parseOrderBy() []*core.OrderingTerm {
	p.nextToken() // ORDER
	if !p.expect(token.BY) {
		return nil
	}
	var terms []*core.OrderingTerm
	for {
		e := p.parseExpression()
		if e == nil {
			return terms
		}
		term := &core.OrderingTerm{Expr: e}
		if p.match(token.DESC) {
			term.Desc = true
		} else {
			p.match(token.ASC)
		}
		if p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "nulls") {
			p.nextToken()
			p.nextToken() // FIRST | LAST
		}
		terms = append(terms, term)
		if !p.match(token.COMMA) {
			return terms
		}
	}
}
