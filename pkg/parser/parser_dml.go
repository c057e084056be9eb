package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Mutation grammar:
//
//	insert   → (INSERT [OR conflict] | REPLACE) INTO table [AS alias] ["(" columns ")"]
//	           (VALUES rows | select_stmt | DEFAULT VALUES) [upsert] [returning]
//	upsert   → ON CONFLICT ["(" columns ")" [WHERE expr]] DO (NOTHING | UPDATE SET sets [WHERE expr])
//	update   → UPDATE [OR conflict] table [AS alias] SET sets [FROM from] [WHERE expr]
//	           [returning] [ORDER BY ...] [LIMIT ...]
//	delete   → DELETE FROM table [AS alias] [WHERE expr] [returning] [ORDER BY ...] [LIMIT ...]
//	sets     → (column | "(" columns ")") "=" expr ("," ...)*

func (p *Parser) parseInsert(with *core.WithClause) core.Stmt {
	start := p.token.Pos
	if with != nil {
		start = with.Pos()
	}
	stmt := &core.InsertStmt{With: with}

	if p.match(token.REPLACE) {
		stmt.Or = core.ConflictReplace
	} else {
		p.nextToken() // INSERT
		if p.match(token.OR) {
			stmt.Or = p.parseConflictAction()
		}
	}
	if !p.expect(token.INTO) {
		return nil
	}
	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}
	if p.match(token.AS) {
		stmt.Table.Alias, _ = p.parseIdent()
	}

	if p.check(token.LPAREN) {
		p.nextToken()
		for {
			id := p.parseIdentNode()
			if id == nil {
				return nil
			}
			stmt.Columns = append(stmt.Columns, id)
			if !p.match(token.COMMA) {
				break
			}
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
	}

	switch {
	case p.match(token.DEFAULT):
		if !p.expect(token.VALUES) {
			return nil
		}
		stmt.DefaultValues = true
	case p.check(token.VALUES) && !p.checkPeek(token.LPAREN):
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.peek), token.LPAREN))
		return nil
	case p.check(token.VALUES):
		p.nextToken()
		for {
			if !p.expect(token.LPAREN) {
				return nil
			}
			row := p.parseExprList()
			if !p.expect(token.RPAREN) {
				return nil
			}
			stmt.Values = append(stmt.Values, row)
			if !p.match(token.COMMA) {
				break
			}
		}
	case p.startsSelect():
		stmt.Select = p.parseSelectStmt()
		if stmt.Select == nil {
			return nil
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "VALUES, SELECT or DEFAULT VALUES"))
		return nil
	}

	for p.check(token.ON) && p.checkPeek(token.CONFLICT) {
		upsert := p.parseUpsert()
		if upsert == nil {
			return nil
		}
		// Only the last clause may omit its target; the first DO UPDATE
		// clause decides which columns an upsert assigns.
		if stmt.Upsert == nil || (stmt.Upsert.DoNothing && !upsert.DoNothing) {
			stmt.Upsert = upsert
		}
	}

	if p.match(token.RETURNING) {
		if stmt.Returning = p.parseResultColumns(); stmt.Returning == nil {
			return nil
		}
	}
	stmt.Span = p.span(start)
	return stmt
}

func (p *Parser) parseConflictAction() core.ConflictAction {
	action := core.ConflictNone
	switch p.token.Type {
	case token.ROLLBACK:
		action = core.ConflictRollback
	case token.ABORT:
		action = core.ConflictAbort
	case token.REPLACE:
		action = core.ConflictReplace
	case token.FAIL:
		action = core.ConflictFail
	case token.IGNORE:
		action = core.ConflictIgnore
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "ROLLBACK, ABORT, REPLACE, FAIL or IGNORE"))
		return action
	}
	p.nextToken()
	return action
}

func (p *Parser) parseUpsert() *core.UpsertClause {
	start := p.token.Pos
	p.nextToken() // ON
	p.nextToken() // CONFLICT
	u := &core.UpsertClause{}
	if p.check(token.LPAREN) {
		u.Target = p.parseIdentList()
		if p.match(token.WHERE) {
			p.parseExpression()
		}
	}
	if !p.expect(token.DO) {
		return nil
	}
	switch {
	case p.match(token.NOTHING):
		u.DoNothing = true
	case p.match(token.UPDATE):
		if !p.expect(token.SET) {
			return nil
		}
		if u.Sets = p.parseSetClauses(); u.Sets == nil {
			return nil
		}
		if p.match(token.WHERE) {
			u.Where = p.parseExpression()
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "NOTHING or UPDATE"))
		return nil
	}
	u.Span = p.span(start)
	return u
}

// parseSetClauses parses the assignments of SET.
func (p *Parser) parseSetClauses() []*core.SetClause {
	var sets []*core.SetClause
	for {
		set := &core.SetClause{}
		if p.match(token.LPAREN) {
			for {
				id := p.parseIdentNode()
				if id == nil {
					return nil
				}
				set.Columns = append(set.Columns, id)
				if !p.match(token.COMMA) {
					break
				}
			}
			if !p.expect(token.RPAREN) {
				return nil
			}
		} else {
			id := p.parseIdentNode()
			if id == nil {
				return nil
			}
			set.Columns = []*core.Ident{id}
		}
		if !p.expect(token.EQ) {
			return nil
		}
		if set.Value = p.parseExpression(); set.Value == nil {
			return nil
		}
		sets = append(sets, set)
		if !p.match(token.COMMA) {
			return sets
		}
	}
}

func (p *Parser) parseUpdate(with *core.WithClause) core.Stmt {
	start := p.token.Pos
	if with != nil {
		start = with.Pos()
	}
	p.nextToken() // UPDATE
	stmt := &core.UpdateStmt{With: with}
	if p.match(token.OR) {
		stmt.Or = p.parseConflictAction()
	}
	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}
	if p.match(token.AS) {
		stmt.Table.Alias, _ = p.parseIdent()
	}
	p.skipIndexedBy()
	if !p.expect(token.SET) {
		return nil
	}
	if stmt.Sets = p.parseSetClauses(); stmt.Sets == nil {
		return nil
	}
	if p.match(token.FROM) {
		if stmt.From = p.parseFrom(); stmt.From == nil {
			return nil
		}
	}
	if p.match(token.WHERE) {
		if stmt.Where = p.parseExpression(); stmt.Where == nil {
			return nil
		}
	}
	if p.match(token.RETURNING) {
		if stmt.Returning = p.parseResultColumns(); stmt.Returning == nil {
			return nil
		}
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

func (p *Parser) parseDelete(with *core.WithClause) core.Stmt {
	start := p.token.Pos
	if with != nil {
		start = with.Pos()
	}
	p.nextToken() // DELETE
	if !p.expect(token.FROM) {
		return nil
	}
	stmt := &core.DeleteStmt{With: with}
	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}
	if p.match(token.AS) {
		stmt.Table.Alias, _ = p.parseIdent()
	}
	p.skipIndexedBy()
	if p.match(token.WHERE) {
		if stmt.Where = p.parseExpression(); stmt.Where == nil {
			return nil
		}
	}
	if p.match(token.RETURNING) {
		if stmt.Returning = p.parseResultColumns(); stmt.Returning == nil {
			return nil
		}
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
