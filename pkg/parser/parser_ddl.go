package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/token"
)

// Schema grammar:
//
//	create_table   → CREATE [TEMP] TABLE [IF NOT EXISTS] name
//	                 ("(" column_def ("," column_def)* ("," table_constraint)* ")" [WITHOUT ROWID]
//	                 | AS select_stmt)
//	column_def     → name [type_name [AS custom_type]] column_constraint*
//	create_virtual → CREATE VIRTUAL TABLE [IF NOT EXISTS] name USING module ["(" args ")"]
//	create_view    → CREATE [TEMP] VIEW [IF NOT EXISTS] name ["(" columns ")"] AS select_stmt
//	create_index   → CREATE [UNIQUE] INDEX [IF NOT EXISTS] name ON table "(" exprs ")" [WHERE expr]
//	create_trigger → CREATE [TEMP] TRIGGER [IF NOT EXISTS] name [BEFORE | AFTER | INSTEAD OF]
//	                 (DELETE | INSERT | UPDATE [OF columns]) ON table [FOR EACH ROW] [WHEN expr]
//	                 BEGIN (statement ";")+ END
//	alter_table    → ALTER TABLE name (RENAME TO name | RENAME [COLUMN] name TO name
//	                 | ADD [COLUMN] column_def | DROP [COLUMN] name)
//	drop           → DROP (TABLE | VIEW | INDEX | TRIGGER) [IF EXISTS] name

func (p *Parser) parseCreate() core.Stmt {
	start := p.token.Pos
	p.nextToken() // CREATE
	temp := p.match(token.TEMP) || p.match(token.TEMPORARY)

	var stmt core.Stmt
	switch {
	case p.match(token.TABLE):
		if s := p.parseCreateTable(start, temp); s != nil {
			stmt = s
		}
	case p.match(token.VIRTUAL):
		if !p.expect(token.TABLE) {
			return nil
		}
		if s := p.parseCreateVirtualTable(start); s != nil {
			stmt = s
		}
	case p.match(token.VIEW):
		if s := p.parseCreateView(start, temp); s != nil {
			stmt = s
		}
	case p.check(token.UNIQUE) || p.check(token.INDEX):
		if s := p.parseCreateIndex(start); s != nil {
			stmt = s
		}
	case p.match(token.TRIGGER):
		if s := p.parseCreateTrigger(start, temp); s != nil {
			stmt = s
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "TABLE, VIEW, INDEX or TRIGGER"))
	}
	return stmt
}

// parseIfNotExists consumes IF NOT EXISTS.
func (p *Parser) parseIfNotExists() bool {
	if p.check(token.IF) && p.checkPeek(token.NOT) {
		p.nextToken()
		p.nextToken()
		p.expect(token.EXISTS)
		return true
	}
	return false
}

func (p *Parser) parseCreateTable(start token.Position, temp bool) *core.CreateTableStmt {
	stmt := &core.CreateTableStmt{Temp: temp, IfNotExists: p.parseIfNotExists()}
	stmt.Schema, stmt.Name = p.parseQualifiedName()
	if stmt.Name == "" {
		return nil
	}

	if p.match(token.AS) {
		if stmt.AsSelect = p.parseSelectStmt(); stmt.AsSelect == nil {
			return nil
		}
		stmt.Span = p.span(start)
		return stmt
	}

	if !p.expect(token.LPAREN) {
		return nil
	}
	for {
		if p.startsTableConstraint() {
			c := p.parseTableConstraint()
			if c == nil {
				return nil
			}
			stmt.Constraints = append(stmt.Constraints, c)
		} else {
			if len(stmt.Constraints) > 0 {
				p.addError("column definitions must precede table constraints")
				return nil
			}
			col := p.parseColumnDef()
			if col == nil {
				return nil
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	for {
		switch {
		case p.match(token.WITHOUT):
			if !p.check(token.ROWID) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.ROWID))
				return nil
			}
			p.nextToken()
			stmt.WithoutRowID = true
		case p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "strict"):
			p.nextToken()
		default:
			stmt.Span = p.span(start)
			return stmt
		}
		p.match(token.COMMA)
	}
}

func (p *Parser) startsTableConstraint() bool {
	switch p.token.Type {
	case token.CONSTRAINT, token.PRIMARY, token.UNIQUE, token.CHECK, token.FOREIGN:
		return true
	}
	return false
}

// parseColumnDef parses name [type [AS custom]] constraints.
func (p *Parser) parseColumnDef() *core.ColumnDef {
	start := p.token.Pos
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	col := &core.ColumnDef{Name: name}
	if isIdent(p.token) && !isGenerated(p.token) {
		col.TypeName = p.parseColumnTypeName()
	}
	if p.check(token.AS) && !p.checkPeek(token.LPAREN) {
		p.nextToken()
		col.CustomType = p.parseCustomType()
		if col.CustomType == "" {
			return nil
		}
	}
	if !p.parseColumnConstraints(col) {
		return nil
	}
	col.Span = p.span(start)
	return col
}

func isGenerated(tok token.Token) bool {
	return tok.Type == token.IDENT && strings.EqualFold(tok.Literal, "generated")
}

// parseColumnTypeName is parseTypeName stopping before GENERATED.
func (p *Parser) parseColumnTypeName() string {
	var words []string
	for isIdent(p.token) && !isGenerated(p.token) {
		words = append(words, p.token.Literal)
		p.nextToken()
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

// parseCustomType takes the raw text after AS up to the next column
// constraint, comma or closing parenthesis.
func (p *Parser) parseCustomType() string {
	start := p.token.Pos
	depth := 0
loop:
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			if depth == 0 {
				break loop
			}
			depth--
		case token.COMMA:
			if depth == 0 {
				break loop
			}
		case token.CONSTRAINT, token.PRIMARY, token.NOT, token.NULL, token.UNIQUE,
			token.CHECK, token.DEFAULT, token.COLLATE, token.REFERENCES:
			if depth == 0 {
				break loop
			}
		}
		p.nextToken()
	}
	if p.prev.End.Offset <= start.Offset {
		p.addError(fmt.Sprintf(ErrExpectedIdentifier, describe(p.token)))
		return ""
	}
	return strings.TrimSpace(p.span(start).Text(p.src))
}

// parseColumnConstraints parses the constraints of a column definition.
func (p *Parser) parseColumnConstraints(col *core.ColumnDef) bool {
	for {
		if p.match(token.CONSTRAINT) {
			if _, ok := p.parseIdent(); !ok {
				return false
			}
		}
		switch {
		case p.match(token.PRIMARY):
			if !p.expect(token.KEY) {
				return false
			}
			col.PrimaryKey = true
			if !p.match(token.ASC) {
				p.match(token.DESC)
			}
			p.parseConflictClause()
			if p.match(token.AUTOINCREMENT) {
				col.AutoIncrement = true
			}
		case p.check(token.NOT) && p.checkPeek(token.NULL):
			p.nextToken()
			p.nextToken()
			col.NotNull = true
			p.parseConflictClause()
		case p.match(token.NULL):
			p.parseConflictClause()
		case p.match(token.UNIQUE):
			col.Unique = true
			p.parseConflictClause()
		case p.match(token.CHECK):
			if !p.parseParenExpr() {
				return false
			}
		case p.match(token.DEFAULT):
			if col.Default = p.parseDefault(); col.Default == nil {
				return false
			}
		case p.match(token.COLLATE):
			if _, ok := p.parseIdent(); !ok {
				return false
			}
		case p.match(token.REFERENCES):
			if col.References = p.parseForeignKeyClause(); col.References == nil {
				return false
			}
		case isGenerated(p.token):
			p.nextToken()
			if !(p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "always")) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "ALWAYS"))
				return false
			}
			p.nextToken()
			if !p.expect(token.AS) || !p.parseGeneratedTail() {
				return false
			}
		case p.match(token.AS):
			if !p.parseGeneratedTail() {
				return false
			}
		default:
			return true
		}
	}
}

// parseGeneratedTail parses "(" expr ")" [STORED | VIRTUAL].
func (p *Parser) parseGeneratedTail() bool {
	if !p.parseParenExpr() {
		return false
	}
	if p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "stored") {
		p.nextToken()
	} else {
		p.match(token.VIRTUAL)
	}
	return true
}

func (p *Parser) parseParenExpr() bool {
	if !p.expect(token.LPAREN) {
		return false
	}
	if p.parseExpression() == nil {
		return false
	}
	return p.expect(token.RPAREN)
}

// parseDefault parses a DEFAULT value: a literal, a signed number, an
// identifier or a parenthesized expression.
func (p *Parser) parseDefault() core.Expr {
	switch p.token.Type {
	case token.LPAREN:
		return p.parseParen()
	case token.MINUS, token.PLUS:
		start := p.token.Pos
		op := p.token.Type
		p.nextToken()
		operand := p.parsePrefix()
		if operand == nil {
			return nil
		}
		return &core.UnaryExpr{NodeInfo: core.NodeInfo{Span: p.span(start)}, Op: op, Expr: operand}
	}
	return p.parsePrefix()
}

// parseConflictClause consumes ON CONFLICT action.
func (p *Parser) parseConflictClause() {
	if p.check(token.ON) && p.checkPeek(token.CONFLICT) {
		p.nextToken()
		p.nextToken()
		p.parseConflictAction()
	}
}

// parseForeignKeyClause parses the part after REFERENCES.
func (p *Parser) parseForeignKeyClause() *core.ForeignKeyClause {
	start := p.token.Pos
	table, ok := p.parseIdent()
	if !ok {
		return nil
	}
	fk := &core.ForeignKeyClause{Table: table}
	if p.check(token.LPAREN) {
		fk.Columns = p.parseIdentList()
	}
	for {
		switch {
		case p.match(token.ON):
			var event token.TokenType
			switch {
			case p.match(token.DELETE):
				event = token.DELETE
			case p.match(token.UPDATE):
				event = token.UPDATE
			default:
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "DELETE or UPDATE"))
				return nil
			}
			action := p.parseFKAction()
			if action == core.FKActionNone {
				return nil
			}
			if event == token.DELETE {
				fk.OnDelete = action
			} else {
				fk.OnUpdate = action
			}
		case p.match(token.MATCH):
			if _, ok := p.parseIdent(); !ok {
				return nil
			}
		case p.check(token.DEFERRABLE) || (p.check(token.NOT) && p.checkPeek(token.DEFERRABLE)):
			p.match(token.NOT)
			p.nextToken() // DEFERRABLE
			if p.match(token.INITIALLY) {
				if !p.match(token.DEFERRED) && !p.expect(token.IMMEDIATE) {
					return nil
				}
			}
		default:
			fk.Span = p.span(start)
			return fk
		}
	}
}

func (p *Parser) parseFKAction() core.FKAction {
	switch {
	case p.match(token.SET):
		if p.match(token.NULL) {
			return core.FKSetNull
		}
		if p.expect(token.DEFAULT) {
			return core.FKSetDefault
		}
	case p.match(token.CASCADE):
		return core.FKCascade
	case p.match(token.RESTRICT):
		return core.FKRestrict
	case p.match(token.NO):
		if p.expect(token.ACTION) {
			return core.FKNoAction
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SET NULL, SET DEFAULT, CASCADE, RESTRICT or NO ACTION"))
	}
	return core.FKActionNone
}

func (p *Parser) parseTableConstraint() *core.TableConstraint {
	start := p.token.Pos
	c := &core.TableConstraint{}
	if p.match(token.CONSTRAINT) {
		c.Name, _ = p.parseIdent()
	}
	switch {
	case p.match(token.PRIMARY):
		if !p.expect(token.KEY) {
			return nil
		}
		c.Kind = core.ConstraintPrimaryKey
		c.Columns = p.parseIdentList()
		p.parseConflictClause()
	case p.match(token.UNIQUE):
		c.Kind = core.ConstraintUnique
		c.Columns = p.parseIdentList()
		p.parseConflictClause()
	case p.match(token.CHECK):
		c.Kind = core.ConstraintCheck
		if !p.expect(token.LPAREN) {
			return nil
		}
		if c.Check = p.parseExpression(); c.Check == nil || !p.expect(token.RPAREN) {
			return nil
		}
	case p.match(token.FOREIGN):
		if !p.expect(token.KEY) {
			return nil
		}
		c.Kind = core.ConstraintForeignKey
		c.Columns = p.parseIdentList()
		if !p.expect(token.REFERENCES) {
			return nil
		}
		if c.References = p.parseForeignKeyClause(); c.References == nil {
			return nil
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "table constraint"))
		return nil
	}
	if c.Columns == nil && c.Kind != core.ConstraintCheck {
		return nil
	}
	c.Span = p.span(start)
	return c
}

// parseCreateVirtualTable parses CREATE VIRTUAL TABLE ... USING module(args).
// Module arguments without "=" declare columns (fts3/4/5 style).
func (p *Parser) parseCreateVirtualTable(start token.Position) *core.CreateTableStmt {
	stmt := &core.CreateTableStmt{Virtual: true, IfNotExists: p.parseIfNotExists()}
	stmt.Schema, stmt.Name = p.parseQualifiedName()
	if stmt.Name == "" || !p.expect(token.USING) {
		return nil
	}
	if _, ok := p.parseIdent(); !ok {
		return nil
	}
	if p.match(token.LPAREN) {
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			if col := p.parseModuleArgument(); col != nil {
				stmt.Columns = append(stmt.Columns, col)
			}
			if !p.match(token.COMMA) {
				break
			}
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
	}
	stmt.Span = p.span(start)
	return stmt
}

// parseModuleArgument consumes one module argument, returning a column
// definition when it declares one.
func (p *Parser) parseModuleArgument() *core.ColumnDef {
	start := p.token.Pos
	var words []token.Token
	option := false
	depth := 0
	for !p.check(token.EOF) {
		if depth == 0 && (p.check(token.COMMA) || p.check(token.RPAREN)) {
			break
		}
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		case token.EQ:
			option = true
		}
		words = append(words, p.token)
		p.nextToken()
	}
	if option || len(words) == 0 || !isIdent(words[0]) {
		return nil
	}
	col := &core.ColumnDef{Name: words[0].Literal, TypeName: "TEXT"}
	if len(words) > 1 && words[1].Type == token.IDENT && !strings.EqualFold(words[1].Literal, "unindexed") {
		col.TypeName = words[1].Literal
	}
	col.Span = p.span(start)
	return col
}

func (p *Parser) parseCreateView(start token.Position, temp bool) *core.CreateViewStmt {
	stmt := &core.CreateViewStmt{Temp: temp, IfNotExists: p.parseIfNotExists()}
	_, stmt.Name = p.parseQualifiedName()
	if stmt.Name == "" {
		return nil
	}
	if p.check(token.LPAREN) {
		stmt.Columns = p.parseIdentList()
	}
	if !p.expect(token.AS) {
		return nil
	}
	if stmt.Select = p.parseSelectStmt(); stmt.Select == nil {
		return nil
	}
	stmt.Span = p.span(start)
	return stmt
}

func (p *Parser) parseCreateIndex(start token.Position) *core.CreateIndexStmt {
	stmt := &core.CreateIndexStmt{Unique: p.match(token.UNIQUE)}
	if !p.expect(token.INDEX) {
		return nil
	}
	stmt.IfNotExists = p.parseIfNotExists()
	_, stmt.Name = p.parseQualifiedName()
	if stmt.Name == "" || !p.expect(token.ON) {
		return nil
	}
	var ok bool
	if stmt.Table, ok = p.parseIdent(); !ok {
		return nil
	}
	if !p.expect(token.LPAREN) {
		return nil
	}
	for {
		e := p.parseExpression()
		if e == nil {
			return nil
		}
		if ref, isRef := e.(*core.ColumnRef); isRef {
			stmt.Columns = append(stmt.Columns, ref.Column)
		} else if c, isCollate := e.(*core.CollateExpr); isCollate {
			if ref, isRef := c.Expr.(*core.ColumnRef); isRef {
				stmt.Columns = append(stmt.Columns, ref.Column)
			}
		}
		if !p.match(token.ASC) {
			p.match(token.DESC)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	if p.match(token.WHERE) {
		if stmt.Where = p.parseExpression(); stmt.Where == nil {
			return nil
		}
	}
	stmt.Span = p.span(start)
	return stmt
}

func (p *Parser) parseCreateTrigger(start token.Position, temp bool) *core.CreateTriggerStmt {
	stmt := &core.CreateTriggerStmt{Temp: temp, IfNotExists: p.parseIfNotExists(), Timing: core.TriggerBefore}
	_, stmt.Name = p.parseQualifiedName()
	if stmt.Name == "" {
		return nil
	}

	switch {
	case p.match(token.BEFORE):
	case p.match(token.AFTER):
		stmt.Timing = core.TriggerAfter
	case p.match(token.INSTEAD):
		if !p.expect(token.OF) {
			return nil
		}
		stmt.Timing = core.TriggerInsteadOf
	}

	switch {
	case p.match(token.DELETE):
		stmt.Event = core.TriggerDelete
	case p.match(token.INSERT):
		stmt.Event = core.TriggerInsert
	case p.match(token.UPDATE):
		stmt.Event = core.TriggerUpdate
		if p.match(token.OF) {
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
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "DELETE, INSERT or UPDATE"))
		return nil
	}

	if !p.expect(token.ON) {
		return nil
	}
	var ok bool
	if stmt.Table, ok = p.parseIdent(); !ok {
		return nil
	}
	if p.match(token.FOR) {
		if !p.expect(token.EACH) || !p.expect(token.ROW) {
			return nil
		}
		stmt.ForEachRow = true
	}
	if p.match(token.WHEN) {
		if stmt.When = p.parseExpression(); stmt.When == nil {
			return nil
		}
	}
	if !p.expect(token.BEGIN) {
		return nil
	}
	for !p.check(token.END) && !p.check(token.EOF) {
		body := p.parseTriggerBodyStatement()
		if body == nil {
			return nil
		}
		stmt.Body = append(stmt.Body, body)
		if !p.expect(token.SEMICOLON) {
			return nil
		}
	}
	if len(stmt.Body) == 0 {
		p.addError(ErrEmptyTriggerBody)
		return nil
	}
	if !p.expect(token.END) {
		return nil
	}
	stmt.Span = p.span(start)
	return stmt
}

func (p *Parser) parseTriggerBodyStatement() core.Stmt {
	switch p.token.Type {
	case token.WITH, token.SELECT, token.VALUES, token.INSERT, token.REPLACE, token.UPDATE, token.DELETE:
		return p.parseStatement()
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT, INSERT, UPDATE or DELETE"))
	return nil
}

func (p *Parser) parseAlterTable() core.Stmt {
	start := p.token.Pos
	p.nextToken() // ALTER
	if !p.expect(token.TABLE) {
		return nil
	}
	stmt := &core.AlterTableStmt{}
	_, stmt.Table = p.parseQualifiedName()
	if stmt.Table == "" {
		return nil
	}
	var ok bool
	switch {
	case p.match(token.RENAME):
		if p.match(token.TO) {
			if stmt.RenameTo, ok = p.parseIdent(); !ok {
				return nil
			}
			break
		}
		p.match(token.COLUMN)
		if stmt.RenameColumn, ok = p.parseIdent(); !ok || !p.expect(token.TO) {
			return nil
		}
		if stmt.ColumnTo, ok = p.parseIdent(); !ok {
			return nil
		}
	case p.match(token.ADD):
		p.match(token.COLUMN)
		if stmt.AddColumn = p.parseColumnDef(); stmt.AddColumn == nil {
			return nil
		}
	case p.match(token.DROP):
		p.match(token.COLUMN)
		if stmt.DropColumn, ok = p.parseIdent(); !ok {
			return nil
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "RENAME, ADD or DROP"))
		return nil
	}
	stmt.Span = p.span(start)
	return stmt
}

func (p *Parser) parseDrop() core.Stmt {
	start := p.token.Pos
	p.nextToken() // DROP
	stmt := &core.DropStmt{}
	switch {
	case p.match(token.TABLE):
		stmt.Kind = core.ObjectTable
	case p.match(token.VIEW):
		stmt.Kind = core.ObjectView
	case p.match(token.INDEX):
		stmt.Kind = core.ObjectIndex
	case p.match(token.TRIGGER):
		stmt.Kind = core.ObjectTrigger
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "TABLE, VIEW, INDEX or TRIGGER"))
		return nil
	}
	if p.check(token.IF) && p.checkPeek(token.EXISTS) {
		p.nextToken()
		p.nextToken()
		stmt.IfExists = true
	}
	_, stmt.Name = p.parseQualifiedName()
	if stmt.Name == "" {
		return nil
	}
	stmt.Span = p.span(start)
	return stmt
}
