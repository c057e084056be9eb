package infer

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/schema"
)

// Column is a named, typed result column.
type Column struct {
	Name string
	Type core.IntermediateType
	Expr core.Expr // nil for columns expanded from * or a table
}

// Statement is the result of analyzing one statement.
type Statement struct {
	Stmt core.Stmt
	// Columns are the result columns of a SELECT or RETURNING clause.
	Columns []Column
	// Binds are the bind parameters in lexical order.
	Binds []*core.BindParam
	// Tables are the base tables the statement reads, with views and CTEs
	// expanded. Sorted.
	Tables []string
	// Target is the base table an INSERT, UPDATE or DELETE writes.
	Target string
	// TargetName is the table or view named by the mutation, normalized.
	TargetName string
}

// Engine types the statements of one catalog.
type Engine struct {
	catalog *schema.Catalog
	dialect *dialect.Dialect

	parents map[core.Node]core.Node
	refs    map[*core.ColumnRef]core.IntermediateType
	results map[*core.SelectStmt][]Column
	types   map[core.Expr]core.IntermediateType
	views   map[*schema.Table]*relation
	pending map[*schema.Table]bool
}

// New returns an engine for the catalog.
func New(catalog *schema.Catalog) *Engine {
	return &Engine{
		catalog: catalog,
		dialect: catalog.Dialect(),
		parents: make(map[core.Node]core.Node),
		refs:    make(map[*core.ColumnRef]core.IntermediateType),
		results: make(map[*core.SelectStmt][]Column),
		types:   make(map[core.Expr]core.IntermediateType),
		views:   make(map[*schema.Table]*relation),
		pending: make(map[*schema.Table]bool),
	}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *schema.Catalog { return e.catalog }

// relation is a named row source: a table, view, CTE or derived table.
type relation struct {
	name    string // alias, or the name it was referenced by
	table   string // normalized catalog name; empty for CTEs and subqueries
	columns []Column
	tables  []string // base tables backing the relation
	rowid   bool
}

func (r *relation) column(name string) (core.IntermediateType, bool) {
	for _, c := range r.columns {
		if strings.EqualFold(c.Name, name) {
			return c.Type, true
		}
	}
	if r.rowid {
		switch strings.ToLower(name) {
		case "rowid", "oid", "_rowid_":
			return core.NewType(core.TypeInteger).WithName(name), true
		}
	}
	return core.IntermediateType{}, false
}

func (r *relation) nullable() *relation {
	out := *r
	out.columns = make([]Column, len(r.columns))
	for i, c := range r.columns {
		c.Type = c.Type.AsNullable()
		out.columns[i] = c
	}
	return &out
}

// scope is the set of names visible to an expression.
type scope struct {
	parent  *scope
	sources []*relation
	ctes    map[string]*relation
	aliases []Column // result aliases, visible to ORDER BY
}

func (s *scope) child() *scope {
	return &scope{parent: s}
}

func (s *scope) cte(name string) (*relation, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if r, ok := sc.ctes[name]; ok {
			return r, true
		}
	}
	return nil, false
}

// analysis carries the state of one Analyze call.
type analysis struct {
	*Engine
	errs   []error
	seen   map[core.Node]bool
	tables map[string]bool
}

func (a *analysis) fail(err error) {
	if err == nil {
		return
	}
	var te *TypeError
	if errors.As(err, &te) {
		for _, prev := range a.errs {
			var p *TypeError
			if errors.As(prev, &p) && p.Pos == te.Pos && p.Message == te.Message {
				return
			}
		}
	}
	a.errs = append(a.errs, err)
}

// Analyze resolves and types a statement. The returned error joins every
// problem found; the Statement is usable for whatever did resolve.
func (e *Engine) Analyze(stmt core.Stmt) (*Statement, error) {
	a := &analysis{Engine: e, seen: make(map[core.Node]bool), tables: make(map[string]bool)}
	out := &Statement{Stmt: stmt}

	core.Inspect(stmt, func(n, parent core.Node) bool {
		if parent != nil {
			e.parents[n] = parent
		}
		if b, ok := n.(*core.BindParam); ok {
			out.Binds = append(out.Binds, b)
		}
		return true
	})
	slices.SortStableFunc(out.Binds, func(x, y *core.BindParam) int { return x.Pos().Offset - y.Pos().Offset })

	root := &scope{}
	switch s := stmt.(type) {
	case *core.SelectStmt:
		out.Columns = a.selectStmt(s, root)
	case *core.InsertStmt:
		out.Columns = a.insert(s, root, out)
	case *core.UpdateStmt:
		out.Columns = a.update(s, root, out)
	case *core.DeleteStmt:
		out.Columns = a.delete(s, root, out)
	case *core.CreateViewStmt:
		out.Columns = a.selectStmt(s.Select, root)
	case *core.CreateTableStmt:
		if s.AsSelect != nil {
			out.Columns = a.selectStmt(s.AsSelect, root)
		}
	}

	// Type every function call so unknown functions are reported where
	// they are called, not only when they reach a result column.
	core.Inspect(stmt, func(n, _ core.Node) bool {
		if f, ok := n.(*core.FuncCall); ok {
			if _, err := e.Type(f); err != nil {
				a.fail(err)
			}
		}
		return true
	})

	for t := range a.tables {
		out.Tables = append(out.Tables, t)
	}
	slices.Sort(out.Tables)
	return out, errors.Join(a.errs...)
}

// BaseTables resolves a table or view name to the base tables behind it.
func (e *Engine) BaseTables(name string) ([]string, error) {
	t, ok := e.catalog.Table(name)
	if !ok {
		return nil, &TypeError{Message: "No table found with name " + name}
	}
	if !t.View {
		return []string{e.catalog.Normalize(t.Name)}, nil
	}
	rel, err := e.view(t)
	if err != nil {
		return nil, err
	}
	return rel.tables, nil
}

// SingleTable resolves the target of a mutation to exactly one base table.
func (e *Engine) SingleTable(tn *core.TableName) (string, error) {
	tables, err := e.BaseTables(tn.Name)
	if err != nil {
		return "", newError(tn.Pos(), ErrNoTable, tn.Name)
	}
	if len(tables) != 1 {
		return "", newError(tn.Pos(), ErrAmbiguousTarget, tn.Name, len(tables))
	}
	return tables[0], nil
}

// table resolves a table reference: a CTE in scope, then a catalog table
// or view.
func (a *analysis) table(tn *core.TableName, sc *scope) *relation {
	name := a.catalog.Normalize(tn.Name)
	alias := tn.Alias
	if alias == "" {
		alias = tn.Name
	}
	if tn.Schema == "" {
		if cte, ok := sc.cte(name); ok {
			r := *cte
			r.name = alias
			return &r
		}
	}
	t, ok := a.catalog.Table(tn.Name)
	if !ok {
		a.fail(newError(tn.Pos(), ErrNoTable, tn.Name))
		return nil
	}
	var r *relation
	if t.Derived() {
		v, err := a.view(t)
		if err != nil {
			a.fail(&TypeError{Pos: tn.Pos(), Message: message(err)})
			return nil
		}
		r = &relation{columns: v.columns, tables: v.tables}
		if !t.View {
			r.tables = []string{name}
		}
	} else {
		r = &relation{tables: []string{name}, rowid: !t.WithoutRowID}
		for _, c := range t.Columns {
			r.columns = append(r.columns, Column{Name: c.Name, Type: c.IntermediateType()})
		}
	}
	r.name = alias
	r.table = name
	for _, base := range r.tables {
		a.tables[base] = true
	}
	return r
}

// view derives the columns and base tables of a view or AS SELECT table.
func (e *Engine) view(t *schema.Table) (*relation, error) {
	if r, ok := e.views[t]; ok {
		return r, nil
	}
	if e.pending[t] {
		return nil, newError(t.Pos, ErrRecursiveView, t.Name)
	}
	e.pending[t] = true
	defer delete(e.pending, t)

	a := &analysis{Engine: e, seen: make(map[core.Node]bool), tables: make(map[string]bool)}
	core.Inspect(t.Select, func(n, parent core.Node) bool {
		if parent != nil {
			e.parents[n] = parent
		}
		return true
	})
	cols := a.selectStmt(t.Select, &scope{})
	if len(a.errs) > 0 {
		return nil, a.errs[0]
	}
	if len(t.ColumnNames) > 0 {
		if len(t.ColumnNames) != len(cols) {
			return nil, newError(t.Pos, ErrColumnCount, t.Name, len(cols), len(t.ColumnNames))
		}
		renamed := make([]Column, len(cols))
		for i, c := range cols {
			c.Name = t.ColumnNames[i]
			c.Type = c.Type.WithName(c.Name)
			renamed[i] = c
		}
		cols = renamed
	}
	r := &relation{name: t.Name, table: e.catalog.Normalize(t.Name), columns: cols}
	for base := range a.tables {
		r.tables = append(r.tables, base)
	}
	slices.Sort(r.tables)
	e.views[t] = r
	return r, nil
}

// ---------- Queries ----------

func (a *analysis) with(w *core.WithClause, sc *scope) *scope {
	if w == nil {
		return sc
	}
	inner := sc.child()
	inner.ctes = make(map[string]*relation)
	for _, cte := range w.CTEs {
		name := a.catalog.Normalize(cte.Name)
		var cols []Column
		if w.Recursive && len(cte.Select.Cores) > 1 {
			// The anchor member types the CTE; the recursive members may
			// then refer to it.
			first := a.core(cte.Select.Cores[0], inner)
			inner.ctes[name] = a.cteRelation(cte, first)
			cols = a.selectStmt(cte.Select, inner)
		} else {
			cols = a.selectStmt(cte.Select, inner)
		}
		inner.ctes[name] = a.cteRelation(cte, cols)
	}
	return inner
}

func (a *analysis) cteRelation(cte *core.CTE, cols []Column) *relation {
	if len(cte.Columns) > 0 {
		if len(cte.Columns) != len(cols) {
			a.fail(newError(cte.Pos(), ErrColumnCount, cte.Name, len(cols), len(cte.Columns)))
		} else {
			renamed := make([]Column, len(cols))
			for i, c := range cols {
				c.Name = cte.Columns[i]
				c.Type = c.Type.WithName(c.Name)
				renamed[i] = c
			}
			cols = renamed
		}
	}
	// The CTE body has already recorded its tables as observed.
	return &relation{name: cte.Name, columns: cols}
}

func (a *analysis) selectStmt(s *core.SelectStmt, sc *scope) []Column {
	if s == nil {
		return nil
	}
	if a.seen[s] {
		return a.results[s]
	}
	a.seen[s] = true
	sc = a.with(s.With, sc)

	var cols []Column
	var last *scope
	for i, c := range s.Cores {
		coreCols, coreScope := a.coreScoped(c, sc)
		last = coreScope
		if i == 0 {
			cols = slices.Clone(coreCols)
			continue
		}
		if len(coreCols) != len(cols) {
			a.fail(newError(c.Pos(), ErrCompoundColumns, compoundName(s.Ops[i-1])))
			continue
		}
		for j := range cols {
			cols[j].Type = SuperType(cols[j].Type, coreCols[j].Type)
		}
	}
	a.results[s] = cols

	if last != nil {
		last.aliases = cols
		for _, o := range s.OrderBy {
			a.expr(o.Expr, last)
		}
	}
	a.expr(s.Limit, sc)
	a.expr(s.Offset, sc)
	return cols
}

func compoundName(op core.CompoundOp) string {
	switch op {
	case core.OpUnionAll:
		return "UNION ALL"
	case core.OpIntersect:
		return "INTERSECT"
	case core.OpExcept:
		return "EXCEPT"
	default:
		return "UNION"
	}
}

func (a *analysis) core(c *core.SelectCore, sc *scope) []Column {
	cols, _ := a.coreScoped(c, sc)
	return cols
}

func (a *analysis) coreScoped(c *core.SelectCore, outer *scope) ([]Column, *scope) {
	sc := outer.child()
	if c.Values != nil {
		for _, row := range c.Values {
			for _, e := range row {
				a.expr(e, sc)
			}
		}
		var cols []Column
		if len(c.Values) > 0 {
			for i, e := range c.Values[0] {
				name := "column" + strconv.Itoa(i+1)
				cols = append(cols, Column{Name: name, Type: a.typeOf(e).WithName(name), Expr: e})
			}
		}
		for _, row := range c.Values[1:] {
			for i, e := range row {
				if i < len(cols) {
					cols[i].Type = SuperType(cols[i].Type, a.typeOf(e))
				}
			}
		}
		return cols, sc
	}

	a.from(c.From, sc)
	for _, rc := range c.Columns {
		a.expr(rc.Expr, sc)
	}
	a.expr(c.Where, sc)
	for _, g := range c.GroupBy {
		a.expr(g, sc)
	}
	a.expr(c.Having, sc)
	return a.resultColumns(c.Columns, sc), sc
}

func (a *analysis) from(f *core.FromClause, sc *scope) {
	if f == nil {
		return
	}
	if r := a.tableRef(f.Source, sc); r != nil {
		sc.sources = append(sc.sources, r)
	}
	for _, j := range f.Joins {
		r := a.tableRef(j.Right, sc)
		if r != nil {
			if j.Type == core.JoinRight || j.Type == core.JoinFull {
				for i, prev := range sc.sources {
					sc.sources[i] = prev.nullable()
				}
			}
			if j.Outer() {
				r = r.nullable()
			}
			sc.sources = append(sc.sources, r)
		}
		a.expr(j.On, sc)
	}
}

func (a *analysis) tableRef(ref core.TableRef, sc *scope) *relation {
	switch t := ref.(type) {
	case *core.TableName:
		return a.table(t, sc)
	case *core.DerivedTable:
		cols := a.selectStmt(t.Select, sc.parentOrSelf())
		return &relation{name: t.Alias, columns: cols}
	}
	return nil
}

func (s *scope) parentOrSelf() *scope {
	if s.parent != nil {
		return s.parent
	}
	return s
}

func (a *analysis) resultColumns(list []*core.ResultColumn, sc *scope) []Column {
	var cols []Column
	for _, rc := range list {
		switch {
		case rc.Star:
			for _, src := range sc.sources {
				cols = append(cols, src.columns...)
			}
		case rc.TableStar != "":
			found := false
			for _, src := range sc.sources {
				if strings.EqualFold(src.name, rc.TableStar) {
					cols = append(cols, src.columns...)
					found = true
					break
				}
			}
			if !found {
				a.fail(newError(rc.Pos(), ErrNoTable, rc.TableStar))
			}
		default:
			name := rc.Alias
			if name == "" {
				name = ExprName(rc.Expr)
			}
			cols = append(cols, Column{Name: name, Type: a.typeOf(rc.Expr).WithName(name), Expr: rc.Expr})
		}
	}
	return cols
}

// typeOf types an expression, reporting failures.
func (a *analysis) typeOf(expr core.Expr) core.IntermediateType {
	t, err := a.Type(expr)
	if err != nil {
		a.fail(err)
		return core.NewType(core.TypeNull).AsNullable()
	}
	return t
}

// expr resolves every column reference of an expression and analyzes its
// subqueries.
func (a *analysis) expr(expr core.Expr, sc *scope) {
	if expr == nil {
		return
	}
	core.Inspect(expr, func(n, _ core.Node) bool {
		switch v := n.(type) {
		case *core.SelectStmt:
			a.selectStmt(v, sc)
			return false
		case *core.InExpr:
			if v.Table != "" {
				a.table(&core.TableName{NodeInfo: v.NodeInfo, Name: v.Table}, sc)
			}
		case *core.ColumnRef:
			a.column(v, sc)
		}
		return true
	})
}

func (a *analysis) column(ref *core.ColumnRef, sc *scope) {
	for s := sc; s != nil; s = s.parent {
		for _, src := range s.sources {
			if ref.Table != "" && !strings.EqualFold(src.name, ref.Table) {
				continue
			}
			if t, ok := src.column(ref.Column); ok {
				a.refs[ref] = t
				return
			}
		}
		if ref.Table == "" {
			for _, c := range s.aliases {
				if strings.EqualFold(c.Name, ref.Column) {
					a.refs[ref] = c.Type
					return
				}
			}
		}
	}
	a.fail(newError(ref.Pos(), ErrNoColumn, refName(ref)))
}

// ---------- Mutations ----------

func (a *analysis) target(tn *core.TableName, sc *scope, out *Statement) *relation {
	r := a.table(tn, sc)
	if r == nil {
		return nil
	}
	out.TargetName = a.catalog.Normalize(tn.Name)
	target, err := a.SingleTable(tn)
	if err != nil {
		a.fail(err)
		return r
	}
	out.Target = target
	return r
}

func (a *analysis) insert(s *core.InsertStmt, sc *scope, out *Statement) []Column {
	sc = a.with(s.With, sc)
	target := a.target(s.Table, sc, out)
	if target == nil {
		return nil
	}
	for _, id := range s.Columns {
		if _, ok := target.column(id.Name); !ok {
			a.fail(newError(id.Pos(), ErrNoColumn, id.Name))
		}
	}
	values := sc.child()
	for _, row := range s.Values {
		for _, e := range row {
			a.expr(e, values)
		}
	}
	a.selectStmt(s.Select, sc)

	body := sc.child()
	body.sources = []*relation{target}
	if s.Upsert != nil {
		excluded := *target
		excluded.name = "excluded"
		upsert := sc.child()
		upsert.sources = []*relation{target, &excluded}
		a.sets(s.Upsert.Sets, target)
		for _, set := range s.Upsert.Sets {
			a.expr(set.Value, upsert)
		}
		a.expr(s.Upsert.Where, upsert)
	}
	for _, rc := range s.Returning {
		a.expr(rc.Expr, body)
	}
	return a.resultColumns(s.Returning, body)
}

func (a *analysis) sets(sets []*core.SetClause, target *relation) {
	for _, set := range sets {
		for _, id := range set.Columns {
			if _, ok := target.column(id.Name); !ok {
				a.fail(newError(id.Pos(), ErrNoColumn, id.Name))
			}
		}
	}
}

func (a *analysis) update(s *core.UpdateStmt, sc *scope, out *Statement) []Column {
	sc = a.with(s.With, sc)
	target := a.target(s.Table, sc, out)
	if target == nil {
		return nil
	}
	body := sc.child()
	body.sources = []*relation{target}
	a.from(s.From, body)
	a.sets(s.Sets, target)
	for _, set := range s.Sets {
		a.expr(set.Value, body)
	}
	a.expr(s.Where, body)
	for _, rc := range s.Returning {
		a.expr(rc.Expr, body)
	}
	for _, o := range s.OrderBy {
		a.expr(o.Expr, body)
	}
	a.expr(s.Limit, sc)
	a.expr(s.Offset, sc)
	return a.resultColumns(s.Returning, body)
}

func (a *analysis) delete(s *core.DeleteStmt, sc *scope, out *Statement) []Column {
	sc = a.with(s.With, sc)
	target := a.target(s.Table, sc, out)
	if target == nil {
		return nil
	}
	body := sc.child()
	body.sources = []*relation{target}
	a.expr(s.Where, body)
	for _, rc := range s.Returning {
		a.expr(rc.Expr, body)
	}
	for _, o := range s.OrderBy {
		a.expr(o.Expr, body)
	}
	a.expr(s.Limit, sc)
	a.expr(s.Offset, sc)
	return a.resultColumns(s.Returning, body)
}

func message(err error) string {
	var te *TypeError
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
