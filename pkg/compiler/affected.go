package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// write is one table modification a statement performs, directly or through
// a trigger or a foreign key action.
type write struct {
	table   string // base table, normalized
	named   string // table or view the statement names
	kind    Kind
	columns []string // assigned by UPDATE
	upsert  bool     // INSERT ... ON CONFLICT DO UPDATE
}

func (w write) key() string {
	cols := slices.Clone(w.columns)
	slices.Sort(cols)
	return fmt.Sprintf("%s|%s|%s|%t|%s", w.table, w.named, w.kind, w.upsert, strings.Join(cols, ","))
}

func writeOf(stmt core.Stmt, table, named string) write {
	w := write{table: table, named: named, kind: mutationKind(stmt)}
	switch s := stmt.(type) {
	case *core.UpdateStmt:
		w.columns = s.AssignedColumns()
	case *core.InsertStmt:
		w.upsert = s.Upsert != nil && !s.Upsert.DoNothing
	}
	return w
}

// AffectedTables returns the base tables a mutator can change: its own
// table, tables reached through foreign keys whose action modifies rows,
// and tables written by the triggers it fires. Cascades and triggers are
// followed transitively.
func (p *Program) AffectedTables(m *NamedMutator) []string {
	affected := make(map[string]bool)
	done := make(map[string]bool)
	queue := []write{writeOf(m.Stmt, m.Table, m.Target)}

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if done[w.key()] {
			continue
		}
		done[w.key()] = true
		affected[w.table] = true

		queue = append(queue, p.cascades(w)...)
		// Triggers on a view fire when the statement names the view.
		names := []string{w.table}
		if w.named != "" && w.named != w.table {
			names = append(names, w.named)
		}
		for _, name := range names {
			for _, tr := range p.Catalog.TriggersOn(name) {
				if fires(tr.Event, tr.FiresOnUpdateOf(w.columns), w) {
					queue = append(queue, p.triggers[tr.Name]...)
				}
			}
		}
	}

	out := make([]string, 0, len(affected))
	for t := range affected {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// fires reports whether a trigger on event fires for the write.
func fires(event core.TriggerEvent, firesOnUpdate bool, w write) bool {
	switch w.kind {
	case KindDelete:
		return event == core.TriggerDelete
	case KindInsert:
		return event == core.TriggerInsert || (w.upsert && event == core.TriggerUpdate)
	case KindUpdate:
		return firesOnUpdate
	}
	return false
}

// cascades turns the foreign key actions triggered by a DELETE or UPDATE
// into writes on the referencing tables. CASCADE on delete deletes the
// referencing rows; every other modifying action updates the key columns.
func (p *Program) cascades(w write) []write {
	var event core.TriggerEvent
	switch w.kind {
	case KindDelete:
		event = core.TriggerDelete
	case KindUpdate:
		event = core.TriggerUpdate
	default:
		return nil
	}
	var out []write
	for _, t := range p.Catalog.ReferencingTables(w.table, event) {
		name := p.Catalog.Normalize(t.Name)
		for _, fk := range t.ForeignKeys {
			if fk.Table != w.table {
				continue
			}
			action := fk.OnDelete
			if event == core.TriggerUpdate {
				action = fk.OnUpdate
			}
			switch {
			case !action.Modifies():
			case action == core.FKCascade && event == core.TriggerDelete:
				out = append(out, write{table: name, named: name, kind: KindDelete})
			default:
				out = append(out, write{table: name, named: name, kind: KindUpdate, columns: fk.Columns})
			}
		}
	}
	return out
}

// AffectedQueries returns the queries whose result sets a mutator can
// change: those observing any table in AffectedTables.
func (p *Program) AffectedQueries(m *NamedMutator) []*NamedQuery {
	tables := p.AffectedTables(m)
	var out []*NamedQuery
	for _, q := range p.Queries {
		for _, t := range q.Tables {
			if _, ok := slices.BinarySearch(tables, t); ok {
				out = append(out, q)
				break
			}
		}
	}
	return out
}
