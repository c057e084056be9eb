package compiler_test

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mutator(t *testing.T, p *compiler.Program, name string) *compiler.NamedMutator {
	t.Helper()
	s, err := p.Lookup(name)
	require.NoError(t, err)
	m, ok := p.Mutator(s.ID)
	require.True(t, ok, "%s is not a mutator", name)
	return m
}

func affectedNames(p *compiler.Program, m *compiler.NamedMutator) []string {
	var out []string
	for _, q := range p.AffectedQueries(m) {
		out = append(out, q.Name)
	}
	return out
}

func TestForeignKeyCascade(t *testing.T) {
	p := mustCompile(t, map[string]string{"Data.sq": `
CREATE TABLE a (id INTEGER NOT NULL PRIMARY KEY);
CREATE TABLE b (a_id INTEGER REFERENCES a(id) ON DELETE CASCADE);
CREATE TABLE c (a_id INTEGER REFERENCES a(id) ON DELETE RESTRICT ON UPDATE SET NULL);
CREATE TABLE d (b_id INTEGER REFERENCES b(a_id) ON DELETE SET DEFAULT);

selectB:
SELECT * FROM b;

selectC:
SELECT * FROM c;

selectD:
SELECT * FROM d;

deleteA:
DELETE FROM a WHERE id = ?;

updateA:
UPDATE a SET id = ? WHERE id = ?;

insertA:
INSERT INTO a VALUES (?);
`})

	// b cascades, d follows b transitively, c restricts.
	assert.Equal(t, []string{"selectB", "selectD"}, affectedNames(p, mutator(t, p, "deleteA")))
	assert.Equal(t, []string{"a", "b", "d"}, p.AffectedTables(mutator(t, p, "deleteA")))

	assert.Equal(t, []string{"selectC"}, affectedNames(p, mutator(t, p, "updateA")))
	assert.Empty(t, affectedNames(p, mutator(t, p, "insertA")))
}

func TestTriggerOnInsert(t *testing.T) {
	p := mustCompile(t, map[string]string{"Data.sq": `
CREATE TABLE data (id INTEGER NOT NULL PRIMARY KEY, value TEXT);
CREATE TABLE data2 (id INTEGER NOT NULL PRIMARY KEY, value TEXT);

CREATE TRIGGER copy BEFORE INSERT ON data
BEGIN
  INSERT INTO data2 VALUES (new.id, new.value);
END;

selectData2:
SELECT * FROM data2;

insertData:
INSERT INTO data VALUES (?, ?);

deleteData:
DELETE FROM data WHERE id = ?;
`})

	insert := mutator(t, p, "insertData")
	assert.Equal(t, []string{"selectData2"}, affectedNames(p, insert))
	assert.Equal(t, []uint32{compiler.StatementID("Data.sq", "selectData2")}, insert.Affected)
	assert.Empty(t, affectedNames(p, mutator(t, p, "deleteData")))
}

func TestTriggerChainsAndColumns(t *testing.T) {
	p := mustCompile(t, map[string]string{"Data.sq": `
CREATE TABLE a (id INTEGER NOT NULL PRIMARY KEY, x TEXT, y TEXT);
CREATE TABLE b (id INTEGER);
CREATE TABLE c (id INTEGER);
CREATE TABLE log (msg TEXT);

CREATE TRIGGER a_x AFTER UPDATE OF x ON a
BEGIN
  UPDATE b SET id = new.id;
END;

CREATE TRIGGER b_any AFTER UPDATE ON b
BEGIN
  DELETE FROM c;
END;

CREATE TRIGGER c_gone AFTER DELETE ON c
BEGIN
  INSERT INTO log VALUES ('gone');
END;

selectLog:
SELECT * FROM log;

selectB:
SELECT * FROM b;

updateX:
UPDATE a SET x = ? WHERE id = ?;

updateY:
UPDATE a SET y = ? WHERE id = ?;
`})

	assert.Equal(t, []string{"a", "b", "c", "log"}, p.AffectedTables(mutator(t, p, "updateX")))
	assert.ElementsMatch(t, []string{"selectLog", "selectB"}, affectedNames(p, mutator(t, p, "updateX")))
	assert.Equal(t, []string{"a"}, p.AffectedTables(mutator(t, p, "updateY")))
}

func TestUpsertFiresUpdateTriggers(t *testing.T) {
	p := mustCompile(t, map[string]string{"Data.sq": `
CREATE TABLE a (id INTEGER NOT NULL PRIMARY KEY, x TEXT);
CREATE TABLE audit (id INTEGER);

CREATE TRIGGER a_updated AFTER UPDATE ON a
BEGIN
  INSERT INTO audit VALUES (new.id);
END;

selectAudit:
SELECT * FROM audit;

upsert:
INSERT INTO a VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET x = excluded.x;

insertIgnore:
INSERT INTO a VALUES (?, ?) ON CONFLICT DO NOTHING;
`})

	assert.Equal(t, []string{"selectAudit"}, affectedNames(p, mutator(t, p, "upsert")))
	assert.Empty(t, affectedNames(p, mutator(t, p, "insertIgnore")))
}

func TestViewTargetTriggers(t *testing.T) {
	p := mustCompile(t, map[string]string{"Data.sq": `
CREATE TABLE item (id INTEGER NOT NULL PRIMARY KEY, name TEXT);
CREATE TABLE history (name TEXT);
CREATE VIEW items AS SELECT id, name FROM item;

CREATE TRIGGER items_delete INSTEAD OF DELETE ON items
BEGIN
  INSERT INTO history VALUES (old.name);
END;

selectHistory:
SELECT * FROM history;

selectItems:
SELECT * FROM items;

deleteViaView:
DELETE FROM items WHERE id = ?;

deleteDirect:
DELETE FROM item WHERE id = ?;
`})

	via := mutator(t, p, "deleteViaView")
	assert.Equal(t, "item", via.Table)
	assert.Equal(t, "items", via.Target)
	assert.Equal(t, []string{"selectHistory", "selectItems"}, affectedNames(p, via))
	assert.Equal(t, []string{"selectItems"}, affectedNames(p, mutator(t, p, "deleteDirect")))
}

func TestUnresolvableTriggerTarget(t *testing.T) {
	_, err := compileFiles(t, map[string]string{"Data.sq": `
CREATE TABLE a (id INTEGER);
CREATE TABLE b (id INTEGER);
CREATE VIEW ab AS SELECT a.id FROM a JOIN b ON a.id = b.id;

CREATE TRIGGER t AFTER INSERT ON a
BEGIN
  DELETE FROM ab;
END;
`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Data.sq line 8:15 - Table ab resolves to 2 tables")
}
