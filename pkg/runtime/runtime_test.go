package runtime_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/driver"
	"github.com/leapstack-labs/leapquery/pkg/driver/logdriver"
	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
	"github.com/leapstack-labs/leapquery/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/leapquery/pkg/drivers/sqlite"
)

const playerSQ = `
CREATE TABLE team (
  name TEXT NOT NULL PRIMARY KEY
);

CREATE TABLE player (
  id INTEGER NOT NULL PRIMARY KEY,
  name TEXT NOT NULL,
  team TEXT REFERENCES team(name) ON DELETE CASCADE
);

allPlayers:
SELECT * FROM player ORDER BY id;

byTeam:
SELECT * FROM player WHERE team = ? ORDER BY id;

byName:
SELECT id, name FROM player WHERE name = ?;

teams:
SELECT name FROM team;

insertTeam:
INSERT INTO team (name) VALUES (?);

deleteTeam:
DELETE FROM team WHERE name = ?;

insertPlayer:
INSERT INTO player (name, team) VALUES (?, ?);
`

type fixture struct {
	db  *runtime.Database
	log *bytes.Buffer
}

func setup(t *testing.T, files map[string]string) fixture {
	t.Helper()
	c := compiler.NewContext(sqlite.SQLite, compiler.WithLogger(testutil.NewTestLogger(t)))
	for name, src := range files {
		c.AddFile(name, src)
	}
	p, err := compiler.Compile(c)
	require.NoError(t, err)

	inner, err := sqldriver.Open(context.Background(), sqldriver.Config{Type: "sqlite"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	var buf bytes.Buffer
	d := logdriver.New(inner, slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelInfo)

	db, err := runtime.FromProgram(d, p, runtime.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Schema().Create(context.Background()))
	buf.Reset()
	return fixture{db: db, log: &buf}
}

func newPlayers(t *testing.T) fixture {
	t.Helper()
	f := setup(t, map[string]string{"Player.sq": playerSQ})
	ctx := context.Background()
	for _, team := range []string{"red", "blue"} {
		_, err := f.db.Execute(ctx, "insertTeam", team)
		require.NoError(t, err)
	}
	f.log.Reset()
	return f
}

func counter() (runtime.Listener, *int) {
	n := 0
	return runtime.NewListener(func() { n++ }), &n
}

func TestQueryExecution(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	_, err := f.db.Execute(ctx, "insertPlayer", "ann", "red")
	require.NoError(t, err)
	_, err = f.db.Execute(ctx, "insertPlayer", "bob", nil)
	require.NoError(t, err)

	all, err := f.db.Query("allPlayers")
	require.NoError(t, err)
	rows, err := all.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []runtime.Row{
		{"id": int64(1), "name": "ann", "team": "red"},
		{"id": int64(2), "name": "bob", "team": nil},
	}, rows)

	one, err := f.db.Query("byName", "bob")
	require.NoError(t, err)
	row, err := one.ExecuteAsOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, runtime.Row{"id": int64(2), "name": "bob"}, row)
}

func TestExecuteAsOneOrNull(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	q, err := f.db.Query("byTeam", "red")
	require.NoError(t, err)

	row, err := q.ExecuteAsOneOrNull(ctx)
	require.NoError(t, err)
	assert.Nil(t, row)
	_, err = q.ExecuteAsOne(ctx)
	require.ErrorIs(t, err, runtime.ErrNoSuchElement)

	_, err = f.db.Execute(ctx, "insertPlayer", "ann", "red")
	require.NoError(t, err)
	row, err = q.ExecuteAsOneOrNull(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "ann", (*row)["name"])

	_, err = f.db.Execute(ctx, "insertPlayer", "bob", "red")
	require.NoError(t, err)
	_, err = q.ExecuteAsOneOrNull(ctx)
	require.ErrorIs(t, err, runtime.ErrMultipleRows)
	_, err = q.ExecuteAsOne(ctx)
	require.ErrorIs(t, err, runtime.ErrMultipleRows)
}

func TestQueryErrors(t *testing.T) {
	f := newPlayers(t)

	_, err := f.db.Query("insertPlayer", "ann", "red")
	require.ErrorIs(t, err, runtime.ErrNotQuery)

	_, err = f.db.Query("byTeam")
	require.Error(t, err)

	_, err = f.db.Query("missing")
	require.Error(t, err)
}

func TestListenerTracking(t *testing.T) {
	f := newPlayers(t)
	q, err := f.db.Query("allPlayers")
	require.NoError(t, err)

	listeners := make([]runtime.Listener, 3)
	for i := range listeners {
		listeners[i], _ = counter()
		q.AddListener(listeners[i])
	}
	assert.True(t, q.Live())
	assert.Equal(t, 1, f.db.Registry().Len())

	for _, l := range listeners[1:] {
		q.RemoveListener(l)
	}
	assert.True(t, q.Live())

	q.RemoveListener(listeners[0])
	assert.False(t, q.Live())
	assert.Zero(t, f.db.Registry().Len())
}

func TestMutationNotifiesAffectedQueries(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	players, err := f.db.Query("byTeam", "red")
	require.NoError(t, err)
	teams, err := f.db.Query("teams")
	require.NoError(t, err)

	pl, playerCount := counter()
	tl, teamCount := counter()
	players.AddListener(pl)
	teams.AddListener(tl)

	_, err = f.db.Execute(ctx, "insertPlayer", "ann", "red")
	require.NoError(t, err)
	assert.Equal(t, 1, *playerCount)
	assert.Zero(t, *teamCount)

	// The cascade deletes players too.
	_, err = f.db.Execute(ctx, "deleteTeam", "red")
	require.NoError(t, err)
	assert.Equal(t, 2, *playerCount)
	assert.Equal(t, 1, *teamCount)

	rows, err := players.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNotifyDataChanged(t *testing.T) {
	f := newPlayers(t)
	a, err := f.db.Query("allPlayers")
	require.NoError(t, err)
	b, err := f.db.Query("allPlayers")
	require.NoError(t, err)

	la, na := counter()
	lb, nb := counter()
	a.AddListener(la)
	b.AddListener(lb)

	a.NotifyDataChanged()
	assert.Equal(t, 1, *na)
	assert.Zero(t, *nb)
}

func TestListenerRemovedDuringDelivery(t *testing.T) {
	f := newPlayers(t)
	q, err := f.db.Query("allPlayers")
	require.NoError(t, err)

	second, calls := counter()
	first := runtime.NewListener(func() { q.RemoveListener(second) })
	q.AddListener(first)
	q.AddListener(second)

	q.NotifyDataChanged()
	assert.Zero(t, *calls)
}

func TestNestedTransactionCommit(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	players, err := f.db.Query("allPlayers")
	require.NoError(t, err)
	teams, err := f.db.Query("teams")
	require.NoError(t, err)
	var events []string
	players.AddListener(runtime.NewListener(func() { events = append(events, "players") }))
	teams.AddListener(runtime.NewListener(func() { events = append(events, "teams") }))

	err = f.db.Transaction(ctx, func(ctx context.Context, tx runtime.Tx) error {
		require.NoError(t, tx.AfterCommit(ctx, func() { events = append(events, "outer hook") }))
		if _, err := f.db.Execute(ctx, "insertPlayer", "ann", "red"); err != nil {
			return err
		}
		err := f.db.Transaction(ctx, func(ctx context.Context, inner runtime.Tx) error {
			require.NoError(t, inner.AfterCommit(ctx, func() { events = append(events, "inner hook") }))
			_, err := f.db.Execute(ctx, "insertTeam", "green")
			return err
		})
		assert.Empty(t, events)
		return err
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, []string{"outer hook", "inner hook"}, events[:2])
	assert.ElementsMatch(t, []string{"players", "teams"}, events[2:])
	assert.Equal(t, 2, strings.Count(f.log.String(), "TRANSACTION BEGIN"))
	assert.Equal(t, 1, strings.Count(f.log.String(), "TRANSACTION COMMIT"))

	rows, err := players.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	rows, err = teams.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRollback(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	q, err := f.db.Query("allPlayers")
	require.NoError(t, err)
	l, notified := counter()
	q.AddListener(l)

	rolledBack := false
	err = f.db.Transaction(ctx, func(ctx context.Context, tx runtime.Tx) error {
		require.NoError(t, tx.AfterRollback(ctx, func() { rolledBack = true }))
		require.NoError(t, tx.AfterCommit(ctx, func() { t.Error("after-commit hook ran") }))
		if _, err := f.db.Execute(ctx, "insertPlayer", "ann", "red"); err != nil {
			return err
		}
		return tx.Rollback(ctx)
	})
	require.NoError(t, err)
	assert.True(t, rolledBack)
	assert.Zero(t, *notified)
	assert.Contains(t, f.log.String(), "TRANSACTION ROLLBACK")

	rows, err := q.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFailedBodyRollsBack(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	n, err := runtime.TransactionWithResult(ctx, f.db.Transacter, func(ctx context.Context, _ runtime.Tx) (int64, error) {
		n, err := f.db.Execute(ctx, "insertPlayer", "ann", "red")
		require.NoError(t, err)
		_, err = f.db.Execute(ctx, "insertPlayer", "bob", "green")
		return n, err
	})
	require.Error(t, err)
	assert.Equal(t, int64(1), n)

	q, err := f.db.Query("allPlayers")
	require.NoError(t, err)
	rows, err := q.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFailedChildRollsBackParent(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	err := f.db.Transaction(ctx, func(ctx context.Context, _ runtime.Tx) error {
		if _, err := f.db.Execute(ctx, "insertPlayer", "ann", "red"); err != nil {
			return err
		}
		// The child's rollback is swallowed but dooms the parent.
		return f.db.Transaction(ctx, func(ctx context.Context, tx runtime.Tx) error {
			return tx.Rollback(ctx)
		})
	})
	require.NoError(t, err)

	q, err := f.db.Query("allPlayers")
	require.NoError(t, err)
	rows, err := q.ExecuteAsList(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestThreadConfinement(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	err := f.db.Transaction(ctx, func(ctx context.Context, tx runtime.Tx) error {
		errs := make(chan error, 1)
		go func() {
			other := driver.WithTask(context.Background())
			errs <- tx.AfterRollback(other, func() {})
		}()
		require.ErrorIs(t, <-errs, runtime.ErrThreadConfinement)
		require.ErrorIs(t, tx.Rollback(driver.WithTask(ctx)), runtime.ErrThreadConfinement)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionMisuse(t *testing.T) {
	f := newPlayers(t)
	ctx := context.Background()

	t.Run("no enclosing", func(t *testing.T) {
		err := f.db.Transaction(ctx, func(ctx context.Context, _ runtime.Tx) error {
			return f.db.Transaction(ctx, func(context.Context, runtime.Tx) error {
				t.Error("body ran")
				return nil
			}, runtime.NoEnclosing())
		})
		require.ErrorIs(t, err, runtime.ErrTransactionState)
	})

	t.Run("end out of order", func(t *testing.T) {
		outer, err := f.db.Begin(ctx)
		require.NoError(t, err)
		inner, err := f.db.Begin(ctx)
		require.NoError(t, err)
		require.ErrorIs(t, f.db.End(ctx, outer, true), runtime.ErrTransactionState)
		require.NoError(t, f.db.End(ctx, inner, true))
		require.NoError(t, f.db.End(ctx, outer, true))
	})

	t.Run("rejected end leaves outer unmarked", func(t *testing.T) {
		outer, err := f.db.Begin(ctx)
		require.NoError(t, err)
		inner, err := f.db.Begin(ctx)
		require.NoError(t, err)
		_, err = f.db.Execute(ctx, "insertPlayer", "zed", "red")
		require.NoError(t, err)

		require.ErrorIs(t, f.db.End(ctx, outer, true), runtime.ErrTransactionState)
		assert.False(t, outer.Successful())
		require.NoError(t, f.db.End(ctx, inner, true))
		require.NoError(t, f.db.End(ctx, outer, false))

		q, err := f.db.Query("byName", "zed")
		require.NoError(t, err)
		rows, err := q.ExecuteAsList(ctx)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("end twice", func(t *testing.T) {
		tx, err := f.db.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, f.db.End(ctx, tx, false))
		require.ErrorIs(t, f.db.End(ctx, tx, false), runtime.ErrTransactionState)
		require.ErrorIs(t, tx.AfterCommit(ctx, func() {}), runtime.ErrTransactionState)
	})
}

func TestNotifyQueriesOutsideTransaction(t *testing.T) {
	f := newPlayers(t)
	q, err := f.db.Query("teams")
	require.NoError(t, err)
	l, n := counter()
	q.AddListener(l)

	require.NoError(t, f.db.NotifyQueries(context.Background(), 1, func() []uint32 {
		return []uint32{q.Statement(), q.Statement()}
	}))
	assert.Equal(t, 1, *n)
}

func TestWatch(t *testing.T) {
	f := newPlayers(t)
	ctx, cancel := context.WithCancel(context.Background())

	q, err := f.db.Query("byTeam", "blue")
	require.NoError(t, err)
	results := runtime.Watch(ctx, q)

	next := func() runtime.Result[runtime.Row] {
		t.Helper()
		select {
		case r := <-results:
			require.NoError(t, r.Err)
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no result")
			return runtime.Result[runtime.Row]{}
		}
	}

	assert.Empty(t, next().Rows)
	_, err = f.db.Execute(context.Background(), "insertPlayer", "cy", "blue")
	require.NoError(t, err)
	assert.Len(t, next().Rows, 1)

	cancel()
	for range results {
	}
	assert.False(t, q.Live())
}

func TestMigrate(t *testing.T) {
	f := setup(t, map[string]string{
		"Item.sq": `
CREATE TABLE item (
  id INTEGER NOT NULL PRIMARY KEY,
  label TEXT NOT NULL
);

labels:
SELECT label FROM item;
`,
		"1.sqm": `CREATE TABLE tag (name TEXT NOT NULL);`,
		"2.sqm": `CREATE TABLE note (body TEXT NOT NULL);`,
	})
	ctx := context.Background()
	insert := func(table string) error {
		_, err := f.db.Driver().Execute(ctx, nil, "INSERT INTO "+table+" VALUES ('x')", 0, nil)
		return err
	}

	s := f.db.Schema()
	assert.Equal(t, 3, s.Version())
	require.Error(t, insert("tag"))

	require.NoError(t, s.Migrate(ctx, 1, 2))
	require.NoError(t, insert("tag"))
	require.Error(t, insert("note"))

	require.NoError(t, s.Migrate(ctx, 2, 3))
	require.NoError(t, insert("note"))

	require.Error(t, s.Migrate(ctx, 3, 2))
	require.NoError(t, s.Migrate(ctx, 3, 3))
}
