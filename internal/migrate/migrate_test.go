package migrate_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/migrate"
	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fixture() *manifest.Manifest {
	return &manifest.Manifest{
		Dialect: "sqlite",
		Version: 3,
		Migrations: []manifest.Migration{
			{Version: 1, File: "1.sqm", Statements: []string{"CREATE TABLE tag (name TEXT NOT NULL)"}},
			{Version: 2, File: "2.sqm", Statements: []string{
				"CREATE TABLE note (body TEXT NOT NULL)",
				"INSERT INTO note (body) VALUES ('first')",
			}},
		},
	}
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n == 1
}

func TestUp(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	m, err := migrate.New(db, "sqlite", fixture(), testutil.NewTestLogger(t))
	require.NoError(t, err)

	v, err := m.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	results, err := m.Up(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1.sqm", results[0].File)
	assert.Equal(t, int64(2), results[1].Version)
	assert.True(t, tableExists(t, db, "tag"))
	assert.True(t, tableExists(t, db, "note"))

	v, err = m.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	results, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStatus(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	mf := fixture()

	first, err := migrate.New(db, "sqlite", &manifest.Manifest{Dialect: "sqlite", Migrations: mf.Migrations[:1]}, nil)
	require.NoError(t, err)
	_, err = first.Up(ctx)
	require.NoError(t, err)

	m, err := migrate.New(db, "sqlite", mf, nil)
	require.NoError(t, err)
	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[1].Applied)
	assert.Equal(t, "2.sqm", statuses[1].File)
}

func TestBaseline(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	m, err := migrate.New(db, "sqlite", fixture(), nil)
	require.NoError(t, err)

	results, err := m.Baseline(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.False(t, tableExists(t, db, "tag"))

	v, err := m.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestNew(t *testing.T) {
	db := openDB(t)

	_, err := migrate.New(db, "duckdb", fixture(), nil)
	require.Error(t, err)

	_, err = migrate.New(db, "sqlite", &manifest.Manifest{Migrations: []manifest.Migration{{Version: 0, File: "0.sqm"}}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.sqm")
}

func TestNoMigrations(t *testing.T) {
	m, err := migrate.New(openDB(t), "sqlite", &manifest.Manifest{Dialect: "sqlite"}, nil)
	require.NoError(t, err)

	results, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)

	v, err := m.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
