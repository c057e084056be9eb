package sqldriver_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/driver"
	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T, opts ...sqldriver.Option) (*sqldriver.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	opts = append(opts, sqldriver.WithLogger(testutil.NewTestLogger(t)))
	d, err := sqldriver.New(db, opts...)
	require.NoError(t, err)
	return d, mock
}

func id(n uint32) *uint32 { return &n }

func bindLong(n int64) driver.Binder {
	return func(s driver.PreparedStatement) error {
		s.BindLong(1, &n)
		return nil
	}
}

func TestExecuteCachesStatements(t *testing.T) {
	d, mock := newDriver(t)
	ctx := context.Background()

	prep := mock.ExpectPrepare("DELETE FROM player WHERE id = ?")
	prep.ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := d.Execute(ctx, id(7), "DELETE FROM player WHERE id = ?", 1, bindLong(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, d.CacheLen())

	n, err = d.Execute(ctx, id(7), "DELETE FROM player WHERE id = ?", 1, bindLong(2))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, d.CacheLen())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvictionClosesStatements(t *testing.T) {
	d, mock := newDriver(t, sqldriver.WithCacheSize(1))
	ctx := context.Background()

	mock.ExpectPrepare("DELETE FROM a").WillBeClosed().
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("DELETE FROM b").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := d.Execute(ctx, id(1), "DELETE FROM a", 0, nil)
	require.NoError(t, err)
	_, err = d.Execute(ctx, id(2), "DELETE FROM b", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, d.CacheLen())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUncachedExecute(t *testing.T) {
	d, mock := newDriver(t)
	mock.ExpectExec("DELETE FROM player WHERE id IN (?, ?)").
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := d.Execute(context.Background(), nil, "DELETE FROM player WHERE id IN (?, ?)", 2, func(s driver.PreparedStatement) error {
		for i, v := range []int64{1, 2} {
			if err := driver.Bind(s, i+1, core.BindLong, v); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Zero(t, d.CacheLen())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryCursor(t *testing.T) {
	d, mock := newDriver(t)
	rows := sqlmock.NewRows([]string{"id", "name", "score", "data"}).
		AddRow(int64(1), "ann", 1.5, []byte{1}).
		AddRow([]byte("2"), nil, int64(3), nil)
	mock.ExpectQuery("SELECT id, name, score, data FROM player").WillReturnRows(rows)

	c, err := d.ExecuteQuery(context.Background(), nil, "SELECT id, name, score, data FROM player", 0, nil)
	require.NoError(t, err)

	require.True(t, c.Next())
	assert.Equal(t, int64(1), *c.Long(0))
	assert.Equal(t, "ann", *c.String(1))
	assert.InDelta(t, 1.5, *c.Double(2), 0)
	assert.Equal(t, []byte{1}, c.Bytes(3))

	require.True(t, c.Next())
	assert.Equal(t, int64(2), *c.Long(0))
	assert.Nil(t, c.String(1))
	assert.InDelta(t, 3.0, *c.Double(2), 0)
	assert.Nil(t, c.Bytes(3))

	assert.False(t, c.Next())
	require.NoError(t, c.Err())
	require.NoError(t, c.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorConversionError(t *testing.T) {
	d, mock := newDriver(t)
	mock.ExpectQuery("SELECT name FROM player").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))

	c, err := d.ExecuteQuery(context.Background(), nil, "SELECT name FROM player", 0, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.Next())
	assert.Nil(t, c.Long(0))
	require.Error(t, c.Err())
	assert.Contains(t, c.Err().Error(), "cannot read string as long")
}

func TestCursorRejectsFractionalLong(t *testing.T) {
	d, mock := newDriver(t)
	mock.ExpectQuery("SELECT rating FROM player").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(4.0).AddRow(3.5))

	c, err := d.ExecuteQuery(context.Background(), nil, "SELECT rating FROM player", 0, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.Next())
	assert.Equal(t, int64(4), *c.Long(0))
	require.NoError(t, c.Err())

	require.True(t, c.Next())
	assert.Nil(t, c.Long(0))
	require.Error(t, c.Err())
	assert.Contains(t, c.Err().Error(), "cannot read float64 as long")
}

func TestTransactions(t *testing.T) {
	d, mock := newDriver(t)
	ctx := driver.WithTask(context.Background())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO player (name) VALUES (?)").WithArgs("ann").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outer, err := d.NewTransaction(ctx)
	require.NoError(t, err)
	inner, err := d.NewTransaction(ctx)
	require.NoError(t, err)
	assert.Same(t, inner, d.CurrentTransaction(ctx))
	assert.Nil(t, d.CurrentTransaction(context.Background()))

	_, err = d.Execute(ctx, nil, "INSERT INTO player (name) VALUES (?)", 1, func(s driver.PreparedStatement) error {
		name := "ann"
		s.BindString(1, &name)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, inner.SetSuccessful(ctx))
	_, err = inner.End(ctx)
	require.NoError(t, err)
	require.NoError(t, outer.SetSuccessful(ctx))
	c, err := outer.End(ctx)
	require.NoError(t, err)
	assert.True(t, c.Committed)
	assert.Nil(t, d.CurrentTransaction(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollback(t *testing.T) {
	d, mock := newDriver(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := d.NewTransaction(ctx)
	require.NoError(t, err)
	c, err := tx.End(ctx)
	require.NoError(t, err)
	assert.False(t, c.Committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBinderError(t *testing.T) {
	d, _ := newDriver(t)
	_, err := d.Execute(context.Background(), nil, "SELECT 1", 1, func(s driver.PreparedStatement) error {
		return driver.Bind(s, 1, core.BindLong, "x")
	})
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	d, mock := newDriver(t)
	mock.ExpectPrepare("SELECT 1").WillBeClosed().
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	_, err := d.Execute(context.Background(), id(1), "SELECT 1", 0, nil)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.Execute(context.Background(), nil, "SELECT 1", 0, nil)
	require.ErrorIs(t, err, driver.ErrClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := sqldriver.Open(context.Background(), sqldriver.Config{Type: "oracle"}, nil)
	var unknown *sqldriver.UnknownBackendError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)

	_, err = sqldriver.Open(context.Background(), sqldriver.Config{}, nil)
	require.Error(t, err)
}

func TestDecodeOptions(t *testing.T) {
	var opts struct {
		Size int    `mapstructure:"size"`
		Name string `mapstructure:"name"`
	}
	require.NoError(t, sqldriver.DecodeOptions(map[string]any{"size": "3", "name": "x"}, &opts))
	assert.Equal(t, 3, opts.Size)
	assert.Equal(t, "x", opts.Name)

	require.Error(t, sqldriver.DecodeOptions(map[string]any{"other": 1}, &opts))
}
