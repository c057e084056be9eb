package logdriver_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/driver"
	"github.com/leapstack-labs/leapquery/pkg/driver/logdriver"
	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) (*logdriver.Driver, sqlmock.Sqlmock, *bytes.Buffer) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	inner, err := sqldriver.New(db)
	require.NoError(t, err)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logdriver.New(inner, logger, slog.LevelInfo), mock, &buf
}

func TestLogsStatementsAndParameters(t *testing.T) {
	d, mock, buf := newDriver(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO player VALUES (?, ?)").
		WithArgs(int64(1), "ann").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT name FROM player").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))

	_, err := d.Execute(ctx, nil, "INSERT INTO player VALUES (?, ?)", 2, func(s driver.PreparedStatement) error {
		n, name := int64(1), "ann"
		s.BindLong(1, &n)
		s.BindString(2, &name)
		return nil
	})
	require.NoError(t, err)

	c, err := d.ExecuteQuery(ctx, nil, "SELECT name FROM player", 0, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	out := buf.String()
	assert.Contains(t, out, "msg=EXECUTE")
	assert.Contains(t, out, "INSERT INTO player VALUES (?, ?)")
	assert.Contains(t, out, "[1 ann]")
	assert.Contains(t, out, "msg=QUERY")
	assert.NotContains(t, out, "params=[]")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogsTransactions(t *testing.T) {
	d, mock, buf := newDriver(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectClose()

	tx, err := d.NewTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetSuccessful(ctx))
	c, err := tx.End(ctx)
	require.NoError(t, err)
	for _, fn := range c.AfterCommit {
		fn()
	}
	require.NoError(t, d.Close())

	out := buf.String()
	assert.Contains(t, out, "TRANSACTION BEGIN")
	assert.Contains(t, out, "TRANSACTION COMMIT")
	assert.NotContains(t, out, "TRANSACTION ROLLBACK")
	assert.Contains(t, out, "CLOSE CONNECTION")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogsBindErrors(t *testing.T) {
	d, _, buf := newDriver(t)
	_, err := d.Execute(context.Background(), nil, "SELECT ?", 1, func(s driver.PreparedStatement) error {
		return driver.Bind(s, 1, core.BindLong, "not a number")
	})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "bind_error")
}
