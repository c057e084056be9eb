package mysql

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverConfig(t *testing.T) {
	var opts Options
	require.NoError(t, sqldriver.DecodeOptions(map[string]any{
		"parse_time": true,
		"timeout":    "3s",
	}, &opts))

	c, err := DriverConfig("app:secret@tcp(db.local:3306)/players", opts)
	require.NoError(t, err)
	assert.Equal(t, "app", c.User)
	assert.Equal(t, "db.local:3306", c.Addr)
	assert.Equal(t, "players", c.DBName)
	assert.True(t, c.ParseTime)
	assert.Equal(t, 3*time.Second, c.Timeout)

	_, err = DriverConfig("not a dsn", opts)
	require.Error(t, err)
}

func TestRegistered(t *testing.T) {
	b, ok := sqldriver.Get("mysql")
	require.True(t, ok)
	assert.Equal(t, "mysql", b.Dialect())
}
