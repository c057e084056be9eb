package postgres

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnConfig(t *testing.T) {
	var opts Options
	require.NoError(t, sqldriver.DecodeOptions(map[string]any{
		"search_path":      "app,public",
		"application_name": "leapquery",
		"max_open_conns":   "4",
	}, &opts))
	assert.Equal(t, 4, opts.MaxOpenConns)

	c, err := ConnConfig("postgres://user:pw@db.local:6543/app?sslmode=disable", opts)
	require.NoError(t, err)
	assert.Equal(t, "db.local", c.Host)
	assert.Equal(t, uint16(6543), c.Port)
	assert.Equal(t, "app", c.Database)
	assert.Equal(t, "app,public", c.RuntimeParams["search_path"])
	assert.Equal(t, "leapquery", c.RuntimeParams["application_name"])

	_, err = ConnConfig("postgres://%zz", opts)
	require.Error(t, err)
}

func TestRegistered(t *testing.T) {
	b, ok := sqldriver.Get("postgres")
	require.True(t, ok)
	assert.Equal(t, "postgresql", b.Dialect())
}
