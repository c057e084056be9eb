package postgres

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectRegistration(t *testing.T) {
	for _, name := range []string{"postgresql", "postgres", "PG"} {
		d, ok := dialect.Get(name)
		require.True(t, ok, name)
		assert.Same(t, Postgres, d)
	}
	assert.Equal(t, "$4", Postgres.FormatPlaceholder(4))
}

func TestColumnTypes(t *testing.T) {
	tests := []struct {
		decl string
		want core.DialectType
	}{
		{"smallint", SmallInt},
		{"INT", Integer},
		{"SERIAL", Integer},
		{"BIGINT", BigInt},
		{"int8", BigInt},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			got, ok := Postgres.ColumnType(tt.decl)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	_, ok := Postgres.ColumnType("TEXT")
	assert.False(t, ok)
	assert.False(t, Postgres.HasFunction("last_insert_id"))
}
