package mysql

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectRegistration(t *testing.T) {
	d, ok := dialect.Get("mysql")
	require.True(t, ok, "mysql dialect should be registered")
	assert.Same(t, MySQL, d)
	assert.Equal(t, "?", d.FormatPlaceholder(2))
	assert.Equal(t, "`order`", d.QuoteIdentifierIfNeeded("order"))
}

func TestColumnTypes(t *testing.T) {
	tests := []struct {
		decl string
		want core.DialectType
	}{
		{"TINYINT", TinyInt},
		{"tinyint(1)", TinyIntBool},
		{"TINYINT(4)", TinyInt},
		{"BOOLEAN", TinyIntBool},
		{"SMALLINT", SmallInt},
		{"INT(11)", Integer},
		{"INTEGER", Integer},
		{"BIGINT", BigInt},
		{"BIT", Bit},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			got, ok := MySQL.ColumnType(tt.decl)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := MySQL.ColumnType("VARCHAR(20)")
	assert.False(t, ok)
}

func TestFunctions(t *testing.T) {
	for _, fn := range []string{"greatest", "concat", "last_insert_id", "month", "year", "minute", "sin", "cos", "tan"} {
		assert.True(t, MySQL.HasFunction(fn), fn)
	}
	got, ok := MySQL.FunctionType("sin", []core.IntermediateType{core.NewType(core.TypeInteger)})
	require.True(t, ok)
	assert.Equal(t, core.TypeReal, got.Type)
}
