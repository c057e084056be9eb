package dialect

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDialect() *Dialect {
	return New(&core.DialectConfig{
		Name:        "test",
		Placeholder: core.PlaceholderDollar,
		Identifiers: core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`},
	}).
		Function("GREATEST", Encapsulating(core.TypeInteger, core.TypeReal, core.TypeText, core.TypeBlob)).
		Function("concat", Concat).
		Function("month", Returns(core.TypeInteger)).
		Types(IntType{SQLName: "smallint", Bits: 16}).
		WithReservedWords("order", "user").
		Build()
}

func TestFunctionType(t *testing.T) {
	d := testDialect()
	integer := core.NewType(core.TypeInteger)
	real := core.NewType(core.TypeReal).AsNullable()
	text := core.NewType(core.TypeText).AsNullable()

	tests := []struct {
		name string
		fn   string
		args []core.IntermediateType
		want string
	}{
		{"case insensitive lookup", "greatest", []core.IntermediateType{integer, real}, "REAL"},
		{"all nullable", "Greatest", []core.IntermediateType{real, text}, "TEXT?"},
		{"concat any non-null", "concat", []core.IntermediateType{text, integer}, "TEXT"},
		{"concat all nullable", "concat", []core.IntermediateType{text, text}, "TEXT?"},
		{"fixed result", "MONTH", []core.IntermediateType{text}, "INTEGER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.FunctionType(tt.fn, tt.args)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, ok := d.FunctionType("nope", nil)
	assert.False(t, ok)
	assert.True(t, d.HasFunction("CONCAT"))
}

func TestPlaceholdersAndQuoting(t *testing.T) {
	d := testDialect()
	assert.Equal(t, "$3", d.FormatPlaceholder(3))
	assert.Equal(t, `"order"`, d.QuoteIdentifierIfNeeded("order"))
	assert.Equal(t, `"first name"`, d.QuoteIdentifierIfNeeded("first name"))
	assert.Equal(t, "name", d.QuoteIdentifierIfNeeded("name"))
	assert.Equal(t, `"a""b"`, d.QuoteIdentifier(`a"b`))
	assert.Equal(t, "player", d.NormalizeName("Player"))
}

func TestTypeByName(t *testing.T) {
	d := testDialect()
	typ, ok := d.TypeByName("SmallInt")
	require.True(t, ok)
	assert.Equal(t, "int16", typ.GoType())
}

func TestRegistry(t *testing.T) {
	d := testDialect()
	d.Name = "registrytest"
	Register(d, "rt")

	got, ok := Get("RT")
	require.True(t, ok)
	assert.Same(t, d, got)
	assert.Contains(t, List(), "registrytest")

	_, err := Lookup("")
	assert.ErrorIs(t, err, ErrDialectRequired)

	_, err = Lookup("oracle")
	var unknown *UnknownDialectError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "oracle", unknown.Name)
}

func TestIntType(t *testing.T) {
	tests := []struct {
		name    string
		typ     IntType
		in      any
		want    any
		wantErr bool
	}{
		{"int8", IntType{SQLName: "TINYINT", Bits: 8}, int64(-5), int8(-5), false},
		{"int8 overflow", IntType{SQLName: "TINYINT", Bits: 8}, int64(300), nil, true},
		{"int16", IntType{SQLName: "SMALLINT", Bits: 16}, int64(300), int16(300), false},
		{"int32", IntType{SQLName: "INTEGER", Bits: 32}, int64(70000), int32(70000), false},
		{"int64", IntType{SQLName: "BIGINT", Bits: 64}, int64(1 << 40), int64(1 << 40), false},
		{"not an integer", IntType{SQLName: "BIGINT", Bits: 64}, "x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Decode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	enc, err := IntType{SQLName: "SMALLINT", Bits: 16}.Encode(int16(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), enc)
}

func TestBoolType(t *testing.T) {
	b := BoolType{SQLName: "BIT"}
	assert.Equal(t, core.BindLong, b.BindKind())
	assert.Equal(t, core.TypeInteger, b.Storage())

	enc, err := b.Encode(true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), enc)

	_, err = b.Encode(1)
	assert.Error(t, err)

	dec, err := b.Decode(int64(1))
	require.NoError(t, err)
	assert.Equal(t, true, dec)

	dec, err = b.Decode(int64(2))
	require.NoError(t, err)
	assert.Equal(t, false, dec)
}
