package dialect

import (
	"fmt"
	"math"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// IntType is a dialect integer column narrower than (or equal to) int64.
// Values are bound and read as longs.
type IntType struct {
	SQLName string
	Bits    int // 8, 16, 32 or 64
}

var _ core.DialectType = IntType{}

// Name implements core.DialectType.
func (t IntType) Name() string { return t.SQLName }

// Storage implements core.DialectType.
func (t IntType) Storage() core.SemanticType { return core.TypeInteger }

// GoType implements core.DialectType.
func (t IntType) GoType() string { return fmt.Sprintf("int%d", t.Bits) }

// BindKind implements core.DialectType.
func (t IntType) BindKind() core.BindKind { return core.BindLong }

// Encode widens any Go integer to int64.
func (t IntType) Encode(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t.SQLName, err)
	}
	return n, nil
}

// Decode narrows a long read from a cursor, failing on overflow.
func (t IntType) Decode(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.SQLName, err)
	}
	switch t.Bits {
	case 8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, fmt.Errorf("decode %s: %d overflows int8", t.SQLName, n)
		}
		return int8(n), nil
	case 16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("decode %s: %d overflows int16", t.SQLName, n)
		}
		return int16(n), nil
	case 32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("decode %s: %d overflows int32", t.SQLName, n)
		}
		return int32(n), nil
	default:
		return n, nil
	}
}

// BoolType is an integer column exposed as bool (MySQL TINYINT(1), BIT).
// 1 is true; every other value is false.
type BoolType struct {
	SQLName string
}

var _ core.DialectType = BoolType{}

// Name implements core.DialectType.
func (t BoolType) Name() string { return t.SQLName }

// Storage implements core.DialectType.
func (t BoolType) Storage() core.SemanticType { return core.TypeInteger }

// GoType implements core.DialectType.
func (t BoolType) GoType() string { return "bool" }

// BindKind implements core.DialectType.
func (t BoolType) BindKind() core.BindKind { return core.BindLong }

// Encode maps true to 1 and false to 0.
func (t BoolType) Encode(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("encode %s: expected bool, got %T", t.SQLName, v)
	}
	if b {
		return int64(1), nil
	}
	return int64(0), nil
}

// Decode maps 1 to true.
func (t BoolType) Decode(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.SQLName, err)
	}
	return n == 1, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
