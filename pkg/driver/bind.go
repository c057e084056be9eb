package driver

import (
	"fmt"
	"math"
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Bind binds v at index with the accessor selected by kind. BindDynamic
// picks the accessor from the Go type of v. Pointers are dereferenced and
// nil binds NULL.
func Bind(s PreparedStatement, index int, kind core.BindKind, v any) error {
	if v != nil {
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				v = nil
				break
			}
			rv = rv.Elem()
			v = rv.Interface()
		}
	}
	if kind == core.BindDynamic {
		kind = kindOf(v)
	}

	switch kind {
	case core.BindLong:
		if v == nil {
			s.BindLong(index, nil)
			return nil
		}
		n, err := toLong(v)
		if err != nil {
			return fmt.Errorf("bind parameter %d: %w", index, err)
		}
		s.BindLong(index, &n)
	case core.BindDouble:
		if v == nil {
			s.BindDouble(index, nil)
			return nil
		}
		f, err := toDouble(v)
		if err != nil {
			return fmt.Errorf("bind parameter %d: %w", index, err)
		}
		s.BindDouble(index, &f)
	case core.BindBytes:
		switch b := v.(type) {
		case nil:
			s.BindBytes(index, nil)
		case []byte:
			s.BindBytes(index, b)
		case string:
			s.BindBytes(index, []byte(b))
		default:
			return fmt.Errorf("bind parameter %d: expected bytes, got %T", index, v)
		}
	default:
		if v == nil {
			s.BindString(index, nil)
			return nil
		}
		str, ok := v.(string)
		if !ok {
			if sv, isStringer := v.(fmt.Stringer); isStringer {
				str = sv.String()
			} else {
				return fmt.Errorf("bind parameter %d: expected string, got %T", index, v)
			}
		}
		s.BindString(index, &str)
	}
	return nil
}

func kindOf(v any) core.BindKind {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return core.BindLong
	case float32, float64:
		return core.BindDouble
	case []byte:
		return core.BindBytes
	default:
		return core.BindString
	}
}

func toLong(v any) (int64, error) {
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
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
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

func toDouble(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		i, err := toLong(v)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %T", v)
		}
		return float64(i), nil
	}
}

// Values collects bound parameters in a slice, one slot per index. It is
// the PreparedStatement of drivers that pass arguments positionally.
type Values []any

var _ PreparedStatement = (*Values)(nil)

func (v *Values) set(index int, value any) {
	for len(*v) < index {
		*v = append(*v, nil)
	}
	(*v)[index-1] = value
}

// BindLong implements PreparedStatement.
func (v *Values) BindLong(index int, n *int64) {
	if n == nil {
		v.set(index, nil)
		return
	}
	v.set(index, *n)
}

// BindDouble implements PreparedStatement.
func (v *Values) BindDouble(index int, f *float64) {
	if f == nil {
		v.set(index, nil)
		return
	}
	v.set(index, *f)
}

// BindString implements PreparedStatement.
func (v *Values) BindString(index int, s *string) {
	if s == nil {
		v.set(index, nil)
		return
	}
	v.set(index, *s)
}

// BindBytes implements PreparedStatement.
func (v *Values) BindBytes(index int, b []byte) {
	if b == nil {
		v.set(index, nil)
		return
	}
	v.set(index, b)
}
