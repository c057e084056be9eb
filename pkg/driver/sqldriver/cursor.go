package sqldriver

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// cursor reads every column of the current row into raw values and
// converts them on access.
type cursor struct {
	rows   *sql.Rows
	values []any
	ptrs   []any
	err    error
}

var _ driver.Cursor = (*cursor)(nil)

func newCursor(rows *sql.Rows) (*cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}
	c := &cursor{rows: rows, values: make([]any, len(cols)), ptrs: make([]any, len(cols))}
	for i := range c.values {
		c.ptrs[i] = &c.values[i]
	}
	return c, nil
}

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	if err := c.rows.Scan(c.ptrs...); err != nil {
		c.err = fmt.Errorf("scan row: %w", err)
		return false
	}
	return true
}

func (c *cursor) fail(index int, want string) {
	if c.err == nil {
		c.err = fmt.Errorf("column %d: cannot read %T as %s", index, c.values[index], want)
	}
}

func (c *cursor) Long(index int) *int64 {
	var n int64
	switch v := c.values[index].(type) {
	case nil:
		return nil
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int16:
		n = int64(v)
	case int8:
		n = int64(v)
	case int:
		n = int64(v)
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			c.fail(index, "long")
			return nil
		}
		n = int64(v)
	case bool:
		if v {
			n = 1
		}
	case []byte:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			c.fail(index, "long")
			return nil
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.fail(index, "long")
			return nil
		}
		n = parsed
	default:
		c.fail(index, "long")
		return nil
	}
	return &n
}

func (c *cursor) Double(index int) *float64 {
	var f float64
	switch v := c.values[index].(type) {
	case nil:
		return nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case []byte:
		parsed, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			c.fail(index, "double")
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.fail(index, "double")
			return nil
		}
		f = parsed
	default:
		n := c.Long(index)
		if n == nil {
			return nil
		}
		f = float64(*n)
	}
	return &f
}

func (c *cursor) String(index int) *string {
	var s string
	switch v := c.values[index].(type) {
	case nil:
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		s = v.Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(v)
	}
	return &s
}

func (c *cursor) Bytes(index int) []byte {
	switch v := c.values[index].(type) {
	case nil:
		return nil
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	default:
		c.fail(index, "bytes")
		return nil
	}
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close() error {
	return c.rows.Close()
}
