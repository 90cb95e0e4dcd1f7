package store

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// TimeLayout is the fixed width timestamp format used by text-typed backends,
// so lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Columns returns the row column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int(col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v.UTC()
	case string:
		t, err := time.Parse(TimeLayout, v)
		if err != nil {
			t, _ = time.Parse(time.RFC3339Nano, v)
		}
		return t.UTC()
	default:
		return time.Time{}
	}
}
