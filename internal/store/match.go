package store

import (
	"fmt"
	"strings"
	"time"
)

// Matches reports whether row satisfies every condition. Used by backends
// that filter in process.
func Matches(row Row, where []Cond) bool {
	for _, c := range where {
		if !c.Match(row) {
			return false
		}
	}
	return true
}

func (c Cond) Match(row Row) bool {
	v, ok := row[c.Column]
	switch c.Op {
	case OpEq:
		return ok && v != nil && Compare(v, c.Value) == 0
	case OpNeq:
		// SQL semantics: NULL is neither equal nor unequal
		return ok && v != nil && Compare(v, c.Value) != 0
	case OpIn:
		if !ok || v == nil {
			return false
		}
		for _, candidate := range c.Values {
			if Compare(v, candidate) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Compare orders two column values. Numbers compare numerically regardless of
// their Go type, times chronologically, everything else by string form.
func Compare(a, b any) int {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
