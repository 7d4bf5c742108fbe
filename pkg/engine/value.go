package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// NormalizeValue converts a decoded document into the canonical shape used
// throughout the compiler: map[string]any, []any, string, bool, int,
// float64 and nil. Integral numbers become int.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = NormalizeValue(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = NormalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = NormalizeValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = NormalizeValue(e)
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return normalizeInt(i)
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int8:
		return int(val)
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return normalizeInt(val)
	case uint:
		return normalizeUint(uint64(val))
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case uint64:
		return normalizeUint(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func normalizeInt(i int64) any {
	if i >= math.MinInt && i <= math.MaxInt {
		return int(i)
	}
	return float64(i)
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt {
		return int(u)
	}
	return float64(u)
}

// CloneValue returns a deep copy of a normalized value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// EqualValues compares two normalized values. Numbers compare by value, so
// an int and a float64 holding the same quantity are equal.
func EqualValues(a, b any) bool {
	fa, aNum := AsFloat(a)
	fb, bNum := AsFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, e := range av {
			o, ok := bv[k]
			if !ok || !EqualValues(e, o) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !EqualValues(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// AsFloat reports whether v is a number and returns it as float64.
func AsFloat(v any) (float64, bool) {
	switch v.(type) {
	case map[string]any, []any, string, bool, nil:
		return 0, false
	}
	switch n := NormalizeValue(v).(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
