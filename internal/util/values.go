package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Truthy reports whether v counts as set in an event document: nil, "", false,
// zero and NaN do not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// HasValue is the looser presence check used for monetary values: anything except
// nil and the empty string, so a numeric zero is kept.
func HasValue(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// Object returns v as a JSON object when it is one.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// String coerces a scalar event value to its string form. Integral floats render
// without a fraction so that numeric ids keep their natural form.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// Number coerces v to a float. ok is false when v has no numeric reading.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Integer coerces v to an integer, truncating any fraction.
func Integer(v any) (int64, bool) {
	f, ok := Number(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// NumberOrNull returns the numeric form of v, or nil so the field encodes as null.
func NumberOrNull(v any) any {
	if f, ok := Number(v); ok {
		return f
	}
	return nil
}

// IntegerOrNull returns the integer form of v, or nil so the field encodes as null.
func IntegerOrNull(v any) any {
	if n, ok := Integer(v); ok {
		return n
	}
	return nil
}
