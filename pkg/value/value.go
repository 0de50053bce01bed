// Package value provides helpers for the dynamic value trees that flow
// through the engine: events, step parameters, and the per-execution cache.
// A tree is built from map[string]any, []any, string, numbers, bool and nil.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Get walks a dot-separated path into a value tree. Integer segments index
// into lists; negative indices count from the end. The second return value
// reports whether the full path resolved.
func Get(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	return GetSegments(root, strings.Split(path, "."))
}

// GetSegments walks pre-split path segments into a value tree.
func GetSegments(root any, segments []string) (any, bool) {
	current := root
	for _, seg := range segments {
		if seg == "" {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				// A purely numeric key may address a map keyed by number strings.
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, false
			}
			if idx < 0 {
				idx += len(node)
			}
			if idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// DeepMerge merges override into base recursively and returns base.
// Maps present on both sides are merged key by key; scalars and lists on the
// override side replace the base value. A nil base is allocated; a nil
// override is a no-op.
func DeepMerge(base, override map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(override))
	}
	for key, ov := range override {
		if bm, ok := base[key].(map[string]any); ok {
			if om, ok := ov.(map[string]any); ok {
				base[key] = DeepMerge(bm, om)
				continue
			}
		}
		base[key] = ov
	}
	return base
}

// Clone returns a deep copy of a value tree. Values outside the tree alphabet
// (e.g. handles, snapshots) are shared, not copied.
func Clone(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}

// Stringify renders a value the way it should appear when substituted into
// surrounding text. Whole floats print without a trailing ".0" so that
// numeric identifiers survive template interpolation.
func Stringify(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return Stringify(float64(n))
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case time.Time:
		return n.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AsFloat attempts to interpret a value as a number. Strings are parsed;
// booleans and nil are not numbers.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Normalize returns an integer-valued float as-is; it exists so arithmetic
// modifiers can hand back int64 when the result is whole.
func Normalize(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return int64(f)
	}
	return f
}

// IsTruthy reports whether a value is considered true in conditional
// modifiers: false, 0, "", nil, empty list and empty map are falsy.
func IsTruthy(v any) bool {
	switch n := v.(type) {
	case nil:
		return false
	case bool:
		return n
	case string:
		return n != "" && !strings.EqualFold(n, "false")
	case map[string]any:
		return len(n) > 0
	case []any:
		return len(n) > 0
	default:
		if f, ok := AsFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// IsNull reports whether a value counts as null for condition evaluation and
// the is_null modifier: nil, the empty string, or the literal string "null".
func IsNull(v any) bool {
	switch n := v.(type) {
	case nil:
		return true
	case string:
		return n == "" || n == "null"
	default:
		return false
	}
}

// Equal compares two tree values with the engine's loose equality: numbers
// compare numerically even when one side is a numeric string, everything
// else falls back to string-form comparison after an exact match attempt.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := AsFloat(a); aok {
		if bf, bok := AsFloat(b); bok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	return Stringify(a) == Stringify(b)
}
