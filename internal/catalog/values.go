package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Coerce converts v into the canonical Go type for field f: string for scalar
// text fields, []string for list fields and int for page_count. Empty values
// (nil, "", empty lists, nil pointers) coerce to nil.
//
// Values that round-tripped through JSON ([]any, float64, json.Number) are
// accepted so candidates read back from storage compare equal to fresh ones.
func Coerce(f Field, v any) (any, error) {
	kind, ok := fieldKinds[f]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", f)
	}
	if IsEmpty(v) {
		return nil, nil
	}

	switch kind {
	case kindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case *string:
			return *t, nil
		}
	case kindList:
		switch t := v.(type) {
		case []string:
			out := make([]string, len(t))
			copy(out, t)
			return out, nil
		case []any:
			out := make([]string, 0, len(t))
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("field %s: list element has type %T", f, item)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return []string{t}, nil
		}
	case kindInt:
		switch t := v.(type) {
		case int:
			return t, nil
		case *int:
			return *t, nil
		case int64:
			return int(t), nil
		case float64:
			if t != math.Trunc(t) {
				return nil, fmt.Errorf("field %s: %v is not a whole number", f, t)
			}
			return int(t), nil
		case json.Number:
			n, err := t.Int64()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f, err)
			}
			return int(n), nil
		}
	}
	return nil, fmt.Errorf("field %s: unsupported value type %T", f, v)
}

// IsEmpty reports whether v carries no data. nil, empty strings, empty slices,
// empty maps and nil pointers are all treated the same way.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case *string:
		return t == nil
	case *int:
		return t == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Equal compares two values of field f after coercing both to canonical form.
// Values that cannot be coerced are never equal.
func Equal(f Field, a, b any) bool {
	ca, err := Coerce(f, a)
	if err != nil {
		return false
	}
	cb, err := Coerce(f, b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(ca, cb)
}
