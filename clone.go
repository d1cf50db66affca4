package idb

import (
	"math"
	"reflect"
	"time"
)

// cloneValue makes an independent structural copy of a JSON-like value:
// nested plain maps and slices, finite numbers, strings, booleans, nil.
// Functions, channels, non-finite numbers and cyclic structures fail with a
// DataClone error. Values of any other shape (opaque non-plain objects, e.g.
// host-specific binary blobs) pass through by reference; the store will alias
// them, which is an intentional escape hatch.
func cloneValue(v any) (any, error) {
	return clone1(v, nil)
}

func clone1(v any, seen []uintptr) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case bool, string, time.Time:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, dataCloneErrf("non-finite number %v", v)
		}
		return v, nil
	case float32:
		return clone1(float64(v), seen)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, nil
	case map[string]any:
		ptr := reflect.ValueOf(v).Pointer()
		seen, err := enter(seen, ptr)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(v))
		for k, elem := range v {
			c, err := clone1(elem, seen)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case []any:
		if v == nil {
			return []any(nil), nil
		}
		ptr := reflect.ValueOf(v).Pointer()
		seen, err := enter(seen, ptr)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(v))
		for i, elem := range v {
			c, err := clone1(elem, seen)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, dataCloneErrf("cannot clone %T", v)
	}
	// Opaque pass-through.
	return v, nil
}

func enter(seen []uintptr, ptr uintptr) ([]uintptr, error) {
	for _, p := range seen {
		if p == ptr {
			return nil, dataCloneErrf("cyclic structure")
		}
	}
	return append(seen, ptr), nil
}
