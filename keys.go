package idb

import (
	"fmt"
	"math"
	"time"
)

// Valid keys are finite numbers, strings, and dates (time.Time). Mixed-type
// comparisons follow an explicit total order: Number < Date < String, then
// natural order within each type. Dates compare by UTC instant.
const (
	keyOrderNumber = iota
	keyOrderDate
	keyOrderString
)

// canonicalKey normalizes a key to one of the three canonical key types:
// float64, time.Time, or string. Integer values are widened to float64 the
// way a JS runtime would. Returns false for anything that is not a valid key.
func canonicalKey(v any) (any, bool) {
	switch v := v.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		return v, true
	case float32:
		return canonicalKey(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		return v, true
	case time.Time:
		return v, true
	default:
		return nil, false
	}
}

func keyTypeOrder(v any) int {
	switch v.(type) {
	case float64:
		return keyOrderNumber
	case time.Time:
		return keyOrderDate
	case string:
		return keyOrderString
	default:
		panic(fmt.Errorf("idb: not a canonical key: %T %v", v, v))
	}
}

// CompareKeys is the total order over valid keys, usable by external callers
// as a comparator. It accepts any valid key representation (all Go integer
// types are treated as numbers) and panics on invalid keys.
func CompareKeys(a, b any) int {
	ca, ok := canonicalKey(a)
	if !ok {
		panic(fmt.Errorf("idb: invalid key %T %v", a, a))
	}
	cb, ok := canonicalKey(b)
	if !ok {
		panic(fmt.Errorf("idb: invalid key %T %v", b, b))
	}
	return compareCanonical(ca, cb)
}

func compareCanonical(a, b any) int {
	ta, tb := keyTypeOrder(a), keyTypeOrder(b)
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	switch a := a.(type) {
	case float64:
		b := b.(float64)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	case time.Time:
		return a.UTC().Compare(b.(time.Time).UTC())
	case string:
		b := b.(string)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	default:
		panic("unreachable")
	}
}

func sameKey(a, b any) bool {
	return compareCanonical(a, b) == 0
}
