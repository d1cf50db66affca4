package idb

import (
	"math"
	"sort"
	"strings"
)

type record struct {
	key   any // canonical: float64, string or time.Time
	value any
}

// recordTable holds a store's records sorted by key. Keys are unique.
type recordTable struct {
	records []record // sorted by compareCanonical
}

func (t *recordTable) find(key any) (idx int, ok bool) {
	records := t.records
	i := sort.Search(len(records), func(i int) bool {
		return compareCanonical(records[i].key, key) >= 0
	})
	if i < len(records) && sameKey(records[i].key, key) {
		return i, true
	}
	return i, false
}

func (t *recordTable) get(key any) (any, bool) {
	i, ok := t.find(key)
	if !ok {
		return nil, false
	}
	return t.records[i].value, true
}

func (t *recordTable) has(key any) bool {
	_, ok := t.find(key)
	return ok
}

func (t *recordTable) put(key, value any) {
	i, ok := t.find(key)
	if ok {
		t.records[i].value = value
		return
	}
	t.records = append(t.records, record{})
	copy(t.records[i+1:], t.records[i:])
	t.records[i] = record{key: key, value: value}
}

func (t *recordTable) delete(key any) bool {
	i, ok := t.find(key)
	if !ok {
		return false
	}
	t.records = append(t.records[:i], t.records[i+1:]...)
	return true
}

// deleteRange removes every record whose key falls within rng and returns the
// number removed.
func (t *recordTable) deleteRange(rng *KeyRange) int {
	kept := t.records[:0]
	removed := 0
	for _, rec := range t.records {
		if rng.Contains(rec.key) {
			removed++
		} else {
			kept = append(kept, rec)
		}
	}
	t.records = kept
	return removed
}

func (t *recordTable) clear() {
	t.records = nil
}

func (t *recordTable) count() int {
	return len(t.records)
}

func (t *recordTable) clone() recordTable {
	out := make([]record, len(t.records))
	copy(out, t.records)
	return recordTable{records: out}
}

// indexData is the metadata of a secondary index. The unique and multiEntry
// flags are accepted and preserved but intentionally inert: uniqueness is not
// enforced and array values are not expanded.
type indexData struct {
	name       string
	keyPath    string
	unique     bool
	multiEntry bool
}

// storeData is the durable state of one object store: its records, key
// derivation settings, auto-increment counter, and index metadata.
type storeData struct {
	name          string
	keyPath       string // "" when keys are supplied explicitly
	autoIncrement bool
	keyGen        uint64 // last generated key
	records       recordTable
	indexes       map[string]*indexData
}

func newStoreData(name, keyPath string, autoIncrement bool) *storeData {
	return &storeData{
		name:          name,
		keyPath:       keyPath,
		autoIncrement: autoIncrement,
		indexes:       make(map[string]*indexData),
	}
}

// clone makes a structural copy for copy-on-write transaction isolation.
// Record values are not re-cloned: they were already detached from caller
// structures when put, and committed tables are never mutated in place.
func (s *storeData) clone() *storeData {
	out := &storeData{
		name:          s.name,
		keyPath:       s.keyPath,
		autoIncrement: s.autoIncrement,
		keyGen:        s.keyGen,
		records:       s.records.clone(),
		indexes:       make(map[string]*indexData, len(s.indexes)),
	}
	for name, idx := range s.indexes {
		copy := *idx
		out.indexes[name] = &copy
	}
	return out
}

// generateKey returns the next auto-increment key and advances the counter.
func (s *storeData) generateKey() any {
	s.keyGen++
	return float64(s.keyGen)
}

// observeKey advances the key generator past an explicitly supplied numeric
// key so that generated keys never collide with it. Keys beyond the uint64
// range saturate the counter; converting them directly would be an
// out-of-range conversion with an unspecified result.
func (s *storeData) observeKey(key any) {
	n, ok := key.(float64)
	if !ok || n < 1 || n < float64(s.keyGen) {
		return
	}
	if n >= math.MaxUint64 {
		s.keyGen = math.MaxUint64
		return
	}
	s.keyGen = uint64(n)
}

// resolveKeyPath resolves a dotted key path against a value, traversing
// nested plain maps. Returns false if any segment is missing or not
// traversable.
func resolveKeyPath(value any, path string) (any, bool) {
	cur := value
	for {
		seg, rest, more := strings.Cut(path, ".")
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
		if !more {
			return cur, true
		}
		path = rest
	}
}
