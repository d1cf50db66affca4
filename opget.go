package idb

import "sort"

// entry is one lookup/iteration candidate: for store sources key equals the
// primary key; for index sources key is derived from the record's value via
// the index key path.
type entry struct {
	key        any
	primaryKey any
	value      any
}

// sourceEntries lists the candidates of a store or index source in ascending
// key order. Index entries with equal keys keep primary-key order; records
// lacking the indexed field are excluded.
func sourceEntries(store *storeData, index *indexData) []entry {
	if index == nil {
		entries := make([]entry, len(store.records.records))
		for i, rec := range store.records.records {
			entries[i] = entry{key: rec.key, primaryKey: rec.key, value: rec.value}
		}
		return entries
	}

	var entries []entry
	for _, rec := range store.records.records {
		derived, ok := resolveKeyPath(rec.value, index.keyPath)
		if !ok {
			continue
		}
		key, ok := canonicalKey(derived)
		if !ok {
			continue
		}
		entries = append(entries, entry{key: key, primaryKey: rec.key, value: rec.value})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return compareCanonical(entries[i].key, entries[j].key) < 0
	})
	return entries
}

// matchQuery tests a candidate key against a normalized query: nil matches
// everything, a *KeyRange matches by inclusion, a []any matches by list
// membership, and a plain key matches by equality.
func matchQuery(query, key any) bool {
	switch q := query.(type) {
	case nil:
		return true
	case *KeyRange:
		return q.Contains(key)
	case []any:
		for _, want := range q {
			if sameKey(want, key) {
				return true
			}
		}
		return false
	default:
		return sameKey(q, key)
	}
}

func executeGet(store *storeData, index *indexData, op *operation) (any, error) {
	getsDone.Inc()
	for _, e := range sourceEntries(store, index) {
		if matchQuery(op.query, e.key) {
			return must(cloneValue(e.value)), nil
		}
	}
	return nil, nil
}

func executeGetKey(store *storeData, index *indexData, op *operation) (any, error) {
	getsDone.Inc()
	for _, e := range sourceEntries(store, index) {
		if matchQuery(op.query, e.key) {
			return e.primaryKey, nil
		}
	}
	return nil, nil
}

func executeGetAll(store *storeData, index *indexData, op *operation) (any, error) {
	getsDone.Inc()
	values := []any{}
	for _, e := range sourceEntries(store, index) {
		if !matchQuery(op.query, e.key) {
			continue
		}
		values = append(values, must(cloneValue(e.value)))
		if op.limit > 0 && len(values) == op.limit {
			break
		}
	}
	return values, nil
}

func executeGetAllKeys(store *storeData, index *indexData, op *operation) (any, error) {
	getsDone.Inc()
	keys := []any{}
	for _, e := range sourceEntries(store, index) {
		if !matchQuery(op.query, e.key) {
			continue
		}
		keys = append(keys, e.primaryKey)
		if op.limit > 0 && len(keys) == op.limit {
			break
		}
	}
	return keys, nil
}

func executeCount(store *storeData, index *indexData, op *operation) (any, error) {
	if index == nil && op.query == nil {
		return store.records.count(), nil
	}
	n := 0
	for _, e := range sourceEntries(store, index) {
		if matchQuery(op.query, e.key) {
			n++
		}
	}
	return n, nil
}
