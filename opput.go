package idb

import "strings"

// executePut stores the pre-cloned value under the resolved key and returns
// that key. Key resolution happens here, at execution time, because the
// auto-increment counter lives in the transaction's working copy.
func executePut(store *storeData, op *operation) (any, error) {
	key, err := resolvePutKey(store, op.value, op.key)
	if err != nil {
		return nil, err
	}
	if op.rejectIfExists && store.records.has(key) {
		return nil, constraintErrf("key already exists in object store %q", store.name)
	}
	store.observeKey(key)
	store.records.put(key, op.value)
	putsDone.Inc()
	return key, nil
}

func resolvePutKey(store *storeData, value, explicit any) (any, error) {
	if store.keyPath != "" {
		// The key is derived from the value; an explicit key was already
		// rejected at call time.
		derived, ok := resolveKeyPath(value, store.keyPath)
		if !ok {
			if store.autoIncrement {
				key := store.generateKey()
				fillKeyPath(value, store.keyPath, key)
				return key, nil
			}
			return nil, dataErrf("value has no field at key path %q", store.keyPath)
		}
		key, ok := canonicalKey(derived)
		if !ok {
			return nil, dataErrf("value at key path %q is not a valid key: %T %v", store.keyPath, derived, derived)
		}
		return key, nil
	}

	if explicit != nil {
		key, ok := canonicalKey(explicit)
		if !ok {
			return nil, dataErrf("invalid key %T %v", explicit, explicit)
		}
		return key, nil
	}
	if !store.autoIncrement {
		return nil, dataErrf("object store %q requires an explicit key", store.name)
	}
	return store.generateKey(), nil
}

// fillKeyPath writes a generated key into the value at the store's key path,
// creating intermediate maps as needed, so the stored value carries its own
// key ({name:"pen"} becomes {id:1, name:"pen"}).
func fillKeyPath(value any, path string, key any) {
	obj, ok := value.(map[string]any)
	if !ok {
		return
	}
	for {
		seg, rest, more := strings.Cut(path, ".")
		if !more {
			obj[seg] = key
			return
		}
		next, ok := obj[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			obj[seg] = next
		}
		obj = next
		path = rest
	}
}
