package idb

import "sort"

type StoreOptions struct {
	KeyPath       string // field (or dotted path) used to derive keys from values
	AutoIncrement bool
}

type IndexOptions struct {
	// Unique and MultiEntry are declared-only: they are preserved as
	// metadata but never enforced.
	Unique     bool
	MultiEntry bool
}

// ObjectStore is a per-transaction handle on a named store. All operations
// are deferred: they enqueue a request and evaluate against the
// transaction's working copy when the run loop reaches them. Argument and
// state validation happens synchronously at call time, and state is checked
// again at execution time.
type ObjectStore struct {
	tx      *Transaction
	name    string
	indexes map[string]*Index // memoized handles
}

func (os *ObjectStore) Name() string {
	return os.name
}

func (os *ObjectStore) KeyPath() string {
	if s := os.tx.currentStore(os.name); s != nil {
		return s.keyPath
	}
	return ""
}

func (os *ObjectStore) AutoIncrement() bool {
	if s := os.tx.currentStore(os.name); s != nil {
		return s.autoIncrement
	}
	return false
}

func (os *ObjectStore) IndexNames() []string {
	s := os.tx.currentStore(os.name)
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// currentStore resolves a store against the working copy once it exists, the
// live data before the transaction has started.
func (tx *Transaction) currentStore(name string) *storeData {
	if tx.working != nil {
		return tx.working[name]
	}
	return tx.conn.db.stores[name]
}

func (os *ObjectStore) check() error {
	if os.tx.finished {
		return invalidStateErrf("transaction has finished")
	}
	if !os.tx.storeExists(os.name) {
		return invalidStateErrf("object store %q no longer exists", os.name)
	}
	return nil
}

// Put stores value, deriving or generating the key as the store dictates,
// and resolves to the key actually used. Pass a nil key when the store
// derives or generates its own. The value is deep-cloned now, synchronously,
// so the store never aliases caller-owned structures.
func (os *ObjectStore) Put(value, key any) (*Request, error) {
	return os.put(value, key, false)
}

// Add is Put that fails with a Constraint error if the key already exists.
func (os *ObjectStore) Add(value, key any) (*Request, error) {
	return os.put(value, key, true)
}

func (os *ObjectStore) put(value, key any, rejectIfExists bool) (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	cloned, err := cloneValue(value)
	if err != nil {
		return nil, err
	}
	s := os.tx.currentStore(os.name)
	if s.keyPath != "" {
		if key != nil {
			return nil, dataErrf("object store %q derives keys from key path %q; an explicit key is not allowed", os.name, s.keyPath)
		}
		if derived, ok := resolveKeyPath(cloned, s.keyPath); ok {
			if !IsValidKey(derived) {
				return nil, dataErrf("value at key path %q is not a valid key: %T %v", s.keyPath, derived, derived)
			}
		} else if !s.autoIncrement {
			return nil, dataErrf("value has no field at key path %q", s.keyPath)
		}
	} else {
		if key != nil {
			if !IsValidKey(key) {
				return nil, dataErrf("invalid key %T %v", key, key)
			}
		} else if !s.autoIncrement {
			return nil, dataErrf("object store %q requires an explicit key", os.name)
		}
	}
	op := operation{kind: opPut, storeName: os.name, value: cloned, key: key, rejectIfExists: rejectIfExists}
	return newRequest(os.tx, os, op)
}

// Get resolves to the value of the first record matching the key or range,
// in ascending key order, or nil if none match.
func (os *ObjectStore) Get(query any) (*Request, error) {
	return os.lookup(opGet, query)
}

// GetKey resolves to the primary key of the first matching record, or nil.
func (os *ObjectStore) GetKey(query any) (*Request, error) {
	return os.lookup(opGetKey, query)
}

func (os *ObjectStore) lookup(kind opKind, query any) (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, true)
	if err != nil {
		return nil, err
	}
	return newRequest(os.tx, os, operation{kind: kind, storeName: os.name, query: q})
}

// GetAll resolves to the values of all matching records in ascending key
// order, up to limit when limit > 0.
func (os *ObjectStore) GetAll(query any, limit int) (*Request, error) {
	return os.getAll(opGetAll, query, limit)
}

// GetAllKeys resolves to the primary keys of all matching records.
func (os *ObjectStore) GetAllKeys(query any, limit int) (*Request, error) {
	return os.getAll(opGetAllKeys, query, limit)
}

func (os *ObjectStore) getAll(kind opKind, query any, limit int) (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, typeErrf("negative limit %d", limit)
	}
	q, err := normalizeQuery(query, false)
	if err != nil {
		return nil, err
	}
	return newRequest(os.tx, os, operation{kind: kind, storeName: os.name, query: q, limit: limit})
}

// Count resolves to the number of matching records; with a nil query, the
// total record count.
func (os *ObjectStore) Count(query any) (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, false)
	if err != nil {
		return nil, err
	}
	return newRequest(os.tx, os, operation{kind: opCount, storeName: os.name, query: q})
}

// Delete removes every record whose key matches. Zero matches is a no-op.
func (os *ObjectStore) Delete(query any) (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, true)
	if err != nil {
		return nil, err
	}
	return newRequest(os.tx, os, operation{kind: opDelete, storeName: os.name, query: q})
}

// Clear removes all records in the store.
func (os *ObjectStore) Clear() (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	return newRequest(os.tx, os, operation{kind: opClear, storeName: os.name})
}

// OpenCursor opens a value-bearing cursor over the store's records. The
// request resolves to the cursor while positioned on a record, or nil once
// iteration passes the end.
func (os *ObjectStore) OpenCursor(query any, dir Direction) (*Request, error) {
	return os.openCursor(query, dir, true)
}

// OpenKeyCursor opens a cursor that exposes keys without materializing
// values.
func (os *ObjectStore) OpenKeyCursor(query any, dir Direction) (*Request, error) {
	return os.openCursor(query, dir, false)
}

func (os *ObjectStore) openCursor(query any, dir Direction, withValue bool) (*Request, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, false)
	if err != nil {
		return nil, err
	}
	c := &Cursor{source: os, query: q, dir: dir, withValue: withValue}
	req, err := newRequest(os.tx, os, operation{kind: opOpenCursor, storeName: os.name, query: q, cursor: c})
	if err != nil {
		return nil, err
	}
	c.req = req
	return req, nil
}

// CreateIndex defines a new index over the store. Legal only inside an
// active versionchange transaction.
func (os *ObjectStore) CreateIndex(name, keyPath string, opt IndexOptions) (*Index, error) {
	s, err := os.schemaStore()
	if err != nil {
		return nil, err
	}
	if !IsValidIdentifier(name) {
		return nil, typeErrf("invalid index name %q", name)
	}
	if !IsValidKeyPath(keyPath) {
		return nil, typeErrf("invalid key path %q", keyPath)
	}
	if s.indexes[name] != nil {
		return nil, constraintErrf("index %q already exists on object store %q", name, os.name)
	}
	s.indexes[name] = &indexData{name: name, keyPath: keyPath, unique: opt.Unique, multiEntry: opt.MultiEntry}
	return os.index(name), nil
}

// DeleteIndex removes an index. Legal only inside an active versionchange
// transaction.
func (os *ObjectStore) DeleteIndex(name string) error {
	s, err := os.schemaStore()
	if err != nil {
		return err
	}
	if s.indexes[name] == nil {
		return notFoundErrf("no index named %q on object store %q", name, os.name)
	}
	delete(s.indexes, name)
	return nil
}

func (os *ObjectStore) schemaStore() (*storeData, error) {
	tx := os.tx
	if tx.mode != VersionChange || tx.finished || tx.conn.activeTx != tx {
		return nil, invalidStateErrf("index schema changes require an active versionchange transaction")
	}
	s := tx.working[os.name]
	if s == nil {
		return nil, invalidStateErrf("object store %q no longer exists", os.name)
	}
	return s, nil
}

// Index returns a handle on the named index.
func (os *ObjectStore) Index(name string) (*Index, error) {
	if err := os.check(); err != nil {
		return nil, err
	}
	s := os.tx.currentStore(os.name)
	if s.indexes[name] == nil {
		return nil, notFoundErrf("no index named %q on object store %q", name, os.name)
	}
	return os.index(name), nil
}

func (os *ObjectStore) index(name string) *Index {
	if os.indexes == nil {
		os.indexes = make(map[string]*Index)
	}
	idx := os.indexes[name]
	if idx == nil {
		idx = &Index{store: os, name: name}
		os.indexes[name] = idx
	}
	return idx
}

// normalizeQuery canonicalizes a query argument: a key, a *KeyRange, a []any
// list of keys, or nil when the operation permits an absent query.
func normalizeQuery(query any, required bool) (any, error) {
	switch q := query.(type) {
	case nil:
		if required {
			return nil, dataErrf("a key or key range is required")
		}
		return nil, nil
	case *KeyRange:
		if !IsValidKeyRange(q) {
			return nil, dataErrf("invalid key range")
		}
		return q, nil
	case []any:
		keys := make([]any, len(q))
		for i, v := range q {
			k, ok := canonicalKey(v)
			if !ok {
				return nil, dataErrf("invalid key %T %v", v, v)
			}
			keys[i] = k
		}
		return keys, nil
	default:
		k, ok := canonicalKey(q)
		if !ok {
			return nil, dataErrf("invalid key %T %v", q, q)
		}
		return k, nil
	}
}
