package idb

// Index is a per-transaction handle on a secondary index. Lookups resolve
// keys via the index's key path against each record's value instead of the
// primary key; the ordering is recomputed from the store's records on every
// operation.
type Index struct {
	store *ObjectStore
	name  string
}

func (idx *Index) Name() string {
	return idx.name
}

func (idx *Index) ObjectStore() *ObjectStore {
	return idx.store
}

func (idx *Index) KeyPath() string {
	if d := idx.data(); d != nil {
		return d.keyPath
	}
	return ""
}

// Unique reports the declared unique flag. It is metadata only: uniqueness
// is not enforced.
func (idx *Index) Unique() bool {
	if d := idx.data(); d != nil {
		return d.unique
	}
	return false
}

// MultiEntry reports the declared multiEntry flag. It is metadata only:
// array values are not expanded.
func (idx *Index) MultiEntry() bool {
	if d := idx.data(); d != nil {
		return d.multiEntry
	}
	return false
}

func (idx *Index) data() *indexData {
	if s := idx.store.tx.currentStore(idx.store.name); s != nil {
		return s.indexes[idx.name]
	}
	return nil
}

func (idx *Index) check() error {
	if err := idx.store.check(); err != nil {
		return err
	}
	if idx.data() == nil {
		return invalidStateErrf("index %q no longer exists", idx.name)
	}
	return nil
}

// Get resolves to the value of the first record whose index key matches, in
// ascending index key order, or nil if none match.
func (idx *Index) Get(query any) (*Request, error) {
	return idx.lookup(opGet, query)
}

// GetKey resolves to the primary key of the first matching record, or nil.
func (idx *Index) GetKey(query any) (*Request, error) {
	return idx.lookup(opGetKey, query)
}

func (idx *Index) lookup(kind opKind, query any) (*Request, error) {
	if err := idx.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, true)
	if err != nil {
		return nil, err
	}
	op := operation{kind: kind, storeName: idx.store.name, indexName: idx.name, query: q}
	return newRequest(idx.store.tx, idx, op)
}

// GetAll resolves to the values of all matching records in ascending index
// key order, up to limit when limit > 0.
func (idx *Index) GetAll(query any, limit int) (*Request, error) {
	return idx.getAll(opGetAll, query, limit)
}

// GetAllKeys resolves to the primary keys of all matching records.
func (idx *Index) GetAllKeys(query any, limit int) (*Request, error) {
	return idx.getAll(opGetAllKeys, query, limit)
}

func (idx *Index) getAll(kind opKind, query any, limit int) (*Request, error) {
	if err := idx.check(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, typeErrf("negative limit %d", limit)
	}
	q, err := normalizeQuery(query, false)
	if err != nil {
		return nil, err
	}
	op := operation{kind: kind, storeName: idx.store.name, indexName: idx.name, query: q, limit: limit}
	return newRequest(idx.store.tx, idx, op)
}

// Count resolves to the number of records whose index key matches.
func (idx *Index) Count(query any) (*Request, error) {
	if err := idx.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, false)
	if err != nil {
		return nil, err
	}
	op := operation{kind: opCount, storeName: idx.store.name, indexName: idx.name, query: q}
	return newRequest(idx.store.tx, idx, op)
}

// OpenCursor opens a value-bearing cursor ordered by index key.
func (idx *Index) OpenCursor(query any, dir Direction) (*Request, error) {
	return idx.openCursor(query, dir, true)
}

// OpenKeyCursor opens a key-only cursor ordered by index key.
func (idx *Index) OpenKeyCursor(query any, dir Direction) (*Request, error) {
	return idx.openCursor(query, dir, false)
}

func (idx *Index) openCursor(query any, dir Direction, withValue bool) (*Request, error) {
	if err := idx.check(); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(query, false)
	if err != nil {
		return nil, err
	}
	c := &Cursor{source: idx, query: q, dir: dir, withValue: withValue}
	op := operation{kind: opOpenCursor, storeName: idx.store.name, indexName: idx.name, query: q, cursor: c}
	req, err := newRequest(idx.store.tx, idx, op)
	if err != nil {
		return nil, err
	}
	c.req = req
	return req, nil
}
