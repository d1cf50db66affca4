package idb

import "testing"

func indexedStore(t *testing.T, reg *Registry) *Connection {
	t.Helper()
	conn := openDB(t, reg, "db", 1, func(c *Connection, tx *Transaction) {
		s := must(c.CreateObjectStore("people", StoreOptions{KeyPath: "id"}))
		must(s.CreateIndex("by_age", "age", IndexOptions{}))
		must(s.CreateIndex("by_city", "addr.city", IndexOptions{}))
	})
	_, s := rwStore(t, conn, "people")
	must(s.Put(map[string]any{"id": 1, "age": 30, "addr": map[string]any{"city": "riga"}}, nil))
	must(s.Put(map[string]any{"id": 2, "age": 25, "addr": map[string]any{"city": "oslo"}}, nil))
	must(s.Put(map[string]any{"id": 3, "age": 30}, nil))
	reg.Flush()
	return conn
}

func roIndex(t *testing.T, conn *Connection, index string) *Index {
	t.Helper()
	tx := must(conn.Transaction([]string{"people"}, ReadOnly))
	return must(must(tx.ObjectStore("people")).Index(index))
}

func TestIndexGetByDerivedKey(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	idx := roIndex(t, conn, "by_age")
	v := await(t, reg, must(idx.Get(25))).(map[string]any)
	deepEqual[any](t, v["id"], 2)
}

func TestIndexGetFirstInKeyOrderOnDuplicates(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	// Two records have age 30; the one with the lower primary key wins.
	idx := roIndex(t, conn, "by_age")
	v := await(t, reg, must(idx.Get(30))).(map[string]any)
	deepEqual[any](t, v["id"], 1)
}

func TestIndexGetKey(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	idx := roIndex(t, conn, "by_city")
	deepEqual[any](t, await(t, reg, must(idx.GetKey("oslo"))), float64(2))
}

func TestIndexGetRequiresQuery(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	idx := roIndex(t, conn, "by_age")
	if _, err := idx.Get(nil); KindOf(err) != ErrData {
		t.Fatalf("Get(nil): got %v, wanted DataError", err)
	}
}

func TestIndexCount(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	idx := roIndex(t, conn, "by_age")
	all := must(idx.Count(nil))
	thirty := must(idx.Count(30))
	reg.Flush()
	deepEqual[any](t, must(all.Result()), 3)
	deepEqual[any](t, must(thirty.Result()), 2)

	// Records without the indexed field are invisible to the index.
	city := roIndex(t, conn, "by_city")
	deepEqual[any](t, await(t, reg, must(city.Count(nil))), 2)
}

func TestIndexGetAllOrderAndLimit(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	idx := roIndex(t, conn, "by_age")
	all := must(idx.GetAllKeys(nil, 0))
	limited := must(idx.GetAllKeys(nil, 2))
	if _, err := idx.GetAll(nil, -1); KindOf(err) != ErrType {
		t.Fatalf("negative limit: got %v, wanted TypeError", err)
	}
	reg.Flush()
	deepEqual(t, must(all.Result()).([]any), []any{float64(2), float64(1), float64(3)})
	deepEqual(t, must(limited.Result()).([]any), []any{float64(2), float64(1)})
}

func TestIndexRangeQuery(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	idx := roIndex(t, conn, "by_age")
	r := must(Bound(26, 30, false, false))
	deepEqual[any](t, await(t, reg, must(idx.Count(r))), 2)
}

func TestIndexMetadata(t *testing.T) {
	reg := setup(t)
	conn := openDB(t, reg, "db", 1, func(c *Connection, tx *Transaction) {
		s := must(c.CreateObjectStore("s", StoreOptions{}))
		must(s.CreateIndex("u", "tag", IndexOptions{Unique: true, MultiEntry: true}))
	})
	tx := must(conn.Transaction([]string{"s"}, ReadOnly))
	idx := must(must(tx.ObjectStore("s")).Index("u"))
	deepEqual(t, idx.Name(), "u")
	deepEqual(t, idx.KeyPath(), "tag")
	if !idx.Unique() || !idx.MultiEntry() {
		t.Fatalf("declared flags lost")
	}
}

func TestUniqueFlagDoesNotRejectDuplicates(t *testing.T) {
	reg := setup(t)
	conn := openDB(t, reg, "db", 1, func(c *Connection, tx *Transaction) {
		s := must(c.CreateObjectStore("s", StoreOptions{KeyPath: "id"}))
		must(s.CreateIndex("u", "tag", IndexOptions{Unique: true}))
	})
	_, s := rwStore(t, conn, "s")
	r1 := must(s.Put(map[string]any{"id": 1, "tag": "same"}, nil))
	r2 := must(s.Put(map[string]any{"id": 2, "tag": "same"}, nil))
	reg.Flush()
	if _, err := r1.Result(); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := r2.Result(); err != nil {
		t.Fatalf("duplicate index key rejected despite inert unique flag: %v", err)
	}
}

func TestCreateIndexValidation(t *testing.T) {
	reg := setup(t)
	openDB(t, reg, "db", 1, func(c *Connection, tx *Transaction) {
		s := must(c.CreateObjectStore("s", StoreOptions{}))
		must(s.CreateIndex("dup", "x", IndexOptions{}))
		if _, err := s.CreateIndex("dup", "y", IndexOptions{}); KindOf(err) != ErrConstraint {
			t.Errorf("duplicate index: got %v, wanted ConstraintError", err)
		}
		if _, err := s.CreateIndex("Bad Name", "x", IndexOptions{}); KindOf(err) != ErrType {
			t.Errorf("invalid name: got %v, wanted TypeError", err)
		}
		if _, err := s.CreateIndex("ok", "1bad", IndexOptions{}); KindOf(err) != ErrType {
			t.Errorf("invalid key path: got %v, wanted TypeError", err)
		}
		ensure(s.DeleteIndex("dup"))
		if err := s.DeleteIndex("dup"); KindOf(err) != ErrNotFound {
			t.Errorf("delete missing index: got %v, wanted NotFoundError", err)
		}
	})
}

func TestCreateIndexOutsideUpgrade(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")
	_, s := rwStore(t, conn, "s")
	if _, err := s.CreateIndex("late", "x", IndexOptions{}); KindOf(err) != ErrInvalidState {
		t.Fatalf("create index outside upgrade: got %v, wanted InvalidStateError", err)
	}
}

func TestIndexMissingLookup(t *testing.T) {
	reg := setup(t)
	conn := indexedStore(t, reg)

	tx := must(conn.Transaction([]string{"people"}, ReadOnly))
	s := must(tx.ObjectStore("people"))
	if _, err := s.Index("nope"); KindOf(err) != ErrNotFound {
		t.Fatalf("missing index: got %v, wanted NotFoundError", err)
	}
}
