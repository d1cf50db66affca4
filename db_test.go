package idb

import (
	"reflect"
	"testing"
)

func setup(t testing.TB) *Registry {
	reg := NewRegistry(Options{})
	t.Cleanup(reg.Reset)
	return reg
}

// openDB opens (or upgrades) a database and drives the scheduler until the
// request completes.
func openDB(t testing.TB, reg *Registry, name string, version uint64, upgrade func(conn *Connection, tx *Transaction)) *Connection {
	t.Helper()
	req := must(reg.Open(name, version))
	if upgrade != nil {
		req.On(EventUpgradeNeeded, func(e Event) {
			tx := req.Transaction()
			upgrade(tx.Connection(), tx)
		})
	}
	reg.Flush()
	conn, err := req.Result()
	if err != nil {
		t.Fatalf("open %s@%d: %v", name, version, err)
	}
	t.Cleanup(conn.Close)
	return conn
}

// await drives the scheduler and returns the request's result, failing the
// test on error.
func await(t testing.TB, reg *Registry, req *Request) any {
	t.Helper()
	reg.Flush()
	v, err := req.Result()
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return v
}

func awaitErr(t testing.TB, reg *Registry, req *Request) error {
	t.Helper()
	reg.Flush()
	_, err := req.Result()
	return err
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

// plainStore creates a database with one store using explicit keys.
func plainStore(t testing.TB, reg *Registry, dbName, storeName string) *Connection {
	t.Helper()
	return openDB(t, reg, dbName, 1, func(conn *Connection, tx *Transaction) {
		must(conn.CreateObjectStore(storeName, StoreOptions{}))
	})
}

func rwStore(t testing.TB, conn *Connection, name string) (*Transaction, *ObjectStore) {
	t.Helper()
	tx := must(conn.Transaction([]string{name}, ReadWrite))
	return tx, must(tx.ObjectStore(name))
}

func TestShopScenario(t *testing.T) {
	reg := setup(t)

	conn := openDB(t, reg, "shop", 1, func(conn *Connection, tx *Transaction) {
		must(conn.CreateObjectStore("items", StoreOptions{KeyPath: "id", AutoIncrement: true}))
	})
	conn.Close()

	conn2 := openDB(t, reg, "shop", 1, nil)
	tx, items := rwStore(t, conn2, "items")
	putReq := must(items.Put(map[string]any{"name": "pen"}, nil))
	getReq := must(items.Get(1))

	deepEqual[any](t, await(t, reg, putReq), float64(1))
	deepEqual[any](t, await(t, reg, getReq), map[string]any{"id": float64(1), "name": "pen"})
	if !tx.finished {
		t.Fatalf("transaction did not finish")
	}
}

func TestPutGetReturnsIndependentCopy(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")

	stored := map[string]any{"nested": map[string]any{"a": float64(1)}}
	_, s := rwStore(t, conn, "s")
	await(t, reg, must(s.Put(stored, "k")))

	// Mutating the original after put must not affect the store.
	stored["nested"].(map[string]any)["a"] = float64(99)

	tx2 := must(conn.Transaction([]string{"s"}, ReadOnly))
	s2 := must(tx2.ObjectStore("s"))
	got := await(t, reg, must(s2.Get("k"))).(map[string]any)
	deepEqual[any](t, got, map[string]any{"nested": map[string]any{"a": float64(1)}})

	// And mutating the returned value must not affect a later read.
	got["nested"].(map[string]any)["a"] = float64(7)
	tx3 := must(conn.Transaction([]string{"s"}, ReadOnly))
	s3 := must(tx3.ObjectStore("s"))
	deepEqual[any](t, await(t, reg, must(s3.Get("k"))),
		any(map[string]any{"nested": map[string]any{"a": float64(1)}}))
}

func TestAddRejectsExistingKeyPutOverwrites(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")

	_, s := rwStore(t, conn, "s")
	await(t, reg, must(s.Add("one", 1)))

	_, s2 := rwStore(t, conn, "s")
	addReq := must(s2.Add("two", 1))
	if err := awaitErr(t, reg, addReq); KindOf(err) != ErrConstraint {
		t.Fatalf("add on existing key: got %v, wanted ConstraintError", err)
	}

	_, s3 := rwStore(t, conn, "s")
	await(t, reg, must(s3.Put("two", 1)))
	tx4 := must(conn.Transaction([]string{"s"}, ReadOnly))
	s4 := must(tx4.ObjectStore("s"))
	deepEqual[any](t, await(t, reg, must(s4.Get(1))), "two")
}

func TestDeleteMissingAndClearEmptyAreNoOps(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")

	_, s := rwStore(t, conn, "s")
	if err := awaitErr(t, reg, must(s.Delete(42))); err != nil {
		t.Fatalf("delete of missing key: %v", err)
	}
	_, s2 := rwStore(t, conn, "s")
	if err := awaitErr(t, reg, must(s2.Clear())); err != nil {
		t.Fatalf("clear of empty store: %v", err)
	}
}

func TestCountAndDeleteRange(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")

	_, s := rwStore(t, conn, "s")
	for i := 1; i <= 5; i++ {
		must(s.Put(i*10, i))
	}
	countAll := must(s.Count(nil))
	countRange := must(s.Count(must(Bound(2, 4, false, false))))
	deepEqual[any](t, await(t, reg, countAll), 5)
	deepEqual[any](t, await(t, reg, countRange), 3)

	_, s2 := rwStore(t, conn, "s")
	await(t, reg, must(s2.Delete(must(Bound(2, 4, false, true)))))
	tx3 := must(conn.Transaction([]string{"s"}, ReadOnly))
	s3 := must(tx3.ObjectStore("s"))
	deepEqual[any](t, await(t, reg, must(s3.GetAllKeys(nil, 0))),
		any([]any{float64(1), float64(4), float64(5)}))
}

func TestGetAllLimitAndOrder(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")

	_, s := rwStore(t, conn, "s")
	must(s.Put("c", 3))
	must(s.Put("a", 1))
	must(s.Put("b", 2))
	all := must(s.GetAll(nil, 0))
	limited := must(s.GetAll(nil, 2))
	deepEqual[any](t, await(t, reg, all), any([]any{"a", "b", "c"}))
	deepEqual[any](t, await(t, reg, limited), any([]any{"a", "b"}))
}

func TestGetKey(t *testing.T) {
	reg := setup(t)
	conn := plainStore(t, reg, "db", "s")

	_, s := rwStore(t, conn, "s")
	must(s.Put("x", 10))
	found := must(s.GetKey(must(LowerBound(5, false))))
	missing := must(s.GetKey(99))
	deepEqual[any](t, await(t, reg, found), float64(10))
	deepEqual[any](t, await(t, reg, missing), nil)
}

func TestAutoIncrementSkipsExplicitKeys(t *testing.T) {
	reg := setup(t)
	conn := openDB(t, reg, "db", 1, func(conn *Connection, tx *Transaction) {
		must(conn.CreateObjectStore("s", StoreOptions{AutoIncrement: true}))
	})

	_, s := rwStore(t, conn, "s")
	k1 := must(s.Put("a", nil))
	k2 := must(s.Put("b", 10))
	k3 := must(s.Put("c", nil))
	deepEqual[any](t, await(t, reg, k1), float64(1))
	deepEqual[any](t, await(t, reg, k2), float64(10))
	deepEqual[any](t, await(t, reg, k3), float64(11))
}

func TestPutValidation(t *testing.T) {
	reg := setup(t)
	conn := openDB(t, reg, "db", 1, func(conn *Connection, tx *Transaction) {
		must(conn.CreateObjectStore("derive", StoreOptions{KeyPath: "id"}))
		must(conn.CreateObjectStore("explicit", StoreOptions{}))
	})

	tx := must(conn.Transaction([]string{"derive", "explicit"}, ReadWrite))
	derive := must(tx.ObjectStore("derive"))
	explicit := must(tx.ObjectStore("explicit"))

	if _, err := derive.Put(map[string]any{"id": 1}, 2); KindOf(err) != ErrData {
		t.Errorf("explicit key with key path: got %v, wanted DataError", err)
	}
	if _, err := derive.Put(map[string]any{"name": "x"}, nil); KindOf(err) != ErrData {
		t.Errorf("missing key path field without autoIncrement: got %v, wanted DataError", err)
	}
	if _, err := explicit.Put("v", nil); KindOf(err) != ErrData {
		t.Errorf("no key without autoIncrement: got %v, wanted DataError", err)
	}
	if _, err := explicit.Put("v", map[string]any{}); KindOf(err) != ErrData {
		t.Errorf("invalid key type: got %v, wanted DataError", err)
	}
}
