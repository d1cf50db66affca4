package idb

import (
	"fmt"
	"log/slog"
)

type TxMode int

const (
	ReadOnly TxMode = iota
	ReadWrite
	VersionChange
)

func (m TxMode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	case VersionChange:
		return "versionchange"
	default:
		return fmt.Sprintf("TxMode(%d)", int(m))
	}
}

// Transaction is an ordered queue of requests sharing one copy-on-write
// snapshot of the stores in scope. It either discards the snapshot (abort) or
// swaps it into durable storage (commit); there is no partial commit.
type Transaction struct {
	emitter
	conn  *Connection
	mode  TxMode
	scope map[string]bool

	// working is the private copy-on-write view of the in-scope stores,
	// created when the transaction first runs. Stores deleted during the
	// transaction are absent; stores created during an upgrade exist only
	// here until commit.
	working map[string]*storeData

	requests []*Request
	started  bool
	finished bool
	aborted  bool

	stores map[string]*ObjectStore // memoized handles
}

func newTransaction(conn *Connection, mode TxMode, scope map[string]bool) *Transaction {
	return &Transaction{
		conn:   conn,
		mode:   mode,
		scope:  scope,
		stores: make(map[string]*ObjectStore),
	}
}

func (tx *Transaction) Mode() TxMode {
	return tx.mode
}

func (tx *Transaction) Connection() *Connection {
	return tx.conn
}

// ObjectStore returns a handle on the named store. The handle is memoized:
// repeated calls return the same value.
func (tx *Transaction) ObjectStore(name string) (*ObjectStore, error) {
	if tx.finished {
		return nil, invalidStateErrf("transaction has finished")
	}
	if !tx.scope[name] {
		return nil, notFoundErrf("object store %q is not in the transaction's scope", name)
	}
	if !tx.storeExists(name) {
		return nil, notFoundErrf("no object store named %q", name)
	}
	return tx.store(name), nil
}

func (tx *Transaction) store(name string) *ObjectStore {
	os := tx.stores[name]
	if os == nil {
		os = &ObjectStore{tx: tx, name: name}
		tx.stores[name] = os
	}
	return os
}

// storeExists checks the working copy once it exists, the live data before.
func (tx *Transaction) storeExists(name string) bool {
	if tx.working != nil {
		_, ok := tx.working[name]
		return ok
	}
	_, ok := tx.conn.db.stores[name]
	return ok
}

// workingStore returns the working copy of the named store at execution time,
// or an InvalidState error if the store was deleted by an earlier operation.
func (tx *Transaction) workingStore(name string) (*storeData, error) {
	s := tx.working[name]
	if s == nil {
		return nil, invalidStateErrf("object store %q no longer exists", name)
	}
	return s, nil
}

// Abort marks the transaction finished and aborted. The run loop observes the
// flag between request executions, stops draining, and discards the working
// copy. Legal from inside a request's completion handler, which runs
// synchronously within the same drain.
func (tx *Transaction) Abort() error {
	if tx.finished {
		return invalidStateErrf("transaction has finished")
	}
	tx.finished = true
	tx.aborted = true
	return nil
}

// enqueue adds a request to the queue. Re-enqueueing an existing request is
// how cursors continue across turns.
func (tx *Transaction) enqueue(req *Request) error {
	if tx.finished {
		return invalidStateErrf("transaction has finished")
	}
	tx.requests = append(tx.requests, req)
	return nil
}

// begin takes the copy-on-write snapshot of every in-scope store from the
// connection's live data. This is the transaction's isolated view.
func (tx *Transaction) begin() {
	tx.started = true
	tx.working = make(map[string]*storeData, len(tx.scope))
	for name := range tx.scope {
		if s := tx.conn.db.stores[name]; s != nil {
			tx.working[name] = s.clone()
		}
	}
}

// run executes the transaction to completion: drain the request queue one at
// a time, each request synchronously, stopping early on abort.
func (tx *Transaction) run() {
	if !tx.started {
		if tx.finished {
			// Aborted before it ever ran.
			tx.abandonFrom(0)
			tx.fireAbort()
			return
		}
		tx.begin()
	}

	i := 0
	for ; i < len(tx.requests); i++ {
		if tx.aborted {
			break
		}
		tx.requests[i].execute()
	}
	if tx.aborted {
		tx.abandonFrom(i)
		tx.working = nil
		tx.fireAbort()
		return
	}
	tx.commit()
}

func (tx *Transaction) abandonFrom(i int) {
	for ; i < len(tx.requests); i++ {
		req := tx.requests[i]
		if !req.done {
			req.finish(nil, abortErrf("transaction aborted"))
		}
	}
}

func (tx *Transaction) fireAbort() {
	tx.finished = true
	txnsAborted.Inc()
	if tx.conn.reg.verbose {
		tx.conn.reg.logger.Debug("transaction aborted",
			slog.String("db", tx.conn.db.name), slog.String("mode", tx.mode.String()))
	}
	e := Event{Type: EventAbort, Target: tx}
	tx.emit(e)
	tx.conn.emit(e)
}

// commit atomically replaces the live data of every store in scope with the
// working copy's version. Stores absent from the working copy (deleted here)
// are removed; stores that exist only in the working copy (created during an
// upgrade) become live.
func (tx *Transaction) commit() {
	db := tx.conn.db
	for name := range tx.scope {
		if s, ok := tx.working[name]; ok {
			db.stores[name] = s
		} else {
			delete(db.stores, name)
		}
	}
	tx.finished = true
	tx.working = nil
	txnsCommitted.Inc()
	if tx.conn.reg.verbose {
		tx.conn.reg.logger.Debug("transaction committed",
			slog.String("db", db.name), slog.String("mode", tx.mode.String()))
	}
	e := Event{Type: EventComplete, Target: tx}
	tx.emit(e)
	tx.conn.emit(e)
}
