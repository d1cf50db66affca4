package idb

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// Connection is a live handle to a named, versioned database. All
// transactions requested against it are serialized into a single run queue
// and applied atomically, strictly in FIFO order.
type Connection struct {
	emitter
	id      uuid.UUID
	reg     *Registry
	db      *database
	closed  bool
	closing bool

	txns         []*Transaction
	activeTx     *Transaction
	runScheduled bool
}

func newConnection(reg *Registry, db *database) *Connection {
	conn := &Connection{
		id:  uuid.New(),
		reg: reg,
		db:  db,
	}
	db.connections = append(db.connections, conn)
	connectionsOpen.Inc()
	return conn
}

func (c *Connection) Name() string {
	return c.db.name
}

func (c *Connection) Version() uint64 {
	return c.db.version
}

// ObjectStoreNames returns the names of the connection's object stores,
// sorted. During an upgrade it reflects the upgrade transaction's working
// copy, including stores created but not yet committed.
func (c *Connection) ObjectStoreNames() []string {
	if tx := c.activeTx; tx != nil && tx.mode == VersionChange && tx.working != nil {
		names := make([]string, 0, len(tx.working))
		for name := range tx.working {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	return c.db.storeNames()
}

// Transaction enqueues a new transaction over the named stores and returns it
// without running it. The run is debounced: the first transaction after an
// idle period schedules a deferred drain, and transactions requested within
// that window run in one FIFO batch.
func (c *Connection) Transaction(storeNames []string, mode TxMode) (*Transaction, error) {
	if mode != ReadOnly && mode != ReadWrite {
		return nil, typeErrf("invalid transaction mode %v", mode)
	}
	if c.closed || c.closing {
		return nil, invalidStateErrf("connection is closed")
	}
	if len(storeNames) == 0 {
		return nil, typeErrf("transaction scope is empty")
	}
	scope := make(map[string]bool, len(storeNames))
	for _, name := range storeNames {
		if _, ok := c.db.stores[name]; !ok {
			return nil, notFoundErrf("no object store named %q", name)
		}
		scope[name] = true
	}

	tx := newTransaction(c, mode, scope)
	c.txns = append(c.txns, tx)
	c.scheduleRun()
	return tx, nil
}

func (c *Connection) scheduleRun() {
	if c.runScheduled {
		return
	}
	c.runScheduled = true
	c.reg.sched.post(c.run)
}

// run drains the transaction queue. Only one transaction is ever active, and
// each runs to full completion (commit or abort) before the next starts.
func (c *Connection) run() {
	c.runScheduled = false
	for len(c.txns) > 0 {
		tx := c.txns[0]
		c.txns = c.txns[1:]
		c.activeTx = tx
		tx.run()
		c.activeTx = nil
	}
}

// CreateObjectStore creates a new object store. Only legal while an upgrade
// transaction is active; the store exists in the upgrade's working copy and
// becomes durable when the upgrade commits.
func (c *Connection) CreateObjectStore(name string, opt StoreOptions) (*ObjectStore, error) {
	tx := c.upgradeTx()
	if tx == nil {
		return nil, invalidStateErrf("createObjectStore outside of a versionchange transaction")
	}
	if !IsValidIdentifier(name) {
		return nil, typeErrf("invalid object store name %q", name)
	}
	if opt.KeyPath != "" && !IsValidKeyPath(opt.KeyPath) {
		return nil, typeErrf("invalid key path %q", opt.KeyPath)
	}
	if _, ok := tx.working[name]; ok {
		return nil, constraintErrf("object store %q already exists", name)
	}
	tx.working[name] = newStoreData(name, opt.KeyPath, opt.AutoIncrement)
	tx.scope[name] = true
	if c.reg.verbose {
		c.reg.logger.Debug("createObjectStore", slog.String("conn", c.id.String()), slog.String("db", c.db.name), slog.String("store", name))
	}
	return tx.store(name), nil
}

// DeleteObjectStore removes an object store and all its records from the
// upgrade's working copy.
func (c *Connection) DeleteObjectStore(name string) error {
	tx := c.upgradeTx()
	if tx == nil {
		return invalidStateErrf("deleteObjectStore outside of a versionchange transaction")
	}
	if _, ok := tx.working[name]; !ok {
		return notFoundErrf("no object store named %q", name)
	}
	delete(tx.working, name)
	delete(tx.stores, name)
	return nil
}

func (c *Connection) upgradeTx() *Transaction {
	if tx := c.activeTx; tx != nil && tx.mode == VersionChange && !tx.finished {
		return tx
	}
	return nil
}

// Close closes the connection. Any queued transactions are forced to run now;
// afterwards the connection cannot access data. Safe to call repeatedly.
func (c *Connection) Close() {
	if c.closing {
		return
	}
	c.closing = true
	c.run()
	c.closed = true
	c.db.removeConnection(c)
	connectionsOpen.Dec()
	c.emit(Event{Type: EventClose, Target: c})
}

// upgradeTransaction builds the versionchange transaction for an upgrade,
// scoped to every store currently known for this database. Fails if the
// connection already has queued transactions.
func (c *Connection) upgradeTransaction() (*Transaction, error) {
	if len(c.txns) > 0 {
		return nil, invalidStateErrf("connection has queued transactions")
	}
	scope := make(map[string]bool, len(c.db.stores))
	for name := range c.db.stores {
		scope[name] = true
	}
	return newTransaction(c, VersionChange, scope), nil
}
