package idb

import "log/slog"

// OpenRequest is the single-shot request produced by Registry.Open and
// Registry.DeleteDatabase. It runs automatically on the next scheduling turn
// and reports the outcome through its result and the success/error/blocked/
// upgradeneeded events. A blocked request never completes: closing the stale
// connections and reissuing the open is the caller's responsibility.
type OpenRequest struct {
	emitter
	reg     *Registry
	name    string
	version uint64 // 0 requests deletion

	done      bool
	result    *Connection
	err       error
	upgradeTx *Transaction
}

// Open requests a connection to the named database at the given version,
// negotiating an upgrade when version is higher than the stored one. The
// request completes on the next Flush.
func (r *Registry) Open(name string, version uint64) (*OpenRequest, error) {
	if !IsValidIdentifier(name) {
		return nil, typeErrf("invalid database name %q", name)
	}
	if !IsValidVersion(version) {
		return nil, typeErrf("invalid version %d", version)
	}
	return r.openOrDelete(name, version), nil
}

// DeleteDatabase requests removal of the named database, its version record
// and its connection registry entry.
func (r *Registry) DeleteDatabase(name string) (*OpenRequest, error) {
	if !IsValidIdentifier(name) {
		return nil, typeErrf("invalid database name %q", name)
	}
	return r.openOrDelete(name, 0), nil
}

func (r *Registry) openOrDelete(name string, version uint64) *OpenRequest {
	req := &OpenRequest{reg: r, name: name, version: version}
	r.sched.post(req.run)
	return req
}

// Done reports whether the request has completed. Blocked requests never do.
func (req *OpenRequest) Done() bool {
	return req.done
}

// Result returns the opened connection (nil for deletions). Fails with an
// InvalidState error while the request is pending.
func (req *OpenRequest) Result() (*Connection, error) {
	if !req.done {
		return nil, invalidStateErrf("request is still pending")
	}
	return req.result, req.err
}

// Transaction returns the upgrade transaction while it is active (i.e.
// during upgradeneeded dispatch), nil otherwise.
func (req *OpenRequest) Transaction() *Transaction {
	return req.upgradeTx
}

func (req *OpenRequest) run() {
	reg := req.reg
	db, _ := reg.databases.Load(req.name)

	if req.version == 0 {
		req.runDelete(db)
		return
	}

	var current uint64
	if db != nil {
		current = db.version
	}

	switch {
	case req.version < current:
		req.finish(nil, versionErrf("requested version %d is less than the existing version %d", req.version, current))

	case req.version == current:
		req.finish(newConnection(reg, db), nil)

	default:
		req.runUpgrade(db, current)
	}
}

func (req *OpenRequest) runDelete(db *database) {
	if db != nil {
		if !req.closeOthers(db, 0) {
			return
		}
		req.reg.databases.Delete(req.name)
	}
	req.finish(nil, nil)
}

func (req *OpenRequest) runUpgrade(db *database, current uint64) {
	reg := req.reg
	if db == nil {
		db = &database{name: req.name, stores: make(map[string]*storeData)}
		reg.databases.Store(req.name, db)
	} else if !req.closeOthers(db, req.version) {
		return
	}

	conn := newConnection(reg, db)
	tx := must(conn.upgradeTransaction())
	tx.begin()
	conn.activeTx = tx
	req.upgradeTx = tx

	// Schema mutations are legal while the versionchange transaction is
	// active, so the notification fires before the transaction drains.
	req.emit(Event{Type: EventUpgradeNeeded, Target: req, OldVersion: current, NewVersion: req.version})
	tx.run()

	conn.activeTx = nil
	req.upgradeTx = nil

	if tx.aborted {
		conn.Close()
		if current == 0 {
			// The upgrade that would have created the database failed.
			reg.databases.Delete(req.name)
		}
		req.finish(nil, abortErrf("upgrade transaction was aborted"))
		return
	}

	db.version = req.version
	upgradesDone.Inc()
	if reg.verbose {
		reg.logger.Debug("database upgraded",
			slog.String("db", db.name),
			slog.Uint64("old", current), slog.Uint64("new", req.version))
	}
	req.finish(conn, nil)
}

// closeOthers notifies every other open connection of the impending version
// change. If any remain open afterwards, the request reports blocked and
// stays incomplete.
func (req *OpenRequest) closeOthers(db *database, newVersion uint64) bool {
	conns := make([]*Connection, len(db.connections))
	copy(conns, db.connections)
	for _, c := range conns {
		c.emit(Event{Type: EventVersionChange, Target: c, OldVersion: db.version, NewVersion: newVersion})
	}
	for _, c := range db.connections {
		if !c.closing {
			opensBlocked.Inc()
			req.emit(Event{Type: EventBlocked, Target: req, OldVersion: db.version, NewVersion: newVersion})
			return false
		}
	}
	return true
}

func (req *OpenRequest) finish(conn *Connection, err error) {
	req.result = conn
	req.err = err
	req.done = true
	if err != nil {
		req.emit(Event{Type: EventError, Target: req, Err: err})
	} else {
		req.emit(Event{Type: EventSuccess, Target: req})
	}
}
