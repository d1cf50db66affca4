package idb

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Operation counters, shared by all registries in the process.
var (
	connectionsOpen = metrics.NewCounter("idb_connections_open")
	txnsCommitted   = metrics.NewCounter("idb_txns_committed_total")
	txnsAborted     = metrics.NewCounter("idb_txns_aborted_total")
	putsDone        = metrics.NewCounter("idb_puts_total")
	getsDone        = metrics.NewCounter("idb_gets_total")
	deletesDone     = metrics.NewCounter("idb_deletes_total")
	cursorsOpened   = metrics.NewCounter("idb_cursors_opened_total")
	upgradesDone    = metrics.NewCounter("idb_upgrades_total")
	opensBlocked    = metrics.NewCounter("idb_opens_blocked_total")
)

// WriteMetrics writes all counters in Prometheus text format.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}

// DatabaseStats summarizes one database's durable state.
type DatabaseStats struct {
	Version uint64
	Stores  int
	Records int
	Indexes int
}

// Stats returns a summary of the named database, or false if it does not
// exist.
func (r *Registry) Stats(name string) (DatabaseStats, bool) {
	db, ok := r.databases.Load(name)
	if !ok {
		return DatabaseStats{}, false
	}
	st := DatabaseStats{Version: db.version, Stores: len(db.stores)}
	for _, s := range db.stores {
		st.Records += s.records.count()
		st.Indexes += len(s.indexes)
	}
	return st, true
}
