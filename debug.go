package idb

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpStoreHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpStats
	DumpIndexes

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// DumpDatabase returns a human-readable dump of the named database's durable
// state, for debugging and test failure output.
func (r *Registry) DumpDatabase(name string, f DumpFlags) string {
	db, ok := r.databases.Load(name)
	if !ok {
		return fmt.Sprintf("NO DATABASE %q\n", name)
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\n%s (version %d, %d stores)\n", dumpSep1, db.name, db.version, len(db.stores))
	for _, storeName := range db.storeNames() {
		dumpStore(&buf, f, db.stores[storeName])
	}
	return buf.String()
}

func dumpStore(w *strings.Builder, f DumpFlags, s *storeData) {
	if f.Contains(DumpStoreHeaders) {
		fmt.Fprintln(w, dumpSep2)
		fmt.Fprintf(w, "%s (%d records)\n", s.name, s.records.count())
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: key_path = %q, auto_increment = %v, key_gen = %d, indexes = %d\n",
			s.name, s.keyPath, s.autoIncrement, s.keyGen, len(s.indexes))
	}
	if f.Contains(DumpIndexes) {
		for _, idx := range s.indexes {
			fmt.Fprintf(w, "%s.index %s: key_path = %q, unique = %v, multi_entry = %v\n",
				s.name, idx.name, idx.keyPath, idx.unique, idx.multiEntry)
		}
	}
	if f.Contains(DumpRecords) {
		for _, rec := range s.records.records {
			fmt.Fprintf(w, "%s/%s = %s\n", s.name, loggableKey(rec.key), loggableValue(rec.value))
		}
	}
}

func loggableKey(key any) string {
	switch k := key.(type) {
	case string:
		return fmt.Sprintf("%q", k)
	default:
		return fmt.Sprintf("%v", k)
	}
}

func loggableValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%T>", v)
	}
	return string(data)
}
