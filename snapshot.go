package idb

import (
	"fmt"
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshots capture the full durable state of a registry (databases,
// versions, store schemas, records) as a msgpack stream, so a test harness
// can save a fixture and restore it into a fresh registry. Connections and
// pending work are not part of the snapshot.

const snapshotFormatVer = 1

type snapshotData struct {
	FormatVer int                `msgpack:"f"`
	Databases []databaseSnapshot `msgpack:"dbs"`
}

type databaseSnapshot struct {
	Name    string          `msgpack:"n"`
	Version uint64          `msgpack:"v"`
	Stores  []storeSnapshot `msgpack:"s"`
}

type storeSnapshot struct {
	Name          string           `msgpack:"n"`
	KeyPath       string           `msgpack:"kp"`
	AutoIncrement bool             `msgpack:"ai"`
	KeyGen        uint64           `msgpack:"kg"`
	Indexes       []indexSnapshot  `msgpack:"ix"`
	Records       []recordSnapshot `msgpack:"r"`
}

type indexSnapshot struct {
	Name       string `msgpack:"n"`
	KeyPath    string `msgpack:"kp"`
	Unique     bool   `msgpack:"u"`
	MultiEntry bool   `msgpack:"m"`
}

type recordSnapshot struct {
	Key   any `msgpack:"k"`
	Value any `msgpack:"v"`
}

// WriteSnapshot encodes every database's durable state to w. Fails if any
// stored value is an opaque pass-through that msgpack cannot encode.
func (r *Registry) WriteSnapshot(w io.Writer) error {
	snap := snapshotData{FormatVer: snapshotFormatVer}
	for _, name := range r.DatabaseNames() {
		db, ok := r.databases.Load(name)
		if !ok {
			continue
		}
		dbs := databaseSnapshot{Name: db.name, Version: db.version}
		for _, storeName := range db.storeNames() {
			s := db.stores[storeName]
			ss := storeSnapshot{
				Name:          s.name,
				KeyPath:       s.keyPath,
				AutoIncrement: s.autoIncrement,
				KeyGen:        s.keyGen,
			}
			indexNames := make([]string, 0, len(s.indexes))
			for n := range s.indexes {
				indexNames = append(indexNames, n)
			}
			sort.Strings(indexNames)
			for _, n := range indexNames {
				idx := s.indexes[n]
				ss.Indexes = append(ss.Indexes, indexSnapshot{
					Name: idx.name, KeyPath: idx.keyPath, Unique: idx.unique, MultiEntry: idx.multiEntry,
				})
			}
			for _, rec := range s.records.records {
				ss.Records = append(ss.Records, recordSnapshot{Key: rec.key, Value: rec.value})
			}
			dbs.Stores = append(dbs.Stores, ss)
		}
		snap.Databases = append(snap.Databases, dbs)
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("idb: writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the registry's databases with the snapshot read from
// r. Open connections to prior databases keep their now-orphaned data.
func (r *Registry) ReadSnapshot(rd io.Reader) error {
	var snap snapshotData
	if err := msgpack.NewDecoder(rd).Decode(&snap); err != nil {
		return fmt.Errorf("idb: reading snapshot: %w", err)
	}
	if snap.FormatVer != snapshotFormatVer {
		return fmt.Errorf("idb: unsupported snapshot format %d", snap.FormatVer)
	}

	r.Reset()
	for _, dbs := range snap.Databases {
		db := &database{name: dbs.Name, version: dbs.Version, stores: make(map[string]*storeData)}
		for _, ss := range dbs.Stores {
			s := newStoreData(ss.Name, ss.KeyPath, ss.AutoIncrement)
			s.keyGen = ss.KeyGen
			for _, is := range ss.Indexes {
				s.indexes[is.Name] = &indexData{name: is.Name, keyPath: is.KeyPath, unique: is.Unique, multiEntry: is.MultiEntry}
			}
			for _, rs := range ss.Records {
				key, ok := canonicalKey(rs.Key)
				if !ok {
					return fmt.Errorf("idb: snapshot store %s/%s: invalid key %T %v", dbs.Name, ss.Name, rs.Key, rs.Key)
				}
				s.records.put(key, rs.Value)
			}
			db.stores[ss.Name] = s
		}
		r.databases.Store(dbs.Name, db)
	}
	return nil
}
