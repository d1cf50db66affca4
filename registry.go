package idb

import (
	"log/slog"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is the process-scoped repository of databases shared by all
// connections. It also owns the cooperative scheduler that stands in for the
// host's task queue: open/delete requests and connection run loops execute on
// it, one tick at a time.
//
// The engine models a single-threaded host. Apart from DatabaseNames and
// Reset, a Registry and everything reached through it must be driven from one
// goroutine.
type Registry struct {
	databases *xsync.MapOf[string, *database]
	sched     scheduler
	logger    *slog.Logger
	verbose   bool
}

type Options struct {
	Logger  *slog.Logger
	Verbose bool
}

func NewRegistry(opt Options) *Registry {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		databases: xsync.NewMapOf[string, *database](),
		logger:    logger,
		verbose:   opt.Verbose,
	}
}

// Flush drains the scheduler: every pending task runs, in order, including
// tasks posted by earlier tasks. This is the "one tick later" of the model;
// call it after requesting opens or transactions to let them complete.
func (r *Registry) Flush() {
	r.sched.flush()
}

// DatabaseNames returns the names of all databases, sorted.
func (r *Registry) DatabaseNames() []string {
	var names []string
	r.databases.Range(func(name string, _ *database) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Reset discards all databases, connections and pending tasks. For test
// isolation.
func (r *Registry) Reset() {
	r.databases.Range(func(name string, _ *database) bool {
		r.databases.Delete(name)
		return true
	})
	r.sched.reset()
}

// database is the durable per-name state: version, store data, and the set
// of open connections. Mutated only by the commit step of a finished
// transaction and by version negotiation.
type database struct {
	name        string
	version     uint64
	stores      map[string]*storeData
	connections []*Connection
}

func (db *database) removeConnection(conn *Connection) {
	for i, c := range db.connections {
		if c == conn {
			db.connections = append(db.connections[:i], db.connections[i+1:]...)
			return
		}
	}
}

func (db *database) storeNames() []string {
	names := make([]string, 0, len(db.stores))
	for name := range db.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scheduler is a FIFO queue of deferred tasks. Both artificial suspensions of
// the model (auto-run of open requests, debounced connection runs) are posts
// to this queue; flush drains it synchronously.
type scheduler struct {
	tasks   []func()
	running bool
}

func (s *scheduler) post(f func()) {
	s.tasks = append(s.tasks, f)
}

func (s *scheduler) flush() {
	if s.running {
		return // already draining further up the stack
	}
	s.running = true
	defer func() { s.running = false }()
	for len(s.tasks) > 0 {
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		task()
	}
}

func (s *scheduler) reset() {
	s.tasks = nil
}
