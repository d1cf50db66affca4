package idb

// Event names emitted by requests, transactions and connections.
const (
	EventSuccess       = "success"
	EventError         = "error"
	EventBlocked       = "blocked"
	EventUpgradeNeeded = "upgradeneeded"
	EventComplete      = "complete"
	EventAbort         = "abort"
	EventVersionChange = "versionchange"
	EventClose         = "close"
)

// Event is the payload delivered to listeners. Target is the entity the event
// fired on originally, even when the event is also delivered to an enclosing
// entity (request errors bubble to the transaction and connection, aborts to
// the connection).
type Event struct {
	Type   string
	Target any

	// Set on upgradeneeded and versionchange events.
	OldVersion uint64
	NewVersion uint64

	// Set on error and abort events.
	Err error
}

// EventHandler observes a single event. Handlers run synchronously on the
// dispatching goroutine; state they mutate (e.g. aborting the transaction) is
// visible to the dispatcher immediately after dispatch returns.
type EventHandler func(Event)

type emitter struct {
	handlers map[string][]EventHandler
}

// On registers a handler for the named event. Multiple handlers fire in
// registration order.
func (em *emitter) On(event string, h EventHandler) {
	if em.handlers == nil {
		em.handlers = make(map[string][]EventHandler)
	}
	em.handlers[event] = append(em.handlers[event], h)
}

func (em *emitter) emit(e Event) {
	for _, h := range em.handlers[e.Type] {
		h(e)
	}
}
