package idb

// Request operations are tagged values carrying their captured arguments,
// evaluated against the transaction's working data when executed. This keeps
// deferred work free of closures over mutable aliases.
type opKind uint8

const (
	opPut opKind = iota
	opGet
	opGetKey
	opGetAll
	opGetAllKeys
	opCount
	opDelete
	opClear
	opOpenCursor
	opCursorContinue
)

type operation struct {
	kind      opKind
	storeName string
	indexName string // "" for store-level operations

	value          any // put: pre-cloned value
	key            any // put: explicit key (nil for none)
	query          any // key, *KeyRange, []any of keys, or nil
	rejectIfExists bool
	limit          int     // getAll family; 0 = unlimited
	cursor         *Cursor // openCursor result carrier / continuation target
}

// Request is a deferred, single-shot unit of work bound to a transaction.
// Once done it is immutable, except that cursor requests are re-armed when
// their cursor continues.
type Request struct {
	emitter
	tx     *Transaction
	source any // *ObjectStore, *Index, or nil
	op     operation

	done   bool
	result any
	err    error
}

func newRequest(tx *Transaction, source any, op operation) (*Request, error) {
	req := &Request{tx: tx, source: source, op: op}
	if err := tx.enqueue(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Source returns the object store or index handle the request was issued
// against, or nil for schema-only requests.
func (req *Request) Source() any {
	return req.source
}

func (req *Request) Transaction() *Transaction {
	return req.tx
}

// Done reports whether the request has completed (successfully or not).
func (req *Request) Done() bool {
	return req.done
}

// Result returns the request's result. Fails with an InvalidState error while
// the request is still pending.
func (req *Request) Result() (any, error) {
	if !req.done {
		return nil, invalidStateErrf("request is still pending")
	}
	return req.result, req.err
}

func (req *Request) finish(result any, err error) {
	req.result = result
	req.err = err
	req.done = true
	if err != nil {
		e := Event{Type: EventError, Target: req, Err: err}
		req.emit(e)
		// Errors bubble: request → transaction → connection.
		req.tx.emit(e)
		req.tx.conn.emit(e)
	} else {
		req.emit(Event{Type: EventSuccess, Target: req})
	}
}

// execute evaluates the operation against the transaction's working data.
// The target store (and index) existence is re-checked here: an earlier
// operation in the same transaction may have deleted it.
func (req *Request) execute() {
	op := &req.op
	store, err := req.tx.workingStore(op.storeName)
	if err != nil {
		req.finish(nil, err)
		return
	}
	var index *indexData
	if op.indexName != "" {
		index = store.indexes[op.indexName]
		if index == nil {
			req.finish(nil, invalidStateErrf("index %q no longer exists", op.indexName))
			return
		}
	}

	switch op.kind {
	case opPut:
		req.finish(executePut(store, op))
	case opGet:
		req.finish(executeGet(store, index, op))
	case opGetKey:
		req.finish(executeGetKey(store, index, op))
	case opGetAll:
		req.finish(executeGetAll(store, index, op))
	case opGetAllKeys:
		req.finish(executeGetAllKeys(store, index, op))
	case opCount:
		req.finish(executeCount(store, index, op))
	case opDelete:
		req.finish(executeDelete(store, op))
	case opClear:
		store.records.clear()
		req.finish(nil, nil)
	case opOpenCursor:
		req.finish(executeOpenCursor(store, index, op))
	case opCursorContinue:
		req.finish(executeCursorContinue(store, op))
	default:
		panic("unknown operation")
	}
}
