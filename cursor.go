package idb

import (
	"fmt"
	"log/slog"
)

type Direction int

const (
	Next Direction = iota
	NextUnique
	Prev
	PrevUnique
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case NextUnique:
		return "nextunique"
	case Prev:
		return "prev"
	case PrevUnique:
		return "prevunique"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) reverse() bool {
	return d == Prev || d == PrevUnique
}

func (d Direction) unique() bool {
	return d == NextUnique || d == PrevUnique
}

type cursorEntry struct {
	key        any
	primaryKey any
}

// Cursor is a positioned, steppable view over a pre-sorted, filtered
// sequence of (key, primaryKey) candidates. The candidate list is computed
// eagerly when the owning request first executes, not at call time, so
// records written by earlier requests in the same transaction are visible.
// Values are looked up live from the working store at each position.
type Cursor struct {
	req       *Request
	source    any
	query     any
	dir       Direction
	withValue bool

	loaded     bool
	candidates []cursorEntry
	pos        int
	exhausted  bool

	key        any
	primaryKey any
	value      any

	contKey        any
	contPrimaryKey any
	advanceCount   int
}

// Key returns the cursor's current key (the index key for index cursors), or
// nil when the cursor has run out.
func (c *Cursor) Key() any {
	return c.key
}

// PrimaryKey returns the current record's primary key, or nil when the
// cursor has run out.
func (c *Cursor) PrimaryKey() any {
	return c.primaryKey
}

// Value returns the current record's value on a value-bearing cursor, or nil
// for key-only cursors and exhausted cursors.
func (c *Cursor) Value() any {
	return c.value
}

func (c *Cursor) Direction() Direction {
	return c.dir
}

// Source returns the object store or index handle the cursor iterates over.
func (c *Cursor) Source() any {
	return c.source
}

// Request returns the request that reports the cursor's positions.
func (c *Cursor) Request() *Request {
	return c.req
}

// load computes the candidate list from the store's records:
// filter by query, sort ascending, collapse duplicate keys for unique
// directions (keeping the first occurrence), reverse for prev directions.
func (c *Cursor) load(store *storeData, index *indexData) {
	c.loaded = true
	c.pos = -1

	var candidates []cursorEntry
	for _, e := range sourceEntries(store, index) {
		if !matchQuery(c.query, e.key) {
			continue
		}
		candidates = append(candidates, cursorEntry{key: e.key, primaryKey: e.primaryKey})
	}
	if c.dir.unique() {
		// Collapse by key value rather than entry identity, so true
		// duplicates actually collapse.
		deduped := candidates[:0]
		for _, e := range candidates {
			if len(deduped) > 0 && sameKey(deduped[len(deduped)-1].key, e.key) {
				continue
			}
			deduped = append(deduped, e)
		}
		candidates = deduped
	}
	if c.dir.reverse() {
		for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
	}
	c.candidates = candidates
	cursorsOpened.Inc()
	if reg := c.req.tx.conn.reg; reg.verbose {
		reg.logger.Debug("cursor opened",
			slog.String("store", c.req.op.storeName),
			slog.String("index", c.req.op.indexName),
			slog.String("dir", c.dir.String()),
			slog.Int("candidates", len(candidates)))
	}
}

// progress advances one step, updating key/primaryKey/value. Running out
// sets all three to nil.
func (c *Cursor) progress(store *storeData) bool {
	c.pos++
	if c.pos >= len(c.candidates) {
		c.exhausted = true
		c.key, c.primaryKey, c.value = nil, nil, nil
		return false
	}
	e := c.candidates[c.pos]
	c.key, c.primaryKey = e.key, e.primaryKey
	c.value = nil
	if c.withValue {
		if v, ok := store.records.get(e.primaryKey); ok {
			c.value = must(cloneValue(v))
		}
	}
	return true
}

// keySatisfied reports whether the current key has reached target in the
// cursor's direction of travel.
func (c *Cursor) keySatisfied(target any) bool {
	cmp := compareCanonical(c.key, target)
	if c.dir.reverse() {
		return cmp <= 0
	}
	return cmp >= 0
}

func (c *Cursor) pairSatisfied(targetKey, targetPrimary any) bool {
	cmp := compareCanonical(c.key, targetKey)
	if cmp == 0 {
		cmp = compareCanonical(c.primaryKey, targetPrimary)
	}
	if c.dir.reverse() {
		return cmp <= 0
	}
	return cmp >= 0
}

// checkPositionable validates call sequencing for the positioning
// operations: only between completions, and only while entries remain.
func (c *Cursor) checkPositionable() error {
	if !c.req.done {
		return invalidStateErrf("cursor request is still pending")
	}
	if c.exhausted {
		return invalidStateErrf("cursor has run out of entries")
	}
	return nil
}

// Continue advances at least one step, then keeps advancing until the key
// satisfies targetKey if one is given. The owning request is re-enqueued and
// reports the new position on the next scheduling turn.
func (c *Cursor) Continue(targetKey any) error {
	if err := c.checkPositionable(); err != nil {
		return err
	}
	var target any
	if targetKey != nil {
		k, ok := canonicalKey(targetKey)
		if !ok {
			return dataErrf("invalid key %T %v", targetKey, targetKey)
		}
		target = k
	}
	c.contKey = target
	c.contPrimaryKey = nil
	c.advanceCount = 1
	return c.rearm()
}

// Advance steps the cursor n times.
func (c *Cursor) Advance(n int) error {
	if n < 1 {
		return typeErrf("advance count must be at least 1, got %d", n)
	}
	if err := c.checkPositionable(); err != nil {
		return err
	}
	c.contKey = nil
	c.contPrimaryKey = nil
	c.advanceCount = n
	return c.rearm()
}

// ContinuePrimaryKey advances until both the key and the primary key targets
// are satisfied.
func (c *Cursor) ContinuePrimaryKey(targetKey, targetPrimaryKey any) error {
	if err := c.checkPositionable(); err != nil {
		return err
	}
	k, ok := canonicalKey(targetKey)
	if !ok {
		return dataErrf("invalid key %T %v", targetKey, targetKey)
	}
	pk, ok := canonicalKey(targetPrimaryKey)
	if !ok {
		return dataErrf("invalid primary key %T %v", targetPrimaryKey, targetPrimaryKey)
	}
	c.contKey = k
	c.contPrimaryKey = pk
	c.advanceCount = 1
	return c.rearm()
}

// rearm re-enqueues the owning request as a cursor continuation.
func (c *Cursor) rearm() error {
	req := c.req
	req.op.kind = opCursorContinue
	if err := req.tx.enqueue(req); err != nil {
		return err
	}
	req.done = false
	return nil
}

// Delete removes the record at the cursor's current primary key, delegating
// to the owning store.
func (c *Cursor) Delete() (*Request, error) {
	if !c.withValue {
		return nil, invalidStateErrf("delete on a key-only cursor")
	}
	if err := c.checkPositionable(); err != nil {
		return nil, err
	}
	op := operation{kind: opDelete, storeName: c.req.op.storeName, query: c.primaryKey}
	return newRequest(c.req.tx, c, op)
}

// Update stores value at the cursor's current primary key, delegating to the
// owning store's put. If the store derives keys from a key path, the value
// must carry the cursor's primary key.
func (c *Cursor) Update(value any) (*Request, error) {
	if !c.withValue {
		return nil, invalidStateErrf("update on a key-only cursor")
	}
	if err := c.checkPositionable(); err != nil {
		return nil, err
	}
	cloned, err := cloneValue(value)
	if err != nil {
		return nil, err
	}
	tx := c.req.tx
	op := operation{kind: opPut, storeName: c.req.op.storeName, value: cloned}
	if keyPath := c.storeKeyPath(tx); keyPath != "" {
		derived, ok := resolveKeyPath(cloned, keyPath)
		if !ok {
			return nil, dataErrf("value has no field at key path %q", keyPath)
		}
		k, ok := canonicalKey(derived)
		if !ok || !sameKey(k, c.primaryKey) {
			return nil, dataErrf("value key does not match the cursor's primary key")
		}
	} else {
		op.key = c.primaryKey
	}
	return newRequest(tx, c, op)
}

func (c *Cursor) storeKeyPath(tx *Transaction) string {
	if s := tx.working[c.req.op.storeName]; s != nil {
		return s.keyPath
	}
	return ""
}

// executeOpenCursor builds the candidate list (first execution) and positions
// the cursor on its first record. The result is the cursor while positioned,
// nil once iteration has passed the end.
func executeOpenCursor(store *storeData, index *indexData, op *operation) (any, error) {
	c := op.cursor
	c.load(store, index)
	if c.progress(store) {
		return c, nil
	}
	return nil, nil
}

// executeCursorContinue performs the pending positioning steps queued by
// Continue/Advance/ContinuePrimaryKey.
func executeCursorContinue(store *storeData, op *operation) (any, error) {
	c := op.cursor
	for i := 0; i < c.advanceCount; i++ {
		if !c.progress(store) {
			return nil, nil
		}
	}
	if c.contKey != nil {
		for {
			if c.contPrimaryKey != nil {
				if c.pairSatisfied(c.contKey, c.contPrimaryKey) {
					break
				}
			} else if c.keySatisfied(c.contKey) {
				break
			}
			if !c.progress(store) {
				return nil, nil
			}
		}
	}
	return c, nil
}
