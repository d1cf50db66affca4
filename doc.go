/*
Package idb emulates a transactional, versioned, document-oriented object
store in the style of a browser's IndexedDB, entirely in memory, so that code
depending on such a store can run in environments lacking a native
implementation.

We implement:

1. Databases: named, versioned collections of object stores, held in a
process-scoped Registry.

2. Object stores: tables of unique-keyed records, with optional key paths and
auto-increment key generation.

3. Indexes: secondary orderings of a store's records by a field of the value,
recomputed on read.

4. Transactions: atomic, ordered batches of requests isolated via
copy-on-write until commit.

5. Cursors: positioned, steppable views over pre-sorted, filtered record
sequences.

# Technical Details

**Scheduling.**
The engine models a single-threaded host with a cooperative task queue. Open
requests and transaction run loops execute "one tick later": they are posted
to the registry's scheduler and run when Registry.Flush drains it. Once a run
begins it is fully synchronous: transactions never interleave, and within a
transaction each request runs to completion before the next starts.

**Isolation.**
A transaction takes a structural copy of every in-scope store when it first
runs, executes its requests against that private copy, and on commit swaps
the copy into durable storage. Abort simply discards the copy; durable state
is never touched before commit.

**Keys.**
Valid keys are finite numbers, strings and dates. Mixed types order as
Number < Date < String, with natural order within each type; the comparator
is exported as CompareKeys.

**Values.**
Values are deep-cloned into plain data on put (and again on get), so the
store never aliases caller-owned structures. Values that are not JSON-like
fail with a DataClone error, except opaque non-plain objects, which pass
through by reference as an escape hatch for host-specific blobs.
*/
package idb
