/*
Package storage implements the pkg/raft.Storage port on top of BoltDB.

Each engine owns one Store, backed by a single file at
<dataDir>/raft.db, holding three buckets:

	meta     -- current term, current vote, bootstrap marker
	log      -- log entries keyed by big-endian index, gob-encoded
	snapshot -- the most recent snapshot, single key

# Transaction model

Load, Bootstrap, SetTerm and SetVote run synchronously against the
database: the engine always needs their result before it can do anything
else, so there is no benefit to a callback here. Append, Truncate and
SnapshotPut are queued onto a single background goroutine (the write
loop) so the engine's own goroutine never blocks on an fsync; their
completion callback fires once the write transaction commits, on the
write-loop goroutine, and the caller is responsible for marshaling that
callback back onto the engine's own goroutine the same way it does with
every other Storage/Transport completion.

# Durability

BoltDB fsyncs on every committed write transaction. A crash between
Append's callback firing and the next write is not possible: the
callback only fires after commit.

# See also

  - pkg/raft/ports.go for the Storage interface this package implements
  - pkg/raft/fixture/storage.go for the in-memory equivalent used by tests
*/
package storage
