// Package wal defines the narrow write-ahead-log contract a shard
// appends to: each record carries a kind (delta, index operation or
// schema operation), an HLC and an opaque payload, per spec.md §6's
// "Persisted layout". The shard currently appends one payload-free
// delta record per commit (see shard.Shard.Commit). This
// package only carries the contract; lib/wal/memlog and lib/wal/raftlog
// provide the in-memory default and the optional Raft-replicated
// implementation.
package wal
