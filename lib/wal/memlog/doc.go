// Package memlog is the default, non-replicated wal.Log implementation:
// an in-memory ring buffer. Used by tests and single-node deployments,
// grounded on the teacher's lstore local store (which wrapped a KVDB
// behind an atomic write-index counter).
package memlog
