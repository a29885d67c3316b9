package wal

import (
	"context"

	"github.com/shardgraph/shardgraph/lib/hlc"
)

// RecordKind discriminates the kinds of operations a WAL record can
// carry - one per delta action plus the index/schema operations that
// spec.md §6 says also need persisting.
type RecordKind uint8

const (
	RecordDelta RecordKind = iota
	RecordIndexOp
	RecordSchemaOp
)

// Record is one WAL entry: an opaque payload (the shard's own encoding
// of a delta or index/schema operation) stamped with the HLC it became
// durable at.
type Record struct {
	Kind    RecordKind
	TS      hlc.HLC
	Payload []byte
}

// Log is the narrow contract spec.md §6 describes: append records in
// order, and replay everything after a given HLC (used by recovery,
// which per spec.md replays-from-snapshot-then-applies-WAL and skips
// entries older than the snapshot's upper timestamp).
type Log interface {
	Append(ctx context.Context, rec Record) error
	Replay(ctx context.Context, afterHLC hlc.HLC, fn func(Record) error) error
	Close() error
}
