package memlog

import (
	"context"
	"sync"

	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/wal"
)

// Log is an in-memory, non-replicated wal.Log. Records are kept in a
// fixed-capacity ring; once full, the oldest record is evicted - a
// single-node deployment is expected to pair this with periodic
// snapshotting so replay never needs more than the ring retains.
type Log struct {
	mu       sync.RWMutex
	capacity int
	records  []wal.Record
	start    int // index of the oldest record in records
	count    int
}

// New returns a Log that retains up to capacity records.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Log{capacity: capacity, records: make([]wal.Record, capacity)}
}

func (l *Log) Append(_ context.Context, rec wal.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.start + l.count) % l.capacity
	l.records[idx] = rec
	if l.count < l.capacity {
		l.count++
	} else {
		l.start = (l.start + 1) % l.capacity
	}
	return nil
}

func (l *Log) Replay(_ context.Context, afterHLC hlc.HLC, fn func(wal.Record) error) error {
	l.mu.RLock()
	snapshot := make([]wal.Record, l.count)
	for i := 0; i < l.count; i++ {
		snapshot[i] = l.records[(l.start+i)%l.capacity]
	}
	l.mu.RUnlock()

	for _, rec := range snapshot {
		if hlc.Compare(rec.TS, afterHLC) <= 0 {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) Close() error { return nil }
