package raftlog

import (
	"context"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/wal"
)

// Log replicates wal.Record appends through a Dragonboat raft group.
// Grounded on lib/store/dstore.storeImpl: a thin wrapper around a
// *dragonboat.NodeHost bound to one shard id, using SyncPropose to
// append and SyncRead for the Replay range query.
type Log struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	timeout time.Duration
}

// New wraps an already-started Dragonboat replica (see
// CreateStateMachineFactory, started the way the teacher starts dstore's
// shards via nh.StartConcurrentReplica).
func New(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) *Log {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Log{nh: nh, shardID: shardID, timeout: timeout}
}

func (l *Log) Append(ctx context.Context, rec wal.Record) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	session := l.nh.GetNoOPSession(l.shardID)
	_, err := l.nh.SyncPropose(ctx, session, encodeRecord(rec))
	if err != nil {
		return fmt.Errorf("raftlog: propose failed: %w", err)
	}
	return nil
}

func (l *Log) Replay(ctx context.Context, afterHLC hlc.HLC, fn func(wal.Record) error) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	result, err := l.nh.SyncRead(ctx, l.shardID, readQuery{AfterHLC: afterHLC})
	if err != nil {
		return fmt.Errorf("raftlog: read failed: %w", err)
	}

	records, ok := result.([]wal.Record)
	if !ok {
		return fmt.Errorf("raftlog: unexpected query result type %T", result)
	}
	for _, rec := range records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) Close() error { return nil }
