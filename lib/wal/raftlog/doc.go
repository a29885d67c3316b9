// Package raftlog is the optional Raft-replicated wal.Log implementation:
// records are proposed through a Dragonboat NodeHost and applied by a
// small concurrent state machine that appends to an ordered in-memory
// log and answers range-read queries. Grounded directly on the teacher's
// lib/store/dstore (NewDistributedStore, KVStateMachine) - this is the
// pluggable replicated log spec.md's Non-goals section anticipates,
// present as a real wired option, never required for single-node use.
package raftlog
