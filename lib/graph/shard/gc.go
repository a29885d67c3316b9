package shard

import (
	"strconv"
	"sync"

	"github.com/shardgraph/shardgraph/lib/graph/gstore"
	"github.com/shardgraph/shardgraph/lib/graph/mvcc"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
)

// deferredBatch is one GC cycle's reclaimable set, tagged with the
// watermark in effect when it was staged. It is only safe to actually
// free the batch once a later cycle's watermark has advanced past the
// tag, per spec.md §4.11 ("freed only after G has advanced past that
// tag") and SPEC_FULL.md §9's deferred-delete staging detail, ported
// from original_source/storage/garbage_collector.hpp's
// deferred_deleter_ sidecar.
type deferredBatch struct {
	stagedAt hlc.HLC
	vertices []value.Key
	edges    []*gstore.EdgeEntry
}

// gcState is the shard's GC bookkeeping: the deferred-delete ring (here
// an unbounded slice - a real deployment would cap cycles-in-flight,
// but nothing in this port produces more than a handful of concurrent
// cycles) plus a dedup set so a still-unreachable object already staged
// in an earlier cycle is not staged twice.
type gcState struct {
	mu      sync.Mutex
	pending []deferredBatch
	staged  map[string]struct{} // vertices keyed by value.Key.String() (Key is a slice and not map-keyable), edges by "edge/<gid>"
}

func newGCState() *gcState {
	return &gcState{staged: make(map[string]struct{})}
}

// CollectGarbage advances one GC cycle, per spec.md §4.11: free batches
// whose tag the current watermark has passed, then scan the vertex and
// edge containers for objects no longer reachable by any transaction in
// the oldest-active snapshot and stage them.
func (s *Shard) CollectGarbage() {
	snapshot := s.engine.OldestActiveSnapshot()

	s.gc.mu.Lock()
	kept := s.gc.pending[:0]
	var toFree []deferredBatch
	for _, batch := range s.gc.pending {
		if hlc.Compare(batch.stagedAt, snapshot.Watermark) < 0 {
			toFree = append(toFree, batch)
		} else {
			kept = append(kept, batch)
		}
	}
	s.gc.pending = kept
	s.gc.mu.Unlock()

	for _, batch := range toFree {
		for _, pk := range batch.vertices {
			s.vertices.Delete(pk)
			s.deletedVertices.Add(1)
			s.gc.mu.Lock()
			delete(s.gc.staged, pk.String())
			s.gc.mu.Unlock()
		}
		for _, e := range batch.edges {
			s.edges.Delete(e)
			s.deletedEdges.Add(1)
			s.gc.mu.Lock()
			delete(s.gc.staged, "edge/"+strconv.FormatUint(e.GID, 10))
			s.gc.mu.Unlock()
		}
	}

	var newBatch deferredBatch
	newBatch.stagedAt = snapshot.Watermark

	s.vertices.Ascend(nil, func(e *gstore.VertexEntry) bool {
		key := e.Key.String()
		s.gc.mu.Lock()
		_, already := s.gc.staged[key]
		s.gc.mu.Unlock()
		if already {
			return true
		}
		if !mvcc.GCVisible(&e.Header, s.engine, snapshot) {
			newBatch.vertices = append(newBatch.vertices, e.Key)
			s.gc.mu.Lock()
			s.gc.staged[key] = struct{}{}
			s.gc.mu.Unlock()
		}
		return true
	})

	s.edges.Ascend(func(e *gstore.EdgeEntry) bool {
		key := "edge/" + strconv.FormatUint(e.GID, 10)
		s.gc.mu.Lock()
		_, already := s.gc.staged[key]
		s.gc.mu.Unlock()
		if already {
			return true
		}
		if !mvcc.GCVisible(&e.Header, s.engine, snapshot) {
			newBatch.edges = append(newBatch.edges, e)
			s.gc.mu.Lock()
			s.gc.staged[key] = struct{}{}
			s.gc.mu.Unlock()
		}
		return true
	})

	if len(newBatch.vertices) > 0 || len(newBatch.edges) > 0 {
		s.gc.mu.Lock()
		s.gc.pending = append(s.gc.pending, newBatch)
		s.gc.mu.Unlock()
	}
}
