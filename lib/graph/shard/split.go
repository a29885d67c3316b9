package shard

import (
	"fmt"

	"github.com/shardgraph/shardgraph/lib/graph/gstore"
	"github.com/shardgraph/shardgraph/lib/graph/index"
	"github.com/shardgraph/shardgraph/lib/graph/mvcc"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/schema"
	"github.com/shardgraph/shardgraph/lib/graph/txn"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
)

// ErrStaleShardVersion is returned by PerformSplit when oldVer no
// longer matches the shard's current version - the same staleness
// check I7 requires of the router (spec.md §7's StaleShardMap error
// kind), applied here to the split call itself so a second,
// stale-suggestion-triggered split request can never re-split an
// already-split shard.
var ErrStaleShardVersion = fmt.Errorf("%w: stale shard version", txn.ErrStaleShardMap)

// SplitData is spec.md §4.8 step 7's return value: the two successor
// shards, the stamped versions the shard manager installs, and which
// transactions still open at split time were adopted by which
// successor(s) (invariant I5). A caller holding a live txn.Accessor for
// one of these ids must rebind it (Accessor.Rebind) to the matching
// successor's Store, via that Shard's StoreView, before issuing any
// further operation or calling Commit/Abort - per scenario D in spec.md
// §8, the transaction "continues" on whichever successor it lands on.
type SplitData struct {
	LHS, RHS               *Shard
	LHSVersion, RHSVersion hlc.HLC
	LHSActive, RHSActive   []mvcc.TxID
}

// PerformSplit partitions the shard at splitKey into two successors
// whose union equals the parent's keyspace, per spec.md §4.8 steps
// 2-6 and §6's shard admin interface
// (`PerformSplit(split_key, old_ver, new_lhs_ver, new_rhs_ver)`).
// Step 1 ("freeze structural writes") is the caller's responsibility:
// the shard manager must stop routing new accessors to this shard
// before calling PerformSplit. oldVer must match the shard's current
// Version(), the same CAS discipline shardmap.SplitShard applies to
// its own range entry, so a stale, already-superseded split request
// can never be replayed against this shard a second time.
func (s *Shard) PerformSplit(splitKey value.Key, oldVer, newLHSVer, newRHSVer hlc.HLC) (*SplitData, error) {
	if hlc.Compare(s.Version(), oldVer) != 0 {
		return nil, ErrStaleShardVersion
	}

	active := s.engine.ActiveTransactions()

	lhsVertices, rhsVertices := s.vertices.Split(splitKey)
	lhsEdges, rhsEdges := s.edges.Split(func(src value.Key) bool {
		return value.CompareKey(src, splitKey) < 0
	})

	lhs := s.newSuccessor(s.minPK, splitKey, lhsVertices, lhsEdges, newLHSVer)
	rhs := s.newSuccessor(splitKey, s.maxPK, rhsVertices, rhsEdges, newRHSVer)

	s.partitionIndexes(lhs, rhs, splitKey)
	lhsActive, rhsActive := partitionActiveTransactions(active, lhs, rhs)

	return &SplitData{
		LHS: lhs, RHS: rhs,
		LHSVersion: newLHSVer, RHSVersion: newRHSVer,
		LHSActive: lhsActive, RHSActive: rhsActive,
	}, nil
}

// partitionActiveTransactions implements spec.md §4.8 step 4 / invariant
// I5: every transaction still open when the split ran is adopted by
// whichever successor engine(s) now hold a vertex or edge it created or
// currently latches for writing - both, if it straddles the split key.
// A transaction that has not yet touched anything (just begun) is
// adopted by RHS, matching scenario D in spec.md §8 where a transaction
// active before the split continues and commits against the successor
// owning the key range its writes land in.
//
// The individual deltas a transaction produced need no separate
// carry-over: they are threaded onto the vertex/edge entries themselves
// (gstore.VertexEntry.Header.DeltaHead), so gstore.VertexStore.Split /
// gstore.EdgeStore.Split already moved each delta chain to whichever
// successor owns that object's key, along with the object.
func partitionActiveTransactions(active []*txn.Transaction, lhs, rhs *Shard) (lhsActive, rhsActive []mvcc.TxID) {
	for _, tx := range active {
		touchesLHS := shardTouchedBy(lhs, tx.ID)
		touchesRHS := shardTouchedBy(rhs, tx.ID)
		if touchesLHS {
			lhs.engine.AdoptActive(tx)
			lhsActive = append(lhsActive, tx.ID)
		}
		if touchesRHS || (!touchesLHS && !touchesRHS) {
			rhs.engine.AdoptActive(tx)
			rhsActive = append(rhsActive, tx.ID)
		}
	}
	return lhsActive, rhsActive
}

func shardTouchedBy(s *Shard, id mvcc.TxID) bool {
	touched := false
	s.vertices.Ascend(nil, func(e *gstore.VertexEntry) bool {
		if e.WriterTxn() == id {
			touched = true
			return false
		}
		if createTxn, _, _ := e.Header.Creator(); createTxn == id {
			touched = true
			return false
		}
		return true
	})
	if touched {
		return true
	}
	s.edges.Ascend(func(e *gstore.EdgeEntry) bool {
		if e.WriterTxn() == id {
			touched = true
			return false
		}
		if createTxn, _, _ := e.Header.Creator(); createTxn == id {
			touched = true
			return false
		}
		return true
	})
	return touched
}

// FromSplitData selects one successor out of a completed split, per
// spec.md §6's "FromSplitData(SplitData) → Shard (constructor
// alternative)": on the node that actually ran PerformSplit the two
// successors already exist as live *Shard values inside SplitData;
// this is how a caller - the shard manager installing them, or a peer
// node receiving the same SplitData to host a replica of one side -
// picks the one it is responsible for instead of constructing it from
// scratch with New.
func FromSplitData(data *SplitData, side Side) *Shard {
	if side == RHS {
		return data.RHS
	}
	return data.LHS
}

// Side selects one successor of a split.
type Side uint8

const (
	LHS Side = iota
	RHS
)

// newSuccessor builds one successor shard sharing the parent's mapper
// and schema, with fresh (empty) index sets - partitionIndexes fills
// them in next.
func (s *Shard) newSuccessor(minPK, maxPK value.Key, vertices *gstore.VertexStore, edges *gstore.EdgeStore, version hlc.HLC) *Shard {
	succ := &Shard{
		primaryLabel:    s.primaryLabel,
		minPK:           minPK,
		maxPK:           maxPK,
		clock:           s.clock,
		mapper:          s.mapper,
		log:             s.log,
		schema:          schema.New(s.primaryLabel, s.schema.Properties()),
		labelIndexes:    make(map[nameid.LabelID]*index.LabelIndex, len(s.labelIndexes)),
		propertyIndexes: make(map[txn.PropertyIndexKey]*index.LabelPropertyIndex, len(s.propertyIndexes)),
		vertices:        vertices,
		edges:           edges,
		engine:                txn.NewEngine(s.clock),
		splitThreshold:        s.splitThreshold,
		disableEdgeProperties: s.disableEdgeProperties,
	}
	succ.engine.CopyCommittedFrom(s.engine)
	succ.nextEdgeGID.Store(s.nextEdgeGID.Load())
	succ.version.Store(&version)
	succ.gc = newGCState()
	return succ
}

// partitionIndexes implements spec.md §4.8 step 5: filter every index
// entry by which successor's vertex container now holds its vertex.
func (s *Shard) partitionIndexes(lhs, rhs *Shard, splitKey value.Key) {
	for label, idx := range s.labelIndexes {
		lhsIdx, rhsIdx := index.NewLabelIndex(), index.NewLabelIndex()
		idx.All(func(e *index.Entry) bool {
			if value.CompareKey(e.Vertex.Key, splitKey) < 0 {
				lhsIdx.Insert(e)
			} else {
				rhsIdx.Insert(e)
			}
			return true
		})
		lhs.labelIndexes[label] = lhsIdx
		rhs.labelIndexes[label] = rhsIdx
	}

	for key, idx := range s.propertyIndexes {
		lhsIdx, rhsIdx := index.NewLabelPropertyIndex(), index.NewLabelPropertyIndex()
		idx.All(func(e *index.Entry) bool {
			if value.CompareKey(e.Vertex.Key, splitKey) < 0 {
				lhsIdx.Insert(e)
			} else {
				rhsIdx.Insert(e)
			}
			return true
		})
		lhs.propertyIndexes[key] = lhsIdx
		rhs.propertyIndexes[key] = rhsIdx
	}
}
