package shardmap

import (
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
)

// RangeEntry is one contiguous primary-key range and the shard that
// currently owns it. Version is the owning shard's own version HLC
// (shard.Shard.Version), the same timestamp SplitShard CASes against -
// there is no separate map-wide version counter, since concurrent
// splits on two unrelated ranges must not contend with each other.
type RangeEntry struct {
	MinKey  value.Key // inclusive
	MaxKey  value.Key // exclusive; nil means unbounded above
	Addr    Address
	Version hlc.HLC
}

func rangeLess(a, b *RangeEntry) bool {
	return value.CompareKey(a.MinKey, b.MinKey) < 0
}

// labelRanges is the per-label ordered range set, guarded the way
// lib/graph/index guards its btree: short critical section, readers
// operate on a cloned snapshot.
type labelRanges struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*RangeEntry]
}

func newLabelRanges() *labelRanges {
	return &labelRanges{tree: btree.NewG(32, rangeLess)}
}

// ShardMap is spec.md §4.9's process-global router: for each primary
// label, the ordered set of [MinKey, MaxKey) ranges covering the whole
// keyspace, each pointing at the shard address that currently owns it.
type ShardMap struct {
	labels *xsync.MapOf[nameid.LabelID, *labelRanges]
}

func New() *ShardMap {
	return &ShardMap{labels: xsync.NewMapOf[nameid.LabelID, *labelRanges]()}
}

func (m *ShardMap) ranges(label nameid.LabelID) *labelRanges {
	lr, _ := m.labels.LoadOrCompute(label, func() *labelRanges { return newLabelRanges() })
	return lr
}

// AddShard registers a brand-new range for label, e.g. the initial
// whole-keyspace shard or a shard the coordinator just told this node
// to initialize (spec.md §4.10's shards_to_initialize).
func (m *ShardMap) AddShard(label nameid.LabelID, minKey, maxKey value.Key, addr Address, version hlc.HLC) {
	lr := m.ranges(label)
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.tree.ReplaceOrInsert(&RangeEntry{MinKey: minKey, MaxKey: maxKey, Addr: addr, Version: version})
}

// GetShardForKey returns the range owning key under label, via a
// lower-bound lookup: the range with the greatest MinKey <= key, whose
// MaxKey (if any) still exceeds key.
func (m *ShardMap) GetShardForKey(label nameid.LabelID, key value.Key) (RangeEntry, bool) {
	lr := m.ranges(label)
	lr.mu.RLock()
	snapshot := lr.tree.Clone()
	lr.mu.RUnlock()

	var found *RangeEntry
	pivot := &RangeEntry{MinKey: key}
	snapshot.DescendLessOrEqual(pivot, func(e *RangeEntry) bool {
		found = e
		return false
	})
	if found == nil {
		return RangeEntry{}, false
	}
	if found.MaxKey != nil && value.CompareKey(key, found.MaxKey) >= 0 {
		return RangeEntry{}, false
	}
	return *found, true
}

// GetShardsForRange returns every range under label that overlaps
// [lo, hi), in key order.
func (m *ShardMap) GetShardsForRange(label nameid.LabelID, lo, hi value.Key) []RangeEntry {
	lr := m.ranges(label)
	lr.mu.RLock()
	snapshot := lr.tree.Clone()
	lr.mu.RUnlock()

	var out []RangeEntry

	// Start from the range that would own lo, then walk forward; a
	// range strictly before lo can still overlap if its MaxKey > lo.
	start := &RangeEntry{MinKey: lo}
	var before *RangeEntry
	snapshot.DescendLessOrEqual(start, func(e *RangeEntry) bool {
		before = e
		return false
	})
	if before != nil && (before.MaxKey == nil || value.CompareKey(before.MaxKey, lo) > 0) {
		out = append(out, *before)
	}

	snapshot.AscendGreaterOrEqual(start, func(e *RangeEntry) bool {
		if before != nil && value.CompareKey(e.MinKey, before.MinKey) == 0 {
			return true // already added as `before`
		}
		if hi != nil && value.CompareKey(e.MinKey, hi) >= 0 {
			return false
		}
		out = append(out, *e)
		return true
	})
	return out
}

// UUIDMapping names the two successor shard uuids a split produces
// from one source shard uuid, per spec.md §6's
// shards_to_split{uuid_mapping, ...}.
type UUIDMapping struct {
	Source uuid.UUID
	LHS    uuid.UUID
	RHS    uuid.UUID
}

// SplitShard atomically replaces the range owned by mapping.Source with
// two successor ranges, iff the source range's current version still
// equals prevVersion - the CAS spec.md §4.9 requires so a stale
// coordinator view can never clobber a split that already happened.
// lhsAddr/rhsAddr carry the successors' own uuids (mapping.LHS/RHS) and
// the node address they were placed on (ordinarily the same node the
// source shard was already running on).
func (m *ShardMap) SplitShard(
	label nameid.LabelID,
	mapping UUIDMapping,
	splitKey value.Key,
	prevVersion, lhsVersion, rhsVersion hlc.HLC,
	lhsAddr, rhsAddr Address,
) bool {
	lr := m.ranges(label)
	lr.mu.Lock()
	defer lr.mu.Unlock()

	var current *RangeEntry
	lr.tree.Ascend(func(e *RangeEntry) bool {
		if e.Addr.UUID == mapping.Source {
			current = e
			return false
		}
		return true
	})
	if current == nil || hlc.Compare(current.Version, prevVersion) != 0 {
		return false
	}

	lr.tree.Delete(current)
	lr.tree.ReplaceOrInsert(&RangeEntry{MinKey: current.MinKey, MaxKey: splitKey, Addr: lhsAddr, Version: lhsVersion})
	lr.tree.ReplaceOrInsert(&RangeEntry{MinKey: splitKey, MaxKey: current.MaxKey, Addr: rhsAddr, Version: rhsVersion})
	return true
}
