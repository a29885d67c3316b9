package index

import (
	"sync"

	"github.com/google/btree"
	"github.com/shardgraph/shardgraph/lib/graph/gstore"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
)

// Entry is one index entry: the indexed vertex plus the HLCs at which it
// became visible to this index and, if removed, at which it expired.
// A zero CommittedAt means "not yet committed"; a zero ExpiredAt means
// "not expired".
type Entry struct {
	Vertex      *gstore.VertexEntry
	Label       nameid.LabelID
	Property    nameid.PropertyID // zero for a pure label index
	Value       value.Value       // zero Value for a pure label index
	CommittedAt hlc.HLC
	ExpiredAt   hlc.HLC
}

// Visible reports whether the entry is observable to a reader whose
// snapshot timestamp is asOf: committed at or before asOf, and not
// expired at or before asOf. An entry with no commit stamp yet is never
// visible.
func (e *Entry) Visible(asOf hlc.HLC) bool {
	if e.CommittedAt.IsZero() || hlc.Compare(e.CommittedAt, asOf) > 0 {
		return false
	}
	if !e.ExpiredAt.IsZero() && hlc.Compare(e.ExpiredAt, asOf) <= 0 {
		return false
	}
	return true
}

func entryLess(a, b *Entry) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return uintptrLess(a.Vertex, b.Vertex)
}

func uintptrLess(a, b *gstore.VertexEntry) bool {
	// A nil vertex (a scan pivot) sorts before every real vertex.
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	return value.CompareKey(a.Key, b.Key) < 0
}

// LabelIndex is an ordered set of (LabelId, vertex) entries.
type LabelIndex struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*Entry]
}

func NewLabelIndex() *LabelIndex {
	return &LabelIndex{tree: btree.NewG(32, entryLess)}
}

// Insert records an uncommitted entry; the caller stamps CommittedAt on
// commit (see SetCommitted) the way a delta is stamped with the
// transaction's commit HLC.
func (idx *LabelIndex) Insert(e *Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.ReplaceOrInsert(e)
}

// Get returns the entry recording vertex v under label, if one exists,
// regardless of its committed/expired state - callers stamping an
// expiration need to find the exact entry a prior Insert produced.
func (idx *LabelIndex) Get(label nameid.LabelID, v *gstore.VertexEntry) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Get(&Entry{Vertex: v, Label: label})
}

// Expire marks an entry's ExpiredAt without removing it, so concurrent
// snapshot readers whose view predates the expiry still see it.
func (e *Entry) Expire(ts hlc.HLC) { e.ExpiredAt = ts }

func (e *Entry) SetCommitted(ts hlc.HLC) { e.CommittedAt = ts }

// All calls fn for every entry in the index, regardless of label or
// visibility - used by shard split to repartition entries by which
// successor now owns their vertex.
func (idx *LabelIndex) All(fn func(*Entry) bool) {
	idx.mu.RLock()
	snapshot := idx.tree.Clone()
	idx.mu.RUnlock()
	snapshot.Ascend(func(e *Entry) bool { return fn(e) })
}

// Scan calls fn for every entry under label visible at asOf, in vertex
// key order.
func (idx *LabelIndex) Scan(label nameid.LabelID, asOf hlc.HLC, fn func(*gstore.VertexEntry) bool) {
	idx.mu.RLock()
	snapshot := idx.tree.Clone()
	idx.mu.RUnlock()

	lo := &Entry{Label: label}
	snapshot.AscendGreaterOrEqual(lo, func(e *Entry) bool {
		if e.Label != label {
			return false
		}
		if !e.Visible(asOf) {
			return true
		}
		return fn(e.Vertex)
	})
}

// LabelPropertyIndex is an ordered set of
// (LabelId, PropertyId, Value, vertex) entries, ordered first by label
// and property, then by value per value.Compare, per spec.md §4.4.
type LabelPropertyIndex struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*Entry]
}

func lpEntryLess(a, b *Entry) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	if a.Property != b.Property {
		return a.Property < b.Property
	}
	if c := value.Compare(a.Value, b.Value); c != 0 {
		return c < 0
	}
	return uintptrLess(a.Vertex, b.Vertex)
}

func NewLabelPropertyIndex() *LabelPropertyIndex {
	return &LabelPropertyIndex{tree: btree.NewG(32, lpEntryLess)}
}

func (idx *LabelPropertyIndex) Insert(e *Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.ReplaceOrInsert(e)
}

// Get returns the entry recording (label, prop, val) for vertex v, if one
// exists, regardless of its committed/expired state.
func (idx *LabelPropertyIndex) Get(label nameid.LabelID, prop nameid.PropertyID, val value.Value, v *gstore.VertexEntry) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Get(&Entry{Vertex: v, Label: label, Property: prop, Value: val})
}

// All calls fn for every entry in the index - used by shard split.
func (idx *LabelPropertyIndex) All(fn func(*Entry) bool) {
	idx.mu.RLock()
	snapshot := idx.tree.Clone()
	idx.mu.RUnlock()
	snapshot.Ascend(func(e *Entry) bool { return fn(e) })
}

// ScanValue returns entries with exactly the given value.
func (idx *LabelPropertyIndex) ScanValue(label nameid.LabelID, prop nameid.PropertyID, val value.Value, asOf hlc.HLC, fn func(*gstore.VertexEntry) bool) {
	idx.ScanRange(label, prop, &val, true, &val, true, asOf, fn)
}

// ScanRange returns entries with property value in [lo, hi) (or
// inclusive bounds as requested); a nil bound means unbounded on that
// side.
func (idx *LabelPropertyIndex) ScanRange(
	label nameid.LabelID, prop nameid.PropertyID,
	lo *value.Value, loInclusive bool,
	hi *value.Value, hiInclusive bool,
	asOf hlc.HLC, fn func(*gstore.VertexEntry) bool,
) {
	idx.mu.RLock()
	snapshot := idx.tree.Clone()
	idx.mu.RUnlock()

	start := &Entry{Label: label, Property: prop}
	if lo != nil {
		start.Value = *lo
	}

	snapshot.AscendGreaterOrEqual(start, func(e *Entry) bool {
		if e.Label != label || e.Property != prop {
			return false
		}
		if lo != nil {
			c := value.Compare(e.Value, *lo)
			if c < 0 || (c == 0 && !loInclusive) {
				return true
			}
		}
		if hi != nil {
			c := value.Compare(e.Value, *hi)
			if c > 0 || (c == 0 && !hiInclusive) {
				return false
			}
		}
		if !e.Visible(asOf) {
			return true
		}
		return fn(e.Vertex)
	})
}
