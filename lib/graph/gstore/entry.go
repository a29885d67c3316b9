package gstore

import (
	"sync"
	"sync/atomic"

	"github.com/shardgraph/shardgraph/lib/graph/mvcc"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/value"
)

// EdgeRef is the undirected half of an edge reference kept on a vertex's
// in/out edge list: the edge's identity plus the neighboring vertex.
type EdgeRef struct {
	GID     uint64
	Type    nameid.EdgeTypeID
	Other   value.Key
	EdgePtr *EdgeEntry
}

// VertexEntry is one vertex's full MVCC record: lifecycle header plus
// its current materialized state (labels, properties, edge refs). The
// "current" fields hold the latest value written by any transaction,
// committed or not; every mutation past creation also threads a
// mvcc.Delta onto Header recording what the field held before the
// mutation, so a reader whose snapshot cannot see the latest write can
// reconstruct the value it should see instead by walking the chain
// (see e.g. GetProperty, HasLabel, Snapshot below).
type VertexEntry struct {
	Key value.Key

	Header mvcc.Header

	// writer is the uint64(mvcc.TxID) of the transaction currently
	// holding write access to this vertex, or 0. It is the latch behind
	// ErrSerialization: a second live transaction may not write this
	// vertex while another one holds it.
	writer atomic.Uint64

	mu         sync.RWMutex
	deleted    bool
	labels     map[nameid.LabelID]struct{}
	properties map[nameid.PropertyID]value.Value
	inEdges    []EdgeRef
	outEdges   []EdgeRef
}

// TryAcquireWriter latches this vertex for self, succeeding immediately
// if self already holds it. Returns false if a different transaction
// holds the latch.
func (v *VertexEntry) TryAcquireWriter(self mvcc.TxID) bool {
	for {
		cur := v.writer.Load()
		if cur == uint64(self) {
			return true
		}
		if cur != 0 {
			return false
		}
		if v.writer.CompareAndSwap(0, uint64(self)) {
			return true
		}
	}
}

// ReleaseWriter clears the latch; called once by the transaction that
// holds it, on commit or abort.
func (v *VertexEntry) ReleaseWriter(self mvcc.TxID) {
	v.writer.CompareAndSwap(uint64(self), 0)
}

// WriterTxn reports which transaction currently latches v for writing,
// or 0. Used by the split protocol to find which in-flight transactions
// touch a given successor's share of the keyspace.
func (v *VertexEntry) WriterTxn() mvcc.TxID {
	return mvcc.TxID(v.writer.Load())
}

// NewVertexEntry allocates a vertex entry with the given initial labels
// and properties. These are set directly with no delta recorded: the
// vertex is not reachable by any other transaction until the caller
// inserts it into the container and calls Header.MarkCreated, and an
// aborted creation simply removes the whole entry rather than undoing
// individual fields.
func NewVertexEntry(key value.Key, labels []nameid.LabelID, props map[nameid.PropertyID]value.Value) *VertexEntry {
	v := &VertexEntry{
		Key:        key,
		labels:     make(map[nameid.LabelID]struct{}, len(labels)),
		properties: make(map[nameid.PropertyID]value.Value, len(props)),
	}
	for _, l := range labels {
		v.labels[l] = struct{}{}
	}
	for p, val := range props {
		if !val.IsNull() {
			v.properties[p] = val
		}
	}
	return v
}

// Snapshot reconstructs the labels, properties, edge refs and deleted
// flag visible under rv: it starts from the live state and undoes every
// delta rv cannot see yet, newest first, stopping as soon as it reaches
// one it can (everything older is, by construction, from transactions
// that committed even earlier, since a vertex's writes are serialized
// by its write latch).
func (v *VertexEntry) Snapshot(rv mvcc.ReadView) (labels []nameid.LabelID, props map[nameid.PropertyID]value.Value, in, out []EdgeRef, deleted bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	labelSet := make(map[nameid.LabelID]struct{}, len(v.labels))
	for l := range v.labels {
		labelSet[l] = struct{}{}
	}
	propSet := make(map[nameid.PropertyID]value.Value, len(v.properties))
	for p, val := range v.properties {
		propSet[p] = val
	}
	inSet := make(map[uint64]EdgeRef, len(v.inEdges))
	for _, r := range v.inEdges {
		inSet[r.GID] = r
	}
	outSet := make(map[uint64]EdgeRef, len(v.outEdges))
	for _, r := range v.outEdges {
		outSet[r.GID] = r
	}

	for d := v.Header.DeltaHead(); d != nil; d = d.Next {
		if rv.DeltaVisible(d) {
			break
		}
		switch d.Action {
		case mvcc.ActionAddLabel:
			delete(labelSet, nameid.LabelID(d.LabelID))
		case mvcc.ActionRemoveLabel:
			labelSet[nameid.LabelID(d.LabelID)] = struct{}{}
		case mvcc.ActionSetProperty:
			p := nameid.PropertyID(d.PropertyID)
			if old, ok := d.OldValue.(value.Value); ok && !old.IsNull() {
				propSet[p] = old
			} else {
				delete(propSet, p)
			}
		case mvcc.ActionAddInEdge:
			if ref, ok := d.EdgeRef.(EdgeRef); ok {
				delete(inSet, ref.GID)
			}
		case mvcc.ActionRemoveInEdge:
			if ref, ok := d.EdgeRef.(EdgeRef); ok {
				inSet[ref.GID] = ref
			}
		case mvcc.ActionAddOutEdge:
			if ref, ok := d.EdgeRef.(EdgeRef); ok {
				delete(outSet, ref.GID)
			}
		case mvcc.ActionRemoveOutEdge:
			if ref, ok := d.EdgeRef.(EdgeRef); ok {
				outSet[ref.GID] = ref
			}
		}
	}

	labels = make([]nameid.LabelID, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	props = propSet
	in = make([]EdgeRef, 0, len(inSet))
	for _, r := range inSet {
		in = append(in, r)
	}
	out = make([]EdgeRef, 0, len(outSet))
	for _, r := range outSet {
		out = append(out, r)
	}
	deleted = v.deleted
	return
}

// HasLabel reports whether l is present under rv, walking past any
// AddLabel/RemoveLabel delta rv cannot yet see.
func (v *VertexEntry) HasLabel(l nameid.LabelID, rv mvcc.ReadView) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, has := v.labels[l]
	for d := v.Header.DeltaHead(); d != nil; d = d.Next {
		if rv.DeltaVisible(d) {
			break
		}
		if nameid.LabelID(d.LabelID) != l {
			continue
		}
		switch d.Action {
		case mvcc.ActionAddLabel:
			has = false
		case mvcc.ActionRemoveLabel:
			has = true
		}
	}
	return has
}

// AddLabel threads an AddLabel delta onto v and adds l to the live set.
func (v *VertexEntry) AddLabel(wc mvcc.WriteContext, l nameid.LabelID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionAddLabel, LabelID: uint32(l), Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})
	v.labels[l] = struct{}{}
}

// RemoveLabel threads a RemoveLabel delta onto v and drops l from the
// live set.
func (v *VertexEntry) RemoveLabel(wc mvcc.WriteContext, l nameid.LabelID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionRemoveLabel, LabelID: uint32(l), Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})
	delete(v.labels, l)
}

// UndoAddLabel reverses AddLabel without recording a delta: it is used
// only by an abort unwinding its own uncommitted write, while that
// transaction still holds v's write latch.
func (v *VertexEntry) UndoAddLabel(l nameid.LabelID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.labels, l)
}

// UndoRemoveLabel reverses RemoveLabel without recording a delta.
func (v *VertexEntry) UndoRemoveLabel(l nameid.LabelID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.labels[l] = struct{}{}
}

// GetProperty returns p's value as of rv, reconstructing it from the
// delta chain if the live value postdates what rv can see.
func (v *VertexEntry) GetProperty(p nameid.PropertyID, rv mvcc.ReadView) (value.Value, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	val, ok := v.properties[p]
	for d := v.Header.DeltaHead(); d != nil; d = d.Next {
		if rv.DeltaVisible(d) {
			break
		}
		if d.Action != mvcc.ActionSetProperty || nameid.PropertyID(d.PropertyID) != p {
			continue
		}
		if old, isVal := d.OldValue.(value.Value); isVal && !old.IsNull() {
			val, ok = old, true
		} else {
			val, ok = value.Value{}, false
		}
	}
	return val, ok
}

// SetProperty threads a SetProperty delta recording p's prior value
// onto v, then applies val to the live map (a Null value deletes p).
func (v *VertexEntry) SetProperty(wc mvcc.WriteContext, p nameid.PropertyID, val value.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()

	old, hadOld := v.properties[p]
	if !hadOld {
		old = value.Null()
	}
	v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionSetProperty, PropertyID: uint32(p), OldValue: old, Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})

	if val.IsNull() {
		delete(v.properties, p)
		return
	}
	v.properties[p] = val
}

// UndoSetProperty restores a property's raw value without recording a
// delta; see UndoAddLabel.
func (v *VertexEntry) UndoSetProperty(p nameid.PropertyID, val value.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if val.IsNull() {
		delete(v.properties, p)
		return
	}
	v.properties[p] = val
}

// InEdges returns the in-edge refs visible under rv.
func (v *VertexEntry) InEdges(rv mvcc.ReadView) []EdgeRef {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return reconstructEdges(v.inEdges, v.Header.DeltaHead(), mvcc.ActionAddInEdge, mvcc.ActionRemoveInEdge, rv)
}

// OutEdges returns the out-edge refs visible under rv.
func (v *VertexEntry) OutEdges(rv mvcc.ReadView) []EdgeRef {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return reconstructEdges(v.outEdges, v.Header.DeltaHead(), mvcc.ActionAddOutEdge, mvcc.ActionRemoveOutEdge, rv)
}

// reconstructEdges walks head, undoing every add/remove of addAction and
// removeAction's kind that rv cannot yet see, to turn live back into the
// edge set rv should observe.
func reconstructEdges(live []EdgeRef, head *mvcc.Delta, addAction, removeAction mvcc.ActionKind, rv mvcc.ReadView) []EdgeRef {
	byGID := make(map[uint64]EdgeRef, len(live))
	for _, r := range live {
		byGID[r.GID] = r
	}
	for d := head; d != nil; d = d.Next {
		if rv.DeltaVisible(d) {
			break
		}
		ref, ok := d.EdgeRef.(EdgeRef)
		if !ok {
			continue
		}
		switch d.Action {
		case addAction:
			delete(byGID, ref.GID)
		case removeAction:
			byGID[ref.GID] = ref
		}
	}
	out := make([]EdgeRef, 0, len(byGID))
	for _, r := range byGID {
		out = append(out, r)
	}
	return out
}

// AddInEdge threads an AddInEdge delta onto v and appends ref to the
// live in-edge list.
func (v *VertexEntry) AddInEdge(wc mvcc.WriteContext, ref EdgeRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionAddInEdge, EdgeRef: ref, Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})
	v.inEdges = append(v.inEdges, ref)
}

// AddOutEdge threads an AddOutEdge delta onto v and appends ref to the
// live out-edge list.
func (v *VertexEntry) AddOutEdge(wc mvcc.WriteContext, ref EdgeRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionAddOutEdge, EdgeRef: ref, Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})
	v.outEdges = append(v.outEdges, ref)
}

// RemoveInEdge threads a RemoveInEdge delta recording the removed ref
// onto v, then drops it from the live in-edge list.
func (v *VertexEntry) RemoveInEdge(wc mvcc.WriteContext, gid uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ref, ok := findRef(v.inEdges, gid); ok {
		v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionRemoveInEdge, EdgeRef: ref, Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})
	}
	v.inEdges = removeRef(v.inEdges, gid)
}

// RemoveOutEdge threads a RemoveOutEdge delta recording the removed ref
// onto v, then drops it from the live out-edge list.
func (v *VertexEntry) RemoveOutEdge(wc mvcc.WriteContext, gid uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ref, ok := findRef(v.outEdges, gid); ok {
		v.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionRemoveOutEdge, EdgeRef: ref, Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})
	}
	v.outEdges = removeRef(v.outEdges, gid)
}

// UndoAddInEdge reverses AddInEdge without recording a delta.
func (v *VertexEntry) UndoAddInEdge(gid uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inEdges = removeRef(v.inEdges, gid)
}

// UndoAddOutEdge reverses AddOutEdge without recording a delta.
func (v *VertexEntry) UndoAddOutEdge(gid uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.outEdges = removeRef(v.outEdges, gid)
}

// UndoRemoveInEdge reverses RemoveInEdge without recording a delta,
// restoring ref (captured by the caller before the removal it undoes).
func (v *VertexEntry) UndoRemoveInEdge(ref EdgeRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inEdges = append(v.inEdges, ref)
}

// UndoRemoveOutEdge reverses RemoveOutEdge without recording a delta.
func (v *VertexEntry) UndoRemoveOutEdge(ref EdgeRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.outEdges = append(v.outEdges, ref)
}

func findRef(refs []EdgeRef, gid uint64) (EdgeRef, bool) {
	for _, r := range refs {
		if r.GID == gid {
			return r, true
		}
	}
	return EdgeRef{}, false
}

func removeRef(refs []EdgeRef, gid uint64) []EdgeRef {
	out := refs[:0]
	for _, r := range refs {
		if r.GID != gid {
			out = append(out, r)
		}
	}
	return out
}

func (v *VertexEntry) SetDeleted(d bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleted = d
}

func (v *VertexEntry) Deleted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.deleted
}

// EdgeEntry is one edge's MVCC record: lifecycle header, endpoints,
// type and optional properties. Properties follow the same
// delta-threading discipline as VertexEntry's.
type EdgeEntry struct {
	Src, Dst value.Key
	Type     nameid.EdgeTypeID
	GID      uint64

	Header mvcc.Header

	writer atomic.Uint64

	mu         sync.RWMutex
	deleted    bool
	properties map[nameid.PropertyID]value.Value
}

func NewEdgeEntry(src, dst value.Key, typ nameid.EdgeTypeID, gid uint64) *EdgeEntry {
	return &EdgeEntry{
		Src: src, Dst: dst, Type: typ, GID: gid,
		properties: make(map[nameid.PropertyID]value.Value),
	}
}

func (e *EdgeEntry) TryAcquireWriter(self mvcc.TxID) bool {
	for {
		cur := e.writer.Load()
		if cur == uint64(self) {
			return true
		}
		if cur != 0 {
			return false
		}
		if e.writer.CompareAndSwap(0, uint64(self)) {
			return true
		}
	}
}

func (e *EdgeEntry) ReleaseWriter(self mvcc.TxID) {
	e.writer.CompareAndSwap(uint64(self), 0)
}

// WriterTxn reports which transaction currently latches e for writing,
// or 0.
func (e *EdgeEntry) WriterTxn() mvcc.TxID {
	return mvcc.TxID(e.writer.Load())
}

// GetProperty returns p's value as of rv, reconstructing it from the
// delta chain if the live value postdates what rv can see.
func (e *EdgeEntry) GetProperty(p nameid.PropertyID, rv mvcc.ReadView) (value.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	val, ok := e.properties[p]
	for d := e.Header.DeltaHead(); d != nil; d = d.Next {
		if rv.DeltaVisible(d) {
			break
		}
		if d.Action != mvcc.ActionSetProperty || nameid.PropertyID(d.PropertyID) != p {
			continue
		}
		if old, isVal := d.OldValue.(value.Value); isVal && !old.IsNull() {
			val, ok = old, true
		} else {
			val, ok = value.Value{}, false
		}
	}
	return val, ok
}

// SetProperty threads a SetProperty delta recording p's prior value
// onto e, then applies val to the live map.
func (e *EdgeEntry) SetProperty(wc mvcc.WriteContext, p nameid.PropertyID, val value.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, hadOld := e.properties[p]
	if !hadOld {
		old = value.Null()
	}
	e.Header.PushDelta(&mvcc.Delta{Action: mvcc.ActionSetProperty, PropertyID: uint32(p), OldValue: old, Txn: wc.Txn, Cmd: wc.Cmd, Info: wc.Info})

	if val.IsNull() {
		delete(e.properties, p)
		return
	}
	e.properties[p] = val
}

// UndoSetProperty restores a property's raw value without recording a
// delta; see VertexEntry.UndoSetProperty.
func (e *EdgeEntry) UndoSetProperty(p nameid.PropertyID, val value.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if val.IsNull() {
		delete(e.properties, p)
		return
	}
	e.properties[p] = val
}

func (e *EdgeEntry) Properties() map[nameid.PropertyID]value.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[nameid.PropertyID]value.Value, len(e.properties))
	for k, v := range e.properties {
		out[k] = v
	}
	return out
}

func (e *EdgeEntry) SetDeleted(d bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = d
}

func (e *EdgeEntry) Deleted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deleted
}
