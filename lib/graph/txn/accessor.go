package txn

import (
	"fmt"

	"github.com/shardgraph/shardgraph/lib/graph/gstore"
	"github.com/shardgraph/shardgraph/lib/graph/index"
	"github.com/shardgraph/shardgraph/lib/graph/mvcc"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/schema"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
)

// View selects whether a read sees the accessor's own pending changes
// (NEW) or ignores them (OLD), per spec.md §4.6.
type View uint8

const (
	ViewOld View = iota
	ViewNew
)

// PropertyIndexKey identifies one label-property index.
type PropertyIndexKey struct {
	Label    nameid.LabelID
	Property nameid.PropertyID
}

// Store bundles the shard state an Accessor reads and writes. The shard
// facade owns one Store and hands out an Accessor per Access() call; this
// package never imports lib/graph/shard to avoid a cycle.
type Store struct {
	Mapper          *nameid.Mapper
	Vertices        *gstore.VertexStore
	Edges           *gstore.EdgeStore
	Schema          *schema.Schema
	LabelIndexes    map[nameid.LabelID]*index.LabelIndex
	PropertyIndexes map[PropertyIndexKey]*index.LabelPropertyIndex
	Engine          *Engine

	// NextEdgeGID issues the next monotonic edge gid; CreateEdge calls it
	// exactly once per edge. Must be non-nil.
	NextEdgeGID func() uint64

	// DisableEdgeProperties makes SetEdgeProperty reject every call with
	// ErrPropertiesDisabled. Off by default; a deployment that models
	// edges as pure relations with no payload can set it to keep edge
	// entries from ever carrying a property map.
	DisableEdgeProperties bool
}

// VertexAccessor is the stable handle spec.md §9 calls for: never a raw
// pointer, but not opaque either - callers needing the underlying entry
// (the shard's split code) can reach it via Entry().
type VertexAccessor struct {
	entry *gstore.VertexEntry
}

func (v VertexAccessor) Key() value.Key             { return v.entry.Key }
func (v VertexAccessor) Entry() *gstore.VertexEntry { return v.entry }

// EdgeAccessor is the stable handle for an edge.
type EdgeAccessor struct {
	entry *gstore.EdgeEntry
}

func (e EdgeAccessor) GID() uint64             { return e.entry.GID }
func (e EdgeAccessor) Entry() *gstore.EdgeEntry { return e.entry }

// Accessor is the per-transaction handle through which all reads and
// writes flow, per spec.md §4.6.
type Accessor struct {
	store *Store
	tx    *Transaction
}

// NewAccessor opens store for the given transaction. The shard facade
// calls this from its own Access(start_ts).
func NewAccessor(store *Store, tx *Transaction) *Accessor {
	return &Accessor{store: store, tx: tx}
}

func (a *Accessor) Transaction() *Transaction { return a.tx }

// Rebind points a at a different Store while keeping its transaction,
// commands and undo log intact. Used to carry a transaction still open
// at split time onto whichever successor shard's Store now owns the
// keys it touches (see shard.SplitData.LHSActive/RHSActive) - the
// transaction itself was already adopted by that successor's Engine, so
// its writes and eventual Commit/Abort resolve there.
func (a *Accessor) Rebind(store *Store) { a.store = store }

func (a *Accessor) AdvanceCommand() { a.tx.AdvanceCommand() }

func (a *Accessor) visible(h *mvcc.Header, view View) bool {
	forWrite := view == ViewNew
	return mvcc.Visible(h, a.store.Engine, a.tx.ID, a.tx.Snapshot(), a.tx.Command(), forWrite)
}

// view builds the mvcc.ReadView an entry's delta-chain-aware read methods
// need to reconstruct the value visible under view.
func (a *Accessor) view(view View) mvcc.ReadView {
	return mvcc.ReadView{
		Log:      a.store.Engine,
		Self:     a.tx.ID,
		Snapshot: a.tx.Snapshot(),
		Cmd:      a.tx.Command(),
		ForWrite: view == ViewNew,
	}
}

// writeContext identifies this transaction/command to an entry's
// delta-producing write methods.
func (a *Accessor) writeContext() mvcc.WriteContext {
	return mvcc.WriteContext{Txn: a.tx.ID, Cmd: a.tx.Command(), Info: a.tx.Info}
}

// CreateVertex implements spec.md §4.6's CreateVertex: validates the
// schema (skipped when the shard declares no primary-key properties),
// inserts the vertex, and threads a creation delta.
func (a *Accessor) CreateVertex(labels []nameid.LabelID, pk value.Key, props map[nameid.PropertyID]value.Value) (*VertexAccessor, error) {
	pkValues := []value.Value(pk)
	if a.store.Schema != nil && len(a.store.Schema.Properties()) > 0 {
		if err := a.store.Schema.Validate(labels, pkValues, props); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSchemaViolation, err)
		}
	}

	entry := gstore.NewVertexEntry(pk, labels, props)

	if !a.store.Vertices.Insert(entry) {
		return nil, a.createCollisionError(pk)
	}

	entry.Header.MarkCreated(a.tx.ID, a.tx.Command(), a.tx.Info)
	a.tx.recordUndo(func() { a.store.Vertices.Delete(pk) })

	for _, l := range labels {
		a.indexLabel(entry, l)
	}
	for p, v := range props {
		a.indexLabelProperty(entry, labels, p, v)
	}

	return &VertexAccessor{entry: entry}, nil
}

// createCollisionError distinguishes a concurrent, still-uncommitted
// creator of pk (SerializationError, per scenario B in spec.md §8) from a
// genuinely already-occupied key (VertexAlreadyInserted): the two are
// indistinguishable from Insert's boolean result alone, so this inspects
// the existing entry's creating transaction against the commit log.
func (a *Accessor) createCollisionError(pk value.Key) error {
	existing, ok := a.store.Vertices.Get(pk)
	if ok {
		createTxn, _, _ := existing.Header.Creator()
		if createTxn != 0 && createTxn != a.tx.ID {
			if state, _ := a.store.Engine.State(createTxn); state == mvcc.TxActive {
				return fmt.Errorf("%w: key %s", ErrSerialization, pk)
			}
		}
	}
	return fmt.Errorf("%w: key %s", ErrVertexAlreadyInserted, pk)
}

func (a *Accessor) indexLabel(entry *gstore.VertexEntry, l nameid.LabelID) {
	idx, ok := a.store.LabelIndexes[l]
	if !ok {
		return
	}
	e := &index.Entry{Vertex: entry, Label: l}
	idx.Insert(e)
	a.tx.recordUndo(func() { e.Expire(a.tx.StartTS) })
	a.deferCommitStamp(func(ts hlc.HLC) { e.SetCommitted(ts) })
}

func (a *Accessor) indexLabelProperty(entry *gstore.VertexEntry, labels []nameid.LabelID, p nameid.PropertyID, v value.Value) {
	for _, l := range labels {
		key := PropertyIndexKey{Label: l, Property: p}
		idx, ok := a.store.PropertyIndexes[key]
		if !ok {
			continue
		}
		e := &index.Entry{Vertex: entry, Label: l, Property: p, Value: v}
		idx.Insert(e)
		a.tx.recordUndo(func() { e.Expire(a.tx.StartTS) })
		a.deferCommitStamp(func(ts hlc.HLC) { e.SetCommitted(ts) })
	}
}

// expireLabelIndexEntries stamps ExpiredAt = commit_ts, once the
// transaction's commit ts is known, on the pure label-index entry for
// (l, entry) and on every label-property entry recording l against a
// property entry currently holds - the index-maintenance half of
// RemoveLabel/DeleteObject that spec.md §4.4 calls "leave the entry and
// set an expiration timestamp" and I6 requires ("index reads are
// filtered purely by entry timestamps", never by mutating the tree in
// place).
func (a *Accessor) expireLabelIndexEntries(entry *gstore.VertexEntry, l nameid.LabelID) {
	if idx, ok := a.store.LabelIndexes[l]; ok {
		if e, found := idx.Get(l, entry); found {
			a.deferCommitStamp(func(ts hlc.HLC) { e.Expire(ts) })
		}
	}
	_, props, _, _, _ := entry.Snapshot(a.view(ViewNew))
	for p, val := range props {
		idx, ok := a.store.PropertyIndexes[PropertyIndexKey{Label: l, Property: p}]
		if !ok {
			continue
		}
		if e, found := idx.Get(l, p, val, entry); found {
			a.deferCommitStamp(func(ts hlc.HLC) { e.Expire(ts) })
		}
	}
}

// reindexProperty implements I6's maintenance half for SetProperty:
// expire the label-property entry recording p's old value under every
// label entry currently bears, then insert a fresh entry for the new
// value, for each such label's index.
func (a *Accessor) reindexProperty(entry *gstore.VertexEntry, labels []nameid.LabelID, p nameid.PropertyID, old value.Value, hadOld bool, newVal value.Value) {
	if hadOld {
		for _, l := range labels {
			idx, ok := a.store.PropertyIndexes[PropertyIndexKey{Label: l, Property: p}]
			if !ok {
				continue
			}
			if e, found := idx.Get(l, p, old, entry); found {
				a.deferCommitStamp(func(ts hlc.HLC) { e.Expire(ts) })
			}
		}
	}
	if !newVal.IsNull() {
		a.indexLabelProperty(entry, labels, p, newVal)
	}
}

// deferCommitStamp queues work to run once this transaction's commit ts
// is known; Engine.Commit invokes these right after assigning the
// timestamp.
func (a *Accessor) deferCommitStamp(fn func(hlc.HLC)) {
	a.tx.recordPendingStamp(fn)
}

// FindVertex implements spec.md §4.6's point lookup.
func (a *Accessor) FindVertex(pk value.Key, view View) (*VertexAccessor, bool) {
	entry, ok := a.store.Vertices.Get(pk)
	if !ok || !a.visible(&entry.Header, view) {
		return nil, false
	}
	return &VertexAccessor{entry: entry}, true
}

// Vertices iterates all visible vertices in primary-key order.
func (a *Accessor) Vertices(view View) []*VertexAccessor {
	var out []*VertexAccessor
	a.store.Vertices.Ascend(nil, func(e *gstore.VertexEntry) bool {
		if a.visible(&e.Header, view) {
			out = append(out, &VertexAccessor{entry: e})
		}
		return true
	})
	return out
}

// VerticesByLabel iterates visible vertices bearing label, via the label
// index, per spec.md §6.
func (a *Accessor) VerticesByLabel(label nameid.LabelID, view View) []*VertexAccessor {
	idx, ok := a.store.LabelIndexes[label]
	if !ok {
		return nil
	}
	var out []*VertexAccessor
	idx.Scan(label, a.readAsOf(view), func(e *gstore.VertexEntry) bool {
		out = append(out, &VertexAccessor{entry: e})
		return true
	})
	return out
}

// VerticesByPropertyValue iterates visible vertices with label and an
// exact property value, via the label-property index.
func (a *Accessor) VerticesByPropertyValue(label nameid.LabelID, prop nameid.PropertyID, val value.Value, view View) []*VertexAccessor {
	idx, ok := a.store.PropertyIndexes[PropertyIndexKey{Label: label, Property: prop}]
	if !ok {
		return nil
	}
	var out []*VertexAccessor
	idx.ScanValue(label, prop, val, a.readAsOf(view), func(e *gstore.VertexEntry) bool {
		out = append(out, &VertexAccessor{entry: e})
		return true
	})
	return out
}

// VerticesByPropertyRange iterates visible vertices with label and a
// property value in [lo, hi), per scenario E in spec.md §8.
func (a *Accessor) VerticesByPropertyRange(label nameid.LabelID, prop nameid.PropertyID, lo *value.Value, loIncl bool, hi *value.Value, hiIncl bool, view View) []*VertexAccessor {
	idx, ok := a.store.PropertyIndexes[PropertyIndexKey{Label: label, Property: prop}]
	if !ok {
		return nil
	}
	var out []*VertexAccessor
	idx.ScanRange(label, prop, lo, loIncl, hi, hiIncl, a.readAsOf(view), func(e *gstore.VertexEntry) bool {
		out = append(out, &VertexAccessor{entry: e})
		return true
	})
	return out
}

// readAsOf picks the HLC a read-time index filter compares entries
// against: the transaction's own commit ts once it has one (ViewNew
// inside the same commit path), otherwise its start ts.
func (a *Accessor) readAsOf(view View) hlc.HLC {
	if view == ViewNew {
		if ts := a.tx.commitTimestamp(); !ts.IsZero() {
			return ts
		}
	}
	return a.tx.StartTS
}

// GetProperty returns v's property p as visible under view, reconstructed
// from v's delta chain if necessary.
func (a *Accessor) GetProperty(v *VertexAccessor, p nameid.PropertyID, view View) (value.Value, bool) {
	return v.entry.GetProperty(p, a.view(view))
}

// HasLabel reports whether v carries label l as visible under view.
func (a *Accessor) HasLabel(v *VertexAccessor, l nameid.LabelID, view View) bool {
	return v.entry.HasLabel(l, a.view(view))
}

// InEdges returns v's in-edge refs as visible under view.
func (a *Accessor) InEdges(v *VertexAccessor, view View) []gstore.EdgeRef {
	return v.entry.InEdges(a.view(view))
}

// OutEdges returns v's out-edge refs as visible under view.
func (a *Accessor) OutEdges(v *VertexAccessor, view View) []gstore.EdgeRef {
	return v.entry.OutEdges(a.view(view))
}

// EdgeProperty returns e's property p as visible under view.
func (a *Accessor) EdgeProperty(e *EdgeAccessor, p nameid.PropertyID, view View) (value.Value, bool) {
	return e.entry.GetProperty(p, a.view(view))
}

// CreateEdge implements spec.md §4.6's CreateEdge, sourcing gid from the
// shard's monotonically-issued counter (SPEC_FULL §10) rather than
// taking one from the caller.
func (a *Accessor) CreateEdge(from, to *VertexAccessor, edgeType nameid.EdgeTypeID) (*EdgeAccessor, error) {
	if !from.entry.TryAcquireWriter(a.tx.ID) || !to.entry.TryAcquireWriter(a.tx.ID) {
		return nil, fmt.Errorf("%w: vertex locked by another transaction", ErrSerialization)
	}
	a.tx.recordReleaser(func() { from.entry.ReleaseWriter(a.tx.ID) })
	a.tx.recordReleaser(func() { to.entry.ReleaseWriter(a.tx.ID) })

	gid := a.store.NextEdgeGID()
	edge := gstore.NewEdgeEntry(from.entry.Key, to.entry.Key, edgeType, gid)
	if !a.store.Edges.Insert(edge) {
		return nil, fmt.Errorf("%w: gid %d already exists", ErrVertexAlreadyInserted, gid)
	}
	edge.Header.MarkCreated(a.tx.ID, a.tx.Command(), a.tx.Info)
	a.tx.recordUndo(func() { a.store.Edges.Delete(edge) })

	wc := a.writeContext()

	ref := gstore.EdgeRef{GID: gid, Type: edgeType, Other: to.entry.Key, EdgePtr: edge}
	from.entry.AddOutEdge(wc, ref)
	a.tx.recordUndo(func() { from.entry.UndoAddOutEdge(gid) })

	backRef := gstore.EdgeRef{GID: gid, Type: edgeType, Other: from.entry.Key, EdgePtr: edge}
	to.entry.AddInEdge(wc, backRef)
	a.tx.recordUndo(func() { to.entry.UndoAddInEdge(gid) })

	return &EdgeAccessor{entry: edge}, nil
}

// SetProperty threads a SetProperty delta onto v, raising
// ErrSerialization if another live transaction already holds the
// write latch.
func (a *Accessor) SetProperty(v *VertexAccessor, p nameid.PropertyID, val value.Value) error {
	if v.entry.Deleted() {
		return fmt.Errorf("%w: key %s", ErrDeletedObject, v.entry.Key)
	}
	if !v.entry.TryAcquireWriter(a.tx.ID) {
		return fmt.Errorf("%w: key %s", ErrSerialization, v.entry.Key)
	}
	a.tx.recordReleaser(func() { v.entry.ReleaseWriter(a.tx.ID) })

	old, hadOld := v.entry.GetProperty(p, a.view(ViewNew))
	labels, _, _, _, _ := v.entry.Snapshot(a.view(ViewNew))
	v.entry.SetProperty(a.writeContext(), p, val)
	a.tx.recordUndo(func() {
		if hadOld {
			v.entry.UndoSetProperty(p, old)
		} else {
			v.entry.UndoSetProperty(p, value.Null())
		}
	})
	a.reindexProperty(v.entry, labels, p, old, hadOld, val)
	return nil
}

// SetEdgeProperty threads a SetProperty delta onto e.
func (a *Accessor) SetEdgeProperty(e *EdgeAccessor, p nameid.PropertyID, val value.Value) error {
	if a.store.DisableEdgeProperties {
		return fmt.Errorf("%w: gid %d", ErrPropertiesDisabled, e.entry.GID)
	}
	if e.entry.Deleted() {
		return fmt.Errorf("%w: gid %d", ErrDeletedObject, e.entry.GID)
	}
	if !e.entry.TryAcquireWriter(a.tx.ID) {
		return fmt.Errorf("%w: gid %d", ErrSerialization, e.entry.GID)
	}
	a.tx.recordReleaser(func() { e.entry.ReleaseWriter(a.tx.ID) })

	old, hadOld := e.entry.GetProperty(p, a.view(ViewNew))
	e.entry.SetProperty(a.writeContext(), p, val)
	a.tx.recordUndo(func() {
		if hadOld {
			e.entry.UndoSetProperty(p, old)
		} else {
			e.entry.UndoSetProperty(p, value.Null())
		}
	})
	return nil
}

// AddLabel threads an AddLabel delta onto v.
func (a *Accessor) AddLabel(v *VertexAccessor, l nameid.LabelID) error {
	if v.entry.Deleted() {
		return fmt.Errorf("%w: key %s", ErrDeletedObject, v.entry.Key)
	}
	if !v.entry.TryAcquireWriter(a.tx.ID) {
		return fmt.Errorf("%w: key %s", ErrSerialization, v.entry.Key)
	}
	a.tx.recordReleaser(func() { v.entry.ReleaseWriter(a.tx.ID) })
	if v.entry.HasLabel(l, a.view(ViewNew)) {
		return nil
	}
	v.entry.AddLabel(a.writeContext(), l)
	a.tx.recordUndo(func() { v.entry.UndoAddLabel(l) })
	a.indexLabel(v.entry, l)

	_, props, _, _, _ := v.entry.Snapshot(a.view(ViewNew))
	for p, val := range props {
		a.indexLabelProperty(v.entry, []nameid.LabelID{l}, p, val)
	}
	return nil
}

// RemoveLabel reverses AddLabel: AddLabel(L); RemoveLabel(L) must leave
// the label set unchanged, per spec.md §8's idempotence law.
func (a *Accessor) RemoveLabel(v *VertexAccessor, l nameid.LabelID) error {
	if v.entry.Deleted() {
		return fmt.Errorf("%w: key %s", ErrDeletedObject, v.entry.Key)
	}
	if !v.entry.TryAcquireWriter(a.tx.ID) {
		return fmt.Errorf("%w: key %s", ErrSerialization, v.entry.Key)
	}
	a.tx.recordReleaser(func() { v.entry.ReleaseWriter(a.tx.ID) })
	if !v.entry.HasLabel(l, a.view(ViewNew)) {
		return nil
	}
	v.entry.RemoveLabel(a.writeContext(), l)
	a.tx.recordUndo(func() { v.entry.UndoRemoveLabel(l) })
	a.expireLabelIndexEntries(v.entry, l)
	return nil
}

// DeleteVertex tombstones v, rejecting vertices with visible incident
// edges unless the caller uses DetachDeleteVertex.
func (a *Accessor) DeleteVertex(v *VertexAccessor) error {
	if v.entry.Deleted() {
		return fmt.Errorf("%w: key %s", ErrDeletedObject, v.entry.Key)
	}
	in := v.entry.InEdges(a.view(ViewNew))
	out := v.entry.OutEdges(a.view(ViewNew))
	if len(in) > 0 || len(out) > 0 {
		return fmt.Errorf("%w: key %s", ErrVertexHasEdges, v.entry.Key)
	}
	return a.expireVertex(v)
}

// DetachDeleteVertex deletes v and every edge incident to it, returning
// the deleted edges so the caller can propagate the effect (e.g. index
// cleanup at a higher layer), per scenario C in spec.md §8.
func (a *Accessor) DetachDeleteVertex(v *VertexAccessor) ([]*EdgeAccessor, error) {
	if v.entry.Deleted() {
		return nil, fmt.Errorf("%w: key %s", ErrDeletedObject, v.entry.Key)
	}

	in := v.entry.InEdges(a.view(ViewNew))
	out := v.entry.OutEdges(a.view(ViewNew))
	var deleted []*EdgeAccessor
	for _, ref := range append(append([]gstore.EdgeRef(nil), in...), out...) {
		if ref.EdgePtr == nil || ref.EdgePtr.Deleted() {
			continue
		}
		if err := a.deleteEdgeEntry(ref.EdgePtr); err != nil {
			return nil, err
		}
		deleted = append(deleted, &EdgeAccessor{entry: ref.EdgePtr})
	}

	if err := a.expireVertex(v); err != nil {
		return nil, err
	}
	return deleted, nil
}

func (a *Accessor) expireVertex(v *VertexAccessor) error {
	if !v.entry.TryAcquireWriter(a.tx.ID) {
		return fmt.Errorf("%w: key %s", ErrSerialization, v.entry.Key)
	}
	a.tx.recordReleaser(func() { v.entry.ReleaseWriter(a.tx.ID) })

	labels, _, _, _, _ := v.entry.Snapshot(a.view(ViewNew))

	v.entry.Header.MarkExpired(a.tx.ID, a.tx.Command(), a.tx.Info)
	v.entry.SetDeleted(true)
	a.tx.recordUndo(func() {
		v.entry.Header.ClearExpired()
		v.entry.SetDeleted(false)
	})

	for _, l := range labels {
		a.expireLabelIndexEntries(v.entry, l)
	}
	return nil
}

// DeleteEdge removes the edge and its references on both endpoints.
func (a *Accessor) DeleteEdge(e *EdgeAccessor) error {
	return a.deleteEdgeEntry(e.entry)
}

func (a *Accessor) deleteEdgeEntry(edge *gstore.EdgeEntry) error {
	if edge.Deleted() {
		return fmt.Errorf("%w: gid %d", ErrDeletedObject, edge.GID)
	}
	if !edge.TryAcquireWriter(a.tx.ID) {
		return fmt.Errorf("%w: gid %d", ErrSerialization, edge.GID)
	}
	a.tx.recordReleaser(func() { edge.ReleaseWriter(a.tx.ID) })

	edge.Header.MarkExpired(a.tx.ID, a.tx.Command(), a.tx.Info)
	edge.SetDeleted(true)
	a.tx.recordUndo(func() {
		edge.Header.ClearExpired()
		edge.SetDeleted(false)
	})

	wc := a.writeContext()

	if src, ok := a.store.Vertices.Get(edge.Src); ok {
		srcRef := gstore.EdgeRef{GID: edge.GID, Type: edge.Type, Other: edge.Dst, EdgePtr: edge}
		src.RemoveOutEdge(wc, edge.GID)
		a.tx.recordUndo(func() { src.UndoRemoveOutEdge(srcRef) })
	}
	if dst, ok := a.store.Vertices.Get(edge.Dst); ok {
		dstRef := gstore.EdgeRef{GID: edge.GID, Type: edge.Type, Other: edge.Src, EdgePtr: edge}
		dst.RemoveInEdge(wc, edge.GID)
		a.tx.recordUndo(func() { dst.UndoRemoveInEdge(dstRef) })
	}
	return nil
}

// Commit finalizes the transaction: the Engine assigns the commit HLC,
// every queued index entry is stamped with it, and every write latch
// this accessor acquired is released.
func (a *Accessor) Commit() hlc.HLC {
	return a.store.Engine.Commit(a.tx)
}

// Abort unwinds every recorded mutation newest-first and releases this
// accessor's write latches.
func (a *Accessor) Abort() {
	a.store.Engine.Abort(a.tx)
}
