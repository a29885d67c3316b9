package mvcc

import (
	"sync/atomic"

	"github.com/shardgraph/shardgraph/lib/hlc"
)

// Header is the lifecycle half of an object's MVCC record: which
// transaction created it and (if any) which transaction expired it, plus
// a pointer to the head of the delta chain for everything else (labels,
// properties, edge refs). All fields are accessed atomically because
// readers walk a live object concurrently with a single writer.
type Header struct {
	createTxn  atomic.Uint64
	createCmd  atomic.Uint32
	createInfo atomic.Pointer[CommitInfo]

	expireTxn  atomic.Uint64
	expireCmd  atomic.Uint32
	expireInfo atomic.Pointer[CommitInfo]

	delta atomic.Pointer[Delta]
}

// MarkCreated records the creating transaction/command. Called exactly
// once, when the object is first inserted into its container.
func (h *Header) MarkCreated(txn TxID, cmd CommandID, info *CommitInfo) {
	h.createTxn.Store(uint64(txn))
	h.createCmd.Store(uint32(cmd))
	h.createInfo.Store(info)
}

// MarkExpired records the expiring transaction/command. Per spec.md §9's
// open question, this may race with a concurrent visibility check; the
// source intentionally does not optimize expiration hints across that
// race, and neither does this port.
func (h *Header) MarkExpired(txn TxID, cmd CommandID, info *CommitInfo) {
	h.expireTxn.Store(uint64(txn))
	h.expireCmd.Store(uint32(cmd))
	h.expireInfo.Store(info)
}

// ClearExpired undoes MarkExpired - used when an abort unwinds a delete.
func (h *Header) ClearExpired() {
	h.expireTxn.Store(0)
	h.expireCmd.Store(0)
	h.expireInfo.Store(nil)
}

func (h *Header) DeltaHead() *Delta { return h.delta.Load() }

// PushDelta links d in front of the current chain head and swaps it in.
// Only the transaction currently holding the object's write latch may
// call this (see gstore.VertexEntry.writer), so there is never a
// concurrent pusher to race against; a reader walking the old head via
// DeltaHead still sees a fully-linked chain either way, since d.Next is
// set before the head pointer is published.
func (h *Header) PushDelta(d *Delta) {
	d.Next = h.delta.Load()
	h.delta.Store(d)
}

// fetchExpire reads (tx_expire, cmd_expire) as a stable pair, looping to
// re-read cmd_expire if tx_expire changed between the two reads - ported
// from mvcc::Record::fetch_exp in original_source/mvcc/record.hpp.
func (h *Header) fetchExpire() (TxID, CommandID, *CommitInfo) {
	for {
		txn := TxID(h.expireTxn.Load())
		cmd := CommandID(h.expireCmd.Load())
		info := h.expireInfo.Load()
		if TxID(h.expireTxn.Load()) == txn {
			return txn, cmd, info
		}
	}
}

func (h *Header) createTx() (TxID, CommandID, *CommitInfo) {
	return TxID(h.createTxn.Load()), CommandID(h.createCmd.Load()), h.createInfo.Load()
}

// Creator exposes the creating transaction's id, command and CommitInfo,
// for callers outside this package that need to reason about who
// created an object directly (see txn.Accessor.CreateVertex's
// concurrent-collision check).
func (h *Header) Creator() (TxID, CommandID, *CommitInfo) {
	return h.createTx()
}

// committedBefore reports whether id was committed as of snapshot's
// start and is not itself in the snapshot's active-transaction set. The
// hint bits on info (the header field's CommitInfo) cache the answer
// after the first lookup against log.
func committedBefore(log CommitLog, id TxID, info *CommitInfo, creating bool, snapshot Snapshot) bool {
	if snapshot.Contains(id) {
		return false
	}
	if info == nil {
		state, _ := log.State(id)
		return state == TxCommitted
	}
	return info.cachedState(log, id, creating) == TxCommitted
}

// Snapshot is the set of transaction ids active when a transaction
// started, plus that transaction's own id. Watermark is only meaningful
// for a GC snapshot: the start HLC of the oldest transaction it
// considers live, or the clock's most recently issued HLC when none is.
type Snapshot struct {
	SelfID    TxID
	Active    map[TxID]struct{}
	Watermark hlc.HLC
}

func (s Snapshot) Contains(id TxID) bool {
	if id == s.SelfID {
		return true
	}
	_, ok := s.Active[id]
	return ok
}

// Visible implements spec.md §4.2's visibility test. T is the inspecting
// transaction (its id, snapshot and current command C). forWrite selects
// the "visible-for-write" variant, where the current command may observe
// its own creations (cmd_create <= C instead of cmd_create < C).
func Visible(h *Header, log CommitLog, self TxID, snapshot Snapshot, cmd CommandID, forWrite bool) bool {
	createTxn, createCmd, createInfo := h.createTx()
	expireTxn, expireCmd, expireInfo := h.fetchExpire()

	var createdVisible bool
	if createTxn == self {
		if forWrite {
			createdVisible = createCmd <= cmd
		} else {
			createdVisible = createCmd < cmd
		}
	} else {
		createdVisible = committedBefore(log, createTxn, createInfo, true, snapshot)
	}
	if !createdVisible {
		return false
	}

	if expireTxn == 0 {
		return true
	}
	if expireTxn == self {
		return expireCmd >= cmd
	}
	// Expired by someone else: visible to T iff that expiry is not yet
	// committed as of T's snapshot.
	return !committedBefore(log, expireTxn, expireInfo, false, snapshot)
}

// ReadView bundles what a reader needs to resolve visibility against
// both an object's Header and its delta chain: the reader's own
// transaction id, its snapshot and current command, and whether it is
// reading for-write (able to see its own not-yet-committed edits from
// earlier commands under the same rules Visible applies to creation).
type ReadView struct {
	Log      CommitLog
	Self     TxID
	Snapshot Snapshot
	Cmd      CommandID
	ForWrite bool
}

// DeltaVisible reports whether d's mutation is already folded into the
// value a reader under rv should see, i.e. whether the chain walk can
// stop here instead of undoing d and continuing to Next. It applies the
// same rule Visible applies to an object's creation: the delta's own
// transaction sees its later commands under ForWrite, everyone else
// needs it committed before rv's snapshot.
func (rv ReadView) DeltaVisible(d *Delta) bool {
	if d.Txn == rv.Self {
		if rv.ForWrite {
			return d.Cmd <= rv.Cmd
		}
		return d.Cmd < rv.Cmd
	}
	return committedBefore(rv.Log, d.Txn, d.Info, true, rv.Snapshot)
}

// GCVisible implements the inverse of spec.md §4.2's GC reachability
// test: it returns true while the object version is still reachable by
// some transaction in gcSnapshot (or might become reachable), and false
// once it is safe to reclaim - i.e. its creating transaction aborted, or
// its expiring transaction committed at or before gcSnapshot's
// watermark and is absent from gcSnapshot.
func GCVisible(h *Header, log CommitLog, gcSnapshot Snapshot) bool {
	createTxn, _, _ := h.createTx()
	if state, _ := log.State(createTxn); state == TxAborted {
		return false
	}

	expireTxn, _, expireInfo := h.fetchExpire()
	if expireTxn == 0 {
		return true
	}
	state, _ := log.State(expireTxn)
	if state != TxCommitted {
		return true
	}
	if gcSnapshot.Contains(expireTxn) {
		return true
	}
	if expireInfo != nil {
		if ts, ok := expireInfo.CommitTS(); ok && hlc.Compare(ts, gcSnapshot.Watermark) > 0 {
			return true
		}
	}
	return false
}
