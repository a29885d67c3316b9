package txn

import (
	"sync"
	"sync/atomic"

	"github.com/shardgraph/shardgraph/lib/graph/mvcc"
	"github.com/shardgraph/shardgraph/lib/hlc"
)

// commitRecord is what the Engine remembers about a finished
// transaction until GC reclaims it.
type commitRecord struct {
	state mvcc.TxState
	ts    hlc.HLC
}

// Engine is a shard's transaction table: it issues ids, tracks which
// transactions are active (for building a new transaction's snapshot),
// and answers mvcc.CommitLog queries for everything it has not yet
// forgotten. Grounded on the commit-log description in SPEC_FULL.md §3
// ("a per-shard commit log... a transaction id is committed iff the
// commit log holds Committed for it").
type Engine struct {
	clock *hlc.Clock

	nextID atomic.Uint64

	mu        sync.RWMutex
	active    map[mvcc.TxID]*Transaction
	committed map[mvcc.TxID]commitRecord
}

func NewEngine(clock *hlc.Clock) *Engine {
	return &Engine{clock: clock, active: make(map[mvcc.TxID]*Transaction), committed: make(map[mvcc.TxID]commitRecord)}
}

// State implements mvcc.CommitLog.
func (e *Engine) State(id mvcc.TxID) (mvcc.TxState, hlc.HLC) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.active[id]; ok {
		return mvcc.TxActive, hlc.HLC{}
	}
	if rec, ok := e.committed[id]; ok {
		return rec.state, rec.ts
	}
	// Absence means this id predates everything the GC has not yet
	// reclaimed, or was never issued; the caller treats it as aborted so
	// stale references never resurrect as visible.
	return mvcc.TxAborted, hlc.HLC{}
}

// Begin opens a new transaction at the clock's current HLC, snapshotting
// the ids active right now.
func (e *Engine) Begin() *Transaction {
	id := mvcc.TxID(e.nextID.Add(1))
	startTS := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	active := make(map[mvcc.TxID]struct{}, len(e.active))
	for txID := range e.active {
		active[txID] = struct{}{}
	}
	snap := mvcc.Snapshot{SelfID: id, Active: active}

	tx := newTransaction(id, startTS, snap)
	tx.homes = []*Engine{e}
	e.active[id] = tx
	return tx
}

// Commit stamps the transaction's commit HLC (strictly greater than any
// previously committed HLC on this shard, per I3, since e.clock.Now() is
// monotonic) and moves it from active to committed on every engine that
// has adopted it - ordinarily just e, but a transaction a split carried
// across successors (see AdoptActive) is finalized on all of them by
// whichever one the caller happens to commit through.
func (e *Engine) Commit(tx *Transaction) hlc.HLC {
	ts := e.clock.Now()

	tx.mu.Lock()
	tx.commitTS = ts
	stamps := tx.pendingStamps
	tx.pendingStamps = nil
	releasers := tx.releasers
	tx.releasers = nil
	tx.mu.Unlock()

	tx.Info.SetCommitTS(ts)
	for _, stamp := range stamps {
		stamp(ts)
	}
	for _, release := range releasers {
		release()
	}
	tx.state.Store(uint32(mvcc.TxCommitted))

	for _, home := range tx.homeEngines() {
		home.mu.Lock()
		delete(home.active, tx.ID)
		home.committed[tx.ID] = commitRecord{state: mvcc.TxCommitted, ts: ts}
		home.mu.Unlock()
	}

	return ts
}

// Abort walks the transaction's undo list newest-first, releases its
// write latches, and marks it Aborted on every engine that adopted it.
func (e *Engine) Abort(tx *Transaction) {
	tx.mu.Lock()
	undos := tx.undos
	tx.undos = nil
	releasers := tx.releasers
	tx.releasers = nil
	tx.mu.Unlock()

	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
	for _, release := range releasers {
		release()
	}
	tx.state.Store(uint32(mvcc.TxAborted))

	for _, home := range tx.homeEngines() {
		home.mu.Lock()
		delete(home.active, tx.ID)
		home.committed[tx.ID] = commitRecord{state: mvcc.TxAborted}
		home.mu.Unlock()
	}
}

// OldestActiveSnapshot returns the snapshot the GC should use: the set of ids
// still active right now, and a watermark HLC equal to the oldest of
// their start timestamps (or the clock's most recently issued HLC if none
// are active).
func (e *Engine) OldestActiveSnapshot() mvcc.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	active := make(map[mvcc.TxID]struct{}, len(e.active))
	watermark := e.clock.Last()
	for id, tx := range e.active {
		active[id] = struct{}{}
		if hlc.Compare(tx.StartTS, watermark) < 0 {
			watermark = tx.StartTS
		}
	}
	return mvcc.Snapshot{Active: active, Watermark: watermark}
}

// ActiveCount reports how many transactions are currently open.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

// ActiveTransactions returns every transaction currently open on this
// engine, for the split protocol to partition across successors (spec.md
// §4.8 step 4 / invariant I5).
func (e *Engine) ActiveTransactions() []*Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Transaction, 0, len(e.active))
	for _, tx := range e.active {
		out = append(out, tx)
	}
	return out
}

// AdoptActive registers an in-flight transaction inherited from a split's
// parent shard as active on e, and records e as one of its homes so a
// later Commit or Abort - called through e, the parent, or the other
// successor - finalizes it here too.
func (e *Engine) AdoptActive(tx *Transaction) {
	e.mu.Lock()
	e.active[tx.ID] = tx
	e.mu.Unlock()
	tx.addHome(e)
}

// CopyCommittedFrom seeds e's commit log with parent's already-resolved
// commit records. A split successor inherits vertices and edges whose
// creating or expiring transaction committed against the parent before
// the split; without this, e's fresh empty log would report those ids
// as unknown, and State's absence-means-aborted fallback would hide
// already-committed data. e also continues issuing ids after the
// parent's, so a new transaction never reuses an inherited id.
func (e *Engine) CopyCommittedFrom(parent *Engine) {
	parent.mu.RLock()
	defer parent.mu.RUnlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, rec := range parent.committed {
		e.committed[id] = rec
	}
	if n := parent.nextID.Load(); n > e.nextID.Load() {
		e.nextID.Store(n)
	}
}

// Forget drops a finished transaction's commit record once GC has
// determined nothing can reference it anymore.
func (e *Engine) Forget(id mvcc.TxID) {
	e.mu.Lock()
	delete(e.committed, id)
	e.mu.Unlock()
}
