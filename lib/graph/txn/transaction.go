package txn

import (
	"sync"
	"sync/atomic"

	"github.com/shardgraph/shardgraph/lib/graph/mvcc"
	"github.com/shardgraph/shardgraph/lib/hlc"
)

// undo is one recorded mutation a transaction can reverse on Abort, in
// the order it was applied (Abort walks it newest-first per spec.md
// §4.6).
type undo func()

// Transaction is spec.md §3's transaction struct: start-timestamp,
// active-transaction snapshot, per-command counter, commit/abort state,
// and the deltas it produced.
type Transaction struct {
	ID      mvcc.TxID
	StartTS hlc.HLC
	Info    *mvcc.CommitInfo

	snapshot mvcc.Snapshot

	cmd   atomic.Uint32
	state atomic.Uint32 // mvcc.TxState

	mu            sync.Mutex
	commitTS      hlc.HLC
	undos         []undo
	pendingStamps []func(hlc.HLC)
	releasers     []func()

	// homes is every Engine whose active/committed maps must be updated
	// when this transaction finishes. Normally just the Engine that ran
	// Begin; a shard split can adopt a still-active transaction into one
	// or both successor engines (see shard.PerformSplit), so a single
	// Commit or Abort call - through whichever engine the caller now
	// holds - finalizes the transaction everywhere it is known.
	homes []*Engine
}

func newTransaction(id mvcc.TxID, startTS hlc.HLC, snapshot mvcc.Snapshot) *Transaction {
	t := &Transaction{ID: id, StartTS: startTS, Info: mvcc.NewCommitInfo(), snapshot: snapshot}
	t.state.Store(uint32(mvcc.TxActive))
	return t
}

func (t *Transaction) Command() mvcc.CommandID { return mvcc.CommandID(t.cmd.Load()) }

// AdvanceCommand increments the command id per spec.md §4.6.
func (t *Transaction) AdvanceCommand() { t.cmd.Add(1) }

func (t *Transaction) State() mvcc.TxState { return mvcc.TxState(t.state.Load()) }

func (t *Transaction) Snapshot() mvcc.Snapshot { return t.snapshot }

// recordUndo appends an inverse action, invoked in reverse order by abort.
func (t *Transaction) recordUndo(fn undo) {
	t.mu.Lock()
	t.undos = append(t.undos, fn)
	t.mu.Unlock()
}

// recordReleaser appends a write-latch release, run once on both commit
// and abort (unlike undos, which only run on abort).
func (t *Transaction) recordReleaser(fn func()) {
	t.mu.Lock()
	t.releasers = append(t.releasers, fn)
	t.mu.Unlock()
}

// recordPendingStamp queues work for once this transaction's commit ts
// is known; Engine.Commit runs these right after assigning the ts.
func (t *Transaction) recordPendingStamp(fn func(hlc.HLC)) {
	t.mu.Lock()
	t.pendingStamps = append(t.pendingStamps, fn)
	t.mu.Unlock()
}

func (t *Transaction) commitTimestamp() hlc.HLC {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commitTS
}

// addHome registers e as another engine that must learn this
// transaction's final state.
func (t *Transaction) addHome(e *Engine) {
	t.mu.Lock()
	t.homes = append(t.homes, e)
	t.mu.Unlock()
}

func (t *Transaction) homeEngines() []*Engine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Engine(nil), t.homes...)
}
