package mvcc

import (
	"sync/atomic"

	"github.com/shardgraph/shardgraph/lib/hlc"
)

// TxID identifies a transaction within one shard. 0 is never issued and
// marks "no transaction" (an object with ExpireTxn == 0 has not expired).
type TxID uint64

// CommandID is the per-transaction command counter; AdvanceCommand bumps
// it between statements of the same transaction.
type CommandID uint32

// TxState is the final disposition of a transaction as recorded in the
// shard's commit log.
type TxState uint8

const (
	TxActive TxState = iota
	TxCommitted
	TxAborted
)

// CommitLog answers "what happened to transaction id" for the visibility
// predicates below. The shard's transaction table is the concrete
// implementation; it is injected here rather than imported to keep this
// package free of a dependency on lib/graph/txn.
type CommitLog interface {
	// State reports the transaction's final state and, if Committed, its
	// commit HLC.
	State(id TxID) (TxState, hlc.HLC)
}

// hint bits, grounded on original_source/mvcc/record.hpp's Hints bitset.
// Once set they are never cleared, except that the expiring bits may be
// set again if ExpireTxn changes (which happens at most once per delta).
const (
	hintCreateCommitted uint32 = 1 << iota
	hintCreateAborted
	hintExpireCommitted
	hintExpireAborted
)

// CommitInfo is shared by every delta produced by one transaction: the
// commit HLC (set at most once) and a hint-bit cache over repeated
// visibility checks against the same commit log. The transaction engine
// owns exactly one CommitInfo per transaction and hands the same pointer
// to every delta and header field that transaction touches.
type CommitInfo struct {
	commitTS atomic.Pointer[hlc.HLC]
	hints    atomic.Uint32
}

// NewCommitInfo allocates a fresh, uncommitted CommitInfo for a new
// transaction.
func NewCommitInfo() *CommitInfo {
	return &CommitInfo{}
}

// SetCommitTS stamps the commit HLC exactly once. Calling it twice is a
// programming error in the caller (the transaction engine), not a race
// this package needs to tolerate.
func (c *CommitInfo) SetCommitTS(ts hlc.HLC) {
	c.commitTS.Store(&ts)
}

func (c *CommitInfo) CommitTS() (hlc.HLC, bool) {
	p := c.commitTS.Load()
	if p == nil {
		return hlc.HLC{}, false
	}
	return *p, true
}

// cachedState resolves id's final state, consulting the hint bits first
// and falling back to log on a miss. creating selects which pair of bits
// (creating-* vs expiring-*) this call belongs to: a header's createInfo
// only ever needs the creating bits, its expireInfo only the expiring
// ones, since a CommitInfo is unique to one transaction and a
// transaction's deltas are always either all "creating" or all
// "expiring" relative to one particular header field.
func (c *CommitInfo) cachedState(log CommitLog, id TxID, creating bool) TxState {
	committedBit, abortedBit := hintExpireCommitted, hintExpireAborted
	if creating {
		committedBit, abortedBit = hintCreateCommitted, hintCreateAborted
	}

	h := c.hints.Load()
	switch {
	case h&committedBit != 0:
		return TxCommitted
	case h&abortedBit != 0:
		return TxAborted
	}

	state, _ := log.State(id)
	switch state {
	case TxCommitted:
		setBitOnce(&c.hints, committedBit)
	case TxAborted:
		setBitOnce(&c.hints, abortedBit)
	}
	return state
}

func setBitOnce(bits *atomic.Uint32, bit uint32) {
	for {
		old := bits.Load()
		if old&bit != 0 {
			return
		}
		if bits.CompareAndSwap(old, old|bit) {
			return
		}
	}
}

// WriteContext identifies the transaction and command producing a
// mutation. The object being mutated threads it onto the delta the
// mutation records, so a later reader's ReadView can decide whether
// that delta already belongs to its visible history.
type WriteContext struct {
	Txn  TxID
	Cmd  CommandID
	Info *CommitInfo
}

// ActionKind enumerates the delta action kinds from spec.md's data
// model table.
type ActionKind uint8

const (
	ActionDeleteObject ActionKind = iota
	ActionRecreateObject
	ActionAddLabel
	ActionRemoveLabel
	ActionSetProperty
	ActionAddInEdge
	ActionAddOutEdge
	ActionRemoveInEdge
	ActionRemoveOutEdge
)

// Delta is one undo entry in an object's delta chain. Next walks towards
// older deltas; the chain head is swapped atomically by the object that
// owns it (see gstore.entry).
type Delta struct {
	Action ActionKind

	// Payload fields - only the ones relevant to Action are populated.
	LabelID    uint32
	PropertyID uint32
	OldValue   any // the value.Value being restored on undo, boxed to avoid an import cycle
	EdgeRef    any // the edge reference being restored on undo

	Next *Delta

	Txn TxID
	Cmd CommandID

	Info *CommitInfo
}

// NewDelta allocates a delta owned by txn/cmd, sharing the transaction's
// CommitInfo record.
func NewDelta(action ActionKind, txn TxID, cmd CommandID, info *CommitInfo, next *Delta) *Delta {
	return &Delta{Action: action, Txn: txn, Cmd: cmd, Info: info, Next: next}
}
