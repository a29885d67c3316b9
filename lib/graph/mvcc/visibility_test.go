package mvcc

import (
	"testing"

	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/stretchr/testify/require"
)

type fakeLog struct {
	states map[TxID]TxState
	ts     map[TxID]hlc.HLC
}

func (f *fakeLog) State(id TxID) (TxState, hlc.HLC) {
	return f.states[id], f.ts[id]
}

func TestVisibleOwnCreation(t *testing.T) {
	log := &fakeLog{states: map[TxID]TxState{}}
	h := &Header{}
	info := NewCommitInfo()
	h.MarkCreated(1, 0, info)

	snap := Snapshot{SelfID: 1}
	require.True(t, Visible(h, log, 1, snap, 1, false), "own earlier command visible under read view")
	require.True(t, Visible(h, log, 1, snap, 0, true), "own same command visible under write view")
	require.False(t, Visible(h, log, 1, snap, 0, false), "own same command not visible under read view")
}

func TestVisibleOtherCommitted(t *testing.T) {
	log := &fakeLog{states: map[TxID]TxState{1: TxCommitted}, ts: map[TxID]hlc.HLC{1: {Wall: 10}}}
	h := &Header{}
	h.MarkCreated(1, 0, NewCommitInfo())

	snap := Snapshot{SelfID: 2, Active: map[TxID]struct{}{}}
	require.True(t, Visible(h, log, 2, snap, 0, false))

	snapSame := Snapshot{SelfID: 2, Active: map[TxID]struct{}{1: {}}}
	require.False(t, Visible(h, log, 2, snapSame, 0, false), "creator in snapshot's active set stays invisible")
}

func TestVisibleExpiredBySelf(t *testing.T) {
	log := &fakeLog{states: map[TxID]TxState{}}
	h := &Header{}
	h.MarkCreated(1, 0, NewCommitInfo())
	h.MarkExpired(1, 2, NewCommitInfo())

	snap := Snapshot{SelfID: 1}
	require.True(t, Visible(h, log, 1, snap, 1, false), "not yet expired at earlier command")
	require.False(t, Visible(h, log, 1, snap, 3, false), "expired at the command after its expiring command")
}

func TestGCVisibleReclaimsOldExpiry(t *testing.T) {
	info := NewCommitInfo()
	info.SetCommitTS(hlc.HLC{Wall: 5})
	log := &fakeLog{states: map[TxID]TxState{1: TxCommitted, 2: TxCommitted}}
	h := &Header{}
	h.MarkCreated(1, 0, NewCommitInfo())
	h.MarkExpired(2, 0, info)

	live := Snapshot{Watermark: hlc.HLC{Wall: 10}}
	require.False(t, GCVisible(h, log, live), "expired before watermark and not in snapshot is reclaimable")

	stillReachable := Snapshot{Active: map[TxID]struct{}{2: {}}, Watermark: hlc.HLC{Wall: 10}}
	require.True(t, GCVisible(h, log, stillReachable), "expiring tx still in snapshot's active set")
}

func TestGCVisibleAbortedCreation(t *testing.T) {
	log := &fakeLog{states: map[TxID]TxState{1: TxAborted}}
	h := &Header{}
	h.MarkCreated(1, 0, NewCommitInfo())
	require.False(t, GCVisible(h, log, Snapshot{}))
}
