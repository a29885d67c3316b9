package shardtesting

import (
	"errors"
	"testing"

	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/graph/txn"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

// ShardFactory builds a fresh, empty shard for one subtest.
type ShardFactory func() *shard.Shard

// RunShardTests runs a suite of single-shard scenarios against factory
// (create and read, write and create conflicts, detach delete, index
// maintenance, range boundary), following the teacher's
// lib/db/testing.RunKVDBTests pattern: each scenario gets its own t.Run
// and its own shard instance. Split and concurrent-commit scenarios are
// not part of this suite.
func RunShardTests(t *testing.T, factory ShardFactory) {
	t.Run("CreateAndRead", func(t *testing.T) { testCreateAndRead(t, factory()) })
	t.Run("WriteConflict", func(t *testing.T) { testWriteConflict(t, factory()) })
	t.Run("CreateConflict", func(t *testing.T) { testCreateConflict(t, factory()) })
	t.Run("DetachDelete", func(t *testing.T) { testDetachDelete(t, factory()) })
	t.Run("LabelPropertyIndex", func(t *testing.T) { testLabelPropertyIndex(t, factory()) })
	t.Run("RangeBoundary", func(t *testing.T) { testRangeBoundary(t, factory()) })
}

func pk(i int64) value.Key { return value.Key{value.Int(i)} }

func testCreateAndRead(t *testing.T, s *shard.Shard) {
	personLabel := s.Mapper().Label("Person")

	acc := s.Access()
	_, err := acc.CreateVertex(nil, pk(1), nil)
	require.NoError(t, err)
	s.Commit(acc)

	acc2 := s.Access()
	v, ok := acc2.FindVertex(pk(1), txn.ViewOld)
	require.True(t, ok)
	require.Equal(t, pk(1), v.Key())
	s.Commit(acc2)

	_ = personLabel
}

func testWriteConflict(t *testing.T, s *shard.Shard) {
	ageProp := s.Mapper().Property("age")

	setup := s.Access()
	_, err := setup.CreateVertex(nil, pk(1), nil)
	require.NoError(t, err)
	s.Commit(setup)

	acc1 := s.Access()
	acc2 := s.Access()
	v1, _ := acc1.FindVertex(pk(1), txn.ViewOld)
	v2, _ := acc2.FindVertex(pk(1), txn.ViewOld)

	require.NoError(t, acc1.SetProperty(v1, ageProp, value.Int(1)))
	err = acc2.SetProperty(v2, ageProp, value.Int(2))
	require.True(t, errors.Is(err, txn.ErrSerialization))

	s.Commit(acc1)
	s.Abort(acc2)
}

// testCreateConflict is spec.md §8 scenario B's literal case: two
// transactions racing to CreateVertex the same primary key, as opposed
// to testWriteConflict's SetProperty race on an already-committed
// vertex.
func testCreateConflict(t *testing.T, s *shard.Shard) {
	acc1 := s.Access()
	acc2 := s.Access()

	_, err := acc1.CreateVertex(nil, pk(9), nil)
	require.NoError(t, err)

	_, err = acc2.CreateVertex(nil, pk(9), nil)
	require.True(t, errors.Is(err, txn.ErrSerialization), "concurrent uncommitted creator must yield SerializationError")

	s.Commit(acc1)
	s.Abort(acc2)

	acc3 := s.Access()
	_, err = acc3.CreateVertex(nil, pk(9), nil)
	require.True(t, errors.Is(err, txn.ErrVertexAlreadyInserted), "a committed occupant yields VertexAlreadyInserted")
	s.Abort(acc3)
}

func testDetachDelete(t *testing.T, s *shard.Shard) {
	knows := s.Mapper().EdgeType("KNOWS")

	setup := s.Access()
	a, err := setup.CreateVertex(nil, pk(1), nil)
	require.NoError(t, err)
	b, err := setup.CreateVertex(nil, pk(2), nil)
	require.NoError(t, err)
	_, err = setup.CreateEdge(a, b, knows)
	require.NoError(t, err)
	s.Commit(setup)

	acc := s.Access()
	va, _ := acc.FindVertex(pk(1), txn.ViewOld)
	require.ErrorIs(t, acc.DeleteVertex(va), txn.ErrVertexHasEdges)

	deleted, err := acc.DetachDeleteVertex(va)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	s.Commit(acc)
}

// testLabelPropertyIndex is spec.md §8 scenario E - a label-property
// range scan, Vertices(Person, age, [15,30)) == {v(age:20)} - plus
// regression coverage for the index-maintenance duty every one of
// AddLabel/RemoveLabel/SetProperty/DeleteVertex owes the label and
// label-property indexes: an entry must be expired, not just made
// invisible via HasLabel/GetProperty, or a committed mutation never
// shows up (or never stops showing up) in an index scan.
func testLabelPropertyIndex(t *testing.T, s *shard.Shard) {
	person := s.Mapper().Label("Person")
	age := s.Mapper().Property("age")

	s.CreateLabelIndex(person)
	s.CreatePropertyIndex(person, age)

	setup := s.Access()
	_, err := setup.CreateVertex([]nameid.LabelID{person}, pk(10), map[nameid.PropertyID]value.Value{age: value.Int(10)})
	require.NoError(t, err)
	_, err = setup.CreateVertex([]nameid.LabelID{person}, pk(20), map[nameid.PropertyID]value.Value{age: value.Int(20)})
	require.NoError(t, err)
	_, err = setup.CreateVertex([]nameid.LabelID{person}, pk(30), map[nameid.PropertyID]value.Value{age: value.Int(30)})
	require.NoError(t, err)
	s.Commit(setup)

	read := s.Access()
	lo, hi := value.Int(15), value.Int(30)
	inRange := read.VerticesByPropertyRange(person, age, &lo, true, &hi, false, txn.ViewOld)
	require.Len(t, inRange, 1)
	require.Equal(t, pk(20), inRange[0].Key())
	require.Len(t, read.VerticesByLabel(person, txn.ViewOld), 3)
	s.Commit(read)

	// RemoveLabel must expire both the pure label-index entry and the
	// label-property entry recorded under that label.
	rl := s.Access()
	rv20, _ := rl.FindVertex(pk(20), txn.ViewOld)
	require.NoError(t, rl.RemoveLabel(rv20, person))
	s.Commit(rl)

	afterRemove := s.Access()
	require.Len(t, afterRemove.VerticesByLabel(person, txn.ViewOld), 2)
	require.Empty(t, afterRemove.VerticesByPropertyValue(person, age, value.Int(20), txn.ViewOld))
	s.Commit(afterRemove)

	// DeleteVertex must expire every index entry the vertex ever
	// registered, not just its header.
	del := s.Access()
	dv10, _ := del.FindVertex(pk(10), txn.ViewOld)
	require.NoError(t, del.DeleteVertex(dv10))
	s.Commit(del)

	afterDelete := s.Access()
	require.Len(t, afterDelete.VerticesByLabel(person, txn.ViewOld), 1)
	remaining := afterDelete.VerticesByPropertyRange(person, age, nil, true, nil, true, txn.ViewOld)
	require.Len(t, remaining, 1)
	require.Equal(t, pk(30), remaining[0].Key())
	s.Commit(afterDelete)

	// SetProperty on an indexed property must expire the entry under the
	// old value and insert one under the new value.
	sp := s.Access()
	spv30, _ := sp.FindVertex(pk(30), txn.ViewOld)
	require.NoError(t, sp.SetProperty(spv30, age, value.Int(25)))
	s.Commit(sp)

	afterSet := s.Access()
	require.Empty(t, afterSet.VerticesByPropertyValue(person, age, value.Int(30), txn.ViewOld))
	found := afterSet.VerticesByPropertyValue(person, age, value.Int(25), txn.ViewOld)
	require.Len(t, found, 1)
	require.Equal(t, pk(30), found[0].Key())
	s.Commit(afterSet)

	// AddLabel must fold the vertex's existing properties into any
	// matching label-property index, the way CreateVertex does.
	al := s.Access()
	v4, err := al.CreateVertex(nil, pk(4), map[nameid.PropertyID]value.Value{age: value.Int(5)})
	require.NoError(t, err)
	require.NoError(t, al.AddLabel(v4, person))
	s.Commit(al)

	afterAdd := s.Access()
	found = afterAdd.VerticesByPropertyValue(person, age, value.Int(5), txn.ViewOld)
	require.Len(t, found, 1)
	require.Equal(t, pk(4), found[0].Key())
	s.Commit(afterAdd)
}

// testRangeBoundary checks IsVertexBelongToShard against the shard's
// own advertised [min, max) range: a key strictly below min or at/above
// max must be rejected, one in between accepted.
func testRangeBoundary(t *testing.T, s *shard.Shard) {
	minPK, maxPK := s.Range()

	if minPK != nil {
		require.False(t, s.IsVertexBelongToShard(pk(minPK[0].AsInt()-1)), "key below min must not belong")
		require.True(t, s.IsVertexBelongToShard(minPK), "min itself is inclusive")
	}
	if maxPK != nil {
		require.False(t, s.IsVertexBelongToShard(maxPK), "max itself is exclusive")
	}
}
