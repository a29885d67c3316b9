package gstore

import (
	"testing"

	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

func key(i int64) value.Key { return value.Key{value.Int(i)} }

func TestVertexStoreInsertGetOrder(t *testing.T) {
	s := NewVertexStore()
	for _, k := range []int64{3, 1, 2} {
		require.True(t, s.Insert(NewVertexEntry(key(k), nil, nil)))
	}
	require.False(t, s.Insert(NewVertexEntry(key(2), nil, nil)), "duplicate key rejected")

	var seen []int64
	s.Ascend(nil, func(e *VertexEntry) bool {
		seen = append(seen, e.Key[0].AsInt())
		return true
	})
	require.Equal(t, []int64{1, 2, 3}, seen)
}

func TestVertexStoreSplit(t *testing.T) {
	s := NewVertexStore()
	for _, k := range []int64{1, 2, 3, 4, 5, 6} {
		s.Insert(NewVertexEntry(key(k), nil, nil))
	}
	lhs, rhs := s.Split(key(4))
	require.Equal(t, 3, lhs.Len())
	require.Equal(t, 3, rhs.Len())

	_, ok := lhs.Get(key(4))
	require.False(t, ok)
	_, ok = rhs.Get(key(4))
	require.True(t, ok)
}
