package shardmap_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/shardmap"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

func TestGetShardForKeyLowerBound(t *testing.T) {
	m := shardmap.New()
	person := nameid.LabelID(1)
	left := uuid.New()
	right := uuid.New()

	m.AddShard(person, nil, value.Key{value.Int(10)}, shardmap.Address{IP: "10.0.0.1", Port: 9000, UUID: left}, hlc.HLC{Wall: 1})
	m.AddShard(person, value.Key{value.Int(10)}, nil, shardmap.Address{IP: "10.0.0.2", Port: 9000, UUID: right}, hlc.HLC{Wall: 1})

	r, ok := m.GetShardForKey(person, value.Key{value.Int(3)})
	require.True(t, ok)
	require.Equal(t, left, r.Addr.UUID)

	r, ok = m.GetShardForKey(person, value.Key{value.Int(10)})
	require.True(t, ok)
	require.Equal(t, right, r.Addr.UUID, "max of lhs is exclusive, so 10 belongs to rhs")

	r, ok = m.GetShardForKey(person, value.Key{value.Int(999)})
	require.True(t, ok)
	require.Equal(t, right, r.Addr.UUID)
}

func TestGetShardsForRangeOverlap(t *testing.T) {
	m := shardmap.New()
	person := nameid.LabelID(1)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	m.AddShard(person, value.Key{value.Int(0)}, value.Key{value.Int(10)}, shardmap.Address{UUID: a}, hlc.HLC{})
	m.AddShard(person, value.Key{value.Int(10)}, value.Key{value.Int(20)}, shardmap.Address{UUID: b}, hlc.HLC{})
	m.AddShard(person, value.Key{value.Int(20)}, nil, shardmap.Address{UUID: c}, hlc.HLC{})

	got := m.GetShardsForRange(person, value.Key{value.Int(5)}, value.Key{value.Int(15)})
	require.Len(t, got, 2)
	require.Equal(t, a, got[0].Addr.UUID)
	require.Equal(t, b, got[1].Addr.UUID)
}

func TestSplitShardCASRejectsStaleVersion(t *testing.T) {
	m := shardmap.New()
	person := nameid.LabelID(1)
	source := uuid.New()
	lhs, rhs := uuid.New(), uuid.New()

	m.AddShard(person, nil, nil, shardmap.Address{UUID: source}, hlc.HLC{Wall: 5})

	mapping := shardmap.UUIDMapping{Source: source, LHS: lhs, RHS: rhs}
	ok := m.SplitShard(person, mapping, value.Key{value.Int(50)}, hlc.HLC{Wall: 1}, hlc.HLC{Wall: 6}, hlc.HLC{Wall: 7}, shardmap.Address{UUID: lhs}, shardmap.Address{UUID: rhs})
	require.False(t, ok, "prevVersion does not match the stored version 5")

	ok = m.SplitShard(person, mapping, value.Key{value.Int(50)}, hlc.HLC{Wall: 5}, hlc.HLC{Wall: 6}, hlc.HLC{Wall: 7}, shardmap.Address{UUID: lhs}, shardmap.Address{UUID: rhs})
	require.True(t, ok)

	r, ok := m.GetShardForKey(person, value.Key{value.Int(10)})
	require.True(t, ok)
	require.Equal(t, lhs, r.Addr.UUID)

	r, ok = m.GetShardForKey(person, value.Key{value.Int(90)})
	require.True(t, ok)
	require.Equal(t, rhs, r.Addr.UUID)
}
