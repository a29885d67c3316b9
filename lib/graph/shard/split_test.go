package shard_test

import (
	"testing"

	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/graph/txn"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

func TestPerformSplitPartitionsVerticesAndEdges(t *testing.T) {
	s := shard.New(shard.Options{MinPK: value.Key{value.Int(0)}, MaxPK: value.Key{value.Int(10)}})
	knows := s.Mapper().EdgeType("KNOWS")

	acc := s.Access()
	var refs []*txn.VertexAccessor
	for i := int64(0); i < 6; i++ {
		v, err := acc.CreateVertex(nil, value.Key{value.Int(i)}, nil)
		require.NoError(t, err)
		refs = append(refs, v)
	}
	_, err := acc.CreateEdge(refs[1], refs[4], knows) // crosses the split point
	require.NoError(t, err)
	_, err = acc.CreateEdge(refs[1], refs[2], knows) // stays on lhs
	require.NoError(t, err)
	s.Commit(acc)

	oldVer := s.Version()
	lhsVer := hlc.HLC{Wall: oldVer.Wall + 1}
	rhsVer := hlc.HLC{Wall: oldVer.Wall + 2}
	data, err := s.PerformSplit(value.Key{value.Int(3)}, oldVer, lhsVer, rhsVer)
	require.NoError(t, err)

	require.Equal(t, 3, data.LHS.Info().VertexCount)
	require.Equal(t, 3, data.RHS.Info().VertexCount)
	require.Equal(t, 2, data.LHS.Info().EdgeCount, "both edges have src < 3, so both stay on lhs")
	require.Equal(t, 0, data.RHS.Info().EdgeCount)

	accLHS := data.LHS.Access()
	_, ok := accLHS.FindVertex(value.Key{value.Int(1)}, txn.ViewOld)
	require.True(t, ok)
	_, ok = accLHS.FindVertex(value.Key{value.Int(4)}, txn.ViewOld)
	require.False(t, ok, "vertex 4 moved to rhs")
	data.LHS.Abort(accLHS)

	require.True(t, hlc.Compare(data.LHSVersion, hlc.HLC{}) > 0)
	require.True(t, hlc.Compare(data.RHSVersion, data.LHSVersion) > 0)
}

func TestPerformSplitCarriesActiveTransactionToOwningSuccessor(t *testing.T) {
	s := shard.New(shard.Options{MinPK: value.Key{value.Int(0)}, MaxPK: value.Key{value.Int(10)}})

	acc := s.Access()
	_, err := acc.CreateVertex(nil, value.Key{value.Int(7)}, nil)
	require.NoError(t, err)

	ver := s.Version()
	newLHSVer := hlc.HLC{Wall: ver.Wall + 1}
	newRHSVer := hlc.HLC{Wall: ver.Wall + 2}
	data, err := s.PerformSplit(value.Key{value.Int(3)}, ver, newLHSVer, newRHSVer)
	require.NoError(t, err)

	require.Empty(t, data.LHSActive, "vertex 7 belongs to rhs, not lhs")
	require.Contains(t, data.RHSActive, acc.Transaction().ID)

	acc.Rebind(data.RHS.StoreView())
	ts := data.RHS.Commit(acc)
	require.True(t, hlc.Compare(ts, hlc.HLC{}) > 0)

	accRHS := data.RHS.Access()
	_, ok := accRHS.FindVertex(value.Key{value.Int(7)}, txn.ViewOld)
	require.True(t, ok, "T1's create is visible on rhs after commit")
	data.RHS.Abort(accRHS)

	accLHS := data.LHS.Access()
	_, ok = accLHS.FindVertex(value.Key{value.Int(7)}, txn.ViewOld)
	require.False(t, ok, "vertex 7 was never partitioned onto lhs")
	data.LHS.Abort(accLHS)
}

func TestPerformSplitRejectsStaleVersion(t *testing.T) {
	s := shard.New(shard.Options{MinPK: value.Key{value.Int(0)}, MaxPK: value.Key{value.Int(10)}})
	stale := hlc.HLC{Wall: 1}
	_, err := s.PerformSplit(value.Key{value.Int(5)}, stale, hlc.HLC{Wall: 2}, hlc.HLC{Wall: 3})
	require.ErrorIs(t, err, shard.ErrStaleShardVersion)
}
