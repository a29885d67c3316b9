package shard_test

import (
	"testing"

	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/graph/shard/shardtesting"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

func TestShardScenarios(t *testing.T) {
	shardtesting.RunShardTests(t, func() *shard.Shard {
		clock := hlc.NewClock()
		return shard.New(shard.Options{
			MinPK: value.Key{value.Int(0)},
			MaxPK: value.Key{value.Int(1000)},
			Clock: clock,
		})
	})
}

func TestShardInfoReflectsCommits(t *testing.T) {
	s := shard.New(shard.Options{})
	acc := s.Access()
	_, err := acc.CreateVertex(nil, value.Key{value.Int(1)}, nil)
	require.NoError(t, err)
	s.Commit(acc)

	info := s.Info()
	require.Equal(t, 1, info.VertexCount)
	require.Equal(t, uint64(1), info.CommittedTxns)
}

func TestShouldSplitRespectsThreshold(t *testing.T) {
	s := shard.New(shard.Options{SplitThreshold: 3})
	_, ok := s.ShouldSplit()
	require.False(t, ok, "below threshold")

	acc := s.Access()
	for i := int64(1); i <= 3; i++ {
		_, err := acc.CreateVertex(nil, value.Key{value.Int(i)}, nil)
		require.NoError(t, err)
	}
	s.Commit(acc)

	key, ok := s.ShouldSplit()
	require.True(t, ok)
	require.NotNil(t, key)
}
