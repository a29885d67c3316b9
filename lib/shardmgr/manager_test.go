package shardmgr_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/shardmap"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	mu        sync.Mutex
	beats     int
	resp      *shardmgr.HeartbeatResponse
	forwarded []*shardmgr.SplitRequest
}

func (f *fakeCoordinator) SendHeartbeat(ctx context.Context, req *shardmgr.HeartbeatRequest) (*shardmgr.HeartbeatResponse, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats++
	if f.resp == nil {
		return &shardmgr.HeartbeatResponse{Success: true}, false, nil
	}
	return f.resp, false, nil
}

func (f *fakeCoordinator) ForwardSplit(ctx context.Context, req *shardmgr.SplitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, req)
	return nil
}

func (f *fakeCoordinator) Close() error {
	return nil
}

func TestAssignShardMakesEveryShardRoutable(t *testing.T) {
	m := shardmgr.New(shardmgr.Options{
		Coordinator: &fakeCoordinator{},
		NumWorkers:  2,
		CronInterval: time.Hour, // effectively disable the cron tick for this test
	})

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	m.AssignShard(a, shard.New(shard.Options{}))
	m.AssignShard(b, shard.New(shard.Options{}))
	m.AssignShard(c, shard.New(shard.Options{}))

	for _, id := range []uuid.UUID{a, b, c} {
		ok := m.Dispatch(shardmgr.RouteMessage{To: shardmap.Address{UUID: id}})
		require.True(t, ok, "every assigned shard must be routable")
	}

	ok := m.Dispatch(shardmgr.RouteMessage{To: shardmap.Address{UUID: uuid.New()}})
	require.False(t, ok, "an unassigned shard must not be routable")
}

func TestHeartbeatAppliesInitializeAndSplitResponses(t *testing.T) {
	newUUID := uuid.New()
	sourceUUID := uuid.New()
	lhsUUID, rhsUUID := uuid.New(), uuid.New()

	coord := &fakeCoordinator{
		resp: &shardmgr.HeartbeatResponse{
			Success: true,
			ShardsToInitialize: []shardmgr.ShardToInitialize{
				{UUID: newUUID, MinKey: value.Key{value.Int(0)}, MaxKey: value.Key{value.Int(100)}},
			},
			ShardsToSplit: []shardmgr.ShardToSplit{
				{UUIDMapping: shardmap.UUIDMapping{Source: sourceUUID, LHS: lhsUUID, RHS: rhsUUID}, SplitKey: value.Key{value.Int(50)}},
			},
		},
	}

	m := shardmgr.New(shardmgr.Options{
		Coordinator:  coord,
		NumWorkers:   2,
		CronInterval: 20 * time.Millisecond,
	})
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Dispatch(shardmgr.RouteMessage{To: shardmap.Address{UUID: newUUID}})
	}, time.Second, 5*time.Millisecond, "the coordinator-assigned shard must get initialized and routable")

	require.Eventually(t, func() bool {
		coord.mu.Lock()
		defer coord.mu.Unlock()
		return len(coord.forwarded) > 0 && coord.forwarded[0].ShardUUID == sourceUUID
	}, time.Second, 5*time.Millisecond, "an approved split must be forwarded to the source shard's RSM")
}
