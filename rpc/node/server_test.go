package node_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
	"github.com/shardgraph/shardgraph/rpc/common"
	"github.com/shardgraph/shardgraph/rpc/node"
	"github.com/shardgraph/shardgraph/rpc/serializer"
	"github.com/stretchr/testify/require"
)

type noopCoordinator struct{}

func (noopCoordinator) SendHeartbeat(context.Context, *shardmgr.HeartbeatRequest) (*shardmgr.HeartbeatResponse, bool, error) {
	return &shardmgr.HeartbeatResponse{Success: true}, false, nil
}
func (noopCoordinator) ForwardSplit(context.Context, *shardmgr.SplitRequest) error { return nil }
func (noopCoordinator) Close() error                                              { return nil }

func echoHandler(_ *shard.Shard, payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out
}

func TestServerHandleRoutesToHostedShard(t *testing.T) {
	m := shardmgr.New(shardmgr.Options{Coordinator: noopCoordinator{}, Handler: echoHandler, NumWorkers: 1})
	m.Start()
	defer m.Stop()
	shardID := uuid.New()
	m.AssignShard(shardID, shard.New(shard.Options{}))

	s := serializer.NewJSONSerializer()
	srv := node.NewServer(m, s)

	req := common.NewRouteRequest(7, shardID, []byte("ping"))
	raw, err := s.Serialize(*req)
	require.NoError(t, err)

	respRaw := srv.Handle(shardID, raw)
	var resp common.Message
	require.NoError(t, s.Deserialize(respRaw, &resp))
	require.True(t, resp.Ok)
	require.Equal(t, []byte("ping"), resp.Payload)
	require.Equal(t, uint64(7), resp.RequestID)
}

func TestServerHandleRouteToUnknownShardFails(t *testing.T) {
	m := shardmgr.New(shardmgr.Options{Coordinator: noopCoordinator{}, Handler: echoHandler, NumWorkers: 1})
	s := serializer.NewJSONSerializer()
	srv := node.NewServer(m, s)

	req := common.NewRouteRequest(1, uuid.New(), []byte("x"))
	raw, _ := s.Serialize(*req)

	respRaw := srv.Handle(uuid.Nil, raw)
	var resp common.Message
	require.NoError(t, s.Deserialize(respRaw, &resp))
	require.False(t, resp.Ok)
	require.NotEmpty(t, resp.Err)
}

func TestServerHandleUnsupportedMessageType(t *testing.T) {
	m := shardmgr.New(shardmgr.Options{Coordinator: noopCoordinator{}, Handler: echoHandler, NumWorkers: 1})
	s := serializer.NewJSONSerializer()
	srv := node.NewServer(m, s)

	msg := &common.Message{MsgType: common.MsgTHeartbeat, RequestID: 3}
	raw, _ := s.Serialize(*msg)

	respRaw := srv.Handle(uuid.Nil, raw)
	var resp common.Message
	require.NoError(t, s.Deserialize(respRaw, &resp))
	require.Equal(t, common.MsgTError, resp.MsgType)
}
