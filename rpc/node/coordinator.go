package node

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
	"github.com/shardgraph/shardgraph/rpc/common"
	"github.com/shardgraph/shardgraph/rpc/serializer"
	"github.com/shardgraph/shardgraph/rpc/transport"
)

// coordinatorClient implements shardmgr.CoordinatorClient over an
// rpc/transport client transport, encoding every round-trip through
// the same rpc/common.Message envelope the storage-node Server
// decodes. This is the concrete form of spec.md §4.10's "external
// consensus module... treated as a black box providing send_leader(msg)
// and returning retry_leader?" - RetryLeader is read straight off the
// coordinator's own HeartbeatResponse, and any transport-level failure
// (the guess at which endpoint is leader was wrong, or it is simply
// unreachable) is also reported as a retry rather than a hard error, so
// the shard manager's heartbeat loop never blocks waiting on it.
type coordinatorClient struct {
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	nextReqID  atomic.Uint64
}

// NewCoordinatorClient connects transport to the coordinator endpoints
// in cfg and returns a shardmgr.CoordinatorClient wrapping it.
func NewCoordinatorClient(t transport.IRPCClientTransport, s serializer.IRPCSerializer, cfg common.ClientConfig) (shardmgr.CoordinatorClient, error) {
	if err := t.Connect(cfg); err != nil {
		return nil, fmt.Errorf("connect to coordinator: %w", err)
	}
	return &coordinatorClient{transport: t, serializer: s}, nil
}

func (c *coordinatorClient) SendHeartbeat(_ context.Context, req *shardmgr.HeartbeatRequest) (*shardmgr.HeartbeatResponse, bool, error) {
	id := c.nextReqID.Add(1)
	msg, err := common.NewHeartbeatRequest(id, req)
	if err != nil {
		return nil, false, err
	}

	respMsg, err := c.roundTrip(uuid.Nil, msg)
	if err != nil {
		// Could not reach the endpoint this node believes is leader;
		// the manager retries against the same (or a redirected)
		// leader on the next cron tick.
		return nil, true, err
	}

	resp, err := common.DecodeHeartbeatResponse(respMsg)
	if err != nil {
		return nil, false, err
	}
	return resp, resp.RetryLeader, nil
}

func (c *coordinatorClient) ForwardSplit(_ context.Context, req *shardmgr.SplitRequest) error {
	id := c.nextReqID.Add(1)
	msg, err := common.NewSplitForwardRequest(id, req)
	if err != nil {
		return err
	}

	respMsg, err := c.roundTrip(req.ShardUUID, msg)
	if err != nil {
		return err
	}
	if !respMsg.Ok {
		return fmt.Errorf("split forward rejected: %s", respMsg.Err)
	}
	return nil
}

func (c *coordinatorClient) roundTrip(target uuid.UUID, msg *common.Message) (*common.Message, error) {
	raw, err := c.serializer.Serialize(*msg)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	respRaw, err := c.transport.Send(target, raw)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var respMsg common.Message
	if err := c.serializer.Deserialize(respRaw, &respMsg); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &respMsg, nil
}

// Close releases the underlying transport connections.
func (c *coordinatorClient) Close() error {
	return c.transport.Close()
}
