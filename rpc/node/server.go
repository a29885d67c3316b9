package node

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/shardmap"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
	"github.com/shardgraph/shardgraph/rpc/common"
	"github.com/shardgraph/shardgraph/rpc/serializer"
	"github.com/shardgraph/shardgraph/rpc/transport"
)

// Server answers the two request types a storage node receives from
// its peers per spec.md §4.10/§6: opaque routed queries addressed to a
// locally-hosted shard, and a coordinator-approved split forwarded to
// that shard's (assumed local) leader. It implements
// transport.ServerHandleFunc via Handle, registered with an
// IRPCServerTransport by cmd/serve.
type Server struct {
	manager    *shardmgr.ShardManager
	serializer serializer.IRPCSerializer
}

// NewServer builds a Server dispatching decoded requests against manager.
func NewServer(manager *shardmgr.ShardManager, s serializer.IRPCSerializer) *Server {
	return &Server{manager: manager, serializer: s}
}

// Handle implements transport.ServerHandleFunc.
func (srv *Server) Handle(target uuid.UUID, raw []byte) []byte {
	var msg common.Message
	if err := srv.serializer.Deserialize(raw, &msg); err != nil {
		return srv.encode(common.NewErrorResponse(0, fmt.Sprintf("decode request: %v", err)))
	}

	switch msg.MsgType {
	case common.MsgTRoute:
		return srv.handleRoute(&msg)
	case common.MsgTSplitForward:
		return srv.handleSplitForward(&msg)
	default:
		return srv.encode(common.NewErrorResponse(msg.RequestID, fmt.Sprintf("unsupported message type %s on a storage node", msg.MsgType)))
	}
}

func (srv *Server) handleRoute(msg *common.Message) []byte {
	resp, ok := srv.manager.DispatchAndWait(shardmgr.RouteMessage{
		RequestID: msg.RequestID,
		To:        shardmap.Address{UUID: msg.ShardUUID},
		Payload:   msg.Payload,
	})
	var err error
	if !ok {
		err = fmt.Errorf("shard %s not hosted on this node", msg.ShardUUID)
	}
	return srv.encode(common.NewRouteResponse(msg.RequestID, resp, err))
}

func (srv *Server) handleSplitForward(msg *common.Message) []byte {
	req, err := common.DecodeSplitForwardRequest(msg)
	if err == nil {
		err = srv.manager.ApplySplitRequest(req)
	}
	return srv.encode(common.NewAckResponse(msg.RequestID, common.MsgTSplitForward, err))
}

func (srv *Server) encode(msg *common.Message) []byte {
	out, err := srv.serializer.Serialize(*msg)
	if err != nil {
		// Serializing our own response struct should never fail; fall
		// back to a bare error message rather than returning nothing,
		// which the client would otherwise see as a hung request.
		out, _ = srv.serializer.Serialize(*common.NewErrorResponse(msg.RequestID, "internal: failed to encode response"))
	}
	return out
}

var _ transport.ServerHandleFunc = (&Server{}).Handle
