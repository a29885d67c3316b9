package transport

import (
	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles one incoming request. It is called by a
// server transport layer when a request is received; target is the
// shard uuid carried in the request frame (the source shard for a
// SplitForward), uuid.Nil for Heartbeat traffic that addresses no
// particular shard.
type ServerHandleFunc func(target uuid.UUID, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer.
type IRPCServerTransport interface {
	// RegisterHandler registers the handler called on every received request.
	// The transport layer itself does no routing; it only extracts the
	// target uuid from the frame and hands the raw payload onward.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport.
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration.
	Connect(config common.ClientConfig) error
	// Send sends a request addressed to target and returns the response.
	Send(target uuid.UUID, req []byte) (resp []byte, err error)
	// Close closes the transport connection.
	Close() error
}
