package common

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the single wire envelope used for every request and
// response this engine's RPC layer carries, generalized from the
// teacher's flat get/set/lock Message to an opaque-payload envelope:
// spec.md §6 treats application traffic routed to a shard as opaque to
// this specification, and the coordinator protocol (heartbeat, split
// forwarding) rides the same envelope with a typed, JSON-encoded
// Payload.
type Message struct {
	MsgType MessageType `json:"msg_type"`

	// RequestID correlates a response to its request; set by the caller.
	RequestID uint64 `json:"request_id,omitempty"`

	// ShardUUID addresses a RouteMessage's target shard, or a
	// SplitForward's source shard. Zero for Heartbeat traffic, which is
	// addressed by endpoint rather than shard.
	ShardUUID uuid.UUID `json:"shard_uuid,omitempty"`

	// Payload carries the type-specific body: opaque query bytes for
	// MsgTRoute, or a JSON-encoded shardmgr struct for every other type.
	Payload []byte `json:"payload,omitempty"`

	// Response only fields.
	Ok  bool   `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRouteRequest creates a new opaque routed request addressed to a shard.
func NewRouteRequest(requestID uint64, shardUUID uuid.UUID, payload []byte) *Message {
	return &Message{
		MsgType:   MsgTRoute,
		RequestID: requestID,
		ShardUUID: shardUUID,
		Payload:   payload,
	}
}

// NewRouteResponse creates the reply to a routed request.
func NewRouteResponse(requestID uint64, payload []byte, err error) *Message {
	msg := &Message{
		MsgType:   MsgTRoute,
		RequestID: requestID,
		Payload:   payload,
		Ok:        err == nil,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewHeartbeatRequest encodes a shardmgr.HeartbeatRequest into the wire envelope.
func NewHeartbeatRequest(requestID uint64, req *shardmgr.HeartbeatRequest) (*Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode heartbeat request: %w", err)
	}
	return &Message{MsgType: MsgTHeartbeat, RequestID: requestID, Payload: payload}, nil
}

// DecodeHeartbeatRequest recovers the shardmgr.HeartbeatRequest carried by msg.
func DecodeHeartbeatRequest(msg *Message) (*shardmgr.HeartbeatRequest, error) {
	var req shardmgr.HeartbeatRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("decode heartbeat request: %w", err)
	}
	return &req, nil
}

// NewHeartbeatResponse encodes a shardmgr.HeartbeatResponse into the wire envelope.
func NewHeartbeatResponse(requestID uint64, resp *shardmgr.HeartbeatResponse, err error) (*Message, error) {
	msg := &Message{MsgType: MsgTHeartbeat, RequestID: requestID, Ok: err == nil}
	if err != nil {
		msg.Err = err.Error()
		return msg, nil
	}
	payload, mErr := json.Marshal(resp)
	if mErr != nil {
		return nil, fmt.Errorf("encode heartbeat response: %w", mErr)
	}
	msg.Payload = payload
	return msg, nil
}

// DecodeHeartbeatResponse recovers the shardmgr.HeartbeatResponse carried by msg.
func DecodeHeartbeatResponse(msg *Message) (*shardmgr.HeartbeatResponse, error) {
	if msg.Err != "" {
		return nil, fmt.Errorf("coordinator error: %s", msg.Err)
	}
	var resp shardmgr.HeartbeatResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		return nil, fmt.Errorf("decode heartbeat response: %w", err)
	}
	return &resp, nil
}

// NewSplitForwardRequest encodes a shardmgr.SplitRequest (a best-effort
// forward of a coordinator-approved split to the owning shard's RSM
// leader, per spec.md §4.10) into the wire envelope.
func NewSplitForwardRequest(requestID uint64, req *shardmgr.SplitRequest) (*Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode split forward request: %w", err)
	}
	return &Message{MsgType: MsgTSplitForward, RequestID: requestID, ShardUUID: req.ShardUUID, Payload: payload}, nil
}

// DecodeSplitForwardRequest recovers the shardmgr.SplitRequest carried by msg.
func DecodeSplitForwardRequest(msg *Message) (*shardmgr.SplitRequest, error) {
	var req shardmgr.SplitRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("decode split forward request: %w", err)
	}
	return &req, nil
}

// NewAckResponse creates a plain success/error acknowledgement, used
// for SplitForward and ShutDown replies that carry no payload.
func NewAckResponse(requestID uint64, msgType MessageType, err error) *Message {
	msg := &Message{MsgType: msgType, RequestID: requestID, Ok: err == nil}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a bare error response, used when a request
// cannot even be decoded far enough to know its intended MsgType.
func NewErrorResponse(requestID uint64, err string) *Message {
	return &Message{MsgType: MsgTError, RequestID: requestID, Err: err}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTRoute:
		return "route"
	case MsgTHeartbeat:
		return "heartbeat"
	case MsgTSplitForward:
		return "splitForward"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "route":
		*t = MsgTRoute
	case "heartbeat":
		*t = MsgTHeartbeat
	case "splitForward":
		*t = MsgTSplitForward
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}
	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	MsgTRoute        // Opaque query traffic addressed to a shard uuid
	MsgTHeartbeat    // Node-to-coordinator heartbeat, per spec.md §6
	MsgTSplitForward // Best-effort split forward to a shard's RSM leader
)
