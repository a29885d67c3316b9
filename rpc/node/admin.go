package node

import (
	"encoding/json"
	"fmt"

	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/schema"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
)

// AdminOp names one shard-admin operation from spec.md §6.2's shard
// admin interface. Query execution against a shard's txn.Accessor is
// intentionally not part of this wire protocol - spec.md §1 excludes a
// query layer as a Non-goal, so RouteMessage payloads stay opaque to
// everything except this administrative subset, which cmd/admin drives.
type AdminOp string

const (
	OpCreateLabelIndex    AdminOp = "create_label_index"
	OpDropLabelIndex      AdminOp = "drop_label_index"
	OpCreatePropertyIndex AdminOp = "create_property_index"
	OpDropPropertyIndex   AdminOp = "drop_property_index"
	OpSetSchema           AdminOp = "set_schema"
	OpInfo                AdminOp = "info"
)

// AdminRequest is the JSON payload carried inside a RouteMessage sent to
// a shard for administration.
type AdminRequest struct {
	Op         AdminOp           `json:"op"`
	Label      nameid.LabelID    `json:"label,omitempty"`
	Property   nameid.PropertyID `json:"property,omitempty"`
	Properties []schema.Property `json:"properties,omitempty"`
}

// AdminResponse is the JSON reply to an AdminRequest.
type AdminResponse struct {
	Ok   bool        `json:"ok"`
	Err  string      `json:"err,omitempty"`
	Info *shard.Info `json:"info,omitempty"`
}

// EncodeAdminRequest marshals req for transport as a RouteMessage payload.
func EncodeAdminRequest(req AdminRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeAdminResponse unmarshals a RouteMessage's response payload.
func DecodeAdminResponse(raw []byte) (*AdminResponse, error) {
	var resp AdminResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode admin response: %w", err)
	}
	return &resp, nil
}

// AdminHandler implements shardmgr.MessageHandler, applying an
// AdminRequest against the shard it was routed to.
func AdminHandler(s *shard.Shard, payload []byte) []byte {
	var req AdminRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return mustEncode(AdminResponse{Err: fmt.Sprintf("decode admin request: %v", err)})
	}

	switch req.Op {
	case OpCreateLabelIndex:
		s.CreateLabelIndex(req.Label)
		return mustEncode(AdminResponse{Ok: true})
	case OpDropLabelIndex:
		s.DropLabelIndex(req.Label)
		return mustEncode(AdminResponse{Ok: true})
	case OpCreatePropertyIndex:
		s.CreatePropertyIndex(req.Label, req.Property)
		return mustEncode(AdminResponse{Ok: true})
	case OpDropPropertyIndex:
		s.DropPropertyIndex(req.Label, req.Property)
		return mustEncode(AdminResponse{Ok: true})
	case OpSetSchema:
		s.SetSchema(req.Properties)
		return mustEncode(AdminResponse{Ok: true})
	case OpInfo:
		info := s.Info()
		return mustEncode(AdminResponse{Ok: true, Info: &info})
	default:
		return mustEncode(AdminResponse{Err: fmt.Sprintf("unknown admin op %q", req.Op)})
	}
}

func mustEncode(resp AdminResponse) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		// resp holds only plain fields; Marshal cannot fail here.
		return []byte(`{"ok":false,"err":"internal: failed to encode admin response"}`)
	}
	return out
}

var _ shardmgr.MessageHandler = AdminHandler
