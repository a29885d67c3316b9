package shardmgr

import (
	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/shardmap"
	"github.com/shardgraph/shardgraph/lib/value"
)

// HeartbeatRequest is spec.md §6's heartbeat payload, sent to the
// coordinator on every cron tick.
type HeartbeatRequest struct {
	From                shardmap.Address
	InitializedRSMs     []uuid.UUID
	SuggestedSplits     []SuggestedSplitInfo
}

// SuggestedSplitInfo is one local shard's self-reported split
// candidate, produced by shard.Shard.ShouldSplit and carried up to the
// coordinator for approval.
type SuggestedSplitInfo struct {
	ShardUUID uuid.UUID
	SplitKey  value.Key
	Version   hlc.HLC
}

// ShardToInitialize is one entry of HeartbeatResponse.ShardsToInitialize:
// the coordinator assigning a brand-new shard range to this node.
type ShardToInitialize struct {
	UUID    uuid.UUID
	LabelID nameid.LabelID
	MinKey  value.Key
	MaxKey  value.Key
}

// ShardToSplit is one entry of HeartbeatResponse.ShardsToSplit: the
// coordinator approving a previously suggested split and handing back
// the versions to stamp on the two successors.
type ShardToSplit struct {
	UUIDMapping        shardmap.UUIDMapping
	SplitKey           value.Key
	OldShardVersion    hlc.HLC
	NewLHSShardVersion hlc.HLC
	NewRHSShardVersion hlc.HLC
}

// HeartbeatResponse is the coordinator's reply to a HeartbeatRequest.
type HeartbeatResponse struct {
	RetryLeader                bool
	Success                    bool
	AcknowledgedInitializedRSMs []uuid.UUID
	ShardsToInitialize          []ShardToInitialize
	ShardsToSplit                []ShardToSplit
}

// InitializeSplitShard is delivered to a worker to install one
// successor shard produced elsewhere (e.g. replayed from a peer's
// split), pairing the built shard with the uuid it was assigned.
type InitializeSplitShard struct {
	Shard *shard.Shard
	UUID  uuid.UUID
}

// SplitRequest is the write the manager forwards to a shard's RSM
// leader to actually carry out a coordinator-approved split; per
// spec.md §4.10 this forwarding is best-effort and retried by re-issue,
// never by blocking the manager's loop.
type SplitRequest struct {
	ShardUUID          uuid.UUID
	SplitKey           value.Key
	OldShardVersion    hlc.HLC
	NewLHSShardVersion hlc.HLC
	NewRHSShardVersion hlc.HLC
	UUIDMapping        shardmap.UUIDMapping
}

// RouteMessage carries an opaque payload addressed to a specific shard
// uuid; the manager hands it to whichever worker currently owns that
// shard, per spec.md §4.10's routing responsibility. The payload itself
// is opaque per spec.md §6 ("messages are opaque to this
// specification") - query-operator traffic lives above this layer.
type RouteMessage struct {
	RequestID uint64
	To        shardmap.Address
	From      shardmap.Address
	Payload   []byte
}

// ShutDown asks a worker (or the whole manager) to drain and stop.
type ShutDown struct{}

// Cron is the internal tick a worker receives on every cron boundary:
// run GC and split-candidate evaluation for every shard it owns.
type Cron struct{}
