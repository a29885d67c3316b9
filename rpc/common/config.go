package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions to interface with Dragonboat (used by a node that backs
// one or more of its shards with lib/wal/raftlog)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper.
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to a Dragonboat replica
// config for one raft group. raftShardID is Dragonboat's own uint64
// group id, distinct from this engine's shard uuid - lib/wal/raftlog
// keeps that mapping, not this package.
func (c *ServerConfig) ToDragonboatConfig(raftShardID uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            raftShardID,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat.
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// socket-level transport tuning, shared by client and server config
// --------------------------------------------------------------------------

// SocketConf tunes OS socket buffer sizes; ignored by transports that
// do not expose them.
type SocketConf struct {
	WriteBufferSize int // bytes; 0 means "leave the OS default"
	ReadBufferSize  int
}

// TCPConf tunes TCP-specific socket options; ignored by non-TCP transports.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig is the listen-side transport configuration.
type ServerTransportConfig struct {
	Endpoint string // this node's own listen address, e.g. "0.0.0.0:9000"
	SocketConf
	TCPConf
}

// ServerConfig holds everything one storage node needs to start its
// shard manager, its transport listener, and (if any local shard's WAL
// is lib/wal/raftlog) its Dragonboat NodeHost.
type ServerConfig struct {
	// NodeIP/NodePort are this node's own address, advertised to the
	// coordinator in every HeartbeatRequest.From.
	NodeIP   string
	NodePort uint16

	// ShardManager tuning, per spec.md §4.10.
	NumWorkers              int
	CronIntervalMillisecond uint64 // clamped into [100, 200] if outside that range

	// Coordinator contact.
	CoordinatorEndpoints []string
	TimeoutSecond        int64

	// Dragonboat parameters, used only by nodes hosting a raft-replicated shard.
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	Transport ServerTransportConfig
	LogLevel  string
}

// HasRaftShards reports whether this node is configured to host any
// Dragonboat-replicated shard, i.e. whether a NodeHost must be started.
func (c *ServerConfig) HasRaftShards() bool {
	return len(c.ClusterMembers) > 0
}

// String returns a formatted representation of the configuration, in
// the same section/field layout the teacher's config types use for
// their startup banner.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Node")
	addField("Address", fmt.Sprintf("%s:%d", c.NodeIP, c.NodePort))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Shard Manager")
	addField("Workers", strconv.Itoa(c.NumWorkers))
	addField("Cron Interval (ms)", strconv.FormatUint(c.CronIntervalMillisecond, 10))

	addSection("Coordinator")
	for i, ep := range c.CoordinatorEndpoints {
		addField(strconv.Itoa(i), ep)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.HasRaftShards() {
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster Members")
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig is the dial-side transport configuration.
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// ClientConfig configures a client talking to a storage node or the
// coordinator.
type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
