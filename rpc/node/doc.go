// Package node wires one storage node's shardmgr.ShardManager to the
// rpc/transport + rpc/serializer layers: a Server decodes each inbound
// frame's rpc/common.Message envelope and dispatches it against the
// manager, and a CoordinatorClient encodes outbound heartbeat/split
// traffic the same way to reach the coordinator over the same
// transport. Replaces the teacher's rpc/client + rpc/server packages,
// whose get/set/lock message shapes have no analog here (see
// DESIGN.md); this package's handler set is the heartbeat/route/split
// triad spec.md §4.10 and §6 define instead.
package node
