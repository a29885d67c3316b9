// Package rpc provides the communication layer between storage nodes and
// the coordinator in the sharded graph storage engine, and between
// cmd/admin and a running node.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (currently TCP).
//
//   - serializer: Message serialization (currently JSON) for converting
//     between Message objects and byte arrays.
//
//   - node: Wires a storage node's shard manager to the transport and
//     serializer layers - an rpc/node.Server answers inbound routed and
//     split-forward requests, and an rpc/node.CoordinatorClient carries
//     outbound heartbeat/split traffic to the coordinator.
package rpc
