// Package cmd implements the command-line interface for the shardgraph
// storage engine. It provides a hierarchical command structure for
// running a storage node and administering shards on one.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a storage node - its shard manager, RPC server, and
//     coordinator client.
//   - admin: One-off commands against a running node's shard admin
//     interface (indexes, schema, info).
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See shardgraph -help for a list of all commands.
package cmd
