// Package nameid interns label, property and edge-type names into compact
// integer identifiers scoped to one shard. It is shared, single-writer
// many-readers state the way the teacher shares its shard registry
// (rpc/server.rpcServer.shards), backed by the same xsync concurrent map.
package nameid
