// Package shardmgr implements spec.md §4.10's shard manager: a fixed
// pool of worker goroutines, one per storage node, each owning a
// disjoint subset of the node's shards. A periodic cron drives GC,
// split-candidate detection and the coordinator heartbeat; inbound
// messages are routed to whichever worker owns their target shard
// uuid. Modeled on the teacher's rpc/server.rpcServer shard dispatch
// map, generalized from "one store per shard id, one request handler"
// to "one graph shard per worker, a heartbeat/cron/route triad."
package shardmgr
