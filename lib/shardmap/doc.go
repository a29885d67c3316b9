// Package shardmap implements spec.md §4.9's process-global shard map:
// for each primary label, an ordered set of contiguous primary-key
// ranges, each owned by exactly one shard address. Lookups are
// lock-free reads against a btree snapshot; mutations (shard
// registration, split installation) take a short per-label latch the
// way lib/graph/index guards its btree.BTreeG, generalized from "one
// vertex/edge container" to "one range-to-address mapping."
package shardmap
