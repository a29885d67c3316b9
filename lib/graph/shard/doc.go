// Package shard implements the shard facade of spec.md §4.7: one
// shard owns a name/id mapper, vertex/edge containers, secondary
// indexes, a schema and a transaction engine for one contiguous
// primary-key range under one primary label. It also owns the split
// protocol (split.go) and the garbage collector (gc.go).
package shard
