// Package hlc implements the hybrid-logical clock shared by a shard's
// transactions, commit log and index entries: a monotonic {wall, logical}
// pair ordered lexicographically, so commit timestamps on one shard are
// strictly increasing even when the wall clock does not advance between
// two successive ticks.
package hlc
