// Package shardtesting exposes a shared test suite, following the
// teacher's lib/db/testing.RunKVDBTests pattern, so both a freshly
// built shard and a split successor can be run through the same
// scenarios (spec.md §8).
package shardtesting
