// Package index implements the shard's secondary indexes: an ordered
// label index and an ordered label-property index, per spec.md §4.4.
// Entries carry CommittedAt/ExpiredAt timestamps so a reader filters
// entries against its own snapshot at read time rather than the index
// being mutated retroactively on abort/commit.
package index
