// Package mvcc implements the delta chain and visibility predicates that
// give every vertex and edge snapshot-isolated multi-version semantics:
// a linked list of undo deltas plus a pair of hint-bit-cached commit
// records (one for the object's creation, one for its expiration).
//
// The visibility test in Visible and the GC reachability test in
// GCVisible are ported from mvcc::Record::visible and the GC snapshot
// check in Memgraph's storage/v2 mvcc implementation.
package mvcc
