// Package gstore holds the ordered vertex and edge containers a shard
// owns: vertices keyed by primary key, edges keyed by (src, dst, type,
// gid). Both are backed by github.com/google/btree so that range scans
// by primary key, and by edge endpoint, are O(log n) seek + linear step,
// per spec.md §4.3.
package gstore
