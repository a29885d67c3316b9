// Package schema validates a shard's primary-key schema on vertex
// creation, per spec.md §4.5.
package schema
