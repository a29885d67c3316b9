package gstore

import (
	"sync"

	"github.com/google/btree"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/value"
)

// VertexStore is the shard's ordered vertex container, keyed by primary
// key. The store's own RWMutex guards the tree's root pointer only;
// individual vertex mutation goes through VertexEntry's own lock, so a
// reader walking the tree concurrently with an insert elsewhere never
// blocks on unrelated entries.
type VertexStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*VertexEntry]
}

func vertexLess(a, b *VertexEntry) bool {
	return value.CompareKey(a.Key, b.Key) < 0
}

func NewVertexStore() *VertexStore {
	return &VertexStore{tree: btree.NewG(32, vertexLess)}
}

// Insert adds a new vertex entry, returning false if the key already
// exists (the caller raises VertexAlreadyInserted).
func (s *VertexStore) Insert(e *VertexEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.tree.Get(e); found {
		return false
	}
	s.tree.ReplaceOrInsert(e)
	return true
}

func (s *VertexStore) Get(key value.Key) (*VertexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Get(&VertexEntry{Key: key})
}

func (s *VertexStore) Delete(key value.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(&VertexEntry{Key: key})
}

func (s *VertexStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Ascend walks entries in key order starting at >= lo (lo == nil means
// from the beginning), calling fn until it returns false.
func (s *VertexStore) Ascend(lo value.Key, fn func(*VertexEntry) bool) {
	s.mu.RLock()
	snapshot := s.tree.Clone()
	s.mu.RUnlock()

	if lo == nil {
		snapshot.Ascend(func(e *VertexEntry) bool { return fn(e) })
		return
	}
	snapshot.AscendGreaterOrEqual(&VertexEntry{Key: lo}, func(e *VertexEntry) bool { return fn(e) })
}

// Split partitions the store at splitKey: entries with Key < splitKey
// stay in lhs, the rest move to rhs. The parent store is left unchanged
// (the shard facade discards it after building the two successors).
func (s *VertexStore) Split(splitKey value.Key) (lhs, rhs *VertexStore) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lhs, rhs = NewVertexStore(), NewVertexStore()
	s.tree.Ascend(func(e *VertexEntry) bool {
		if value.CompareKey(e.Key, splitKey) < 0 {
			lhs.tree.ReplaceOrInsert(e)
		} else {
			rhs.tree.ReplaceOrInsert(e)
		}
		return true
	})
	return lhs, rhs
}

// EdgeStore is the shard's ordered edge container, keyed by
// (src, dst, type, gid).
type EdgeStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*EdgeEntry]
}

func edgeLess(a, b *EdgeEntry) bool {
	if c := value.CompareKey(a.Src, b.Src); c != 0 {
		return c < 0
	}
	if c := value.CompareKey(a.Dst, b.Dst); c != 0 {
		return c < 0
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.GID < b.GID
}

func NewEdgeStore() *EdgeStore {
	return &EdgeStore{tree: btree.NewG(32, edgeLess)}
}

func (s *EdgeStore) Insert(e *EdgeEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.tree.Get(e); found {
		return false
	}
	s.tree.ReplaceOrInsert(e)
	return true
}

func (s *EdgeStore) Get(src, dst value.Key, typ nameid.EdgeTypeID, gid uint64) (*EdgeEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	probe := &EdgeEntry{Src: src, Dst: dst, Type: typ, GID: gid}
	return s.tree.Get(probe)
}

func (s *EdgeStore) Delete(e *EdgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(e)
}

func (s *EdgeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

func (s *EdgeStore) Ascend(fn func(*EdgeEntry) bool) {
	s.mu.RLock()
	snapshot := s.tree.Clone()
	s.mu.RUnlock()
	snapshot.Ascend(func(e *EdgeEntry) bool { return fn(e) })
}

// Split partitions edges by which successor owns the src endpoint:
// per spec.md §4.8 step 3, an edge belongs to the successor owning its
// src; cross-shard edges are kept on the src side.
func (s *EdgeStore) Split(belongsLHS func(src value.Key) bool) (lhs, rhs *EdgeStore) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lhs, rhs = NewEdgeStore(), NewEdgeStore()
	s.tree.Ascend(func(e *EdgeEntry) bool {
		if belongsLHS(e.Src) {
			lhs.tree.ReplaceOrInsert(e)
		} else {
			rhs.tree.ReplaceOrInsert(e)
		}
		return true
	})
	return lhs, rhs
}
