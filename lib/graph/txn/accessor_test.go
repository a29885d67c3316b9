package txn

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shardgraph/shardgraph/lib/graph/gstore"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/schema"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *nameid.Mapper) {
	mapper := nameid.New()
	var nextGID atomic.Uint64
	return &Store{
		Mapper:      mapper,
		Vertices:    gstore.NewVertexStore(),
		Edges:       gstore.NewEdgeStore(),
		Engine:      NewEngine(hlc.NewClock()),
		NextEdgeGID: func() uint64 { return nextGID.Add(1) },
	}, mapper
}

func pk(i int64) value.Key { return value.Key{value.Int(i)} }

// Scenario A (spec.md §8): a single-shard create is visible to the
// creating transaction immediately and to a later transaction after
// commit.
func TestCreateVertexThenRead(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")
	nameProp := mapper.Property("name")

	tx1 := store.Engine.Begin()
	a1 := NewAccessor(store, tx1)

	v, err := a1.CreateVertex([]nameid.LabelID{personLabel}, pk(1), map[nameid.PropertyID]value.Value{
		nameProp: value.String("ada"),
	})
	require.NoError(t, err)
	require.NotNil(t, v)

	found, ok := a1.FindVertex(pk(1), ViewNew)
	require.True(t, ok, "own creation visible under write view before commit")
	require.Equal(t, pk(1), found.Key())

	_, ok = a1.FindVertex(pk(1), ViewOld)
	require.False(t, ok, "own creation not visible under read view before commit")

	a1.Commit()

	tx2 := store.Engine.Begin()
	a2 := NewAccessor(store, tx2)
	found2, ok := a2.FindVertex(pk(1), ViewOld)
	require.True(t, ok, "committed vertex visible to a later transaction")
	val, ok := a2.GetProperty(found2, nameProp, ViewOld)
	require.True(t, ok)
	require.Equal(t, "ada", val.AsString())
	a2.Commit()
}

// Scenario B (spec.md §8), the literal case: two transactions racing to
// create the same primary key must not both succeed, and the loser sees
// SerializationError - not VertexAlreadyInserted, which is reserved for
// a key already occupied by a committed vertex.
func TestConcurrentCreateVertexConflicts(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")

	tx1 := store.Engine.Begin()
	tx2 := store.Engine.Begin()
	a1 := NewAccessor(store, tx1)
	a2 := NewAccessor(store, tx2)

	_, err := a1.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.NoError(t, err)

	_, err = a2.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSerialization), "concurrent uncommitted creator must yield SerializationError")

	a1.Commit()
	a2.Abort()

	tx3 := store.Engine.Begin()
	a3 := NewAccessor(store, tx3)
	_, err = a3.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrVertexAlreadyInserted), "a key already occupied by a committed vertex is VertexAlreadyInserted")
	a3.Abort()
}

// Scenario B (spec.md §8): two transactions racing to write the same
// vertex must not both succeed.
func TestConcurrentSetPropertyConflicts(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")
	ageProp := mapper.Property("age")

	setup := store.Engine.Begin()
	setupA := NewAccessor(store, setup)
	v, err := setupA.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.NoError(t, err)
	setupA.Commit()

	tx1 := store.Engine.Begin()
	tx2 := store.Engine.Begin()
	a1 := NewAccessor(store, tx1)
	a2 := NewAccessor(store, tx2)

	v1, ok := a1.FindVertex(v.Key(), ViewOld)
	require.True(t, ok)
	v2, ok := a2.FindVertex(v.Key(), ViewOld)
	require.True(t, ok)

	require.NoError(t, a1.SetProperty(v1, ageProp, value.Int(30)))
	err = a2.SetProperty(v2, ageProp, value.Int(31))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSerialization))

	a1.Commit()
	a2.Abort()
}

// Scenario C (spec.md §8): detach-deleting a vertex removes its edges
// and itself, and a plain DeleteVertex is rejected while edges remain.
func TestDetachDeleteVertexRemovesEdges(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")
	knows := mapper.EdgeType("KNOWS")

	setup := store.Engine.Begin()
	setupA := NewAccessor(store, setup)
	a, err := setupA.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.NoError(t, err)
	b, err := setupA.CreateVertex([]nameid.LabelID{personLabel}, pk(2), nil)
	require.NoError(t, err)
	_, err = setupA.CreateEdge(a, b, knows)
	require.NoError(t, err)
	setupA.Commit()

	tx := store.Engine.Begin()
	acc := NewAccessor(store, tx)
	va, _ := acc.FindVertex(pk(1), ViewOld)

	err = acc.DeleteVertex(va)
	require.ErrorIs(t, err, ErrVertexHasEdges, "plain delete must reject a vertex with edges")

	deleted, err := acc.DetachDeleteVertex(va)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.True(t, va.Entry().Deleted())
	acc.Commit()

	tx2 := store.Engine.Begin()
	acc2 := NewAccessor(store, tx2)
	_, ok := acc2.FindVertex(pk(1), ViewOld)
	require.False(t, ok, "detached vertex no longer visible")
	acc2.Commit()
}

// AddLabel followed by RemoveLabel must be a no-op, per spec.md §8's
// idempotence law.
func TestAddThenRemoveLabelIsNoop(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")
	adminLabel := mapper.Label("Admin")

	setup := store.Engine.Begin()
	setupA := NewAccessor(store, setup)
	_, err := setupA.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.NoError(t, err)
	setupA.Commit()

	tx := store.Engine.Begin()
	acc := NewAccessor(store, tx)
	fv, _ := acc.FindVertex(pk(1), ViewOld)

	require.NoError(t, acc.AddLabel(fv, adminLabel))
	require.True(t, acc.HasLabel(fv, adminLabel, ViewNew))
	require.NoError(t, acc.RemoveLabel(fv, adminLabel))
	require.False(t, acc.HasLabel(fv, adminLabel, ViewNew))
	require.True(t, acc.HasLabel(fv, personLabel, ViewNew))
	acc.Commit()
}

func TestCreateVertexSchemaViolation(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")
	ageProp := mapper.Property("age")
	store.Schema = schema.New(personLabel, []schema.Property{{PropertyID: ageProp, Type: value.KindInt}})

	tx := store.Engine.Begin()
	acc := NewAccessor(store, tx)

	_, err := acc.CreateVertex([]nameid.LabelID{personLabel}, pk(1), map[nameid.PropertyID]value.Value{
		ageProp: value.String("not-an-int"),
	})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestAbortUndoesCreateVertex(t *testing.T) {
	store, mapper := newTestStore()
	personLabel := mapper.Label("Person")

	tx := store.Engine.Begin()
	acc := NewAccessor(store, tx)
	_, err := acc.CreateVertex([]nameid.LabelID{personLabel}, pk(1), nil)
	require.NoError(t, err)
	acc.Abort()

	require.Equal(t, 0, store.Vertices.Len(), "aborted creation must not persist in the container")
}
