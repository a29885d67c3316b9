package shard

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shardgraph/shardgraph/lib/graph/gstore"
	"github.com/shardgraph/shardgraph/lib/graph/index"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/schema"
	"github.com/shardgraph/shardgraph/lib/graph/txn"
	"github.com/shardgraph/shardgraph/lib/hlc"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/shardgraph/shardgraph/lib/wal"
)

// Options configures a new Shard.
type Options struct {
	PrimaryLabel nameid.LabelID
	MinPK        value.Key // inclusive; nil means unbounded below
	MaxPK        value.Key // exclusive; nil means unbounded above
	Clock        *hlc.Clock
	Log          wal.Log // may be nil; Append then becomes a no-op

	// SplitThreshold is the vertex count ShouldSplit compares against.
	// Zero means "never suggest a split" (useful for tests).
	SplitThreshold int

	// DisableEdgeProperties makes every Accessor this shard hands out
	// reject SetEdgeProperty; see txn.Store.DisableEdgeProperties.
	DisableEdgeProperties bool
}

// Shard is spec.md §4.7's facade: it owns every §4.1-§4.6 component for
// one contiguous primary-key range under one primary label.
type Shard struct {
	primaryLabel nameid.LabelID
	minPK, maxPK value.Key

	version atomic.Pointer[hlc.HLC]

	clock  *hlc.Clock
	mapper *nameid.Mapper
	log    wal.Log

	mu              sync.RWMutex // guards index-set mutation (CreateIndex/DropIndex)
	schema          *schema.Schema
	labelIndexes    map[nameid.LabelID]*index.LabelIndex
	propertyIndexes map[txn.PropertyIndexKey]*index.LabelPropertyIndex

	vertices *gstore.VertexStore
	edges    *gstore.EdgeStore
	engine   *txn.Engine

	nextEdgeGID atomic.Uint64

	committedTxns   atomic.Uint64
	deletedVertices atomic.Uint64
	deletedEdges    atomic.Uint64

	splitThreshold        int
	disableEdgeProperties bool

	gc *gcState
}

// New constructs an empty shard covering [opts.MinPK, opts.MaxPK).
func New(opts Options) *Shard {
	clock := opts.Clock
	if clock == nil {
		clock = hlc.NewClock()
	}
	s := &Shard{
		primaryLabel:    opts.PrimaryLabel,
		minPK:           opts.MinPK,
		maxPK:           opts.MaxPK,
		clock:           clock,
		mapper:          nameid.New(),
		log:             opts.Log,
		schema:          schema.New(opts.PrimaryLabel, nil),
		labelIndexes:    make(map[nameid.LabelID]*index.LabelIndex),
		propertyIndexes: make(map[txn.PropertyIndexKey]*index.LabelPropertyIndex),
		vertices:        gstore.NewVertexStore(),
		edges:           gstore.NewEdgeStore(),
		engine:                txn.NewEngine(clock),
		splitThreshold:        opts.SplitThreshold,
		disableEdgeProperties: opts.DisableEdgeProperties,
	}
	ver := clock.Now()
	s.version.Store(&ver)
	s.gc = newGCState()
	return s
}

func (s *Shard) Mapper() *nameid.Mapper { return s.mapper }
func (s *Shard) Engine() *txn.Engine    { return s.engine }
func (s *Shard) WAL() wal.Log           { return s.log }
func (s *Shard) Version() hlc.HLC       { return *s.version.Load() }
func (s *Shard) PrimaryLabel() nameid.LabelID { return s.primaryLabel }
func (s *Shard) Range() (min, max value.Key)  { return s.minPK, s.maxPK }

// IsVertexBelongToShard reports whether pk falls in [minPK, maxPK).
func (s *Shard) IsVertexBelongToShard(pk value.Key) bool {
	if s.minPK != nil && value.CompareKey(pk, s.minPK) < 0 {
		return false
	}
	if s.maxPK != nil && value.CompareKey(pk, s.maxPK) >= 0 {
		return false
	}
	return true
}

func (s *Shard) nextEdgeGID_() uint64 { return s.nextEdgeGID.Add(1) }

// Access opens a transaction and returns an Accessor bound to the
// shard's current component set, per spec.md §4.7.
func (s *Shard) Access() *txn.Accessor {
	s.mu.RLock()
	store := &txn.Store{
		Mapper:                s.mapper,
		Vertices:              s.vertices,
		Edges:                 s.edges,
		Schema:                s.schema,
		LabelIndexes:          s.labelIndexes,
		PropertyIndexes:       s.propertyIndexes,
		Engine:                s.engine,
		NextEdgeGID:           s.nextEdgeGID_,
		DisableEdgeProperties: s.disableEdgeProperties,
	}
	s.mu.RUnlock()

	tx := s.engine.Begin()
	return txn.NewAccessor(store, tx)
}

// StoreView returns a Store bound to s's current component set without
// opening a new transaction, for rebinding a live txn.Accessor that a
// split carried over to s (see SplitData.LHSActive/RHSActive and
// Accessor.Rebind).
func (s *Shard) StoreView() *txn.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &txn.Store{
		Mapper:                s.mapper,
		Vertices:              s.vertices,
		Edges:                 s.edges,
		Schema:                s.schema,
		LabelIndexes:          s.labelIndexes,
		PropertyIndexes:       s.propertyIndexes,
		Engine:                s.engine,
		NextEdgeGID:           s.nextEdgeGID_,
		DisableEdgeProperties: s.disableEdgeProperties,
	}
}

// Commit finalizes acc's transaction, bumps the committed-txn counter
// and, when a WAL is configured, appends one best-effort
// wal.RecordDelta record stamped with the commit HLC (the accessor
// itself already applied every mutation to the live containers). That
// record has an empty payload: the transaction's individual deltas and
// index operations are not written to the log.
func (s *Shard) Commit(acc *txn.Accessor) hlc.HLC {
	ts := acc.Commit()
	s.committedTxns.Add(1)
	if s.log != nil {
		_ = s.log.Append(context.Background(), wal.Record{Kind: wal.RecordDelta, TS: ts})
	}
	return ts
}

func (s *Shard) Abort(acc *txn.Accessor) { acc.Abort() }

// CreateLabelIndex registers a fresh, empty label index under the
// schema lock, per spec.md §4.7.
func (s *Shard) CreateLabelIndex(label nameid.LabelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.labelIndexes[label]; !ok {
		s.labelIndexes[label] = index.NewLabelIndex()
	}
}

func (s *Shard) DropLabelIndex(label nameid.LabelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.labelIndexes, label)
}

func (s *Shard) CreatePropertyIndex(label nameid.LabelID, prop nameid.PropertyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := txn.PropertyIndexKey{Label: label, Property: prop}
	if _, ok := s.propertyIndexes[key]; !ok {
		s.propertyIndexes[key] = index.NewLabelPropertyIndex()
	}
}

func (s *Shard) DropPropertyIndex(label nameid.LabelID, prop nameid.PropertyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.propertyIndexes, txn.PropertyIndexKey{Label: label, Property: prop})
}

func (s *Shard) SetSchema(properties []schema.Property) {
	s.schema.Replace(properties)
}

// Info is spec.md §9's supplemented StorageInfo reporting, returned by
// the admin interface's info operation (rpc/node.AdminHandler).
type Info struct {
	VertexCount    int
	EdgeCount      int
	AverageDegree  float64
	CommittedTxns  uint64
	DeletedVertices uint64
	DeletedEdges    uint64
}

func (s *Shard) Info() Info {
	vc := s.vertices.Len()
	ec := s.edges.Len()
	avg := 0.0
	if vc > 0 {
		avg = float64(2*ec) / float64(vc)
	}
	return Info{
		VertexCount:     vc,
		EdgeCount:       ec,
		AverageDegree:   avg,
		CommittedTxns:   s.committedTxns.Load(),
		DeletedVertices: s.deletedVertices.Load(),
		DeletedEdges:    s.deletedEdges.Load(),
	}
}

// ShouldSplit returns a candidate split key at/near the median primary
// key once the shard holds at least its configured threshold of
// vertices, per spec.md
// §4.7. A zero threshold disables splitting.
func (s *Shard) ShouldSplit() (value.Key, bool) {
	if s.splitThreshold <= 0 || s.vertices.Len() < s.splitThreshold {
		return nil, false
	}

	keys := make([]value.Key, 0, s.vertices.Len())
	s.vertices.Ascend(nil, func(e *gstore.VertexEntry) bool {
		keys = append(keys, e.Key)
		return true
	})
	if len(keys) < 2 {
		return nil, false
	}
	return keys[len(keys)/2], true
}
