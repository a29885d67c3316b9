package nameid

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// LabelID, PropertyID and EdgeTypeID are the compact integer identifiers
// a Mapper hands out for names. They are distinct types so a LabelID can
// never be accidentally compared against a PropertyID.
type LabelID uint32
type PropertyID uint32
type EdgeTypeID uint32

// Mapper interns names to ids within one shard. Lookups are lock-free;
// interning a new name takes a short mutex to keep the forward and
// reverse maps consistent.
type Mapper struct {
	mu sync.Mutex

	labelByName    *xsync.MapOf[string, LabelID]
	labelByID      *xsync.MapOf[LabelID, string]
	nextLabel      uint32

	propByName *xsync.MapOf[string, PropertyID]
	propByID   *xsync.MapOf[PropertyID, string]
	nextProp   uint32

	edgeTypeByName *xsync.MapOf[string, EdgeTypeID]
	edgeTypeByID   *xsync.MapOf[EdgeTypeID, string]
	nextEdgeType   uint32
}

// New returns an empty Mapper.
func New() *Mapper {
	return &Mapper{
		labelByName:    xsync.NewMapOf[string, LabelID](),
		labelByID:      xsync.NewMapOf[LabelID, string](),
		propByName:     xsync.NewMapOf[string, PropertyID](),
		propByID:       xsync.NewMapOf[PropertyID, string](),
		edgeTypeByName: xsync.NewMapOf[string, EdgeTypeID](),
		edgeTypeByID:   xsync.NewMapOf[EdgeTypeID, string](),
	}
}

// Label interns a label name, returning its id - allocating one on first
// use.
func (m *Mapper) Label(name string) LabelID {
	if id, ok := m.labelByName.Load(name); ok {
		return id
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.labelByName.Load(name); ok {
		return id
	}
	m.nextLabel++
	id := LabelID(m.nextLabel)
	m.labelByName.Store(name, id)
	m.labelByID.Store(id, name)
	return id
}

// LabelName returns the name for an already-interned label id.
func (m *Mapper) LabelName(id LabelID) (string, bool) {
	return m.labelByID.Load(id)
}

// Property interns a property name, allocating an id on first use.
func (m *Mapper) Property(name string) PropertyID {
	if id, ok := m.propByName.Load(name); ok {
		return id
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.propByName.Load(name); ok {
		return id
	}
	m.nextProp++
	id := PropertyID(m.nextProp)
	m.propByName.Store(name, id)
	m.propByID.Store(id, name)
	return id
}

// PropertyName returns the name for an already-interned property id.
func (m *Mapper) PropertyName(id PropertyID) (string, bool) {
	return m.propByID.Load(id)
}

// EdgeType interns an edge-type name, allocating an id on first use.
func (m *Mapper) EdgeType(name string) EdgeTypeID {
	if id, ok := m.edgeTypeByName.Load(name); ok {
		return id
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.edgeTypeByName.Load(name); ok {
		return id
	}
	m.nextEdgeType++
	id := EdgeTypeID(m.nextEdgeType)
	m.edgeTypeByName.Store(name, id)
	m.edgeTypeByID.Store(id, name)
	return id
}

// EdgeTypeName returns the name for an already-interned edge-type id.
func (m *Mapper) EdgeTypeName(id EdgeTypeID) (string, bool) {
	return m.edgeTypeByID.Load(id)
}
