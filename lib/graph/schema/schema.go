package schema

import (
	"fmt"
	"sync"

	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/value"
)

// Property declares one primary-key component: its property id and the
// dynamic value.Kind it must hold.
type Property struct {
	PropertyID nameid.PropertyID
	Type       value.Kind
}

// ErrArity is returned when a create's pk_values does not match the
// declared schema's arity.
var ErrArity = fmt.Errorf("primary key arity mismatch")

// ErrType is returned when a pk value's dynamic type does not match its
// declared type, and when the primary label is missing from a create.
var ErrType = fmt.Errorf("primary key value type mismatch")

// ErrOverlap is returned when a property id appears in both pk_values
// and properties for the same CreateVertex call.
var ErrOverlap = fmt.Errorf("property overlaps with primary key")

// Schema holds a shard's primary-label schema, guarded by a mutex since
// CreateSchema/DropSchema run under the shard's admin lock but Validate
// runs on every CreateVertex.
type Schema struct {
	mu         sync.RWMutex
	label      nameid.LabelID
	properties []Property
}

func New(label nameid.LabelID, properties []Property) *Schema {
	return &Schema{label: label, properties: append([]Property(nil), properties...)}
}

func (s *Schema) Label() nameid.LabelID { return s.label }

func (s *Schema) Properties() []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Property(nil), s.properties...)
}

func (s *Schema) Replace(properties []Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties = append([]Property(nil), properties...)
}

// Validate enforces spec.md §4.5: the primary label must be present,
// pkValues must have the declared arity and matching dynamic types, and
// no property id may appear in both pkValues and props.
func (s *Schema) Validate(labels []nameid.LabelID, pkValues []value.Value, props map[nameid.PropertyID]value.Value) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hasLabel := false
	for _, l := range labels {
		if l == s.label {
			hasLabel = true
			break
		}
	}
	if !hasLabel {
		return fmt.Errorf("%w: primary label %d not present", ErrType, s.label)
	}

	if len(pkValues) != len(s.properties) {
		return fmt.Errorf("%w: expected %d values, got %d", ErrArity, len(s.properties), len(pkValues))
	}

	pkIDs := make(map[nameid.PropertyID]struct{}, len(s.properties))
	for i, decl := range s.properties {
		if pkValues[i].Kind() != decl.Type {
			return fmt.Errorf("%w: property %d expected %s, got %s", ErrType, decl.PropertyID, decl.Type, pkValues[i].Kind())
		}
		pkIDs[decl.PropertyID] = struct{}{}
	}

	for pid := range props {
		if _, overlap := pkIDs[pid]; overlap {
			return fmt.Errorf("%w: property %d", ErrOverlap, pid)
		}
	}
	return nil
}
