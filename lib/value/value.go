package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindTemporal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// Value is the discriminated property value carrier. Only the field that
// matches Kind is meaningful; the others are zero. Lists and maps are
// shared by reference so assigning a Value never deep-copies its payload.
type Value struct {
	kind       Kind
	asBool     bool
	asInt      int64
	asFloat    float64
	asString   string
	asList     []Value
	asMap      map[string]Value
	asTemporal time.Time
}

func Null() Value                     { return Value{kind: KindNull} }
func Bool(b bool) Value                { return Value{kind: KindBool, asBool: b} }
func Int(i int64) Value                { return Value{kind: KindInt, asInt: i} }
func Float(f float64) Value            { return Value{kind: KindFloat, asFloat: f} }
func String(s string) Value            { return Value{kind: KindString, asString: s} }
func List(items []Value) Value         { return Value{kind: KindList, asList: items} }
func Map(m map[string]Value) Value     { return Value{kind: KindMap, asMap: m} }
func Temporal(t time.Time) Value       { return Value{kind: KindTemporal, asTemporal: t} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool             { return v.asBool }
func (v Value) AsInt() int64             { return v.asInt }
func (v Value) AsFloat() float64         { return v.asFloat }
func (v Value) AsString() string         { return v.asString }
func (v Value) AsList() []Value          { return v.asList }
func (v Value) AsMap() map[string]Value  { return v.asMap }
func (v Value) AsTemporal() time.Time    { return v.asTemporal }

// Equal is structural and type-strict: Int(1) != Float(1.0).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.asBool == o.asBool
	case KindInt:
		return v.asInt == o.asInt
	case KindFloat:
		return v.asFloat == o.asFloat
	case KindString:
		return v.asString == o.asString
	case KindTemporal:
		return v.asTemporal.Equal(o.asTemporal)
	case KindList:
		if len(v.asList) != len(o.asList) {
			return false
		}
		for i := range v.asList {
			if !v.asList[i].Equal(o.asList[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.asMap) != len(o.asMap) {
			return false
		}
		for k, mv := range v.asMap {
			ov, ok := o.asMap[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// kindOrder fixes the cross-type total order from null through temporal.
func kindOrder(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindList:
		return 4
	case KindMap:
		return 5
	case KindTemporal:
		return 6
	default:
		return 7
	}
}

// Compare implements the fixed total order across types: null < bool <
// int/double (numeric order, NaN last) < string (lexicographic bytes) <
// list (lexicographic) < map (lexicographic on sorted keys) < temporal.
func Compare(a, b Value) int {
	oa, ob := kindOrder(a.kind), kindOrder(b.kind)
	if oa != ob {
		return oa - ob
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		return boolCompare(a.asBool, b.asBool)
	case KindInt, KindFloat:
		return numericCompare(a, b)
	case KindString:
		return bytes.Compare([]byte(a.asString), []byte(b.asString))
	case KindList:
		return listCompare(a.asList, b.asList)
	case KindMap:
		return mapCompare(a.asMap, b.asMap)
	case KindTemporal:
		if a.asTemporal.Before(b.asTemporal) {
			return -1
		}
		if a.asTemporal.After(b.asTemporal) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func numericCompare(a, b Value) int {
	af := numericFloat(a)
	bf := numericFloat(b)
	// NaN sorts last among numerics.
	aNaN, bNaN := math.IsNaN(af), math.IsNaN(bf)
	if aNaN && bNaN {
		return 0
	}
	if aNaN {
		return 1
	}
	if bNaN {
		return -1
	}
	if af < bf {
		return -1
	}
	if af > bf {
		return 1
	}
	return 0
}

func numericFloat(v Value) float64 {
	if v.kind == KindInt {
		return float64(v.asInt)
	}
	return v.asFloat
}

func listCompare(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func mapCompare(a, b map[string]Value) int {
	ak := sortedKeys(a)
	bk := sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := bytes.Compare([]byte(ak[i]), []byte(bk[i])); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return len(ak) - len(bk)
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromWire constructs a Value from an externally-decoded wire value
// (e.g. the output of a JSON or serializer decode). Unsupported variants
// are rejected by returning Null() rather than an error, per the engine's
// defensive-decoding policy.
func FromWire(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case string:
		return String(x)
	case time.Time:
		return Temporal(x)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = FromWire(e)
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = FromWire(e)
		}
		return Map(m)
	default:
		return Null()
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.asBool)
	case KindInt:
		return fmt.Sprintf("%d", v.asInt)
	case KindFloat:
		return fmt.Sprintf("%g", v.asFloat)
	case KindString:
		return v.asString
	case KindTemporal:
		return v.asTemporal.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

// Key is a primary key: an ordered tuple of schema-declared property
// values. Two keys compare lexicographically via CompareKey.
type Key []Value

// CompareKey orders two primary keys lexicographically by Compare on
// their elements; shorter keys sort before longer ones that share a
// common prefix.
func CompareKey(a, b Key) int {
	return listCompare([]Value(a), []Value(b))
}

func (k Key) Equal(o Key) bool {
	return CompareKey(k, o) == 0
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%v", parts)
}

// wireValue is Value's JSON envelope. A Value has only unexported
// fields (so a plain Value never deep-copies its container payload on
// assignment); this is the one exported shape it takes on the wire,
// used by shardmgr messages carrying primary keys across the RPC
// transport (rpc/common.Message payloads are JSON-encoded).
type wireValue struct {
	Kind     Kind              `json:"kind"`
	Bool     bool              `json:"bool,omitempty"`
	Int      int64             `json:"int,omitempty"`
	Float    float64           `json:"float,omitempty"`
	String   string            `json:"string,omitempty"`
	List     []Value           `json:"list,omitempty"`
	Map      map[string]Value  `json:"map,omitempty"`
	Temporal time.Time         `json:"temporal,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireValue{
		Kind:     v.kind,
		Bool:     v.asBool,
		Int:      v.asInt,
		Float:    v.asFloat,
		String:   v.asString,
		List:     v.asList,
		Map:      v.asMap,
		Temporal: v.asTemporal,
	})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Value{
		kind:       w.Kind,
		asBool:     w.Bool,
		asInt:      w.Int,
		asFloat:    w.Float,
		asString:   w.String,
		asList:     w.List,
		asMap:      w.Map,
		asTemporal: w.Temporal,
	}
	return nil
}
