// Package value holds the logical data model shared by the codec, the TOC
// model, the packer, and the lazy reader, kept separate from the root
// package so the codec adapter (which the root package depends on) does not
// need to import the root package back.
package value

import (
	"fmt"
	"sort"
)

// Value is the logical data model a blob carries: nil, bool, int64, float64,
// string, []byte, []any (a sequence), *OrderedMap (a map), or ExtValue (an
// opaque MessagePack ext passthrough). It is not a concrete Go type, just
// documentation of what Pack/the lazy reader accept and return.
type Value = any

// OrderedMap is an insertion-ordered string-keyed map. The packer and the
// lazy reader both use it: it is what a decode produces for any MessagePack
// map, and producers that care about round-tripping key order should build
// one rather than hand the packer a plain Go map, whose iteration order is
// randomized.
//
// A plain map[string]any is also accepted by Pack for convenience; its keys
// are sorted before encoding so output is at least deterministic, even
// though that order will not usually match any "natural" order the caller
// had in mind.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns an empty OrderedMap ready to append to with Set.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set appends key with value v if key is new, or updates v in place
// (preserving the original position) if key already exists.
func (m *OrderedMap) Set(key string, v any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Range calls fn for every (key, value) pair in insertion order, stopping
// early if fn returns false.
func (m *OrderedMap) Range(fn func(key string, v any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

func (m *OrderedMap) String() string {
	return fmt.Sprintf("OrderedMap[%d]", m.Len())
}

// ExtValue is an opaque MessagePack ext value, passed through by byte range
// rather than interpreted. Type is the signed ext type id; Data is the
// payload bytes (not including the ext header).
type ExtValue struct {
	Type int8
	Data []byte
}

// StreamMap lets a producer hand the packer a map without materialising it
// in memory: Len must equal exactly the number of pairs Pairs yields. A
// mismatch in either direction is reported as ErrEncodeCountMismatch.
type StreamMap struct {
	Len   int
	Pairs func(yield func(key string, v any) bool)
}

// ToOrderedMap normalises any caller-supplied map shape into an OrderedMap
// with deterministic (sorted) key order, unless it already is one.
func ToOrderedMap(v any) (*OrderedMap, bool) {
	switch m := v.(type) {
	case *OrderedMap:
		return m, true
	case map[string]any:
		om := NewOrderedMap()
		for _, k := range sortedKeys(m) {
			om.Set(k, m[k])
		}
		return om, true
	default:
		return nil, false
	}
}

// Equal reports whether two Values are deeply equal, with *OrderedMap
// compared key-for-key regardless of a plain map[string]any on either side.
func Equal(a, b any) bool {
	am, aIsMap := ToOrderedMap(a)
	bm, bIsMap := ToOrderedMap(b)
	if aIsMap || bIsMap {
		if !aIsMap || !bIsMap || am.Len() != bm.Len() {
			return false
		}
		for _, k := range am.Keys() {
			av, _ := am.Get(k)
			bv, ok := bm.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	as, aIsSeq := a.([]any)
	bs, bIsSeq := b.([]any)
	if aIsSeq || bIsSeq {
		if !aIsSeq || !bIsSeq || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	switch av := a.(type) {
	case ExtValue:
		bv, ok := b.(ExtValue)
		return ok && av.Type == bv.Type && string(av.Data) == string(bv.Data)
	case []byte:
		bv, ok := b.([]byte)
		return ok && string(av) == string(bv)
	default:
		return a == b
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
