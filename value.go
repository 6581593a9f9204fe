package msglc

import "github.com/TLCFEM/msglc/value"

// Value, OrderedMap, ExtValue, and StreamMap are re-exported from the
// internal value model so callers never need to import
// github.com/TLCFEM/msglc/value directly; the split only exists to avoid
// an import cycle between this package and codec.
type (
	Value      = value.Value
	OrderedMap = value.OrderedMap
	ExtValue   = value.ExtValue
	StreamMap  = value.StreamMap
)

// NewOrderedMap returns an empty OrderedMap ready to append to with Set.
func NewOrderedMap() *OrderedMap { return value.NewOrderedMap() }

// ToOrderedMap normalises a map[string]any (sorting its keys) or passes an
// already-ordered *OrderedMap through unchanged.
func ToOrderedMap(v any) (*OrderedMap, bool) { return value.ToOrderedMap(v) }

// Equal reports whether two Values are deeply equal.
func Equal(a, b any) bool { return value.Equal(a, b) }
