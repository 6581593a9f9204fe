// Package toc implements the table-of-contents tree the packer builds while
// writing a blob and the lazy reader consults while resolving paths: a
// parallel tree of byte-range descriptors that lets a reader jump straight
// to a sub-value's encoding without decoding anything around it.
package toc

import (
	"fmt"

	"github.com/TLCFEM/msglc/value"
)

// Kind distinguishes how a Node's children, if any, are addressed.
type Kind int

const (
	// KindOpaque marks a node with no child table: either a primitive, or
	// a container small enough (or whose children are all small enough)
	// that its interior is not indexed.
	KindOpaque Kind = iota
	// KindKeyed marks a node whose children are addressed by string key,
	// in the order they appear in the encoded payload.
	KindKeyed
	// KindPositional marks a node whose children are addressed by
	// integer index.
	KindPositional
	// KindGrouped marks a long run of trivially-sized elements,
	// partitioned into blocks recorded as (count, start, end) triples
	// rather than one entry per element.
	KindGrouped
)

// Pos is a half-open byte range [Start, End) into the payload region,
// relative to the start of the payload (not the file).
type Pos struct {
	Start int64
	End   int64
}

func (p Pos) Len() int64 { return p.End - p.Start }

// KeyedEntry is one child of a KindKeyed node.
type KeyedEntry struct {
	Key   string
	Child *Node
}

// GroupEntry is one block of a KindGrouped node: Count elements occupy the
// byte range [Start, End).
type GroupEntry struct {
	Count int
	Start int64
	End   int64
}

// Node is one entry of the TOC tree. Exactly one of Keyed, Positional, or
// Grouped is populated when Kind says so; all are nil/empty for KindOpaque.
type Node struct {
	Pos       Pos
	Kind      Kind
	Keyed     []KeyedEntry
	Positional []*Node
	Grouped   []GroupEntry
}

// wire field names used by the TOC trailer's encoded representation.
const (
	wireKeyPos   = "p"
	wireKeyTable = "t"
)

// ToValue renders a Node as a generic value.Value, the same shape the codec
// encodes and decodes for everything else — the TOC is "just another
// value" on the wire, keyed by single-letter field names for compactness.
func (n *Node) ToValue() value.Value {
	om := value.NewOrderedMap()
	om.Set(wireKeyPos, []any{n.Pos.Start, n.Pos.End})

	switch n.Kind {
	case KindOpaque:
		// no "t" field
	case KindKeyed:
		table := value.NewOrderedMap()
		for _, e := range n.Keyed {
			table.Set(e.Key, e.Child.ToValue())
		}
		om.Set(wireKeyTable, table)
	case KindPositional:
		arr := make([]any, len(n.Positional))
		for i, c := range n.Positional {
			arr[i] = c.ToValue()
		}
		om.Set(wireKeyTable, arr)
	case KindGrouped:
		arr := make([]any, len(n.Grouped))
		for i, g := range n.Grouped {
			arr[i] = []any{int64(g.Count), g.Start, g.End}
		}
		om.Set(wireKeyTable, arr)
	}
	return om
}

// NodeFromValue parses a decoded value.Value (as produced by ToValue and
// round-tripped through a codec) back into a Node tree.
func NodeFromValue(v value.Value) (*Node, error) {
	om, ok := value.ToOrderedMap(v)
	if !ok {
		return nil, fmt.Errorf("toc: node must decode to a map, got %T", v)
	}

	rawPos, ok := om.Get(wireKeyPos)
	if !ok {
		return nil, fmt.Errorf("toc: node missing %q field", wireKeyPos)
	}
	pos, err := parsePos(rawPos)
	if err != nil {
		return nil, err
	}

	table, hasTable := om.Get(wireKeyTable)
	if !hasTable {
		return &Node{Pos: pos, Kind: KindOpaque}, nil
	}

	switch t := table.(type) {
	case *value.OrderedMap:
		entries := make([]KeyedEntry, 0, t.Len())
		var parseErr error
		t.Range(func(key string, child any) bool {
			cn, err := NodeFromValue(child)
			if err != nil {
				parseErr = err
				return false
			}
			entries = append(entries, KeyedEntry{Key: key, Child: cn})
			return true
		})
		if parseErr != nil {
			return nil, parseErr
		}
		return &Node{Pos: pos, Kind: KindKeyed, Keyed: entries}, nil

	case []any:
		if len(t) == 0 {
			return &Node{Pos: pos, Kind: KindPositional}, nil
		}
		if looksLikeGroupEntry(t[0]) {
			groups := make([]GroupEntry, len(t))
			for i, raw := range t {
				g, err := parseGroupEntry(raw)
				if err != nil {
					return nil, err
				}
				groups[i] = g
			}
			return &Node{Pos: pos, Kind: KindGrouped, Grouped: groups}, nil
		}
		children := make([]*Node, len(t))
		for i, raw := range t {
			cn, err := NodeFromValue(raw)
			if err != nil {
				return nil, err
			}
			children[i] = cn
		}
		return &Node{Pos: pos, Kind: KindPositional, Positional: children}, nil

	default:
		return nil, fmt.Errorf("toc: unrecognised %q field shape %T", wireKeyTable, table)
	}
}

// looksLikeGroupEntry distinguishes a grouped-TOC block ([count,start,end])
// from a positional child (a map containing "p"): grouped entries are
// 3-element arrays of integers, positional children decode to maps.
func looksLikeGroupEntry(first any) bool {
	arr, ok := first.([]any)
	return ok && len(arr) == 3
}

func parseGroupEntry(v any) (GroupEntry, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return GroupEntry{}, fmt.Errorf("toc: grouped entry must be a 3-tuple, got %#v", v)
	}
	count, err := asInt64(arr[0])
	if err != nil {
		return GroupEntry{}, err
	}
	start, err := asInt64(arr[1])
	if err != nil {
		return GroupEntry{}, err
	}
	end, err := asInt64(arr[2])
	if err != nil {
		return GroupEntry{}, err
	}
	return GroupEntry{Count: int(count), Start: start, End: end}, nil
}

func parsePos(v any) (Pos, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return Pos{}, fmt.Errorf("toc: %q field must be a 2-tuple, got %#v", wireKeyPos, v)
	}
	start, err := asInt64(arr[0])
	if err != nil {
		return Pos{}, err
	}
	end, err := asInt64(arr[1])
	if err != nil {
		return Pos{}, err
	}
	return Pos{Start: start, End: end}, nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("toc: expected integer, got %T", v)
	}
}
