package toc

import "fmt"

// ValidateRoot checks structural consistency of a freshly built or freshly
// decoded TOC tree, given the length of the payload region the root is
// supposed to cover.
func ValidateRoot(root *Node, payloadLen int64) error {
	if root.Pos.Start != 0 || root.Pos.End != payloadLen {
		return fmt.Errorf("toc: root range [%d,%d) does not cover payload [0,%d)",
			root.Pos.Start, root.Pos.End, payloadLen)
	}
	return root.Validate()
}

// Validate checks containment, ordering, and key uniqueness for n and
// everything beneath it. Faithful decoding and pack idempotence are
// properties of the codec and packer respectively, not of the tree shape
// alone, and are exercised by higher-level tests.
func (n *Node) Validate() error {
	if n.Pos.End < n.Pos.Start {
		return fmt.Errorf("toc: inverted range [%d,%d)", n.Pos.Start, n.Pos.End)
	}

	switch n.Kind {
	case KindOpaque:
		return nil

	case KindKeyed:
		seen := make(map[string]struct{}, len(n.Keyed))
		for _, e := range n.Keyed {
			if _, dup := seen[e.Key]; dup {
				return fmt.Errorf("toc: duplicate key %q", e.Key)
			}
			seen[e.Key] = struct{}{}
			if err := n.checkContained(e.Child.Pos); err != nil {
				return err
			}
			if err := e.Child.Validate(); err != nil {
				return err
			}
		}
		return nil

	case KindPositional:
		var prevEnd int64 = -1
		for i, c := range n.Positional {
			if err := n.checkContained(c.Pos); err != nil {
				return err
			}
			if c.Pos.Start < prevEnd {
				return fmt.Errorf("toc: positional child %d starts at %d, before previous end %d", i, c.Pos.Start, prevEnd)
			}
			prevEnd = c.Pos.End
			if err := c.Validate(); err != nil {
				return err
			}
		}
		return nil

	case KindGrouped:
		// n.Pos.Start covers the container's header bytes (e.g. the array
		// header) as well as its elements, so the first block need not
		// start at n.Pos.Start; it only needs to be contained in it. Block
		// contiguity is checked among the blocks themselves, seeded from
		// the first block's own start.
		if len(n.Grouped) == 0 {
			return nil
		}
		prevEnd := n.Grouped[0].Start
		for i, g := range n.Grouped {
			if g.Start != prevEnd {
				return fmt.Errorf("toc: grouped block %d starts at %d, expected %d", i, g.Start, prevEnd)
			}
			if g.End <= g.Start {
				return fmt.Errorf("toc: grouped block %d has non-positive length [%d,%d)", i, g.Start, g.End)
			}
			if g.Count <= 0 {
				return fmt.Errorf("toc: grouped block %d has non-positive count %d", i, g.Count)
			}
			if err := n.checkContained(Pos{Start: g.Start, End: g.End}); err != nil {
				return err
			}
			prevEnd = g.End
		}
		if prevEnd != n.Pos.End {
			return fmt.Errorf("toc: grouped blocks cover [%d,%d), parent range ends at %d", n.Pos.Start, prevEnd, n.Pos.End)
		}
		return nil

	default:
		return fmt.Errorf("toc: unknown kind %d", n.Kind)
	}
}

func (n *Node) checkContained(child Pos) error {
	if child.Start < n.Pos.Start || child.End > n.Pos.End {
		return fmt.Errorf("toc: child range [%d,%d) not contained in parent [%d,%d)",
			child.Start, child.End, n.Pos.Start, n.Pos.End)
	}
	return nil
}
