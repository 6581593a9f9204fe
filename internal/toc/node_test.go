package toc

import "testing"

func leaf(start, end int64) *Node {
	return &Node{Pos: Pos{Start: start, End: end}, Kind: KindOpaque}
}

func TestValueRoundTripKeyed(t *testing.T) {
	n := &Node{
		Pos:  Pos{Start: 0, End: 100},
		Kind: KindKeyed,
		Keyed: []KeyedEntry{
			{Key: "a", Child: leaf(0, 10)},
			{Key: "b", Child: leaf(10, 100)},
		},
	}
	v := n.ToValue()
	got, err := NodeFromValue(v)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindKeyed || len(got.Keyed) != 2 {
		t.Fatalf("got %#v", got)
	}
	if got.Keyed[0].Key != "a" || got.Keyed[1].Key != "b" {
		t.Fatalf("key order not preserved: %#v", got.Keyed)
	}
	if got.Keyed[0].Child.Pos != (Pos{0, 10}) {
		t.Errorf("child a pos = %v", got.Keyed[0].Child.Pos)
	}
}

func TestValueRoundTripPositional(t *testing.T) {
	n := &Node{
		Pos:        Pos{Start: 0, End: 30},
		Kind:       KindPositional,
		Positional: []*Node{leaf(0, 10), leaf(10, 20), leaf(20, 30)},
	}
	got, err := NodeFromValue(n.ToValue())
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindPositional || len(got.Positional) != 3 {
		t.Fatalf("got %#v", got)
	}
}

func TestValueRoundTripGrouped(t *testing.T) {
	n := &Node{
		Pos:  Pos{Start: 0, End: 40},
		Kind: KindGrouped,
		Grouped: []GroupEntry{
			{Count: 5, Start: 0, End: 20},
			{Count: 5, Start: 20, End: 40},
		},
	}
	got, err := NodeFromValue(n.ToValue())
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindGrouped || len(got.Grouped) != 2 {
		t.Fatalf("got %#v", got)
	}
	if got.Grouped[1].Start != 20 || got.Grouped[1].End != 40 {
		t.Errorf("block 1 = %#v", got.Grouped[1])
	}
}

func TestValueRoundTripOpaque(t *testing.T) {
	n := leaf(5, 9)
	got, err := NodeFromValue(n.ToValue())
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindOpaque || got.Pos != (Pos{5, 9}) {
		t.Fatalf("got %#v", got)
	}
}

func TestValidateRootOK(t *testing.T) {
	n := &Node{
		Pos:  Pos{Start: 0, End: 30},
		Kind: KindKeyed,
		Keyed: []KeyedEntry{
			{Key: "a", Child: leaf(0, 10)},
			{Key: "b", Child: leaf(10, 30)},
		},
	}
	if err := ValidateRoot(n, 30); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRootWrongCoverage(t *testing.T) {
	n := leaf(0, 20)
	if err := ValidateRoot(n, 30); err == nil {
		t.Fatal("expected root coverage violation")
	}
}

func TestValidateContainmentViolation(t *testing.T) {
	n := &Node{
		Pos:        Pos{Start: 0, End: 10},
		Kind:       KindPositional,
		Positional: []*Node{leaf(0, 15)},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected containment violation")
	}
}

func TestValidateDuplicateKey(t *testing.T) {
	n := &Node{
		Pos:  Pos{Start: 0, End: 20},
		Kind: KindKeyed,
		Keyed: []KeyedEntry{
			{Key: "a", Child: leaf(0, 10)},
			{Key: "a", Child: leaf(10, 20)},
		},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected duplicate-key violation")
	}
}

func TestValidateGroupedMonotonicity(t *testing.T) {
	ok := &Node{
		Pos:  Pos{Start: 0, End: 30},
		Kind: KindGrouped,
		Grouped: []GroupEntry{
			{Count: 3, Start: 0, End: 10},
			{Count: 3, Start: 10, End: 30},
		},
	}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}

	bad := &Node{
		Pos:  Pos{Start: 0, End: 30},
		Kind: KindGrouped,
		Grouped: []GroupEntry{
			{Count: 3, Start: 0, End: 10},
			{Count: 3, Start: 15, End: 30},
		},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected grouped monotonicity violation")
	}
}

func TestValidatePositionalOrdering(t *testing.T) {
	n := &Node{
		Pos:        Pos{Start: 0, End: 20},
		Kind:       KindPositional,
		Positional: []*Node{leaf(10, 20), leaf(0, 10)},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected positional ordering violation")
	}
}
