package codec

import (
	"bytes"
	"testing"

	"github.com/TLCFEM/msglc/value"
)

func TestV5ScalarRoundTrip(t *testing.T) {
	c := V5()
	cases := []any{
		nil, true, false,
		int64(0), int64(127), int64(-32), int64(1 << 40),
		3.5, "short", []byte{1, 2, 3},
	}
	for _, v := range cases {
		got := roundTrip(t, c, v)
		if !value.Equal(got, v) {
			t.Errorf("roundtrip mismatch: put %#v got %#v", v, got)
		}
	}
}

func TestV5MapRoundTrip(t *testing.T) {
	c := V5()
	om := value.NewOrderedMap()
	om.Set("x", int64(1))
	om.Set("y", "two")

	got := roundTrip(t, c, om)
	gm, ok := got.(*value.OrderedMap)
	if !ok {
		t.Fatalf("expected *OrderedMap, got %T", got)
	}
	if gm.Len() != 2 {
		t.Fatalf("len = %d", gm.Len())
	}
	if v, _ := gm.Get("x"); v != int64(1) {
		t.Errorf("x = %v", v)
	}
}

func TestV5InteroperatesAcrossBackends(t *testing.T) {
	native := Native()
	v5 := V5()

	var buf bytes.Buffer
	if err := native.EncodeValue(&buf, "shared"); err != nil {
		t.Fatal(err)
	}
	got, err := v5.Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != "shared" {
		t.Fatalf("got %v", got)
	}
}
