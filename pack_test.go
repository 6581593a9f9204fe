package msglc

import (
	"os"
	"path/filepath"
	"testing"
)

func packToTemp(t *testing.T, v Value, opts ...Option) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob.msglc")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := Pack(v, f, opts...); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return path
}

func TestPackAndOpenSimple(t *testing.T) {
	om := NewOrderedMap()
	om.Set("x", int64(1))
	om.Set("y", "hello")

	path := packToTemp(t, om)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	v, err := r.Get("x")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(1) {
		t.Fatalf("x = %v", v)
	}
	v, err = r.Get("y")
	if err != nil {
		t.Fatal(err)
	}
	if v != "hello" {
		t.Fatalf("y = %v", v)
	}
}

func TestPackAndOpenNestedPath(t *testing.T) {
	inner := NewOrderedMap()
	inner.Set("c", int64(4))
	inner.Set("d", int64(5))
	om := NewOrderedMap()
	om.Set("a", []any{int64(1), int64(2), int64(3)})
	om.Set("b", inner)

	path := packToTemp(t, om)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	v, err := r.Read("b/c")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(4) {
		t.Fatalf("b/c = %v", v)
	}

	a, err := r.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	seq, ok := a.([]any)
	if !ok {
		t.Fatalf("expected plain seq (below threshold), got %T", a)
	}
	if seq[2] != int64(3) {
		t.Fatalf("a[2] = %v", seq[2])
	}
}

func TestPackEmptyContainers(t *testing.T) {
	om := NewOrderedMap()
	om.Set("empty_map", NewOrderedMap())
	om.Set("empty_seq", []any{})

	path := packToTemp(t, om)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	em, err := r.Get("empty_map")
	if err != nil {
		t.Fatal(err)
	}
	gotMap, ok := em.(*OrderedMap)
	if !ok || gotMap.Len() != 0 {
		t.Fatalf("empty_map = %#v", em)
	}

	es, err := r.Get("empty_seq")
	if err != nil {
		t.Fatal(err)
	}
	gotSeq, ok := es.([]any)
	if !ok || len(gotSeq) != 0 {
		t.Fatalf("empty_seq = %#v", es)
	}
}

func TestPackStreamMapCountMismatchTooFew(t *testing.T) {
	sm := StreamMap{
		Len: 3,
		Pairs: func(yield func(key string, v any) bool) {
			yield("a", int64(1))
			yield("b", int64(2))
		},
	}
	path := filepath.Join(t.TempDir(), "blob.msglc")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	err = Pack(sm, f)
	if err == nil {
		t.Fatal("expected EncodeCountMismatch")
	}
}

func TestPackStreamMapCountMatch(t *testing.T) {
	sm := StreamMap{
		Len: 2,
		Pairs: func(yield func(key string, v any) bool) {
			yield("a", int64(1))
			yield("b", int64(2))
		},
	}
	path := packToTemp(t, sm)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	v, err := r.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(1) {
		t.Fatalf("a = %v", v)
	}
}

func TestPackAtomicRenamesIntoPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atomic.msglc")
	om := NewOrderedMap()
	om.Set("k", int64(7))

	if err := PackAtomic(om, path); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	v, err := r.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(7) {
		t.Fatalf("k = %v", v)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(path) {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}
