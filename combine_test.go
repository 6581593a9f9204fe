package msglc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCombineKeyed(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.msglc")
	bPath := filepath.Join(dir, "b.msglc")

	aMap := NewOrderedMap()
	aMap.Set("x", int64(1))
	if err := PackAtomic(aMap, aPath); err != nil {
		t.Fatal(err)
	}
	if err := PackAtomic([]any{int64(7), int64(8), int64(9)}, bPath); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out.msglc")
	err := Combine(outPath, []FileRef{Named(aPath, "A"), Named(bPath, "B")})
	if err != nil {
		t.Fatal(err)
	}

	r, err := Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	v, err := r.Read("A/x")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(1) {
		t.Fatalf("A/x = %v", v)
	}

	v, err = r.Read("B/1")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(8) {
		t.Fatalf("B/1 = %v", v)
	}
}

func TestCombinePositional(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.msglc")
	bPath := filepath.Join(dir, "b.msglc")
	if err := PackAtomic(int64(42), aPath); err != nil {
		t.Fatal(err)
	}
	if err := PackAtomic("hi", bPath); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out.msglc")
	if err := Combine(outPath, []FileRef{Unnamed(aPath), Unnamed(bPath)}); err != nil {
		t.Fatal(err)
	}

	r, err := Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	v, err := r.Read("0")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(42) {
		t.Fatalf("[0] = %v", v)
	}
	v, err = r.Read("1")
	if err != nil {
		t.Fatal(err)
	}
	if v != "hi" {
		t.Fatalf("[1] = %v", v)
	}
}

func TestCombineNameMixRejected(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.msglc")
	bPath := filepath.Join(dir, "b.msglc")
	if err := PackAtomic(int64(1), aPath); err != nil {
		t.Fatal(err)
	}
	if err := PackAtomic(int64(2), bPath); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out.msglc")
	err := Combine(outPath, []FileRef{Named(aPath, "A"), Unnamed(bPath)})
	if err == nil {
		t.Fatal("expected ErrCombineNameMix")
	}
}

func TestCombinePayloadBytesAreVerbatim(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.msglc")

	big := NewOrderedMap()
	for i := 0; i < 500; i++ {
		big.Set(string(rune('a'+i%26))+string(rune(i)), int64(i*i))
	}
	if err := PackAtomic(big, aPath); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out.msglc")
	if err := Combine(outPath, []FileRef{Named(aPath, "only")}); err != nil {
		t.Fatal(err)
	}

	r, err := Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := r.Read("only")
	if err != nil {
		t.Fatal(err)
	}
	plain, err := ToPlain(got)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(plain, big) {
		t.Fatal("combined entry does not equal original")
	}

	src, err := Open(aPath)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	srcPayload, err := src.fetch(src.root.Pos)
	if err != nil {
		t.Fatal(err)
	}
	outData, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(outData, srcPayload) {
		t.Fatal("combined file does not contain the source payload bytes verbatim")
	}

	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatal(err)
	}
	srcInfo, err := os.Stat(aPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() < srcInfo.Size() {
		t.Fatalf("combined file (%d bytes) smaller than source file (%d bytes)", info.Size(), srcInfo.Size())
	}
}
