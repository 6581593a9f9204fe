package source

import (
	"context"
	"os"
	"testing"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "source-test-*.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func TestFileSourceReadAtExact(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeTempFile(t, data)

	src, err := Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	got, err := src.ReadAt(context.Background(), 100, 50)
	if err != nil {
		t.Fatal(err)
	}
	want := data[100:150]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestFileSourceCacheHitServesSameBytes(t *testing.T) {
	data := make([]byte, 2000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := writeTempFile(t, data)

	src, err := Open(path, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx := context.Background()
	if _, err := src.ReadAt(ctx, 0, 10); err != nil {
		t.Fatal(err)
	}
	before := src.Stats()

	got, err := src.ReadAt(ctx, 5, 10)
	if err != nil {
		t.Fatal(err)
	}
	after := src.Stats()
	if after.PhysicalReads != before.PhysicalReads {
		t.Fatalf("expected cache hit, physical reads grew from %d to %d", before.PhysicalReads, after.PhysicalReads)
	}
	for i, b := range got {
		if b != data[5+i] {
			t.Fatalf("byte %d mismatch", i)
		}
	}
}

func TestFileSourceOutOfBounds(t *testing.T) {
	path := writeTempFile(t, make([]byte, 10))
	src, err := Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if _, err := src.ReadAt(context.Background(), 5, 100); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestFileSourceLargeReadBypassesPool(t *testing.T) {
	data := make([]byte, 1<<20)
	path := writeTempFile(t, data)

	src, err := Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	got, err := src.ReadAt(context.Background(), 0, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(data) {
		t.Fatalf("got %d bytes, want %d", len(got), len(data))
	}
	src.mu.Lock()
	pooled := len(src.entries) == 1 && src.entries[0].pooled
	src.mu.Unlock()
	if pooled {
		t.Fatal("large read was served from a pooled slot")
	}
}

func TestFileSourceEvictionBoundsCacheEntries(t *testing.T) {
	size := int64(defaultCacheSlots+5) * 64
	data := make([]byte, size)
	path := writeTempFile(t, data)

	src, err := Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx := context.Background()
	for i := int64(0); i < size; i += 64 {
		if _, err := src.ReadAt(ctx, i, 1); err != nil {
			t.Fatal(err)
		}
	}
	src.mu.Lock()
	n := len(src.entries)
	src.mu.Unlock()
	if n > defaultCacheSlots {
		t.Fatalf("cache holds %d entries, want <= %d", n, defaultCacheSlots)
	}
}
