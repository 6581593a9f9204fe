package source

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// defaultCacheSlots bounds how many distinct physical-read ranges a
// FileSource holds at once; the eviction list discards the oldest range
// once the count is exceeded.
const defaultCacheSlots = 32

// FileSource is a Source backed by a single *os.File, with a small cache of
// recently physically-read ranges and singleflight-coalesced physical
// reads so that two overlapping ReadAt calls racing on an uncached range
// only pay for one disk read.
type FileSource struct {
	path       string
	file       *os.File
	readBuffer int64
	size       int64
	stats      Stats

	mu      sync.Mutex
	pool    *fixedSizeBufferPool
	entries []*cacheEntry // FIFO order: oldest first

	group singleflight.Group
}

// Open opens path read-only and prepares a cache sized for readBuffer-byte
// physical reads, at most defaultCacheSlots of them held at once.
func Open(path string, readBuffer int64) (*FileSource, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: stat %s: %w", path, err)
	}
	return &FileSource{
		path:       path,
		file:       f,
		readBuffer: readBuffer,
		size:       info.Size(),
		pool:       newFixedSizeBufferPool(defaultCacheSlots, int(readBuffer)),
	}, nil
}

func (s *FileSource) Size() int64 { return s.size }

func (s *FileSource) Stats() Stats { return s.stats.Snapshot() }

func (s *FileSource) ReadAt(ctx context.Context, offset, length int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, fmt.Errorf("source: range [%d,%d) out of bounds for size %d", offset, offset+length, s.size)
	}

	if out, ok := s.tryCache(offset, length); ok {
		s.stats.recordHit()
		return out, nil
	}
	s.stats.recordMiss()

	alignedStart, fetchLen := s.alignFetch(offset, length)
	key := fmt.Sprintf("%d:%d", alignedStart, fetchLen)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.physicalRead(alignedStart, fetchLen)
	})
	if err != nil {
		return nil, err
	}
	entry := v.(*cacheEntry)

	rel := offset - entry.start
	out := make([]byte, length)
	copy(out, entry.data[rel:rel+length])
	return out, nil
}

func (s *FileSource) tryCache(offset, length int64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.contains(offset, length) {
			rel := offset - e.start
			out := make([]byte, length)
			copy(out, e.data[rel:rel+length])
			return out, true
		}
	}
	return nil, false
}

func (s *FileSource) alignFetch(offset, length int64) (start, fetchLen int64) {
	fetchLen = s.readBuffer
	if length > fetchLen {
		fetchLen = length
	}
	start = offset
	if start+fetchLen > s.size {
		fetchLen = s.size - start
	}
	return start, fetchLen
}

func (s *FileSource) physicalRead(start, length int64) (*cacheEntry, error) {
	var buf []byte
	var slotID uint16
	var pooled bool
	if length <= int64(s.pool.bufSize) {
		if b, id, ok := s.pool.tryGet(); ok {
			buf, slotID, pooled = b[:length], id, true
		}
	}
	if !pooled {
		// Every slot is currently checked out by another cached range.
		// Eviction only happens once this read completes and is inserted
		// into the cache, so waiting for a slot here could deadlock; fall
		// back to an ad hoc allocation instead.
		buf = make([]byte, length)
	}

	n, err := s.file.ReadAt(buf, start)
	if err != nil && int64(n) != length {
		if pooled {
			s.pool.put(slotID)
		}
		return nil, fmt.Errorf("source: read [%d,%d): %w", start, start+length, err)
	}
	s.stats.recordPhysicalRead(int64(n))

	entry := &cacheEntry{start: start, end: start + int64(n), data: buf[:n]}
	if pooled {
		entry.slotID = slotID
		entry.pooled = true
	}
	s.insertEntry(entry)
	return entry, nil
}

// insertEntry appends entry and evicts the oldest cached ranges, in
// insertion order, until the cache is back under its slot budget — the
// cache is an optimisation, never a correctness requirement, so the
// eviction policy only needs to bound memory, not preserve any particular
// range.
func (s *FileSource) insertEntry(entry *cacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	for len(s.entries) > defaultCacheSlots {
		evicted := s.entries[0]
		s.entries = s.entries[1:]
		if evicted.pooled {
			s.pool.put(evicted.slotID)
		}
	}
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
