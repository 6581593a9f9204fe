package source

import (
	"sync/atomic"
)

// Stats counts physical I/O performed by a Source, for the reader's
// diagnostic ReaderSession.Stats() surface and for tests that assert a
// lazy read's physical-byte cost.
type Stats struct {
	PhysicalReads int64
	PhysicalBytes int64
	CacheHits     int64
	CacheMisses   int64
}

func (s *Stats) recordPhysicalRead(n int64) {
	atomic.AddInt64(&s.PhysicalReads, 1)
	atomic.AddInt64(&s.PhysicalBytes, n)
}

func (s *Stats) recordHit() { atomic.AddInt64(&s.CacheHits, 1) }
func (s *Stats) recordMiss() { atomic.AddInt64(&s.CacheMisses, 1) }

// Snapshot returns a copy safe to read without racing concurrent updates.
func (s *Stats) Snapshot() Stats {
	return Stats{
		PhysicalReads: atomic.LoadInt64(&s.PhysicalReads),
		PhysicalBytes: atomic.LoadInt64(&s.PhysicalBytes),
		CacheHits:     atomic.LoadInt64(&s.CacheHits),
		CacheMisses:   atomic.LoadInt64(&s.CacheMisses),
	}
}

// cacheEntry is one physically-read range held in the cache. Eviction is
// by insertion order (FIFO), not recency, so no timestamp is kept.
type cacheEntry struct {
	slotID uint16
	pooled bool
	start  int64
	end    int64
	data   []byte
}

func (e *cacheEntry) contains(offset, length int64) bool {
	return offset >= e.start && offset+length <= e.end
}
