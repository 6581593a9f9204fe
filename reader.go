package msglc

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/TLCFEM/msglc/gcguard"
	"github.com/TLCFEM/msglc/internal/source"
	"github.com/TLCFEM/msglc/internal/toc"
	"github.com/TLCFEM/msglc/internal/wire"
	"github.com/TLCFEM/msglc/value"
)

// ReaderSession owns an open blob: its Source and decoded TOC. Cursors
// (LazyMap, LazySeq) derived from it are only valid for as long as the
// session stays open.
type ReaderSession struct {
	src           source.Source
	cfg           Config
	root          *toc.Node
	payloadOrigin int64
	releaseGC     func()
	closed        atomic.Bool
}

// Open opens path for lazy reading: it verifies the magic, reads the
// header, fetches and decodes the TOC trailer, and returns a session ready
// to resolve paths. The returned session must be closed with Close.
func Open(path string, opts ...Option) (*ReaderSession, error) {
	cfg := resolveConfig(opts)

	var src source.Source
	var err error
	if cfg.MMap {
		src, err = source.OpenMMap(path)
	} else {
		src, err = source.Open(path, cfg.ReadBuffer)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	session, err := openSession(src, cfg)
	if err != nil {
		src.Close()
		return nil, err
	}
	return session, nil
}

func openSession(src source.Source, cfg Config) (*ReaderSession, error) {
	ctx := context.Background()
	headerRegion := int64(len(cfg.Magic)) + wire.HeaderSize
	if src.Size() < headerRegion {
		return nil, fmt.Errorf("%w: %v", ErrFormat, wire.ErrTruncatedFile)
	}

	head, err := src.ReadAt(ctx, 0, headerRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !bytes.Equal(head[:len(cfg.Magic)], cfg.Magic) {
		return nil, fmt.Errorf("%w: %v", ErrFormat, wire.ErrBadMagic)
	}
	header, err := wire.DecodeHeader(head[len(cfg.Magic):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	payloadOrigin := headerRegion
	if int64(header.TOCStart)+int64(header.TOCLength) > src.Size() {
		return nil, fmt.Errorf("%w: TOC [%d,%d) extends past end of file (%d bytes)",
			ErrFormat, header.TOCStart, header.TOCStart+header.TOCLength, src.Size())
	}
	tocBytes, err := src.ReadAt(ctx, int64(header.TOCStart), int64(header.TOCLength))
	if err != nil {
		return nil, fmt.Errorf("%w: reading TOC: %v", ErrIO, err)
	}
	tocValue, err := cfg.Codec.Decode(tocBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding TOC: %v", ErrDecode, err)
	}
	root, err := toc.NodeFromValue(tocValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	payloadLen := int64(header.TOCStart) - payloadOrigin
	if err := toc.ValidateRoot(root, payloadLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var release func()
	if cfg.DisableGC {
		release = gcguard.Acquire()
	}

	return &ReaderSession{
		src:           src,
		cfg:           cfg,
		root:          root,
		payloadOrigin: payloadOrigin,
		releaseGC:     release,
	}, nil
}

// Close releases the session's Source and invalidates every cursor
// derived from it. Close is idempotent.
func (r *ReaderSession) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.releaseGC != nil {
		r.releaseGC()
	}
	return r.src.Close()
}

// Stats reports the underlying Source's physical I/O counters, for tests
// and diagnostics; it returns the zero value if the configured Source
// doesn't expose stats.
func (r *ReaderSession) Stats() source.Stats {
	type statsProvider interface{ Stats() source.Stats }
	if sp, ok := r.src.(statsProvider); ok {
		return sp.Stats()
	}
	return source.Stats{}
}

func (r *ReaderSession) fetch(pos toc.Pos) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrSessionClosed
	}
	data, err := r.src.ReadAt(context.Background(), r.payloadOrigin+pos.Start, pos.Len())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

// materialize turns a TOC node into either a cursor (for a keyed,
// positional, or grouped node) or a fully-decoded plain value (for an
// opaque node).
func (r *ReaderSession) materialize(node *toc.Node) (any, error) {
	switch node.Kind {
	case toc.KindKeyed:
		return &LazyMap{session: r, node: node}, nil
	case toc.KindPositional, toc.KindGrouped:
		return &LazySeq{session: r, node: node}, nil
	default:
		raw, err := r.fetch(node.Pos)
		if err != nil {
			return nil, err
		}
		v, err := r.cfg.Codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return v, nil
	}
}

// Root returns the root value: a cursor if the root container was large
// enough to carry a TOC table, otherwise the fully-decoded value.
func (r *ReaderSession) Root() (any, error) {
	if r.closed.Load() {
		return nil, ErrSessionClosed
	}
	return r.materialize(r.root)
}

// Read resolves a "/"-separated path from the root. Keys containing "/"
// are not addressable this way; use ReadSegments instead.
func (r *ReaderSession) Read(path string) (any, error) {
	return r.ReadSegments(splitPath(path))
}

// Visit is an alias of Read, for callers (such as benchmarks) that walk
// many one-off paths and want the call read the same way Read does,
// without implying they intend to hold onto and reuse a cursor.
func (r *ReaderSession) Visit(path string) (any, error) {
	return r.Read(path)
}

// ReadSegments resolves an explicit sequence of path segments from the
// root; unlike Read, segments may contain "/".
func (r *ReaderSession) ReadSegments(segments []string) (any, error) {
	cur, err := r.Root()
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		cur, err = resolveSegment(cur, seg)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Get resolves a single map key from the root.
func (r *ReaderSession) Get(key string) (any, error) {
	return r.ReadSegments([]string{key})
}

// Index resolves a single sequence index from the root.
func (r *ReaderSession) Index(i int) (any, error) {
	return r.ReadSegments([]string{strconv.Itoa(i)})
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func resolveSegment(cur any, segment string) (any, error) {
	switch c := cur.(type) {
	case *LazyMap:
		return c.Get(segment)
	case *LazySeq:
		idx, err := parseIndex(segment)
		if err != nil {
			return nil, err
		}
		return c.Index(idx)
	case *value.OrderedMap:
		v, ok := c.Get(segment)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrKey, segment)
		}
		return v, nil
	case []any:
		idx, err := parseIndex(segment)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(c) {
			return nil, fmt.Errorf("%w: %d", ErrIndex, idx)
		}
		return c[idx], nil
	default:
		return nil, fmt.Errorf("%w: cannot descend into %T with segment %q", ErrType, cur, segment)
	}
}

func parseIndex(segment string) (int, error) {
	n, err := strconv.Atoi(segment)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative index", ErrType, segment)
	}
	return n, nil
}

// ToPlain fully materialises v: a cursor is recursively decoded into plain
// *OrderedMap/[]any/primitive values; anything already plain is returned
// unchanged.
func ToPlain(v any) (any, error) {
	switch x := v.(type) {
	case *LazyMap:
		return x.ToPlain()
	case *LazySeq:
		return x.ToPlain()
	default:
		return x, nil
	}
}

// LazyMap is a cursor over a keyed TOC node: its children are resolved by
// string key, on demand.
type LazyMap struct {
	session *ReaderSession
	node    *toc.Node

	mu    sync.Mutex
	cache map[string]any
}

// Len returns the number of keys, without resolving any of them.
func (m *LazyMap) Len() int { return len(m.node.Keyed) }

// Keys returns the keys in stored (payload) order.
func (m *LazyMap) Keys() []string {
	keys := make([]string, len(m.node.Keyed))
	for i, e := range m.node.Keyed {
		keys[i] = e.Key
	}
	return keys
}

// Has reports whether key is present, without resolving its value.
func (m *LazyMap) Has(key string) bool {
	for _, e := range m.node.Keyed {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Get resolves key, decoding or recursing into a new cursor on first
// access and, if caching is enabled, returning the cached result on
// subsequent access.
func (m *LazyMap) Get(key string) (any, error) {
	if m.session.closed.Load() {
		return nil, ErrSessionClosed
	}
	if m.session.cfg.Cached {
		m.mu.Lock()
		v, ok := m.cache[key]
		m.mu.Unlock()
		if ok {
			return v, nil
		}
	}
	for _, e := range m.node.Keyed {
		if e.Key != key {
			continue
		}
		v, err := m.session.materialize(e.Child)
		if err != nil {
			return nil, err
		}
		if m.session.cfg.Cached {
			m.mu.Lock()
			if m.cache == nil {
				m.cache = make(map[string]any)
			}
			m.cache[key] = v
			m.mu.Unlock()
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrKey, key)
}

// Range calls fn for every (key, value) pair in stored order, resolving
// each value, until fn returns false or an error occurs.
func (m *LazyMap) Range(fn func(key string, v any) bool) error {
	for _, e := range m.node.Keyed {
		v, err := m.Get(e.Key)
		if err != nil {
			return err
		}
		if !fn(e.Key, v) {
			return nil
		}
	}
	return nil
}

func (m *LazyMap) accessedFraction() float64 {
	if m.Len() == 0 {
		return 1
	}
	m.mu.Lock()
	n := len(m.cache)
	m.mu.Unlock()
	return float64(n) / float64(m.Len())
}

// ToPlain materialises the entire map. When fast loading is enabled and
// few children have been accessed so far, it fetches the whole byte range
// in one read and decodes once; otherwise it resolves child by child,
// reusing any cache hits.
func (m *LazyMap) ToPlain() (*value.OrderedMap, error) {
	if m.session.closed.Load() {
		return nil, ErrSessionClosed
	}
	if m.session.cfg.FastLoad && m.accessedFraction() < m.session.cfg.FastLoadThreshold {
		raw, err := m.session.fetch(m.node.Pos)
		if err != nil {
			return nil, err
		}
		v, err := m.session.cfg.Codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		om, ok := value.ToOrderedMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: expected a map at [%d,%d)", ErrFormat, m.node.Pos.Start, m.node.Pos.End)
		}
		return om, nil
	}

	om := value.NewOrderedMap()
	for _, e := range m.node.Keyed {
		v, err := m.Get(e.Key)
		if err != nil {
			return nil, err
		}
		plain, err := ToPlain(v)
		if err != nil {
			return nil, err
		}
		om.Set(e.Key, plain)
	}
	return om, nil
}

// Equal reports whether m and other hold the same keys and, recursively,
// equal values. other may be a plain map (*OrderedMap or map[string]any)
// or another LazyMap.
func (m *LazyMap) Equal(other any) bool {
	if om, ok := value.ToOrderedMap(other); ok {
		if om.Len() != m.Len() {
			return false
		}
		for _, k := range om.Keys() {
			ov, _ := om.Get(k)
			mv, err := m.Get(k)
			if err == nil {
				mv, err = ToPlain(mv)
			}
			if err != nil || !value.Equal(mv, ov) {
				return false
			}
		}
		return true
	}
	if lm, ok := other.(*LazyMap); ok {
		plain, err := lm.ToPlain()
		if err != nil {
			return false
		}
		return m.Equal(plain)
	}
	return false
}

// LazySeq is a cursor over a positional or grouped TOC node: its elements
// are resolved by integer index, on demand.
type LazySeq struct {
	session *ReaderSession
	node    *toc.Node

	mu     sync.Mutex
	cache  map[int]any
	prefix []int64 // grouped only: cumulative element-count prefix sums
}

// Len returns the number of elements.
func (s *LazySeq) Len() int {
	switch s.node.Kind {
	case toc.KindPositional:
		return len(s.node.Positional)
	case toc.KindGrouped:
		return int(s.totalCount())
	default:
		return 0
	}
}

func (s *LazySeq) ensurePrefix() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefix != nil {
		return
	}
	prefix := make([]int64, len(s.node.Grouped)+1)
	for i, g := range s.node.Grouped {
		prefix[i+1] = prefix[i] + int64(g.Count)
	}
	s.prefix = prefix
}

func (s *LazySeq) totalCount() int64 {
	s.ensurePrefix()
	return s.prefix[len(s.prefix)-1]
}

// locate finds the grouped block containing logical index i, via the
// memoised prefix sum.
func (s *LazySeq) locate(i int64) (blockIdx int, offset int64) {
	s.ensurePrefix()
	lo, hi := 0, len(s.node.Grouped)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.prefix[mid] <= i {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, i - s.prefix[lo]
}

// Index resolves element i, decoding or recursing into a new cursor on
// first access.
func (s *LazySeq) Index(i int) (any, error) {
	if s.session.closed.Load() {
		return nil, ErrSessionClosed
	}
	if i < 0 {
		return nil, fmt.Errorf("%w: negative index %d", ErrIndex, i)
	}

	if s.session.cfg.Cached {
		s.mu.Lock()
		v, ok := s.cache[i]
		s.mu.Unlock()
		if ok {
			return v, nil
		}
	}

	switch s.node.Kind {
	case toc.KindPositional:
		if i >= len(s.node.Positional) {
			return nil, fmt.Errorf("%w: index %d", ErrIndex, i)
		}
		v, err := s.session.materialize(s.node.Positional[i])
		if err != nil {
			return nil, err
		}
		s.store(i, v)
		return v, nil

	case toc.KindGrouped:
		if int64(i) >= s.totalCount() {
			return nil, fmt.Errorf("%w: index %d", ErrIndex, i)
		}
		blockIdx, offset := s.locate(int64(i))
		block := s.node.Grouped[blockIdx]
		raw, err := s.session.fetch(toc.Pos{Start: block.Start, End: block.End})
		if err != nil {
			return nil, err
		}
		vals, err := s.session.cfg.Codec.DecodeN(raw, block.Count)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		base := s.prefix[blockIdx]
		for j, v := range vals {
			s.store(int(base)+j, v)
		}
		return vals[offset], nil

	default:
		return nil, fmt.Errorf("%w: index access on non-sequence", ErrType)
	}
}

func (s *LazySeq) store(i int, v any) {
	if !s.session.cfg.Cached {
		return
	}
	s.mu.Lock()
	if s.cache == nil {
		s.cache = make(map[int]any)
	}
	s.cache[i] = v
	s.mu.Unlock()
}

// Slice returns the elements in [lo,hi) as a plain slice, resolving (and
// caching) each one.
func (s *LazySeq) Slice(lo, hi int) ([]any, error) {
	if lo < 0 || hi < lo || hi > s.Len() {
		return nil, fmt.Errorf("%w: slice [%d:%d) out of range for length %d", ErrIndex, lo, hi, s.Len())
	}
	out := make([]any, hi-lo)
	for i := lo; i < hi; i++ {
		v, err := s.Index(i)
		if err != nil {
			return nil, err
		}
		out[i-lo] = v
	}
	return out, nil
}

// Range calls fn for every element in order, resolving each one, until fn
// returns false or an error occurs.
func (s *LazySeq) Range(fn func(i int, v any) bool) error {
	for i := 0; i < s.Len(); i++ {
		v, err := s.Index(i)
		if err != nil {
			return err
		}
		if !fn(i, v) {
			return nil
		}
	}
	return nil
}

func (s *LazySeq) accessedFraction() float64 {
	if s.Len() == 0 {
		return 1
	}
	s.mu.Lock()
	n := len(s.cache)
	s.mu.Unlock()
	return float64(n) / float64(s.Len())
}

// ToPlain materialises the entire sequence, subject to the same
// fast-loading policy as LazyMap.ToPlain.
func (s *LazySeq) ToPlain() ([]any, error) {
	if s.session.closed.Load() {
		return nil, ErrSessionClosed
	}
	if s.session.cfg.FastLoad && s.accessedFraction() < s.session.cfg.FastLoadThreshold {
		raw, err := s.session.fetch(s.node.Pos)
		if err != nil {
			return nil, err
		}
		v, err := s.session.cfg.Codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		seq, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected a sequence at [%d,%d)", ErrFormat, s.node.Pos.Start, s.node.Pos.End)
		}
		return seq, nil
	}

	out := make([]any, s.Len())
	for i := range out {
		v, err := s.Index(i)
		if err != nil {
			return nil, err
		}
		plain, err := ToPlain(v)
		if err != nil {
			return nil, err
		}
		out[i] = plain
	}
	return out, nil
}

// Equal reports whether s and other hold equal elements in the same
// order. other may be a plain []any or another LazySeq.
func (s *LazySeq) Equal(other any) bool {
	if seq, ok := other.([]any); ok {
		if len(seq) != s.Len() {
			return false
		}
		for i, ov := range seq {
			sv, err := s.Index(i)
			if err == nil {
				sv, err = ToPlain(sv)
			}
			if err != nil || !value.Equal(sv, ov) {
				return false
			}
		}
		return true
	}
	if ls, ok := other.(*LazySeq); ok {
		plain, err := ls.ToPlain()
		if err != nil {
			return false
		}
		return s.Equal(plain)
	}
	return false
}
