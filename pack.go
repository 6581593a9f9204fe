package msglc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/TLCFEM/msglc/codec"
	"github.com/TLCFEM/msglc/gcguard"
	"github.com/TLCFEM/msglc/internal/toc"
	"github.com/TLCFEM/msglc/internal/wire"
	"github.com/TLCFEM/msglc/value"
)

// Sink is what Pack writes a blob to: it must support seeking back to
// patch the header once the payload length and TOC offset are known.
type Sink interface {
	io.Writer
	io.Seeker
}

// countingWriter tracks how many payload bytes have been written so far,
// relative to the start of the payload region — exactly the offsets the
// TOC records.
type countingWriter struct {
	w   io.Writer
	pos int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.pos += int64(n)
	return n, err
}

// Pack writes root to w as a complete blob: MAGIC, header, payload, TOC
// trailer, then seeks back to patch the header with the TOC's real
// location. Partial progress on a later error leaves w holding a
// possibly-incomplete blob; callers who need atomicity should use
// PackAtomic.
func Pack(root Value, w Sink, opts ...Option) error {
	cfg := resolveConfig(opts)

	if cfg.DisableGC {
		release := gcguard.Acquire()
		defer release()
	}

	payloadOrigin, err := wire.WriteMagicAndPlaceholder(w, cfg.Magic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	bw := bufio.NewWriterSize(w, cfg.WriteBuffer)
	cw := &countingWriter{w: bw}

	rootNode, err := packValue(cw, root, cfg)
	if err != nil {
		return err
	}
	return finishBlob(w, bw, cw, payloadOrigin, rootNode, cfg)
}

// finishBlob flushes the buffered payload writer, encodes the TOC trailer,
// writes it immediately after the payload, then seeks back to patch the
// header with the TOC's real (toc_start, toc_length). Shared by Pack and
// Combine, whose payload-writing differs but whose trailer and header
// handling does not.
func finishBlob(w Sink, bw *bufio.Writer, cw *countingWriter, payloadOrigin int64, rootNode *toc.Node, cfg Config) error {
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	var tocBuf bytes.Buffer
	if err := encodeGeneric(&tocBuf, rootNode.ToValue(), cfg.Codec); err != nil {
		return fmt.Errorf("%w: encoding TOC: %v", ErrEncode, err)
	}

	tocStart := payloadOrigin + cw.pos
	if _, err := w.Write(tocBuf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	header := wire.EncodeHeader(wire.Header{
		TOCStart:  uint64(tocStart),
		TOCLength: uint64(tocBuf.Len()),
	})
	if _, err := w.Seek(int64(len(cfg.Magic)), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// PackAtomic packs root to a fresh temporary file beside path, then renames
// it into place, so a reader never observes a partially-written blob at
// path. The temporary file's name is randomised with a uuid to avoid
// colliding with a concurrent PackAtomic to the same path.
func PackAtomic(root Value, path string, opts ...Option) (err error) {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = Pack(root, f, opts...); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// packValue encodes one node of the input tree, recursing into containers,
// and returns the TOC node describing the bytes it just wrote.
func packValue(cw *countingWriter, v Value, cfg Config) (*toc.Node, error) {
	switch x := v.(type) {
	case value.StreamMap:
		return packStreamMap(cw, x, cfg)
	case *value.OrderedMap:
		return packMap(cw, x, cfg)
	case map[string]any:
		om, _ := value.ToOrderedMap(x)
		return packMap(cw, om, cfg)
	case []any:
		return packSeq(cw, x, cfg)
	default:
		start := cw.pos
		if err := cfg.Codec.EncodeValue(cw, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
		return &toc.Node{Pos: toc.Pos{Start: start, End: cw.pos}, Kind: toc.KindOpaque}, nil
	}
}

func packSeq(cw *countingWriter, seq []any, cfg Config) (*toc.Node, error) {
	start := cw.pos
	if err := cfg.Codec.EncodeArrayHeader(cw, len(seq)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	children := make([]*toc.Node, len(seq))
	for i, e := range seq {
		child, err := packValue(cw, e, cfg)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	pos := toc.Pos{Start: start, End: cw.pos}
	return finalizeContainer(cfg, pos, true, children, nil), nil
}

func packMap(cw *countingWriter, om *value.OrderedMap, cfg Config) (*toc.Node, error) {
	start := cw.pos
	n := om.Len()
	if err := cfg.Codec.EncodeMapHeader(cw, n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	keys := make([]string, 0, n)
	children := make([]*toc.Node, 0, n)
	var rangeErr error
	om.Range(func(k string, v any) bool {
		if err := cfg.Codec.EncodeValue(cw, k); err != nil {
			rangeErr = fmt.Errorf("%w: %v", ErrEncode, err)
			return false
		}
		child, err := packValue(cw, v, cfg)
		if err != nil {
			rangeErr = err
			return false
		}
		keys = append(keys, k)
		children = append(children, child)
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}
	pos := toc.Pos{Start: start, End: cw.pos}
	return finalizeContainer(cfg, pos, false, children, keys), nil
}

func packStreamMap(cw *countingWriter, sm value.StreamMap, cfg Config) (*toc.Node, error) {
	start := cw.pos
	if err := cfg.Codec.EncodeMapHeader(cw, sm.Len); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	keys := make([]string, 0, sm.Len)
	children := make([]*toc.Node, 0, sm.Len)
	count := 0
	var yieldErr error
	sm.Pairs(func(k string, v any) bool {
		if count >= sm.Len {
			yieldErr = fmt.Errorf("%w: streamed more than the declared %d pairs", ErrEncodeCountMismatch, sm.Len)
			return false
		}
		if err := cfg.Codec.EncodeValue(cw, k); err != nil {
			yieldErr = fmt.Errorf("%w: %v", ErrEncode, err)
			return false
		}
		child, err := packValue(cw, v, cfg)
		if err != nil {
			yieldErr = err
			return false
		}
		keys = append(keys, k)
		children = append(children, child)
		count++
		return true
	})
	if yieldErr != nil {
		return nil, yieldErr
	}
	if count != sm.Len {
		return nil, fmt.Errorf("%w: declared %d pairs, streamed %d", ErrEncodeCountMismatch, sm.Len, count)
	}
	pos := toc.Pos{Start: start, End: cw.pos}
	return finalizeContainer(cfg, pos, false, children, keys), nil
}

// finalizeContainer decides a container's TOC shape once its final byte
// range and its children's TOC nodes are known.
func finalizeContainer(cfg Config, pos toc.Pos, isSequence bool, children []*toc.Node, keys []string) *toc.Node {
	if pos.Len() < cfg.SmallObjThreshold {
		return &toc.Node{Pos: pos, Kind: toc.KindOpaque}
	}

	if isSequence && len(children) > 1 && allTrivial(children, cfg.TrivialSize) {
		return &toc.Node{Pos: pos, Kind: toc.KindGrouped, Grouped: partitionGrouped(children, cfg.SmallObjThreshold)}
	}

	if allOpaque(children) {
		// Every child is already a leaf-only TOC entry: dropping the
		// table shrinks the TOC without losing anything a reader
		// needs.
		return &toc.Node{Pos: pos, Kind: toc.KindOpaque}
	}

	if isSequence {
		return &toc.Node{Pos: pos, Kind: toc.KindPositional, Positional: children}
	}
	entries := make([]toc.KeyedEntry, len(children))
	for i, c := range children {
		entries[i] = toc.KeyedEntry{Key: keys[i], Child: c}
	}
	return &toc.Node{Pos: pos, Kind: toc.KindKeyed, Keyed: entries}
}

func allTrivial(children []*toc.Node, trivialSize int64) bool {
	for _, c := range children {
		if c.Pos.Len() > trivialSize {
			return false
		}
	}
	return true
}

func allOpaque(children []*toc.Node) bool {
	for _, c := range children {
		if c.Kind != toc.KindOpaque {
			return false
		}
	}
	return true
}

// partitionGrouped splits contiguous children into blocks whose cumulative
// encoded size just meets or exceeds threshold, the last block taking
// whatever remains. Children are assumed contiguous, so a block's end
// always equals the next block's start.
func partitionGrouped(children []*toc.Node, threshold int64) []toc.GroupEntry {
	var blocks []toc.GroupEntry
	i := 0
	for i < len(children) {
		start := children[i].Pos.Start
		var blockSize int64
		j := i
		for j < len(children) {
			blockSize += children[j].Pos.Len()
			j++
			if blockSize >= threshold {
				break
			}
		}
		blocks = append(blocks, toc.GroupEntry{
			Count: j - i,
			Start: start,
			End:   children[j-1].Pos.End,
		})
		i = j
	}
	return blocks
}

// encodeGeneric writes any Value, including nested maps and sequences, by
// interleaving container headers with recursive encoding the same way the
// packer does for the payload. It is used for the TOC trailer, which is
// itself just a Value on the wire.
func encodeGeneric(w io.Writer, v any, cdc codec.Codec) error {
	switch x := v.(type) {
	case *value.OrderedMap:
		if err := cdc.EncodeMapHeader(w, x.Len()); err != nil {
			return err
		}
		var rangeErr error
		x.Range(func(k string, val any) bool {
			if err := cdc.EncodeValue(w, k); err != nil {
				rangeErr = err
				return false
			}
			if err := encodeGeneric(w, val, cdc); err != nil {
				rangeErr = err
				return false
			}
			return true
		})
		return rangeErr
	case map[string]any:
		om, _ := value.ToOrderedMap(x)
		return encodeGeneric(w, om, cdc)
	case []any:
		if err := cdc.EncodeArrayHeader(w, len(x)); err != nil {
			return err
		}
		for _, e := range x {
			if err := encodeGeneric(w, e, cdc); err != nil {
				return err
			}
		}
		return nil
	default:
		return cdc.EncodeValue(w, v)
	}
}
