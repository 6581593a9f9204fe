package msglc

import (
	"bufio"
	"fmt"
	"os"

	"github.com/TLCFEM/msglc/gcguard"
	"github.com/TLCFEM/msglc/internal/toc"
	"github.com/TLCFEM/msglc/internal/wire"
)

// FileRef names one already-packed blob to fold into a Combine call. Name
// is optional; either every FileRef in a Combine call carries one, or none
// does — mixing the two is ErrCombineNameMix.
type FileRef struct {
	Path string
	Name *string
}

// Named returns a FileRef with a name, for the keyed combine variant.
func Named(path, name string) FileRef {
	return FileRef{Path: path, Name: &name}
}

// Unnamed returns a FileRef without a name, for the positional combine
// variant.
func Unnamed(path string) FileRef {
	return FileRef{Path: path}
}

// Combine concatenates the payload bytes of every input in refs, verbatim,
// into a single new blob at outputPath, without re-encoding any of them,
// and builds a top-level TOC whose children are the inputs' own TOCs with
// their offsets relocated into the new payload. If every ref has a Name
// the result's root is a map; if none does, it is a sequence.
func Combine(outputPath string, refs []FileRef, opts ...Option) error {
	cfg := resolveConfig(opts)

	keyed, err := combineShape(refs)
	if err != nil {
		return err
	}

	sessions := make([]*ReaderSession, 0, len(refs))
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()
	for _, ref := range refs {
		s, err := Open(ref.Path, opts...)
		if err != nil {
			return fmt.Errorf("opening %s: %w", ref.Path, err)
		}
		sessions = append(sessions, s)
	}

	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer out.Close()

	if cfg.DisableGC {
		release := gcguard.Acquire()
		defer release()
	}

	payloadOrigin, err := wire.WriteMagicAndPlaceholder(out, cfg.Magic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	bw := bufio.NewWriterSize(out, cfg.WriteBuffer)
	cw := &countingWriter{w: bw}

	if keyed {
		if err := cfg.Codec.EncodeMapHeader(cw, len(refs)); err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
	} else {
		if err := cfg.Codec.EncodeArrayHeader(cw, len(refs)); err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
	}

	children := make([]*toc.Node, len(refs))
	var keys []string
	if keyed {
		keys = make([]string, len(refs))
	}

	for i, ref := range refs {
		s := sessions[i]
		if keyed {
			if err := cfg.Codec.EncodeValue(cw, *ref.Name); err != nil {
				return fmt.Errorf("%w: %v", ErrEncode, err)
			}
			keys[i] = *ref.Name
		}

		childStart := cw.pos
		if err := copyPayload(cw, s, cfg.CopyChunk); err != nil {
			return err
		}
		children[i] = shiftNode(s.root, childStart-s.root.Pos.Start)
	}

	rootPos := toc.Pos{Start: 0, End: cw.pos}
	var rootNode *toc.Node
	if keyed {
		entries := make([]toc.KeyedEntry, len(refs))
		for i := range refs {
			entries[i] = toc.KeyedEntry{Key: keys[i], Child: children[i]}
		}
		rootNode = &toc.Node{Pos: rootPos, Kind: toc.KindKeyed, Keyed: entries}
	} else {
		rootNode = &toc.Node{Pos: rootPos, Kind: toc.KindPositional, Positional: children}
	}

	return finishBlob(out, bw, cw, payloadOrigin, rootNode, cfg)
}

func combineShape(refs []FileRef) (keyed bool, err error) {
	named := 0
	for _, ref := range refs {
		if ref.Name != nil {
			named++
		}
	}
	if named != 0 && named != len(refs) {
		return false, ErrCombineNameMix
	}
	return named == len(refs) && len(refs) > 0, nil
}

// copyPayload streams s's entire payload region into cw in chunks of at
// most chunkSize bytes, without decoding any of it.
func copyPayload(cw *countingWriter, s *ReaderSession, chunkSize int64) error {
	total := s.root.Pos.End - s.root.Pos.Start
	var off int64
	for off < total {
		n := chunkSize
		if off+n > total {
			n = total - off
		}
		buf, err := s.fetch(toc.Pos{Start: s.root.Pos.Start + off, End: s.root.Pos.Start + off + n})
		if err != nil {
			return err
		}
		if _, err := cw.Write(buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		off += n
	}
	return nil
}

// shiftNode clones n with every position in the tree shifted by delta, the
// way Combine relocates a grafted input's TOC into the combined payload.
func shiftNode(n *toc.Node, delta int64) *toc.Node {
	shifted := &toc.Node{
		Pos:  toc.Pos{Start: n.Pos.Start + delta, End: n.Pos.End + delta},
		Kind: n.Kind,
	}
	switch n.Kind {
	case toc.KindKeyed:
		shifted.Keyed = make([]toc.KeyedEntry, len(n.Keyed))
		for i, e := range n.Keyed {
			shifted.Keyed[i] = toc.KeyedEntry{Key: e.Key, Child: shiftNode(e.Child, delta)}
		}
	case toc.KindPositional:
		shifted.Positional = make([]*toc.Node, len(n.Positional))
		for i, c := range n.Positional {
			shifted.Positional[i] = shiftNode(c, delta)
		}
	case toc.KindGrouped:
		shifted.Grouped = make([]toc.GroupEntry, len(n.Grouped))
		for i, g := range n.Grouped {
			shifted.Grouped[i] = toc.GroupEntry{Count: g.Count, Start: g.Start + delta, End: g.End + delta}
		}
	}
	return shifted
}
