package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMagic identifies a msglc blob. Config.Magic (set with WithMagic) can override it for
// callers that want a project-specific signature; the length is free, up to
// MaxMagicLen, matching the original format's "any non-empty byte string".
var DefaultMagic = []byte("msglc-go-1")

const MaxMagicLen = 30

// HeaderSize is the fixed 20-byte header following the magic: toc_start
// (uint64), toc_length (uint64), and 4 reserved bytes, big-endian.
const HeaderSize = 20

var byteOrder = binary.BigEndian

var (
	ErrBadMagic      = errors.New("wire: bad magic")
	ErrTruncatedFile = errors.New("wire: truncated header")
)

// Header is the decoded (toc_start, toc_length) pair: TOCStart is an
// absolute byte offset from the start of the file, TOCLength the TOC's
// length in bytes.
type Header struct {
	TOCStart  uint64
	TOCLength uint64
}

// WriteMagicAndPlaceholder writes the magic followed by a zeroed header
// region, returning the file offset where the payload begins.
func WriteMagicAndPlaceholder(w io.Writer, magic []byte) (payloadOrigin int64, err error) {
	if len(magic) == 0 || len(magic) > MaxMagicLen {
		return 0, fmt.Errorf("wire: magic length %d out of range (1..%d)", len(magic), MaxMagicLen)
	}
	if _, err = w.Write(magic); err != nil {
		return 0, err
	}
	var zero [HeaderSize]byte
	if _, err = w.Write(zero[:]); err != nil {
		return 0, err
	}
	return int64(len(magic)) + HeaderSize, nil
}

// EncodeHeader renders a Header to its 20-byte wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	bw := NewEncodeBuffer(buf, byteOrder)
	bw.PutUint64(h.TOCStart)
	bw.PutUint64(h.TOCLength)
	bw.EmptyBytes(4) // reserved, always zero
	return bw.Bytes()
}

// DecodeHeader parses the 20-byte header region.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) != HeaderSize {
		return Header{}, fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(raw))
	}
	br := NewBinReader(bytes.NewReader(raw), byteOrder)
	tocStart, err := br.ReadU64()
	if err != nil {
		return Header{}, err
	}
	tocLength, err := br.ReadU64()
	if err != nil {
		return Header{}, err
	}
	return Header{TOCStart: tocStart, TOCLength: tocLength}, nil
}

// ReadHeader validates the magic and decodes the header in one pass from a
// stream. The lazy reader does not call it: it checks the magic and calls
// DecodeHeader on bytes fetched from its Source.
func ReadHeader(r io.Reader, magic []byte) (Header, int64, error) {
	buf := make([]byte, len(magic)+HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Header{}, 0, ErrTruncatedFile
		}
		return Header{}, 0, err
	}
	if !bytes.Equal(buf[:len(magic)], magic) {
		return Header{}, 0, ErrBadMagic
	}
	h, err := DecodeHeader(buf[len(magic):])
	if err != nil {
		return Header{}, 0, err
	}
	return h, int64(len(magic) + HeaderSize), nil
}
