// Package codec implements the MessagePack encode/decode boundary msglc
// packs and unpacks payload bytes through. It is the "codec adapter"
// collaborator: a small capability interface plus a default implementation,
// so a second backend can be swapped in at session-open time without the
// packer or reader caring which one is in use.
package codec

import (
	"errors"
	"io"
)

// ErrDecode wraps any failure to decode a byte range as a complete
// MessagePack value.
var ErrDecode = errors.New("codec: decode failed")

// Codec is the capability surface the packer and reader need. Every method
// must preserve a byte-for-byte round trip of the Value shapes msglc
// models (nil, bool, int64, float64, string, []byte, []any, *OrderedMap,
// ExtValue) — implementations that delegate to a generic third-party
// decoder are responsible for normalising its output into those shapes.
type Codec interface {
	// EncodeMapHeader writes a MessagePack map header for n key/value
	// pairs. The caller is responsible for then writing exactly n keys
	// and n values, in order.
	EncodeMapHeader(w io.Writer, n int) error

	// EncodeArrayHeader writes a MessagePack array header for n elements.
	// The caller writes exactly n elements afterward.
	EncodeArrayHeader(w io.Writer, n int) error

	// EncodeValue writes a single leaf value: everything except map/array
	// containers, whose headers are written separately so the packer can
	// interleave header and recursive child encoding.
	EncodeValue(w io.Writer, v any) error

	// Decode decodes data as exactly one complete, standalone MessagePack
	// value; trailing bytes are an error. Used for opaque (no-TOC)
	// containers and for the TOC trailer itself.
	Decode(data []byte) (any, error)

	// DecodeN decodes exactly n consecutive values concatenated in data,
	// returning them in order. Used to resolve a grouped-TOC block.
	DecodeN(data []byte, n int) ([]any, error)

	// DecodeSkipping decodes one value from the front of data and reports
	// how many bytes it consumed, leaving any trailing bytes unread. Used
	// for boundary discovery when a byte range holds more than one value.
	DecodeSkipping(data []byte) (value any, consumed int, err error)
}
