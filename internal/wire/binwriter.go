package wire

import (
	"encoding/binary"
	"fmt"
)

// BinWriter packs fixed-width integers into a caller-owned byte slice. It
// never grows past the capacity handed to it — the header region of a blob
// is a fixed 20 bytes decided up front, so overflow is a programmer error.
type BinWriter struct {
	pos  int
	data []byte
	size int

	order binary.ByteOrder
}

func NewEncodeBuffer(buf []byte, order binary.ByteOrder) BinWriter {
	return BinWriter{data: buf, size: len(buf), order: order}
}

func (w *BinWriter) Reset() { w.pos = 0 }

func (w *BinWriter) Position() int { return w.pos }

func (w *BinWriter) Bytes() []byte { return w.data[:w.pos] }

func (w *BinWriter) checkRoom(n int) {
	if w.pos+n > w.size {
		panic(fmt.Sprintf("wire: encode buffer overflow at pos %d, need %d, have %d", w.pos, n, w.size))
	}
}

func (w *BinWriter) PutUint32(v uint32) {
	w.checkRoom(4)
	w.order.PutUint32(w.data[w.pos:], v)
	w.pos += 4
}

func (w *BinWriter) PutUint64(v uint64) {
	w.checkRoom(8)
	w.order.PutUint64(w.data[w.pos:], v)
	w.pos += 8
}

func (w *BinWriter) WriteByte(b byte) {
	w.checkRoom(1)
	w.data[w.pos] = b
	w.pos++
}

func (w *BinWriter) EmptyBytes(n int) {
	w.checkRoom(n)
	w.pos += n
}
