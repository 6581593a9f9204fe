// Package wire implements the fixed-width framing around a msglc blob: the
// magic prefix and the 20-byte header that locates the TOC trailer. It does
// not touch the payload or TOC bytes themselves, which are plain MessagePack.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

var ErrReadMismatch = errors.New("wire: short read")

// BinReader reads fixed-width integers from an io.Reader using a single
// small scratch buffer, the way a binary header is decoded field by field.
type BinReader struct {
	scratch [8]byte

	r     io.Reader
	order binary.ByteOrder
}

func NewBinReader(r io.Reader, order binary.ByteOrder) *BinReader {
	return &BinReader{r: r, order: order}
}

func (r *BinReader) readExact(size int) error {
	n, err := io.ReadFull(r.r, r.scratch[:size])
	if err != nil {
		return err
	}
	if n != size {
		return ErrReadMismatch
	}
	return nil
}

func (r *BinReader) ReadU8() (uint8, error) {
	if err := r.readExact(1); err != nil {
		return 0, err
	}
	return r.scratch[0], nil
}

func (r *BinReader) ReadU32() (uint32, error) {
	if err := r.readExact(4); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.scratch[:4]), nil
}

func (r *BinReader) ReadU64() (uint64, error) {
	if err := r.readExact(8); err != nil {
		return 0, err
	}
	return r.order.Uint64(r.scratch[:8]), nil
}

func (r *BinReader) ReadBytes(n int, out []byte) error {
	read, err := io.ReadFull(r.r, out[:n])
	if err != nil {
		return err
	}
	if read != n {
		return ErrReadMismatch
	}
	return nil
}
