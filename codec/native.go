package codec

import (
	"fmt"
	"io"
	"math"

	"github.com/TLCFEM/msglc/value"
)

// mpcode names the MessagePack type-prefix bytes this codec emits and
// recognises. Values are fixed by the MessagePack specification, not by any
// particular library, so hand-coding them keeps the codec free of any
// dependency whose internal byte layout we would otherwise have to trust.
const (
	mpNil        = 0xc0
	mpFalse      = 0xc2
	mpTrue       = 0xc3
	mpBin8       = 0xc4
	mpBin16      = 0xc5
	mpBin32      = 0xc6
	mpExt8       = 0xc7
	mpExt16      = 0xc8
	mpExt32      = 0xc9
	mpFloat32    = 0xca
	mpFloat64    = 0xcb
	mpUint8      = 0xcc
	mpUint16     = 0xcd
	mpUint32     = 0xce
	mpUint64     = 0xcf
	mpInt8       = 0xd0
	mpInt16      = 0xd1
	mpInt32      = 0xd2
	mpInt64      = 0xd3
	mpFixExt1    = 0xd4
	mpFixExt2    = 0xd5
	mpFixExt4    = 0xd6
	mpFixExt8    = 0xd7
	mpFixExt16   = 0xd8
	mpStr8       = 0xd9
	mpStr16      = 0xda
	mpStr32      = 0xdb
	mpArray16    = 0xdc
	mpArray32    = 0xdd
	mpMap16      = 0xde
	mpMap32      = 0xdf
	mpFixMapLo   = 0x80
	mpFixMapHi   = 0x8f
	mpFixArrLo   = 0x90
	mpFixArrHi   = 0x9f
	mpFixStrLo   = 0xa0
	mpFixStrHi   = 0xbf
	mpPosFixMax  = 0x7f
	mpNegFixLo   = 0xe0
)

// Native returns the default Codec: a small, hand-rolled MessagePack
// encoder/decoder that controls every byte it writes. Byte-exact control
// matters here in a way it wouldn't for an ordinary MessagePack consumer: the
// TOC's [start,end) ranges are only meaningful if the codec's notion of
// where one value ends and the next begins exactly matches what the packer
// recorded while writing, so the default backend does not delegate that
// boundary-tracking to an opaque library.
func Native() Codec {
	return nativeCodec{}
}

type nativeCodec struct{}

func (nativeCodec) EncodeMapHeader(w io.Writer, n int) error {
	return writeContainerHeader(w, n, mpFixMapLo, mpMap16, mpMap32)
}

func (nativeCodec) EncodeArrayHeader(w io.Writer, n int) error {
	return writeContainerHeader(w, n, mpFixArrLo, mpArray16, mpArray32)
}

func writeContainerHeader(w io.Writer, n int, fixBase, code16, code32 byte) error {
	if n < 0 {
		return fmt.Errorf("codec: negative container length %d", n)
	}
	switch {
	case n < 16:
		return writeByte(w, fixBase|byte(n))
	case n < 1<<16:
		return writeBytes(w, []byte{code16, byte(n >> 8), byte(n)})
	default:
		return writeBytes(w, []byte{code32, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	}
}

func (nativeCodec) EncodeValue(w io.Writer, v any) error {
	switch x := v.(type) {
	case nil:
		return writeByte(w, mpNil)
	case bool:
		if x {
			return writeByte(w, mpTrue)
		}
		return writeByte(w, mpFalse)
	case int:
		return encodeInt(w, int64(x))
	case int64:
		return encodeInt(w, x)
	case int32:
		return encodeInt(w, int64(x))
	case float64:
		return encodeFloat64(w, x)
	case float32:
		return encodeFloat64(w, float64(x))
	case string:
		return encodeString(w, x)
	case []byte:
		return encodeBin(w, x)
	case value.ExtValue:
		return encodeExt(w, x)
	default:
		return fmt.Errorf("codec: unsupported leaf type %T", v)
	}
}

func encodeInt(w io.Writer, v int64) error {
	switch {
	case v >= 0 && v <= mpPosFixMax:
		return writeByte(w, byte(v))
	case v < 0 && v >= -32:
		return writeByte(w, byte(int8(v)))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return writeBytes(w, []byte{mpInt8, byte(v)})
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return writeBytes(w, []byte{mpInt16, byte(v >> 8), byte(v)})
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return writeBytes(w, []byte{mpInt32, byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	default:
		return writeBytes(w, []byte{
			mpInt64,
			byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
			byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
		})
	}
}

func encodeFloat64(w io.Writer, v float64) error {
	bits := math.Float64bits(v)
	buf := make([]byte, 9)
	buf[0] = mpFloat64
	for i := 0; i < 8; i++ {
		buf[8-i] = byte(bits >> (8 * i))
	}
	return writeBytes(w, buf)
}

func encodeString(w io.Writer, s string) error {
	n := len(s)
	var header []byte
	switch {
	case n < 32:
		header = []byte{mpFixStrLo | byte(n)}
	case n < 1<<8:
		header = []byte{mpStr8, byte(n)}
	case n < 1<<16:
		header = []byte{mpStr16, byte(n >> 8), byte(n)}
	default:
		header = []byte{mpStr32, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}
	if err := writeBytes(w, header); err != nil {
		return err
	}
	return writeBytes(w, []byte(s))
}

func encodeBin(w io.Writer, b []byte) error {
	n := len(b)
	var header []byte
	switch {
	case n < 1<<8:
		header = []byte{mpBin8, byte(n)}
	case n < 1<<16:
		header = []byte{mpBin16, byte(n >> 8), byte(n)}
	default:
		header = []byte{mpBin32, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}
	if err := writeBytes(w, header); err != nil {
		return err
	}
	return writeBytes(w, b)
}

func encodeExt(w io.Writer, e value.ExtValue) error {
	n := len(e.Data)
	var header []byte
	switch n {
	case 1:
		header = []byte{mpFixExt1, byte(e.Type)}
	case 2:
		header = []byte{mpFixExt2, byte(e.Type)}
	case 4:
		header = []byte{mpFixExt4, byte(e.Type)}
	case 8:
		header = []byte{mpFixExt8, byte(e.Type)}
	case 16:
		header = []byte{mpFixExt16, byte(e.Type)}
	default:
		switch {
		case n < 1<<8:
			header = []byte{mpExt8, byte(n), byte(e.Type)}
		case n < 1<<16:
			header = []byte{mpExt16, byte(n >> 8), byte(n), byte(e.Type)}
		default:
			header = []byte{mpExt32, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n), byte(e.Type)}
		}
	}
	if err := writeBytes(w, header); err != nil {
		return err
	}
	return writeBytes(w, e.Data)
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func (nativeCodec) Decode(data []byte) (any, error) {
	d := &decodeState{data: data}
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(data)-d.pos)
	}
	return v, nil
}

func (nativeCodec) DecodeN(data []byte, n int) ([]any, error) {
	d := &decodeState{data: data}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (nativeCodec) DecodeSkipping(data []byte) (any, int, error) {
	d := &decodeState{data: data}
	v, err := d.decodeValue()
	if err != nil {
		return nil, 0, err
	}
	return v, d.pos, nil
}

// decodeState walks a byte slice left to right, the way the packer walked
// the original value left to right while writing it.
type decodeState struct {
	data []byte
	pos  int
}

func (d *decodeState) need(n int) error {
	if d.pos+n > len(d.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrDecode, n, d.pos, len(d.data)-d.pos)
	}
	return nil
}

func (d *decodeState) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decodeState) readN(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decodeState) readUintN(n int) (uint64, error) {
	b, err := d.readN(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func (d *decodeState) decodeValue() (any, error) {
	code, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch {
	case code <= mpPosFixMax:
		return int64(code), nil
	case code >= mpNegFixLo:
		return int64(int8(code)), nil
	case code >= mpFixMapLo && code <= mpFixMapHi:
		return d.decodeMap(int(code & 0x0f))
	case code >= mpFixArrLo && code <= mpFixArrHi:
		return d.decodeArray(int(code & 0x0f))
	case code >= mpFixStrLo && code <= mpFixStrHi:
		return d.decodeStr(int(code & 0x1f))
	}

	switch code {
	case mpNil:
		return nil, nil
	case mpFalse:
		return false, nil
	case mpTrue:
		return true, nil
	case mpBin8:
		return d.decodeBinLen(1)
	case mpBin16:
		return d.decodeBinLen(2)
	case mpBin32:
		return d.decodeBinLen(4)
	case mpExt8:
		return d.decodeExtLen(1)
	case mpExt16:
		return d.decodeExtLen(2)
	case mpExt32:
		return d.decodeExtLen(4)
	case mpFloat32:
		u, err := d.readUintN(4)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(uint32(u))), nil
	case mpFloat64:
		u, err := d.readUintN(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(u), nil
	case mpUint8, mpUint16, mpUint32, mpUint64:
		n := 1 << (code - mpUint8)
		u, err := d.readUintN(n)
		if err != nil {
			return nil, err
		}
		return int64(u), nil
	case mpInt8:
		u, err := d.readUintN(1)
		if err != nil {
			return nil, err
		}
		return int64(int8(u)), nil
	case mpInt16:
		u, err := d.readUintN(2)
		if err != nil {
			return nil, err
		}
		return int64(int16(u)), nil
	case mpInt32:
		u, err := d.readUintN(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(u)), nil
	case mpInt64:
		u, err := d.readUintN(8)
		if err != nil {
			return nil, err
		}
		return int64(u), nil
	case mpFixExt1:
		return d.decodeFixExt(1)
	case mpFixExt2:
		return d.decodeFixExt(2)
	case mpFixExt4:
		return d.decodeFixExt(4)
	case mpFixExt8:
		return d.decodeFixExt(8)
	case mpFixExt16:
		return d.decodeFixExt(16)
	case mpStr8:
		return d.decodeStrLen(1)
	case mpStr16:
		return d.decodeStrLen(2)
	case mpStr32:
		return d.decodeStrLen(4)
	case mpArray16:
		return d.decodeArrayLen(2)
	case mpArray32:
		return d.decodeArrayLen(4)
	case mpMap16:
		return d.decodeMapLen(2)
	case mpMap32:
		return d.decodeMapLen(4)
	}

	return nil, fmt.Errorf("%w: unrecognised leading byte 0x%02x", ErrDecode, code)
}

func (d *decodeState) decodeStr(n int) (string, error) {
	b, err := d.readN(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decodeState) decodeStrLen(widthBytes int) (string, error) {
	n, err := d.readUintN(widthBytes)
	if err != nil {
		return "", err
	}
	return d.decodeStr(int(n))
}

func (d *decodeState) decodeBinLen(widthBytes int) ([]byte, error) {
	n, err := d.readUintN(widthBytes)
	if err != nil {
		return nil, err
	}
	b, err := d.readN(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (d *decodeState) decodeExtLen(widthBytes int) (value.ExtValue, error) {
	n, err := d.readUintN(widthBytes)
	if err != nil {
		return value.ExtValue{}, err
	}
	typeByte, err := d.readByte()
	if err != nil {
		return value.ExtValue{}, err
	}
	data, err := d.readN(int(n))
	if err != nil {
		return value.ExtValue{}, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return value.ExtValue{Type: int8(typeByte), Data: out}, nil
}

func (d *decodeState) decodeFixExt(n int) (value.ExtValue, error) {
	typeByte, err := d.readByte()
	if err != nil {
		return value.ExtValue{}, err
	}
	data, err := d.readN(n)
	if err != nil {
		return value.ExtValue{}, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return value.ExtValue{Type: int8(typeByte), Data: out}, nil
}

func (d *decodeState) decodeArrayLen(widthBytes int) (any, error) {
	n, err := d.readUintN(widthBytes)
	if err != nil {
		return nil, err
	}
	return d.decodeArray(int(n))
}

func (d *decodeState) decodeArray(n int) (any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *decodeState) decodeMapLen(widthBytes int) (any, error) {
	n, err := d.readUintN(widthBytes)
	if err != nil {
		return nil, err
	}
	return d.decodeMap(int(n))
}

func (d *decodeState) decodeMap(n int) (any, error) {
	om := value.NewOrderedMap()
	for i := 0; i < n; i++ {
		k, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string map key %T", ErrDecode, k)
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		om.Set(key, v)
	}
	return om, nil
}
