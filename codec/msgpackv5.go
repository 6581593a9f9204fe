package codec

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/TLCFEM/msglc/value"
)

// V5 returns an alternate Codec backed by github.com/vmihailenco/msgpack/v5,
// mirroring the original implementation's choice of a second, swappable
// unpacker backend alongside its hand-rolled default (unpacker.py's
// MsgpackUnpacker next to MsgspecUnpacker). Unlike Native, this backend
// trusts the library's own container-length bookkeeping, so it is offered
// as an option for callers who already depend on msgpack/v5 elsewhere and
// want a single decoder in their binary, rather than as the default.
func V5() Codec {
	return msgpackV5Codec{}
}

type msgpackV5Codec struct{}

func (msgpackV5Codec) EncodeMapHeader(w io.Writer, n int) error {
	enc := msgpack.NewEncoder(w)
	return enc.EncodeMapLen(n)
}

func (msgpackV5Codec) EncodeArrayHeader(w io.Writer, n int) error {
	enc := msgpack.NewEncoder(w)
	return enc.EncodeArrayLen(n)
}

func (msgpackV5Codec) EncodeValue(w io.Writer, v any) error {
	enc := msgpack.NewEncoder(w)
	switch x := v.(type) {
	case value.ExtValue:
		if err := enc.EncodeExtHeader(int8(x.Type), len(x.Data)); err != nil {
			return err
		}
		_, err := w.Write(x.Data)
		return err
	default:
		return enc.Encode(normalizeForEncode(v))
	}
}

func normalizeForEncode(v any) any {
	if om, ok := value.ToOrderedMap(v); ok {
		m := make(map[string]any, om.Len())
		om.Range(func(k string, val any) bool {
			m[k] = normalizeForEncode(val)
			return true
		})
		return m
	}
	if seq, ok := v.([]any); ok {
		out := make([]any, len(seq))
		for i, e := range seq {
			out[i] = normalizeForEncode(e)
		}
		return out
	}
	return v
}

func (msgpackV5Codec) Decode(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return denormalizeFromDecode(v), nil
}

func (msgpackV5Codec) DecodeN(data []byte, n int) ([]any, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrDecode, i, err)
		}
		out[i] = denormalizeFromDecode(v)
	}
	return out, nil
}

func (msgpackV5Codec) DecodeSkipping(data []byte) (any, int, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	consumed := len(data) - r.Len()
	return denormalizeFromDecode(v), consumed, nil
}

// denormalizeFromDecode converts msgpack/v5's generic decode output
// (map[string]interface{}, []interface{}, int8/.../uint64) into msglc's
// Value shapes so both codec backends hand the packer and reader the same
// data model regardless of which one is configured.
func denormalizeFromDecode(v any) any {
	switch x := v.(type) {
	case map[string]any:
		om := value.NewOrderedMap()
		for _, k := range sortedStringKeys(x) {
			om.Set(k, denormalizeFromDecode(x[k]))
		}
		return om
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = denormalizeFromDecode(e)
		}
		return out
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case uint:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func sortedStringKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
