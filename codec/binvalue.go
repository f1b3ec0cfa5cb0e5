package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/maida-ai/xcp/ether"
)

// binWriter accumulates the binary encoding of a value tree. All multibyte
// integers are little-endian per §3.
type binWriter struct {
	buf bytes.Buffer
}

func (w *binWriter) putU8(v uint8)   { w.buf.WriteByte(v) }
func (w *binWriter) putU16(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *binWriter) putU32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *binWriter) putU64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *binWriter) putBytes(b []byte) {
	w.putU32(uint32(len(b)))
	w.buf.Write(b)
}
func (w *binWriter) putString(s string) { w.putBytes([]byte(s)) }

// putValue writes a tagged Value recursively.
func (w *binWriter) putValue(v ether.Value) error {
	w.putU8(uint8(v.Tag()))
	switch v.Tag() {
	case ether.TagNull:
	case ether.TagBool:
		b, _ := v.AsBool()
		if b {
			w.putU8(1)
		} else {
			w.putU8(0)
		}
	case ether.TagInt:
		i, _ := v.AsInt()
		w.putU64(uint64(i))
	case ether.TagFloat:
		f, _ := v.AsFloat()
		w.putU64(math.Float64bits(f))
	case ether.TagString:
		s, _ := v.AsString()
		w.putString(s)
	case ether.TagBytes:
		b, _ := v.AsBytes()
		w.putBytes(b)
	case ether.TagList:
		lst, _ := v.AsList()
		w.putU32(uint32(len(lst)))
		for _, item := range lst {
			if err := w.putValue(item); err != nil {
				return err
			}
		}
	case ether.TagMap:
		mp, _ := v.AsMap()
		w.putU32(uint32(len(mp)))
		for k, item := range mp {
			w.putString(k)
			if err := w.putValue(item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("codec: unknown value tag %d", v.Tag())
	}
	return nil
}

// binReader is a bounds-checked cursor over a binary-encoded value tree.
type binReader struct {
	data []byte
	off  int
}

func (r *binReader) need(n int) error {
	if r.off+n > len(r.data) {
		return fmt.Errorf("codec: binary value truncated (need %d bytes at offset %d, have %d)", n, r.off, len(r.data))
	}
	return nil
}

func (r *binReader) getU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *binReader) getU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *binReader) getU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *binReader) getU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

func (r *binReader) getBytes() ([]byte, error) {
	n, err := r.getU32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := append([]byte(nil), r.data[r.off:r.off+int(n)]...)
	r.off += int(n)
	return b, nil
}

func (r *binReader) getString() (string, error) {
	b, err := r.getBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *binReader) getValue() (ether.Value, error) {
	tag, err := r.getU8()
	if err != nil {
		return ether.Value{}, err
	}
	switch ether.Tag(tag) {
	case ether.TagNull:
		return ether.Null(), nil
	case ether.TagBool:
		b, err := r.getU8()
		if err != nil {
			return ether.Value{}, err
		}
		return ether.Bool(b != 0), nil
	case ether.TagInt:
		i, err := r.getU64()
		if err != nil {
			return ether.Value{}, err
		}
		return ether.Int(int64(i)), nil
	case ether.TagFloat:
		bits, err := r.getU64()
		if err != nil {
			return ether.Value{}, err
		}
		return ether.Float(math.Float64frombits(bits)), nil
	case ether.TagString:
		s, err := r.getString()
		if err != nil {
			return ether.Value{}, err
		}
		return ether.String(s), nil
	case ether.TagBytes:
		b, err := r.getBytes()
		if err != nil {
			return ether.Value{}, err
		}
		return ether.Bytes(b), nil
	case ether.TagList:
		n, err := r.getU32()
		if err != nil {
			return ether.Value{}, err
		}
		lst := make([]ether.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := r.getValue()
			if err != nil {
				return ether.Value{}, err
			}
			lst = append(lst, v)
		}
		return ether.List(lst), nil
	case ether.TagMap:
		n, err := r.getU32()
		if err != nil {
			return ether.Value{}, err
		}
		mp := make(map[string]ether.Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := r.getString()
			if err != nil {
				return ether.Value{}, err
			}
			v, err := r.getValue()
			if err != nil {
				return ether.Value{}, err
			}
			mp[k] = v
		}
		return ether.Map(mp), nil
	default:
		return ether.Value{}, fmt.Errorf("codec: unknown binary value tag %d", tag)
	}
}
