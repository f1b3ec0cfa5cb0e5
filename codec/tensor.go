package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// Well-known payload keys a tensor-kind Ether carries (optional codecs,
// §4.2). Not enforced outside this package's codecs.
const (
	TensorKeyShape = "shape"
	TensorKeyDType = "dtype"
	TensorKeyFlags = "flags"
	TensorKeyScale = "scale"
	TensorKeyData  = "data"
)

// dtypeElemSize maps a TensorDType to its raw element byte width.
func dtypeElemSize(dt xcp.TensorDType) int {
	switch dt {
	case xcp.DTypeF32:
		return 4
	case xcp.DTypeF16:
		return 2
	case xcp.DTypeInt8:
		return 1
	default:
		return 0
	}
}

// TensorCodec implements the fixed 40-byte tensor header + raw
// little-endian body framing shared by TENSOR_F32/F16/INT8 (§3, §4.2). The
// element encoding inside the body is opaque to this codec — it only
// frames and validates shape-vs-length, never interprets the bits.
type TensorCodec struct {
	id    xcp.CodecID
	name  string
	dtype xcp.TensorDType
}

func NewTensorF32Codec() *TensorCodec {
	return &TensorCodec{id: xcp.CodecTensorF32, name: "TENSOR_F32", dtype: xcp.DTypeF32}
}
func NewTensorF16Codec() *TensorCodec {
	return &TensorCodec{id: xcp.CodecTensorF16, name: "TENSOR_F16", dtype: xcp.DTypeF16}
}
func NewTensorInt8Codec() *TensorCodec {
	return &TensorCodec{id: xcp.CodecTensorInt8, name: "TENSOR_INT8", dtype: xcp.DTypeInt8}
}

func (c *TensorCodec) Name() string        { return c.name }
func (c *TensorCodec) ID() xcp.CodecID     { return c.id }
func (c *TensorCodec) IsBinary() bool      { return true }

func (c *TensorCodec) Encode(e *ether.Ether) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("codec(%s): %w", c.name, err)
	}
	shapeVal, ok := e.Payload[TensorKeyShape]
	if !ok {
		return nil, fmt.Errorf("codec(%s): payload missing %q", c.name, TensorKeyShape)
	}
	shapeList, ok := shapeVal.AsList()
	if !ok {
		return nil, fmt.Errorf("codec(%s): %q must be a list", c.name, TensorKeyShape)
	}
	if len(shapeList) < 1 || len(shapeList) > 8 {
		return nil, fmt.Errorf("codec(%s): ndim must be 1..8, got %d", c.name, len(shapeList))
	}
	var shape [8]uint32
	numel := uint64(1)
	for i, v := range shapeList {
		dim, ok := v.AsInt()
		if !ok || dim < 0 {
			return nil, fmt.Errorf("codec(%s): shape[%d] must be a non-negative int", c.name, i)
		}
		shape[i] = uint32(dim)
		numel *= uint64(dim)
	}

	dataVal, ok := e.Payload[TensorKeyData]
	if !ok {
		return nil, fmt.Errorf("codec(%s): payload missing %q", c.name, TensorKeyData)
	}
	body, ok := dataVal.AsBytes()
	if !ok {
		return nil, fmt.Errorf("codec(%s): %q must be bytes", c.name, TensorKeyData)
	}
	elemSize := dtypeElemSize(c.dtype)
	if want := numel * uint64(elemSize); uint64(len(body)) != want {
		return nil, fmt.Errorf("codec(%s): body length %d does not match shape*dtype (%d)", c.name, len(body), want)
	}

	var flags uint8
	if fv, ok := e.Payload[TensorKeyFlags]; ok {
		if fi, ok := fv.AsInt(); ok {
			flags = uint8(fi)
		}
	}
	var scale float32 = 1.0
	if sv, ok := e.Payload[TensorKeyScale]; ok {
		if sf, ok := sv.AsFloat(); ok {
			scale = float32(sf)
		}
	}

	out := make([]byte, xcp.TensorHeaderSize+len(body))
	out[0] = uint8(len(shapeList))
	out[1] = uint8(c.dtype)
	out[2] = flags
	out[3] = 0 // pad
	off := 4
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(out[off:], shape[i])
		off += 4
	}
	binary.LittleEndian.PutUint32(out[off:], math.Float32bits(scale))
	off += 4
	copy(out[off:], body)
	return out, nil
}

func (c *TensorCodec) Decode(data []byte) (*ether.Ether, error) {
	if len(data) < xcp.TensorHeaderSize {
		return nil, fmt.Errorf("codec(%s): frame shorter than tensor header (%d bytes)", c.name, len(data))
	}
	ndim := int(data[0])
	dtype := xcp.TensorDType(data[1])
	flags := data[2]
	if ndim < 1 || ndim > 8 {
		return nil, fmt.Errorf("codec(%s): invalid ndim %d", c.name, ndim)
	}
	if dtype != c.dtype {
		return nil, fmt.Errorf("codec(%s): header dtype %d does not match codec dtype %d", c.name, dtype, c.dtype)
	}
	off := 4
	shape := make([]ether.Value, ndim)
	numel := uint64(1)
	for i := 0; i < ndim; i++ {
		dim := binary.LittleEndian.Uint32(data[off:])
		shape[i] = ether.Int(int64(dim))
		numel *= uint64(dim)
		off += 4
	}
	off = 4 + 8*4
	scale := math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	body := data[off:]
	elemSize := dtypeElemSize(c.dtype)
	if want := numel * uint64(elemSize); uint64(len(body)) != want {
		return nil, fmt.Errorf("codec(%s): body length %d does not match shape*dtype (%d)", c.name, len(body), want)
	}

	e := &ether.Ether{
		Kind:          "tensor",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			TensorKeyShape: ether.List(shape),
			TensorKeyDType: ether.String(c.name),
			TensorKeyFlags: ether.Int(int64(flags)),
			TensorKeyScale: ether.Float(float64(scale)),
			TensorKeyData:  ether.Bytes(body),
		},
		Metadata: map[string]ether.Value{},
	}
	return e, nil
}
