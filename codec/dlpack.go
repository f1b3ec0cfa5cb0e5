package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// DLPackCodec implements the optional DLPACK codec (0x0021, §4.2): the same
// 40-byte tensor header as TensorCodec, followed by an opaque DLPack
// capsule. No DLPack Go binding exists anywhere in the retrieval pack, so
// the capsule bytes are carried opaquely — this codec frames them, it does
// not interpret DLManagedTensor internals (see DESIGN.md).
//
// Per §4.2, the receiver MUST copy or consume the capsule before ACK. Decode
// copies the capsule bytes out of the input buffer, so the decoded Ether
// never aliases the received frame.
type DLPackCodec struct{}

func NewDLPackCodec() *DLPackCodec { return &DLPackCodec{} }

func (c *DLPackCodec) Name() string    { return "DLPACK" }
func (c *DLPackCodec) ID() xcp.CodecID { return xcp.CodecDLPack }
func (c *DLPackCodec) IsBinary() bool  { return true }

// DLPackKeyCapsule is the payload key holding the opaque DLPack capsule bytes.
const DLPackKeyCapsule = "capsule"

func (c *DLPackCodec) Encode(e *ether.Ether) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("codec(dlpack): %w", err)
	}
	shapeVal, ok := e.Payload[TensorKeyShape]
	if !ok {
		return nil, fmt.Errorf("codec(dlpack): payload missing %q", TensorKeyShape)
	}
	shapeList, ok := shapeVal.AsList()
	if !ok || len(shapeList) < 1 || len(shapeList) > 8 {
		return nil, fmt.Errorf("codec(dlpack): %q must be a list of 1..8 dims", TensorKeyShape)
	}
	capsuleVal, ok := e.Payload[DLPackKeyCapsule]
	if !ok {
		return nil, fmt.Errorf("codec(dlpack): payload missing %q", DLPackKeyCapsule)
	}
	capsule, ok := capsuleVal.AsBytes()
	if !ok {
		return nil, fmt.Errorf("codec(dlpack): %q must be bytes", DLPackKeyCapsule)
	}

	var dtype xcp.TensorDType
	if dv, ok := e.Payload[TensorKeyDType]; ok {
		if di, ok := dv.AsInt(); ok {
			dtype = xcp.TensorDType(di)
		}
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

	out := make([]byte, xcp.TensorHeaderSize+len(capsule))
	out[0] = uint8(len(shapeList))
	out[1] = uint8(dtype)
	out[2] = flags
	out[3] = 0
	off := 4
	for i := 0; i < 8; i++ {
		var dim uint32
		if i < len(shapeList) {
			if d, ok := shapeList[i].AsInt(); ok {
				dim = uint32(d)
			}
		}
		binary.LittleEndian.PutUint32(out[off:], dim)
		off += 4
	}
	binary.LittleEndian.PutUint32(out[off:], math.Float32bits(scale))
	off += 4
	copy(out[off:], capsule)
	return out, nil
}

func (c *DLPackCodec) Decode(data []byte) (*ether.Ether, error) {
	if len(data) < xcp.TensorHeaderSize {
		return nil, fmt.Errorf("codec(dlpack): frame shorter than tensor header (%d bytes)", len(data))
	}
	ndim := int(data[0])
	dtype := data[1]
	flags := data[2]
	if ndim < 1 || ndim > 8 {
		return nil, fmt.Errorf("codec(dlpack): invalid ndim %d", ndim)
	}
	off := 4
	shape := make([]ether.Value, ndim)
	for i := 0; i < ndim; i++ {
		dim := binary.LittleEndian.Uint32(data[off:])
		shape[i] = ether.Int(int64(dim))
		off += 4
	}
	off = 4 + 8*4
	scale := math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	capsule := append([]byte(nil), data[off:]...)

	e := &ether.Ether{
		Kind:          "dlpack_tensor",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			TensorKeyShape:   ether.List(shape),
			TensorKeyDType:   ether.Int(int64(dtype)),
			TensorKeyFlags:   ether.Int(int64(flags)),
			TensorKeyScale:   ether.Float(float64(scale)),
			DLPackKeyCapsule: ether.Bytes(capsule),
		},
		Metadata: map[string]ether.Value{},
	}
	return e, nil
}
