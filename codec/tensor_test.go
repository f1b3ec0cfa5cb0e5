package codec

import (
	"testing"

	"github.com/maida-ai/xcp/ether"
)

func tensorEther(shape []int64, body []byte) *ether.Ether {
	shapeVals := make([]ether.Value, len(shape))
	for i, d := range shape {
		shapeVals[i] = ether.Int(d)
	}
	return &ether.Ether{
		Kind:          "tensor_f32",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			TensorKeyShape: ether.List(shapeVals),
			TensorKeyData:  ether.Bytes(body),
		},
		Metadata: map[string]ether.Value{},
	}
}

func TestTensorF32CodecRoundTrip(t *testing.T) {
	c := NewTensorF32Codec()
	body := make([]byte, 2*3*4) // 2x3 f32
	for i := range body {
		body[i] = byte(i)
	}
	e := tensorEther([]int64{2, 3}, body)

	data, err := c.Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	shape, _ := got.Payload[TensorKeyShape].AsList()
	if len(shape) != 2 {
		t.Fatalf("expect ndim 2, got %d", len(shape))
	}
	gotBody, _ := got.Payload[TensorKeyData].AsBytes()
	if len(gotBody) != len(body) {
		t.Fatalf("body length mismatch: got %d want %d", len(gotBody), len(body))
	}
}

func TestTensorCodecRejectsShapeLengthMismatch(t *testing.T) {
	c := NewTensorF32Codec()
	e := tensorEther([]int64{2, 3}, make([]byte, 4)) // wrong length
	if _, err := c.Encode(e); err == nil {
		t.Fatal("expect Encode to reject body length not matching shape*dtype")
	}
}

func TestTensorCodecRejectsWrongDTypeOnDecode(t *testing.T) {
	f32 := NewTensorF32Codec()
	body := make([]byte, 4)
	e := tensorEther([]int64{1}, body)
	data, err := f32.Encode(e)
	if err != nil {
		t.Fatal(err)
	}
	int8Codec := NewTensorInt8Codec()
	if _, err := int8Codec.Decode(data); err == nil {
		t.Fatal("expect Decode to reject a frame encoded under a different dtype")
	}
}

func TestTensorCodecDecodeTooShort(t *testing.T) {
	c := NewTensorF32Codec()
	if _, err := c.Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expect Decode to reject a frame shorter than the tensor header")
	}
}
