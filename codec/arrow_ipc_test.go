package codec

import (
	"bytes"
	"testing"

	"github.com/maida-ai/xcp/ether"
)

func TestArrowIPCCodecRoundTrip(t *testing.T) {
	c := NewArrowIPCCodec()
	e := &ether.Ether{
		Kind:          "arrow_table",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			ArrowIPCKeyStream: ether.Bytes([]byte("pretend-arrow-ipc-stream-bytes")),
		},
		Metadata: map[string]ether.Value{
			"num_rows": ether.Int(10),
		},
	}

	data, err := c.Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	stream, _ := got.Payload[ArrowIPCKeyStream].AsBytes()
	if !bytes.Equal(stream, []byte("pretend-arrow-ipc-stream-bytes")) {
		t.Fatalf("stream mismatch: got %q", stream)
	}
	rows, _ := got.Metadata["num_rows"].AsInt()
	if rows != 10 {
		t.Fatalf("expect metadata num_rows 10, got %d", rows)
	}
}

func TestArrowIPCCodecDecodeShortFrame(t *testing.T) {
	c := NewArrowIPCCodec()
	if _, err := c.Decode([]byte{1, 2}); err == nil {
		t.Fatal("expect Decode to reject a frame shorter than the length prefix")
	}
}

func TestArrowIPCCodecEncodeMissingStream(t *testing.T) {
	c := NewArrowIPCCodec()
	e := &ether.Ether{
		Kind:          "arrow_table",
		SchemaVersion: 1,
		Payload:       map[string]ether.Value{},
		Metadata:      map[string]ether.Value{},
	}
	if _, err := c.Encode(e); err == nil {
		t.Fatal("expect Encode to reject a payload missing arrow_stream")
	}
}
