package codec

import (
	"testing"

	"github.com/maida-ai/xcp/ether"
)

func sampleEther() *ether.Ether {
	return &ether.Ether{
		Kind:          "agents.chat.message",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			"text":  ether.String("hello"),
			"count": ether.Int(3),
		},
		Metadata: map[string]ether.Value{
			"trace_id": ether.String("abc123"),
		},
		Attachments: []ether.Attachment{
			{ID: "a1", InlineBytes: []byte("blob"), MediaType: "application/octet-stream", DType: "uint8", SizeBytes: 4},
		},
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := NewJSONCodec()
	e := sampleEther()

	data, err := c.Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != e.Kind || got.SchemaVersion != e.SchemaVersion {
		t.Fatalf("mismatch: got %+v", got)
	}
	if !got.Payload["text"].Equal(e.Payload["text"]) {
		t.Fatal("payload text mismatch")
	}
	if !got.Payload["count"].Equal(e.Payload["count"]) {
		t.Fatal("payload count mismatch")
	}
	if len(got.Attachments) != 1 || string(got.Attachments[0].InlineBytes) != "blob" {
		t.Fatalf("attachment mismatch: got %+v", got.Attachments)
	}
}

func TestJSONCodecRejectsInvalidEther(t *testing.T) {
	c := NewJSONCodec()
	_, err := c.Encode(&ether.Ether{})
	if err == nil {
		t.Fatal("expect Encode to reject an Ether with no kind")
	}
}

func TestJSONCodecIdentity(t *testing.T) {
	c := NewJSONCodec()
	if c.Name() != "JSON" {
		t.Fatalf("unexpected name %q", c.Name())
	}
	if c.IsBinary() {
		t.Fatal("JSON codec must not be binary")
	}
}
