package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/schema"
)

func sampleHeader() Header {
	return Header{
		ChannelID: 1,
		MsgType:   uint16(xcp.MsgDataMin),
		BodyCodec: uint16(xcp.CodecJSON),
		SchemaKey: schema.New("agents.chat", "message", 1, 0, []byte(`{}`)),
		MsgID:     42,
		InReplyTo: 0,
		Tags:      []Tag{{Key: "trace_id", Value: "abc123"}},
	}
}

func TestPackParseRoundTrip(t *testing.T) {
	h := sampleHeader()
	payload := []byte("hello, xcp")

	buf, err := Pack(h, payload, 0)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	f, err := Parse(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", f.Payload, payload)
	}
	if f.Header.MsgID != h.MsgID || f.Header.ChannelID != h.ChannelID {
		t.Fatalf("header mismatch: got %+v want %+v", f.Header, h)
	}
	if len(f.Header.Tags) != 1 || f.Header.Tags[0].Key != "trace_id" {
		t.Fatalf("expect tag round trip, got %+v", f.Header.Tags)
	}
}

func TestParseBadMagicConsumesOnlyFourBytes(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	r := bytes.NewReader(buf)
	_, err := Parse(r, 0)
	if err != ErrBadMagic {
		t.Fatalf("expect ErrBadMagic, got %v", err)
	}
	if r.Len() != len(buf)-4 {
		t.Fatalf("expect only 4 bytes consumed on bad magic, %d remain of %d", r.Len(), len(buf))
	}
}

func TestParseCRCMismatch(t *testing.T) {
	h := sampleHeader()
	buf, err := Pack(h, []byte("payload"), 0)
	if err != nil {
		t.Fatal(err)
	}
	buf[len(buf)-1] ^= 0xFF // flip a bit in the trailing CRC

	if _, err := Parse(bytes.NewReader(buf), 0); err != ErrCrcMismatch {
		t.Fatalf("expect ErrCrcMismatch, got %v", err)
	}
}

func TestParseCorruptedPayloadDetected(t *testing.T) {
	h := sampleHeader()
	buf, err := Pack(h, []byte("payload"), 0)
	if err != nil {
		t.Fatal(err)
	}
	// Flip a bit inside the payload region, after the header, before CRC.
	buf[len(buf)-5] ^= 0x01

	if _, err := Parse(bytes.NewReader(buf), 0); err != ErrCrcMismatch {
		t.Fatalf("expect ErrCrcMismatch on corrupted payload, got %v", err)
	}
}

func TestLargeFlagForcedIsHonoredOnParse(t *testing.T) {
	h := sampleHeader()
	payload := []byte("small, but force LARGE for width test")
	buf, err := Pack(h, payload, xcp.FlagLarge)
	if err != nil {
		t.Fatal(err)
	}
	f, err := Parse(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Flags&xcp.FlagLarge == 0 {
		t.Fatal("expect LARGE flag to round trip")
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatal("expect payload to round trip under LARGE framing")
	}
}

func TestParseFrameTooLarge(t *testing.T) {
	h := sampleHeader()
	buf, err := Pack(h, make([]byte, 128), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(bytes.NewReader(buf), 64); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expect ErrFrameTooLarge, got %v", err)
	}
}

func TestHeaderBinaryRoundTrip(t *testing.T) {
	h := sampleHeader()
	encoded := h.EncodeBinary()
	decoded, err := DecodeBinary(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.MsgID != h.MsgID || decoded.SchemaKey != h.SchemaKey {
		t.Fatalf("binary header round trip mismatch: got %+v want %+v", decoded, h)
	}
}

func TestHeaderJSONRoundTrip(t *testing.T) {
	h := sampleHeader()
	encoded, err := h.EncodeJSON()
	if err != nil {
		t.Fatal(err)
	}
	if encoded[0] != '{' {
		t.Fatalf("expect JSON header to start with '{', got %q", encoded[0])
	}
	decoded, err := DecodeAuto(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.MsgID != h.MsgID || decoded.SchemaKey.Major != h.SchemaKey.Major {
		t.Fatalf("JSON header round trip mismatch: got %+v want %+v", decoded, h)
	}
}
