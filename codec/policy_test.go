package codec

import (
	"strings"
	"testing"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

func negotiatedSet(ids ...xcp.CodecID) map[xcp.CodecID]bool {
	m := make(map[xcp.CodecID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestSelectAutoPicksJSONForSmallPayload(t *testing.T) {
	r := NewRegistry()
	e := sampleEther()
	c, err := Select(r, negotiatedSet(xcp.CodecJSON, xcp.CodecBinaryStruct), e, xcp.PolicyAuto)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if c.ID() != xcp.CodecJSON {
		t.Fatalf("expect JSON for a small payload, got %s", c.Name())
	}
}

func TestSelectAutoPicksBinaryStructForMidSizedPayload(t *testing.T) {
	r := NewRegistry()
	e := &ether.Ether{
		Kind:          "agents.chat.message",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			"blob": ether.String(strings.Repeat("x", 3*1024)),
		},
		Metadata: map[string]ether.Value{},
	}
	c, err := Select(r, negotiatedSet(xcp.CodecJSON, xcp.CodecBinaryStruct), e, xcp.PolicyAuto)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if c.ID() != xcp.CodecBinaryStruct {
		t.Fatalf("expect BINARY_STRUCT for a mid-sized payload, got %s", c.Name())
	}
}

func TestSelectJSONOnlyPolicy(t *testing.T) {
	r := NewRegistry()
	e := sampleEther()
	c, err := Select(r, negotiatedSet(xcp.CodecJSON, xcp.CodecBinaryStruct), e, xcp.PolicyJSONOnly)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != xcp.CodecJSON {
		t.Fatalf("expect JSON under JsonOnly policy, got %s", c.Name())
	}

	if _, err := Select(r, negotiatedSet(xcp.CodecBinaryStruct), e, xcp.PolicyJSONOnly); err == nil {
		t.Fatal("expect JsonOnly policy to fail when JSON is not negotiated")
	}
}

func TestSelectBinaryRequiredPolicy(t *testing.T) {
	r := NewRegistry()
	e := sampleEther()
	c, err := Select(r, negotiatedSet(xcp.CodecJSON, xcp.CodecBinaryStruct), e, xcp.PolicyBinaryRequired)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != xcp.CodecBinaryStruct {
		t.Fatalf("expect BINARY_STRUCT under BinaryRequired policy, got %s", c.Name())
	}

	if _, err := Select(r, negotiatedSet(xcp.CodecJSON), e, xcp.PolicyBinaryRequired); err == nil {
		t.Fatal("expect BinaryRequired policy to fail when no binary codec is negotiated")
	}
}

func TestSelectKindHintRequiresExactCodec(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewTensorF32Codec())
	e := &ether.Ether{
		Kind:          "tensor_f32",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			TensorKeyShape: ether.List([]ether.Value{ether.Int(1)}),
			TensorKeyData:  ether.Bytes(make([]byte, 4)),
		},
		Metadata: map[string]ether.Value{},
	}
	c, err := Select(r, negotiatedSet(xcp.CodecJSON, xcp.CodecTensorF32), e, xcp.PolicyAuto)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != xcp.CodecTensorF32 {
		t.Fatalf("expect tensor_f32 kind to force TENSOR_F32 codec, got %s", c.Name())
	}

	if _, err := Select(r, negotiatedSet(xcp.CodecJSON), e, xcp.PolicyAuto); err == nil {
		t.Fatal("expect Select to fail when the kind-mandated codec is not negotiated")
	}
}
