package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// JSONCodec is the required JSON codec (0x0001, §4.2). Canonical rules:
// UTF-8, no BOM, and base64 for inline attachment bytes. Map keys are
// emitted in encoding/json's sorted order, not insertion order (allowed —
// §4.2 only says key order is semantically irrelevant).
//
// Grounded on the teacher's JSONCodec (codec/json_codec.go), a one-line
// wrapper over encoding/json; generalized to Ether's richer shape with an
// explicit wire struct instead of marshaling RPCMessage directly.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (c *JSONCodec) Name() string   { return "JSON" }
func (c *JSONCodec) ID() xcp.CodecID { return xcp.CodecJSON }
func (c *JSONCodec) IsBinary() bool  { return false }

type jsonAttachment struct {
	ID          string   `json:"id"`
	URI         string   `json:"uri,omitempty"`
	InlineBytes string   `json:"inline_bytes,omitempty"` // base64
	MediaType   string   `json:"media_type"`
	Codec       string   `json:"codec"`
	Shape       []uint32 `json:"shape,omitempty"`
	DType       string   `json:"dtype"`
	SizeBytes   uint64   `json:"size_bytes"`
}

type jsonEther struct {
	Kind          string                    `json:"kind"`
	SchemaVersion uint32                    `json:"schema_version"`
	Payload       map[string]ether.Value    `json:"payload"`
	Metadata      map[string]ether.Value    `json:"metadata"`
	ExtraFields   map[string]ether.Value    `json:"extra_fields,omitempty"`
	Attachments   []jsonAttachment          `json:"attachments,omitempty"`
}

func (c *JSONCodec) Encode(e *ether.Ether) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("codec(json): %w", err)
	}
	je := jsonEther{
		Kind:          e.Kind,
		SchemaVersion: e.SchemaVersion,
		Payload:       e.Payload,
		Metadata:      e.Metadata,
		ExtraFields:   e.ExtraFields,
	}
	for _, a := range e.Attachments {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("codec(json): %w", err)
		}
		ja := jsonAttachment{
			ID:        a.ID,
			URI:       a.URI,
			MediaType: a.MediaType,
			Codec:     a.Codec,
			Shape:     a.Shape,
			DType:     a.DType,
			SizeBytes: a.SizeBytes,
		}
		if a.IsInline() {
			ja.InlineBytes = base64.StdEncoding.EncodeToString(a.InlineBytes)
		}
		je.Attachments = append(je.Attachments, ja)
	}
	return json.Marshal(je)
}

func (c *JSONCodec) Decode(data []byte) (*ether.Ether, error) {
	var je jsonEther
	if err := json.Unmarshal(data, &je); err != nil {
		return nil, fmt.Errorf("codec(json): %w", err)
	}
	e := &ether.Ether{
		Kind:          je.Kind,
		SchemaVersion: je.SchemaVersion,
		Payload:       je.Payload,
		Metadata:      je.Metadata,
		ExtraFields:   je.ExtraFields,
	}
	if e.Payload == nil {
		e.Payload = map[string]ether.Value{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]ether.Value{}
	}
	for _, ja := range je.Attachments {
		a := ether.Attachment{
			ID:        ja.ID,
			URI:       ja.URI,
			MediaType: ja.MediaType,
			Codec:     ja.Codec,
			Shape:     ja.Shape,
			DType:     ja.DType,
			SizeBytes: ja.SizeBytes,
		}
		if ja.InlineBytes != "" {
			raw, err := base64.StdEncoding.DecodeString(ja.InlineBytes)
			if err != nil {
				return nil, fmt.Errorf("codec(json): attachment %q: bad base64: %w", ja.ID, err)
			}
			a.InlineBytes = raw
		}
		e.Attachments = append(e.Attachments, a)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("codec(json): decoded ether invalid: %w", err)
	}
	return e, nil
}
