package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// ArrowIPCCodec implements the optional ARROW_IPC codec (0x0020, §4.2): the
// body is a self-contained columnar stream, with schema metadata mapped to
// Ether metadata and payload columns mapped to payload.* (§4.2, §9 open
// question (b) — on a mismatch between this metadata and the session's
// SchemaKey, the schema registry is authoritative).
//
// No Arrow Go binding (apache/arrow/go or similar) appears anywhere in the
// retrieval pack, so this codec does not parse Arrow's internal flatbuffer
// IPC layout. It frames a caller-supplied, already-serialized Arrow IPC
// stream (payload key ArrowIPCKeyStream) behind a small length-prefixed
// metadata header, preserving the wire contract without reimplementing an
// Arrow reader/writer from scratch (see DESIGN.md).
type ArrowIPCCodec struct{}

func NewArrowIPCCodec() *ArrowIPCCodec { return &ArrowIPCCodec{} }

func (c *ArrowIPCCodec) Name() string    { return "ARROW_IPC" }
func (c *ArrowIPCCodec) ID() xcp.CodecID { return xcp.CodecArrowIPC }
func (c *ArrowIPCCodec) IsBinary() bool  { return true }

// ArrowIPCKeyStream is the payload key holding the raw Arrow IPC stream bytes.
const ArrowIPCKeyStream = "arrow_stream"

func (c *ArrowIPCCodec) Encode(e *ether.Ether) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("codec(arrow_ipc): %w", err)
	}
	streamVal, ok := e.Payload[ArrowIPCKeyStream]
	if !ok {
		return nil, fmt.Errorf("codec(arrow_ipc): payload missing %q", ArrowIPCKeyStream)
	}
	stream, ok := streamVal.AsBytes()
	if !ok {
		return nil, fmt.Errorf("codec(arrow_ipc): %q must be bytes", ArrowIPCKeyStream)
	}

	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("codec(arrow_ipc): metadata: %w", err)
	}

	out := make([]byte, 4+len(metaJSON)+len(stream))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(metaJSON)))
	copy(out[4:], metaJSON)
	copy(out[4+len(metaJSON):], stream)
	return out, nil
}

func (c *ArrowIPCCodec) Decode(data []byte) (*ether.Ether, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec(arrow_ipc): frame too short for metadata length prefix")
	}
	metaLen := binary.LittleEndian.Uint32(data[0:4])
	if uint64(4)+uint64(metaLen) > uint64(len(data)) {
		return nil, fmt.Errorf("codec(arrow_ipc): metadata length %d exceeds frame", metaLen)
	}
	var meta map[string]ether.Value
	if metaLen > 0 {
		if err := json.Unmarshal(data[4:4+metaLen], &meta); err != nil {
			return nil, fmt.Errorf("codec(arrow_ipc): metadata: %w", err)
		}
	}
	if meta == nil {
		meta = map[string]ether.Value{}
	}
	stream := append([]byte(nil), data[4+metaLen:]...)

	e := &ether.Ether{
		Kind:          "arrow_table",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			ArrowIPCKeyStream: ether.Bytes(stream),
		},
		Metadata: meta,
	}
	return e, nil
}
