package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// MixedLatentCodec implements the optional MIXED_LATENT codec (0x0010,
// §4.2): a varuint count followed by <subtype u8, varuint len, bytes> per
// entry. It carries a heterogeneous bag of raw tensor blobs (e.g. several
// latent vectors of different dtypes) without the per-entry 40-byte header
// TensorCodec uses — subtype alone identifies the element type, and shape
// is left to the application (conventionally out-of-band via metadata).
type MixedLatentCodec struct{}

func NewMixedLatentCodec() *MixedLatentCodec { return &MixedLatentCodec{} }

func (c *MixedLatentCodec) Name() string    { return "MIXED_LATENT" }
func (c *MixedLatentCodec) ID() xcp.CodecID { return xcp.CodecMixedLatent }
func (c *MixedLatentCodec) IsBinary() bool  { return true }

// MixedLatentKeyEntries is the payload key holding the list of entries.
const MixedLatentKeyEntries = "entries"

// Sub-entry map keys.
const (
	mixedKeySubtype = "subtype"
	mixedKeyData    = "data"
)

func (c *MixedLatentCodec) Encode(e *ether.Ether) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("codec(mixed_latent): %w", err)
	}
	entriesVal, ok := e.Payload[MixedLatentKeyEntries]
	if !ok {
		return nil, fmt.Errorf("codec(mixed_latent): payload missing %q", MixedLatentKeyEntries)
	}
	entries, ok := entriesVal.AsList()
	if !ok {
		return nil, fmt.Errorf("codec(mixed_latent): %q must be a list", MixedLatentKeyEntries)
	}

	var varintBuf [binary.MaxVarintLen64]byte
	w := &binWriter{}
	n := binary.PutUvarint(varintBuf[:], uint64(len(entries)))
	w.buf.Write(varintBuf[:n])

	for i, ent := range entries {
		mp, ok := ent.AsMap()
		if !ok {
			return nil, fmt.Errorf("codec(mixed_latent): entries[%d] must be a map", i)
		}
		subtypeVal, ok := mp[mixedKeySubtype]
		if !ok {
			return nil, fmt.Errorf("codec(mixed_latent): entries[%d] missing %q", i, mixedKeySubtype)
		}
		subtype, ok := subtypeVal.AsInt()
		if !ok {
			return nil, fmt.Errorf("codec(mixed_latent): entries[%d].%s must be int", i, mixedKeySubtype)
		}
		dataVal, ok := mp[mixedKeyData]
		if !ok {
			return nil, fmt.Errorf("codec(mixed_latent): entries[%d] missing %q", i, mixedKeyData)
		}
		data, ok := dataVal.AsBytes()
		if !ok {
			return nil, fmt.Errorf("codec(mixed_latent): entries[%d].%s must be bytes", i, mixedKeyData)
		}
		w.putU8(uint8(subtype))
		n := binary.PutUvarint(varintBuf[:], uint64(len(data)))
		w.buf.Write(varintBuf[:n])
		w.buf.Write(data)
	}

	return w.buf.Bytes(), nil
}

func (c *MixedLatentCodec) Decode(data []byte) (*ether.Ether, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("codec(mixed_latent): malformed entry count varuint")
	}
	off := n
	entries := make([]ether.Value, 0, count)
	for i := uint64(0); i < count; i++ {
		if off+1 > len(data) {
			return nil, fmt.Errorf("codec(mixed_latent): truncated subtype at entry %d", i)
		}
		subtype := data[off]
		off++
		length, ln := binary.Uvarint(data[off:])
		if ln <= 0 {
			return nil, fmt.Errorf("codec(mixed_latent): malformed length varuint at entry %d", i)
		}
		off += ln
		if off+int(length) > len(data) {
			return nil, fmt.Errorf("codec(mixed_latent): truncated body at entry %d", i)
		}
		body := append([]byte(nil), data[off:off+int(length)]...)
		off += int(length)
		entries = append(entries, ether.Map(map[string]ether.Value{
			mixedKeySubtype: ether.Int(int64(subtype)),
			mixedKeyData:    ether.Bytes(body),
		}))
	}

	e := &ether.Ether{
		Kind:          "mixed_latent",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			MixedLatentKeyEntries: ether.List(entries),
		},
		Metadata: map[string]ether.Value{},
	}
	return e, nil
}
