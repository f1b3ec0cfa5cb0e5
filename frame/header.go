package frame

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/maida-ai/xcp/schema"
)

// headerTagBinary is the leading byte of a binary-form header. It is
// chosen distinct from '{' (0x7B) so a parser can tell the two header forms
// apart by their first byte alone (§4.1).
const headerTagBinary = 0x01

// Tag is one (text, text) entry of a FrameHeader's ordered tag list.
type Tag struct {
	Key   string
	Value string
}

// Header is the semantic content of a frame's variable header region (§3
// FrameHeader). SchemaKey is the zero key on control frames.
type Header struct {
	ChannelID  uint32
	MsgType    uint16
	BodyCodec  uint16
	SchemaKey  schema.Key
	MsgID      uint64
	InReplyTo  uint64
	Tags       []Tag
}

// EncodeBinary serializes h in the normative little-endian binary form
// (§4.1). All multibyte integers are little-endian per §3.
func (h Header) EncodeBinary() []byte {
	size := 1 + 4 + 2 + 2 + (4 + 4 + 2 + 2 + 16) + 8 + 8 + 2
	for _, t := range h.Tags {
		size += 2 + len(t.Key) + 2 + len(t.Value)
	}
	buf := make([]byte, size)
	off := 0
	buf[off] = headerTagBinary
	off++
	binary.LittleEndian.PutUint32(buf[off:], h.ChannelID)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], h.MsgType)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], h.BodyCodec)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], h.SchemaKey.NSHash)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.SchemaKey.KindID)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], h.SchemaKey.Major)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], h.SchemaKey.Minor)
	off += 2
	copy(buf[off:off+16], h.SchemaKey.Hash128[:])
	off += 16
	binary.LittleEndian.PutUint64(buf[off:], h.MsgID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.InReplyTo)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(h.Tags)))
	off += 2
	for _, t := range h.Tags {
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(t.Key)))
		off += 2
		copy(buf[off:off+len(t.Key)], t.Key)
		off += len(t.Key)
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(t.Value)))
		off += 2
		copy(buf[off:off+len(t.Value)], t.Value)
		off += len(t.Value)
	}
	return buf
}

// minBinaryHeaderLen is the encoded size of a binary header with zero tags.
const minBinaryHeaderLen = 1 + 4 + 2 + 2 + (4 + 4 + 2 + 2 + 16) + 8 + 8 + 2

// DecodeBinary parses the normative binary header form produced by
// EncodeBinary.
func DecodeBinary(data []byte) (Header, error) {
	if len(data) < minBinaryHeaderLen {
		return Header{}, fmt.Errorf("%w: binary header short: %d bytes", ErrHeaderMalformed, len(data))
	}
	if data[0] != headerTagBinary {
		return Header{}, fmt.Errorf("%w: bad binary header tag byte", ErrHeaderMalformed)
	}
	off := 1
	var h Header
	h.ChannelID = binary.LittleEndian.Uint32(data[off:])
	off += 4
	h.MsgType = binary.LittleEndian.Uint16(data[off:])
	off += 2
	h.BodyCodec = binary.LittleEndian.Uint16(data[off:])
	off += 2
	h.SchemaKey.NSHash = binary.LittleEndian.Uint32(data[off:])
	off += 4
	h.SchemaKey.KindID = binary.LittleEndian.Uint32(data[off:])
	off += 4
	h.SchemaKey.Major = binary.LittleEndian.Uint16(data[off:])
	off += 2
	h.SchemaKey.Minor = binary.LittleEndian.Uint16(data[off:])
	off += 2
	copy(h.SchemaKey.Hash128[:], data[off:off+16])
	off += 16
	h.MsgID = binary.LittleEndian.Uint64(data[off:])
	off += 8
	h.InReplyTo = binary.LittleEndian.Uint64(data[off:])
	off += 8
	tagCount := binary.LittleEndian.Uint16(data[off:])
	off += 2
	h.Tags = make([]Tag, 0, tagCount)
	for i := uint16(0); i < tagCount; i++ {
		if off+2 > len(data) {
			return Header{}, fmt.Errorf("%w: truncated tag key length", ErrHeaderMalformed)
		}
		klen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+klen > len(data) {
			return Header{}, fmt.Errorf("%w: truncated tag key", ErrHeaderMalformed)
		}
		key := string(data[off : off+klen])
		off += klen
		if off+2 > len(data) {
			return Header{}, fmt.Errorf("%w: truncated tag value length", ErrHeaderMalformed)
		}
		vlen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+vlen > len(data) {
			return Header{}, fmt.Errorf("%w: truncated tag value", ErrHeaderMalformed)
		}
		val := string(data[off : off+vlen])
		off += vlen
		h.Tags = append(h.Tags, Tag{Key: key, Value: val})
	}
	return h, nil
}

// jsonHeader is the interop-only JSON fallback header form (§4.1, §9).
// Implementations MAY refuse it when codec_policy = BinaryRequired.
type jsonHeader struct {
	ChannelID uint32     `json:"channel_id"`
	MsgType   uint16     `json:"msg_type"`
	BodyCodec uint16     `json:"body_codec"`
	NSHash    uint32     `json:"ns_hash"`
	KindID    uint32     `json:"kind_id"`
	Major     uint16     `json:"major"`
	Minor     uint16     `json:"minor"`
	Hash128   string     `json:"hash128"` // hex
	MsgID     uint64     `json:"msg_id"`
	InReplyTo uint64     `json:"in_reply_to"`
	Tags      [][2]string `json:"tags,omitempty"`
}

// EncodeJSON serializes h as the interop JSON fallback form. The first byte
// of the result is always '{', which is how DecodeAuto tells it apart from
// the binary form.
func (h Header) EncodeJSON() ([]byte, error) {
	jh := jsonHeader{
		ChannelID: h.ChannelID,
		MsgType:   h.MsgType,
		BodyCodec: h.BodyCodec,
		NSHash:    h.SchemaKey.NSHash,
		KindID:    h.SchemaKey.KindID,
		Major:     h.SchemaKey.Major,
		Minor:     h.SchemaKey.Minor,
		Hash128:   fmt.Sprintf("%x", h.SchemaKey.Hash128),
		MsgID:     h.MsgID,
		InReplyTo: h.InReplyTo,
	}
	for _, t := range h.Tags {
		jh.Tags = append(jh.Tags, [2]string{t.Key, t.Value})
	}
	return json.Marshal(jh)
}

// DecodeJSON parses the JSON fallback header form.
func DecodeJSON(data []byte) (Header, error) {
	var jh jsonHeader
	if err := json.Unmarshal(data, &jh); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrHeaderMalformed, err)
	}
	var hash [16]byte
	if jh.Hash128 != "" {
		n := 0
		for i := 0; i+1 < len(jh.Hash128) && n < 16; i += 2 {
			var b byte
			if _, err := fmt.Sscanf(jh.Hash128[i:i+2], "%02x", &b); err != nil {
				return Header{}, fmt.Errorf("%w: bad hash128 hex: %v", ErrHeaderMalformed, err)
			}
			hash[n] = b
			n++
		}
	}
	h := Header{
		ChannelID: jh.ChannelID,
		MsgType:   jh.MsgType,
		BodyCodec: jh.BodyCodec,
		SchemaKey: schema.Key{
			NSHash:  jh.NSHash,
			KindID:  jh.KindID,
			Major:   jh.Major,
			Minor:   jh.Minor,
			Hash128: hash,
		},
		MsgID:     jh.MsgID,
		InReplyTo: jh.InReplyTo,
	}
	for _, t := range jh.Tags {
		h.Tags = append(h.Tags, Tag{Key: t[0], Value: t[1]})
	}
	return h, nil
}

// DecodeAuto detects which of the two header forms data is in by its
// leading byte and decodes accordingly (§4.1).
func DecodeAuto(data []byte) (Header, error) {
	if len(data) == 0 {
		return Header{}, fmt.Errorf("%w: empty header", ErrHeaderMalformed)
	}
	if data[0] == '{' {
		return DecodeJSON(data)
	}
	if data[0] == headerTagBinary {
		return DecodeBinary(data)
	}
	return Header{}, fmt.Errorf("%w: unrecognized header leading byte 0x%02x", ErrHeaderMalformed, data[0])
}
