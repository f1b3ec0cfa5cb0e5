// Package xcp holds the wire-level constants shared by every layer of the
// eXtensible Coordination Protocol: magic number, version, frame flags,
// message types, codec IDs and control-plane error codes.
//
// Nothing in this file touches I/O. It exists so that frame, codec, and
// session packages agree on numeric identity without importing each other.
package xcp

// Magic identifies an XCP frame at offset 0. Four bytes, little-endian when
// read as a uint32: 0xA9A17A10.
const Magic uint32 = 0xA9A17A10

// Version is the current protocol version byte: high nibble major, low
// nibble minor. 0x02 == major 0, minor 2.
const Version byte = 0x02

// VersionMajor returns the major nibble of a version byte.
func VersionMajor(v byte) byte { return v >> 4 }

// VersionMinor returns the minor nibble of a version byte.
func VersionMinor(v byte) byte { return v & 0x0F }

// Frame flag bits.
const (
	FlagCompressed byte = 0x01 // COMP — payload passed through the compress stage
	FlagEncrypted  byte = 0x02 // CRYPT — payload passed through the AEAD stage
	FlagMore       byte = 0x04 // MORE — more chunks follow with the same msg_id
	FlagLarge      byte = 0x08 // LARGE — PLEN is 8 bytes instead of 4
)

// MsgType identifies what a frame carries. Control types occupy
// 0x0000-0x00FF; data types start at 0x0100.
type MsgType uint16

const (
	MsgHello       MsgType = 0x0000
	MsgAck         MsgType = 0x0001
	MsgNack        MsgType = 0x0002
	MsgPing        MsgType = 0x0003
	MsgPong        MsgType = 0x0004
	MsgClarifyReq  MsgType = 0x0005
	MsgClarifyRes  MsgType = 0x0006
	MsgCaps        MsgType = 0x0007
	MsgDataMin     MsgType = 0x0100 // first data message type
)

// IsControl reports whether a message type is a control type (<= 0x00FF).
func (t MsgType) IsControl() bool { return t < MsgDataMin }

// CodecID is the numeric wire identity of a registered Ether codec.
type CodecID uint16

const (
	CodecJSON         CodecID = 0x0001
	CodecTensorF32    CodecID = 0x0002
	CodecTensorF16    CodecID = 0x0003
	CodecTensorInt8   CodecID = 0x0004
	CodecBinaryStruct CodecID = 0x0008
	CodecMixedLatent  CodecID = 0x0010
	CodecArrowIPC     CodecID = 0x0020
	CodecDLPack       CodecID = 0x0021
)

// ErrorCode is a control-plane NACK error code (§4.6).
type ErrorCode uint16

const (
	ErrOK                 ErrorCode = 0x0000
	ErrSchemaUnknown      ErrorCode = 0x0001
	ErrCodecUnsupported   ErrorCode = 0x0002
	ErrMessageTooLarge    ErrorCode = 0x0003
	ErrKindMismatch       ErrorCode = 0x0004
)

// CodecPolicy governs sender-side codec selection (§4.2).
type CodecPolicy int

const (
	PolicyAuto CodecPolicy = iota
	PolicyJSONOnly
	PolicyBinaryRequired
)

// TensorDType identifies the element type of a raw tensor body (§3).
type TensorDType uint8

const (
	DTypeF32  TensorDType = 0
	DTypeF16  TensorDType = 1
	DTypeInt8 TensorDType = 2
)

// Tensor header flag bits (§3).
const (
	TensorFlagRowQuantized uint8 = 1 << 0
	TensorFlagColMajor     uint8 = 1 << 1
)

// TensorHeaderSize is the fixed byte length of a tensor header prefix:
// ndim, dtype, flags and pad (4 x u8), shape (8 x u32), scale (f32).
const TensorHeaderSize = 40
