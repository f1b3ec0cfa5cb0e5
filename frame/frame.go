// Package frame implements the wire frame codec: serialize/parse a frame's
// fixed preamble, variable header, length-prefixed payload, and CRC32C
// trailer (§3, §4.1).
//
// Pack and Parse never reverse COMP/CRYPT transforms — callers (the session
// engine) are responsible for applying them before Pack and after Parse, in
// the order fixed by §4.4.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/integrity"
)

// preambleSize is magic(4) + version(1) + flags(1) + hlen(2).
const preambleSize = 4 + 1 + 1 + 2

// Frame is an immutable, fully-decoded wire frame (§3).
type Frame struct {
	Version byte
	Flags   byte
	Header  Header
	Payload []byte // post-transform bytes exactly as they were on the wire
}

// Pack serializes h (in the normative binary form) and payload into a
// complete wire frame. payload must already have had COMP/CRYPT applied if
// those bits are set in flags. If payload exceeds uint32 range, FlagLarge is
// set automatically regardless of the caller's flags argument, per §3.
func Pack(h Header, payload []byte, flags byte) ([]byte, error) {
	return packRaw(h.EncodeBinary(), payload, flags)
}

// PackWithHeaderBytes is like Pack but takes already-serialized header
// bytes, letting a caller choose the JSON fallback form (§4.1, §9) when
// both peers have negotiated it.
func PackWithHeaderBytes(headerBytes, payload []byte, flags byte) ([]byte, error) {
	return packRaw(headerBytes, payload, flags)
}

func packRaw(headerBytes, payload []byte, flags byte) ([]byte, error) {
	if len(headerBytes) > 0xFFFF {
		return nil, fmt.Errorf("frame: header too large: %d bytes exceeds HLEN range", len(headerBytes))
	}
	if uint64(len(payload)) > math.MaxUint32 {
		flags |= xcp.FlagLarge
	}
	large := flags&xcp.FlagLarge != 0
	plenWidth := 4
	if large {
		plenWidth = 8
	}

	total := preambleSize + len(headerBytes) + plenWidth + len(payload) + 4
	buf := make([]byte, total)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], xcp.Magic)
	off += 4
	buf[off] = xcp.Version
	off++
	buf[off] = flags
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(headerBytes)))
	off += 2
	copy(buf[off:], headerBytes)
	off += len(headerBytes)

	if large {
		binary.LittleEndian.PutUint64(buf[off:], uint64(len(payload)))
		off += 8
	} else {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(payload)))
		off += 4
	}
	copy(buf[off:], payload)
	off += len(payload)

	crc := integrity.CRC32C(payload)
	binary.LittleEndian.PutUint32(buf[off:], crc)

	return buf, nil
}

// Parse reads and validates one complete frame from r (§4.1):
//   - MAGIC is checked first; on mismatch, ErrBadMagic is returned having
//     consumed no more than the 4 magic bytes (§8 property 3).
//   - VERSION's major nibble must match xcp.VersionMajor(xcp.Version).
//   - HLEN-prefixed header bytes are read and decoded (binary or JSON form).
//   - PLEN (4 or 8 bytes, selected by the LARGE flag) bounds the payload
//     read; if maxFrameBytes is nonzero and PLEN exceeds it, ErrFrameTooLarge
//     is returned without reading the payload.
//   - The trailing CRC32C is verified over the payload bytes as read.
//
// No transform (COMP/CRYPT) is reversed here; that is the caller's job.
func Parse(r io.Reader, maxFrameBytes uint64) (*Frame, error) {
	var magicBuf [4]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderTruncated, err)
	}
	if binary.LittleEndian.Uint32(magicBuf[:]) != xcp.Magic {
		return nil, ErrBadMagic
	}

	var rest [4]byte // version, flags, hlen(2)
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderTruncated, err)
	}
	version := rest[0]
	flags := rest[1]
	hlen := binary.LittleEndian.Uint16(rest[2:4])

	if xcp.VersionMajor(version) != xcp.VersionMajor(xcp.Version) {
		return nil, fmt.Errorf("%w: got major %d, want %d", ErrUnsupportedVersion, xcp.VersionMajor(version), xcp.VersionMajor(xcp.Version))
	}

	headerBytes := make([]byte, hlen)
	if hlen > 0 {
		if _, err := io.ReadFull(r, headerBytes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHeaderTruncated, err)
		}
	}
	hdr, err := DecodeAuto(headerBytes)
	if err != nil {
		return nil, err
	}

	large := flags&xcp.FlagLarge != 0
	var plen uint64
	if large {
		var plenBuf [8]byte
		if _, err := io.ReadFull(r, plenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadTruncated, err)
		}
		plen = binary.LittleEndian.Uint64(plenBuf[:])
	} else {
		var plenBuf [4]byte
		if _, err := io.ReadFull(r, plenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadTruncated, err)
		}
		plen = uint64(binary.LittleEndian.Uint32(plenBuf[:]))
	}

	if maxFrameBytes != 0 && plen > maxFrameBytes {
		return nil, fmt.Errorf("%w: plen %d exceeds negotiated max %d", ErrFrameTooLarge, plen, maxFrameBytes)
	}

	payload := make([]byte, plen)
	if plen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadTruncated, err)
		}
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadTruncated, err)
	}
	wantCRC := binary.LittleEndian.Uint32(crcBuf[:])
	gotCRC := integrity.CRC32C(payload)
	if wantCRC != gotCRC {
		return nil, ErrCrcMismatch
	}

	return &Frame{
		Version: version,
		Flags:   flags,
		Header:  hdr,
		Payload: payload,
	}, nil
}
