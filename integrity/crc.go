// Package integrity implements the frame trailer checksum and the optional
// compress/encrypt pipeline stages applied to a frame's payload (§4.4).
//
// Transform order on send is encode -> compress (COMP) -> encrypt (CRYPT) ->
// CRC. On receive it inverts: verify CRC -> decrypt -> decompress -> decode.
// The frame codec never reverses COMP/CRYPT itself (§4.1) — that is this
// package's job, invoked by the session engine around frame codec calls.
package integrity

import "hash/crc32"

// castagnoliTable is the CRC32C (Castagnoli) polynomial table, built once.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the Castagnoli CRC32 of data using the initial value and
// output XOR specified in §4.4 (0xFFFFFFFF in, 0xFFFFFFFF out) — which is
// exactly the convention hash/crc32.Checksum already implements, so this is
// a thin named wrapper rather than a hand-rolled CRC.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// NewCRC32CHash returns a fresh, streaming Castagnoli CRC32 hash, for
// callers that want to feed a trailer incrementally instead of computing it
// over an already-assembled buffer.
func NewCRC32CHash() crc32Hash {
	return crc32Hash{crc: 0}
}

// crc32Hash is a minimal streaming accumulator over the same table used by
// CRC32C.
type crc32Hash struct {
	crc uint32
}

func (h *crc32Hash) Write(p []byte) (int, error) {
	h.crc = crc32.Update(h.crc, castagnoliTable, p)
	return len(p), nil
}

func (h *crc32Hash) Sum32() uint32 { return h.crc }
