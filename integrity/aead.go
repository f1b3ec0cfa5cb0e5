package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD implements the CRYPT pipeline stage: seal on send, open on receive
// (§6 "Collaborator contracts"). The default implementation is
// ChaCha20-Poly1305 with a nonce derived per §4.4: the first 12 bytes of
// HMAC-SHA256(static_key, msg_id || channel_id).
type AEAD interface {
	Seal(key, aad, plaintext []byte, msgID uint64, channelID uint32) ([]byte, error)
	Open(key, aad, ciphertext []byte, msgID uint64, channelID uint32) ([]byte, error)
}

// ChaCha20Poly1305 is the default AEAD, backing the CRYPT flag. Grounded on
// golang.org/x/crypto, present in the pack's go.mod (NeboLoop-nebo,
// Generativebots-ocx-backend-go-svc) though neither example wires
// chacha20poly1305 specifically — the AEAD family the spec names lives in
// that same module.
type ChaCha20Poly1305 struct{}

// deriveNonce computes the first 12 bytes of HMAC-SHA256(key, msgID||channelID),
// exactly as specified in §4.4.
func deriveNonce(key []byte, msgID uint64, channelID uint32) []byte {
	mac := hmac.New(sha256.New, key)
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], msgID)
	binary.LittleEndian.PutUint32(buf[8:12], channelID)
	mac.Write(buf[:])
	sum := mac.Sum(nil)
	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce, sum[:chacha20poly1305.NonceSize])
	return nonce
}

func (ChaCha20Poly1305) Seal(key, aad, plaintext []byte, msgID uint64, channelID uint32) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("integrity: chacha20poly1305 key: %w", err)
	}
	nonce := deriveNonce(key, msgID, channelID)
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (ChaCha20Poly1305) Open(key, aad, ciphertext []byte, msgID uint64, channelID uint32) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("integrity: chacha20poly1305 key: %w", err)
	}
	nonce := deriveNonce(key, msgID, channelID)
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("integrity: aead open failed: %w", err)
	}
	return pt, nil
}
