package integrity

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compressor implements the COMP pipeline stage. Grounded on
// NeboLoop-nebo/internal/neboloop/sdk/frame.go, which wraps the same
// klauspost/compress/zstd encoder/decoder pair behind sync.Once-initialized
// package singletons for a binary frame protocol shaped very like this one.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// zstdCompressor is the default Compressor, backing the COMP flag.
type zstdCompressor struct {
	encOnce sync.Once
	decOnce sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	encErr  error
	decErr  error
}

// NewZstdCompressor returns the default zstd-backed Compressor.
func NewZstdCompressor() Compressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) encoder() (*zstd.Encoder, error) {
	z.encOnce.Do(func() {
		z.enc, z.encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return z.enc, z.encErr
}

func (z *zstdCompressor) decoder() (*zstd.Decoder, error) {
	z.decOnce.Do(func() {
		z.dec, z.decErr = zstd.NewReader(nil)
	})
	return z.dec, z.decErr
}

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc, err := z.encoder()
	if err != nil {
		return nil, fmt.Errorf("integrity: zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, err := z.decoder()
	if err != nil {
		return nil, fmt.Errorf("integrity: zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("integrity: zstd decode: %w", err)
	}
	return out, nil
}
