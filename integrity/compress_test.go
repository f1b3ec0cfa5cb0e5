package integrity

import (
	"bytes"
	"testing"
)

func TestZstdCompressorRoundTrip(t *testing.T) {
	c := NewZstdCompressor()
	data := bytes.Repeat([]byte("xcp payload body "), 64)

	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf("expect compression to shrink repetitive data: got %d vs original %d", len(compressed), len(data))
	}

	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed data does not match original")
	}
}

func TestZstdCompressorEmptyInput(t *testing.T) {
	c := NewZstdCompressor()
	compressed, err := c.Compress(nil)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if len(decompressed) != 0 {
		t.Fatalf("expect empty round trip, got %d bytes", len(decompressed))
	}
}
