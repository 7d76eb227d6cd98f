package pck

import (
	"fmt"

	"github.com/klauspost/compress/flate"
)

// CompressionLevel mirrors the caller-facing compression knob from spec
// §4.7: 0 means "store raw", 1..9 select deflate levels.
type CompressionLevel int

const (
	StoreRaw CompressionLevel = 0
	BestSpeed CompressionLevel = flate.BestSpeed
	BestCompression CompressionLevel = flate.BestCompression
)

// ReadPayload reads a single file's bytes for entry e (spec §4.7 Read). If
// cipher_size == clear_size the payload is stored raw and is returned
// unchanged; otherwise it is decompressed (probing zlib, falling back to
// raw deflate per spec §9) and its length is validated against clear_size.
func ReadPayload(r ReaderAt, e Entry) ([]byte, error) {
	raw := make([]byte, e.CipherSize)
	if _, err := readFullAt(r, raw, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("pck: reading payload for %q: %w", e.Path, err)
	}

	if e.CipherSize == e.ClearSize {
		return raw, nil
	}

	out, err := decompressBlock(raw, int(e.ClearSize))
	if err != nil {
		return nil, fmt.Errorf("pck: decompressing payload for %q: %w", e.Path, err)
	}
	if uint64(len(out)) != e.ClearSize {
		return nil, &PayloadCorruptError{Path: e.Path, WantClear: e.ClearSize, GotClear: len(out)}
	}
	return out, nil
}

// WritePayload compresses data per spec §4.7 Write. If the compressed
// output is not strictly smaller than the input, the payload is stored raw
// (cipherSize == clearSize).
func WritePayload(data []byte, level CompressionLevel) (stored []byte, clearSize, cipherSize uint64) {
	clearSize = uint64(len(data))
	if level == StoreRaw {
		return data, clearSize, clearSize
	}
	compressed, err := compressZlib(data, int(level))
	if err != nil {
		// zlib.NewWriterLevel only fails on an invalid level; fall back to
		// raw deflate (spec §9's "zlib, fall back to raw deflate" policy)
		// rather than storing raw outright.
		compressed, err = compressDeflate(data, int(level))
	}
	if err != nil || len(compressed) >= len(data) {
		return data, clearSize, clearSize
	}
	return compressed, clearSize, uint64(len(compressed))
}
