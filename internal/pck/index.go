package pck

import (
	"fmt"

	"github.com/klauspost/compress/flate"
)

// ReadIndexTable reads and decodes the footer's index region for an
// already-known layout (spec §4.6 Read). Use DetectVersion instead when the
// layout is not yet known.
func ReadIndexTable(r ReaderAt, f Footer, layout Layout, k Keys) ([]Entry, error) {
	raw := make([]byte, f.IndexBlockSize)
	if _, err := readFullAt(r, raw, int64(f.IndexOffset)); err != nil {
		return nil, err
	}

	block := raw
	if looksZlib(raw) {
		decoded, err := decompressBlock(raw, int(f.FileCount+1)*layout.Width)
		if err != nil {
			return nil, fmt.Errorf("pck: decompressing index block: %w", err)
		}
		block = decoded
	}

	if len(block)%layout.Width != 0 {
		return nil, fmt.Errorf("pck: index block size %d is not a multiple of entry width %d", len(block), layout.Width)
	}
	n := len(block) / layout.Width
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		rec := block[i*layout.Width : (i+1)*layout.Width]
		e, err := DecodeEntry(rec, layout.Width, k)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// indexCompressionLevel is used whenever the index table is compressed.
const indexCompressionLevel = flate.BestCompression

// WriteIndexTable encodes entries into a fresh on-disk index block (spec
// §4.6 Write), compressing it with zlib when doing so saves at least
// 1/32nd of the raw size (policy: "deflate when compressed_len <
// raw_len*31/32").
func WriteIndexTable(entries []Entry, layout Layout, k Keys) (block []byte, err error) {
	raw := make([]byte, 0, len(entries)*layout.Width)
	for _, e := range entries {
		rec, err := EncodeEntry(e, layout.Width, k)
		if err != nil {
			return nil, err
		}
		raw = append(raw, rec...)
	}

	compressed, err := compressZlib(raw, indexCompressionLevel)
	if err != nil {
		// zlib.NewWriterLevel only fails on an invalid level; fall back to
		// raw deflate (spec §9's "zlib, fall back to raw deflate" policy)
		// rather than failing the whole write.
		compressed, err = compressDeflate(raw, indexCompressionLevel)
		if err != nil {
			return nil, err
		}
	}
	if len(compressed) < len(raw)*31/32 {
		return compressed, nil
	}
	return raw, nil
}
