package pck

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// looksZlib is a crude sniff for a zlib stream: the two-byte zlib
// header's first byte's low nibble is always 8 (deflate) and the 16-bit
// big-endian header value is a multiple of 31, the classic zlib magic
// check. Raw deflate streams have no such header, so this lets
// decompressBlock implement spec §9's recommended "probe zlib, fall back
// to raw deflate" policy.
func looksZlib(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if b[0]&0x0F != 8 {
		return false
	}
	header := uint16(b[0])<<8 | uint16(b[1])
	return header%31 == 0
}

// decompressBlock inflates a block that may be zlib-wrapped or raw deflate,
// returning the decompressed bytes. wantSize, if positive, is used to
// preallocate the output buffer; the decompressed length is not checked
// against it.
func decompressBlock(b []byte, wantSize int) ([]byte, error) {
	var r io.Reader
	if looksZlib(b) {
		zr, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	} else {
		r = flate.NewReader(bytes.NewReader(b))
		defer r.(io.Closer).Close()
	}
	var buf bytes.Buffer
	if wantSize > 0 {
		buf.Grow(wantSize)
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compressDeflate compresses b as a raw deflate stream at the given level
// (flate.NoCompression..flate.BestCompression).
func compressDeflate(b []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compressZlib compresses b as a zlib stream (deflate + adler32) at the
// given level. Used for both the index table and payload codecs, resolving
// spec §9's open question in favor of the checksummed wrapper.
func compressZlib(b []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
