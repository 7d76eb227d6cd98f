package pck

import (
	"encoding/binary"
	"fmt"
)

const headerSize = 32

// magic is the fixed 4-byte prefix every archive's header begins with.
// PckStructs.h (which would define this authoritatively) was not part of
// the retrieved original source; this is a documented placeholder chosen
// to be unambiguous and not collide with common container formats.
var magic = [4]byte{'P', 'C', 'K', 0x1A}

// Header is the decoded 32-byte file header at offset 0.
type Header struct {
	DataAreaSize  uint64
	LayoutVersion uint32
	Description   string
}

type rawHeader struct {
	Magic         [4]byte
	DataAreaSize  uint64
	LayoutVersion uint32
	Description   [16]byte
}

// ReadHeader reads and validates the 32-byte header at offset 0 of r.
func ReadHeader(r ReaderAt) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := readFullAt(r, buf, 0); err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}
	var raw rawHeader
	raw.Magic = [4]byte{buf[0], buf[1], buf[2], buf[3]}
	raw.DataAreaSize = binary.LittleEndian.Uint64(buf[4:12])
	raw.LayoutVersion = binary.LittleEndian.Uint32(buf[12:16])
	copy(raw.Description[:], buf[16:32])

	if raw.Magic != magic {
		return Header{}, &NotAnArchiveError{Reason: "header magic mismatch"}
	}

	return Header{
		DataAreaSize:  raw.DataAreaSize,
		LayoutVersion: raw.LayoutVersion,
		Description:   cStringFromBytes(raw.Description[:]),
	}, nil
}

// WriteHeader encodes h into a fresh 32-byte header.
func WriteHeader(h Header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint64(buf[4:12], h.DataAreaSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.LayoutVersion)
	desc := []byte(h.Description)
	if len(desc) > 16 {
		desc = desc[:16]
	}
	copy(buf[16:16+len(desc)], desc)
	return buf
}

// CheckHeaderFooter verifies the header/footer consistency invariant:
// header_end + data_area_size == footer.index_offset.
func CheckHeaderFooter(h Header, f Footer) error {
	if headerSize+h.DataAreaSize != f.IndexOffset {
		return &HeaderFooterInconsistentError{
			HeaderEnd:    headerSize,
			DataAreaSize: h.DataAreaSize,
			IndexOffset:  f.IndexOffset,
		}
	}
	return nil
}

func cStringFromBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
