package pck

import (
	"encoding/binary"
)

const footerSize = 32

// Footer is the decoded 32-byte footer at the end of the file.
type Footer struct {
	FileCount      uint32
	IndexOffset    uint64
	IndexBlockSize uint32
}

type rawFooter struct {
	F0             uint32
	F1             uint32
	FileCount      uint32
	IndexOffset    uint64
	IndexBlockSize uint32
	Reserved       uint64
}

// ReadFooter reads the last 32 bytes of r and verifies the guard-dword
// witness against keys k: F0^G0 and F1^G1 must decode to the recognizable
// sentinel pair. On mismatch it returns a *NotAnArchiveError.
func ReadFooter(r ReaderAt, k Keys, sentinel [2]uint32) (Footer, error) {
	size := r.Size()
	if size < footerSize {
		return Footer{}, &NotAnArchiveError{Reason: "file shorter than footer"}
	}
	buf := make([]byte, footerSize)
	if _, err := readFullAt(r, buf, size-footerSize); err != nil {
		return Footer{}, err
	}
	var raw rawFooter
	raw.F0 = binary.LittleEndian.Uint32(buf[0:4])
	raw.F1 = binary.LittleEndian.Uint32(buf[4:8])
	raw.FileCount = binary.LittleEndian.Uint32(buf[8:12])
	raw.IndexOffset = binary.LittleEndian.Uint64(buf[12:20])
	raw.IndexBlockSize = binary.LittleEndian.Uint32(buf[20:24])
	raw.Reserved = binary.LittleEndian.Uint64(buf[24:32])

	if raw.F0^k.G0 != sentinel[0] || raw.F1^k.G1 != sentinel[1] {
		return Footer{}, &NotAnArchiveError{Reason: "footer guard mismatch"}
	}

	return Footer{
		FileCount:      raw.FileCount,
		IndexOffset:    raw.IndexOffset,
		IndexBlockSize: raw.IndexBlockSize,
	}, nil
}

// EncodeFooter produces the 32-byte on-disk footer for f under keys k.
func EncodeFooter(f Footer, k Keys, sentinel [2]uint32) []byte {
	raw := rawFooter{
		F0:             k.G0 ^ sentinel[0],
		F1:             k.G1 ^ sentinel[1],
		FileCount:      f.FileCount,
		IndexOffset:    f.IndexOffset,
		IndexBlockSize: f.IndexBlockSize,
	}
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(buf[0:4], raw.F0)
	binary.LittleEndian.PutUint32(buf[4:8], raw.F1)
	binary.LittleEndian.PutUint32(buf[8:12], raw.FileCount)
	binary.LittleEndian.PutUint64(buf[12:20], raw.IndexOffset)
	binary.LittleEndian.PutUint32(buf[20:24], raw.IndexBlockSize)
	binary.LittleEndian.PutUint64(buf[24:32], raw.Reserved)
	return buf
}

// CheckFileSize verifies I4: footer.index_offset + footer.index_block_size
// + 32 == file_size.
func CheckFileSize(f Footer, fileSize int64) error {
	want := int64(f.IndexOffset) + int64(f.IndexBlockSize) + footerSize
	if want != fileSize {
		return &NotAnArchiveError{Reason: "footer does not account for file size"}
	}
	return nil
}
