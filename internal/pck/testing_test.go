package pck

import "io"

// memReader is the in-memory ReaderAt used across this package's tests.
type memReader []byte

func (m memReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m memReader) Size() int64 { return int64(len(m)) }
