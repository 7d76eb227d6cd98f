// Package mmapfile provides the read/write memory-mapped file collaborator
// the mutation engine needs: an archive is mapped once and both read and
// mutated in place, with an explicit Flush before any commit that must be
// durable. golang.org/x/exp/mmap (used elsewhere in this module's lineage,
// e.g. for squashfs packages) only maps read-only, so in-place mutation
// here is backed by github.com/edsrzf/mmap-go instead, the same library
// used for a comparable read/write mapped container format (see
// DESIGN.md).
package mmapfile

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// File is a memory-mapped os.File opened either read-only or read/write.
// The zero value is not usable; construct one with Open.
type File struct {
	f        *os.File
	data     mmap.MMap
	writable bool
}

// Open maps path into memory. When writable is true the file is opened
// O_RDWR and mapped RDWR so writes through WriteAt are visible to other
// readers of the same mapping immediately and persisted on Flush; when
// false the file is opened O_RDONLY and mapped read-only.
func Open(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	prot := mmap.RDONLY
	if writable {
		flag = os.O_RDWR
		prot = mmap.RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		// mmap.Map rejects a zero-length mapping; there is nothing
		// meaningful to map until the caller grows the file with SetLen.
		return &File{f: f, writable: writable}, nil
	}

	data, err := mmap.Map(f, prot, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mapping %s: %w", path, err)
	}
	return &File{f: f, data: data, writable: writable}, nil
}

// Size reports the current length of the mapping, satisfying pck.ReaderAt.
func (m *File) Size() int64 {
	return int64(len(m.data))
}

// ReadAt implements io.ReaderAt directly against the mapped bytes.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("mmapfile: ReadAt offset %d out of range [0,%d]", off, len(m.data))
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("mmapfile: short read at offset %d: got %d of %d bytes", off, n, len(p))
	}
	return n, nil
}

// WriteAt copies p directly into the mapping at off. The write is visible
// to any other reader of the mapping immediately but is not guaranteed
// durable until Flush returns.
func (m *File) WriteAt(p []byte, off int64) (int, error) {
	if !m.writable {
		return 0, fmt.Errorf("mmapfile: WriteAt on a read-only mapping")
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("mmapfile: WriteAt offset %d length %d out of range [0,%d]", off, len(p), len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// Flush calls msync on the mapping, committing writes to the backing file.
func (m *File) Flush() error {
	if m.data == nil {
		return nil
	}
	return m.data.Flush()
}

// SetLen grows or shrinks the backing file to n bytes and remaps it. Any
// outstanding mapping is unmapped first, since mmap-go cannot grow a live
// mapping in place.
func (m *File) SetLen(n int64) error {
	if m.data != nil {
		if err := m.data.Flush(); err != nil {
			return fmt.Errorf("mmapfile: flushing before resize: %w", err)
		}
		if err := m.data.Unmap(); err != nil {
			return fmt.Errorf("mmapfile: unmapping before resize: %w", err)
		}
		m.data = nil
	}
	if err := m.f.Truncate(n); err != nil {
		return fmt.Errorf("mmapfile: truncating to %d bytes: %w", n, err)
	}
	if n == 0 {
		return nil
	}
	prot := mmap.RDONLY
	if m.writable {
		prot = mmap.RDWR
	}
	data, err := mmap.Map(m.f, prot, 0)
	if err != nil {
		return fmt.Errorf("mmapfile: remapping after resize: %w", err)
	}
	m.data = data
	return nil
}

// Close flushes and unmaps the file, then closes the underlying descriptor.
func (m *File) Close() error {
	var ferr error
	if m.data != nil {
		ferr = m.data.Unmap()
	}
	cerr := m.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
