// Package mutation implements the append/replace/remove/commit engine from
// spec.md §4.10: mutations are staged against the live mapped file and only
// become visible to any other reader in a single footer-swap step, so "a
// mutation is visible iff its footer is visible" holds even if the process
// is killed mid-mutation.
package mutation

import (
	"fmt"

	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

const headerEnd = 32 // pck.headerSize, duplicated here since it is unexported

// RWFile is the narrow read/write/resize surface the engine needs. A
// *mmapfile.File satisfies it.
type RWFile interface {
	pck.ReaderAt
	WriteAt(p []byte, off int64) (int, error)
	SetLen(n int64) error
	Flush() error
}

// CancelledError describes a mutation cancelled before commit. No Engine
// method returns it; Abort returns nothing.
type CancelledError struct{}

func (CancelledError) Error() string { return "mutation: cancelled before commit" }

// NotFoundError is returned by Replace/Remove for a path with no entry.
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("mutation: no entry for path %q", e.Path) }

// Engine holds the staged, in-memory view of one archive's entry list and
// payload allocation while a mutation is in progress. Entries includes the
// trailing tail entry.
type Engine struct {
	f        RWFile
	keys     pck.Keys
	sentinel [2]uint32
	layout   pck.Layout
	header   pck.Header
	footer   pck.Footer
	entries  []pck.Entry
	tail     uint64 // offset one past the last byte of live payload data
	dirty    bool
}

// Open stages a mutation engine against an already-mounted, writable file.
// entries must include the trailing tail entry, as produced by
// pck.DetectVersion/pck.ReadIndexTable.
func Open(f RWFile, keys pck.Keys, sentinel [2]uint32, layout pck.Layout, header pck.Header, footer pck.Footer, entries []pck.Entry) *Engine {
	e := &Engine{
		f:        f,
		keys:     keys,
		sentinel: sentinel,
		layout:   layout,
		header:   header,
		footer:   footer,
		entries:  append([]pck.Entry(nil), entries...),
	}
	e.tail = headerEnd
	for _, ent := range e.entries {
		if ent.Kind == pck.KindFile {
			if end := ent.Offset + ent.CipherSize; end > e.tail {
				e.tail = end
			}
		}
	}
	return e
}

// Entries returns the current staged (non-tail) entries, for callers that
// need to rebuild a tree after a mutation.
func (e *Engine) Entries() []pck.Entry {
	out := make([]pck.Entry, 0, len(e.entries))
	for _, ent := range e.entries {
		if ent.Kind != pck.KindTail {
			out = append(out, ent)
		}
	}
	return out
}

// Redundancy reports data_area_size minus the sum of live cipher sizes, the
// statistic spec.md §4.10 calls out.
func (e *Engine) Redundancy() uint64 {
	total := e.tail - headerEnd
	var live uint64
	for _, ent := range e.entries {
		if ent.Kind == pck.KindFile {
			live += ent.CipherSize
		}
	}
	if total < live {
		return 0
	}
	return total - live
}

func (e *Engine) findIndex(path string) int {
	for i, ent := range e.entries {
		if ent.Kind != pck.KindTail && ent.Path == path {
			return i
		}
	}
	return -1
}

func (e *Engine) parityFlags(kind pck.Kind) uint32 {
	return pck.FlagsFor(kind, e.layout, e.keys.C)
}

// Append stages a new file entry, writing its payload either into slack
// space immediately before the index region or, if there is not enough
// room, by growing the file (spec.md §4.10 Append).
func (e *Engine) Append(path string, data []byte, level pck.CompressionLevel) error {
	if e.findIndex(path) >= 0 {
		return &pck.DuplicatePathError{Path: path}
	}
	stored, clearSize, cipherSize := pck.WritePayload(data, level)

	offset, err := e.allocate(uint64(len(stored)))
	if err != nil {
		return err
	}
	if _, err := e.f.WriteAt(stored, int64(offset)); err != nil {
		return fmt.Errorf("mutation: writing payload for %q: %w", path, err)
	}
	e.tail = offset + uint64(len(stored))

	entry := pck.Entry{
		Path:       path,
		Offset:     offset,
		ClearSize:  clearSize,
		CipherSize: cipherSize,
		Kind:       pck.KindFile,
		Flags:      e.parityFlags(pck.KindFile),
	}
	e.insertBeforeTail(entry)
	e.dirty = true
	return nil
}

// Replace stages new content for an existing path: in place if it fits in
// the old payload's footprint, otherwise by appending a fresh payload and
// abandoning the old region as redundancy (spec.md §4.10 Replace).
func (e *Engine) Replace(path string, data []byte, level pck.CompressionLevel) error {
	idx := e.findIndex(path)
	if idx < 0 {
		return &NotFoundError{Path: path}
	}
	old := e.entries[idx]
	stored, clearSize, cipherSize := pck.WritePayload(data, level)

	if uint64(len(stored)) <= old.CipherSize {
		if _, err := e.f.WriteAt(stored, int64(old.Offset)); err != nil {
			return fmt.Errorf("mutation: replacing payload for %q: %w", path, err)
		}
		e.entries[idx].ClearSize = clearSize
		e.entries[idx].CipherSize = cipherSize
		e.dirty = true
		return nil
	}

	offset, err := e.allocate(uint64(len(stored)))
	if err != nil {
		return err
	}
	if _, err := e.f.WriteAt(stored, int64(offset)); err != nil {
		return fmt.Errorf("mutation: replacing payload for %q: %w", path, err)
	}
	e.tail = offset + uint64(len(stored))
	e.entries[idx].Offset = offset
	e.entries[idx].ClearSize = clearSize
	e.entries[idx].CipherSize = cipherSize
	e.dirty = true
	return nil
}

// Remove stages deletion of path. The payload bytes are left in place as
// redundancy; no data is moved (spec.md §4.10 Remove).
func (e *Engine) Remove(path string) error {
	idx := e.findIndex(path)
	if idx < 0 {
		return &NotFoundError{Path: path}
	}
	e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
	e.dirty = true
	return nil
}

// allocate finds room for n bytes of payload: slack before the index
// region if there is enough, otherwise it grows the file.
func (e *Engine) allocate(n uint64) (uint64, error) {
	slack := uint64(0)
	if e.footer.IndexOffset > e.tail {
		slack = e.footer.IndexOffset - e.tail
	}
	if n <= slack {
		return e.tail, nil
	}

	newDataArea := (e.tail - headerEnd) + n
	grown := ((newDataArea + 15) / 16) * 16
	newIndexOffset := headerEnd + grown
	// The index region is scratch space until Commit re-encodes it at its
	// final offset, so growing the file here only needs to guarantee room
	// for the payload; Commit truncates to the true final size.
	minSize := int64(newIndexOffset) + int64(e.footer.IndexBlockSize) + 64
	if minSize > e.f.Size() {
		if err := e.f.SetLen(minSize); err != nil {
			return 0, fmt.Errorf("mutation: growing file: %w", err)
		}
	}
	e.footer.IndexOffset = newIndexOffset
	return e.tail, nil
}

func (e *Engine) insertBeforeTail(entry pck.Entry) {
	if n := len(e.entries); n > 0 && e.entries[n-1].Kind == pck.KindTail {
		e.entries = append(e.entries[:n-1], entry, e.entries[n-1])
		return
	}
	e.entries = append(e.entries, entry)
}

// Commit re-encodes the index table, writes it and a fresh footer, and
// flushes the file. This is the single step at which the mutation becomes
// visible: until the footer write lands, a reader reopening the file still
// sees the pre-mutation archive (spec.md §4.10 Abort).
func (e *Engine) Commit() (pck.Header, pck.Footer, error) {
	if !e.dirty {
		return e.header, e.footer, nil
	}

	block, err := pck.WriteIndexTable(e.entries, e.layout, e.keys)
	if err != nil {
		return pck.Header{}, pck.Footer{}, fmt.Errorf("mutation: encoding index table: %w", err)
	}

	newDataArea := e.tail - headerEnd
	newIndexOffset := headerEnd + newDataArea
	newFileSize := int64(newIndexOffset) + int64(len(block)) + 32

	if newFileSize != e.f.Size() {
		if err := e.f.SetLen(newFileSize); err != nil {
			return pck.Header{}, pck.Footer{}, fmt.Errorf("mutation: resizing file: %w", err)
		}
	}

	if _, err := e.f.WriteAt(block, int64(newIndexOffset)); err != nil {
		return pck.Header{}, pck.Footer{}, fmt.Errorf("mutation: writing index table: %w", err)
	}

	fileCount := 0
	for _, ent := range e.entries {
		if ent.Kind != pck.KindTail {
			fileCount++
		}
	}

	newHeader := e.header
	newHeader.DataAreaSize = newDataArea
	if _, err := e.f.WriteAt(pck.WriteHeader(newHeader), 0); err != nil {
		return pck.Header{}, pck.Footer{}, fmt.Errorf("mutation: writing header: %w", err)
	}

	newFooter := pck.Footer{
		FileCount:      uint32(fileCount),
		IndexOffset:    newIndexOffset,
		IndexBlockSize: uint32(len(block)),
	}
	footerBuf := pck.EncodeFooter(newFooter, e.keys, e.sentinel)
	if _, err := e.f.WriteAt(footerBuf, newFileSize-32); err != nil {
		return pck.Header{}, pck.Footer{}, fmt.Errorf("mutation: writing footer: %w", err)
	}

	if err := e.f.Flush(); err != nil {
		return pck.Header{}, pck.Footer{}, fmt.Errorf("mutation: flushing: %w", err)
	}

	e.header = newHeader
	e.footer = newFooter
	e.dirty = false
	return e.header, e.footer, nil
}

// Abort clears the dirty flag, so a Commit with no further changes writes
// nothing. It does not undo staged work: entries added, replaced or removed
// by earlier successful calls stay in the engine's entry list, and any file
// growth and index offset set by allocate remain, so the next committed
// mutation includes them.
func (e *Engine) Abort() {
	e.dirty = false
}
