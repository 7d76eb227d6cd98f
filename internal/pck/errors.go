package pck

import "fmt"

// NotAnArchiveError is returned when the footer or header does not witness
// a valid PCK file under any probed algorithm id.
type NotAnArchiveError struct {
	Reason string
}

func (e *NotAnArchiveError) Error() string {
	return fmt.Sprintf("not a PCK archive: %s", e.Reason)
}

// HeaderFooterInconsistentError is returned when the header's data-area
// size does not agree with the footer's index offset.
type HeaderFooterInconsistentError struct {
	HeaderEnd    uint64
	DataAreaSize uint64
	IndexOffset  uint64
}

func (e *HeaderFooterInconsistentError) Error() string {
	return fmt.Sprintf("header/footer inconsistent: header_end(%d)+data_area_size(%d) = %d, want index_offset %d",
		e.HeaderEnd, e.DataAreaSize, e.HeaderEnd+e.DataAreaSize, e.IndexOffset)
}

// UnknownVersionError is returned when no candidate layout in the probed
// table decodes a self-consistent index table.
type UnknownVersionError struct {
	Tried []int
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown PCK layout version (tried widths %v)", e.Tried)
}

// PayloadCorruptError is returned when a payload's decompressed size does
// not match its declared clear size.
type PayloadCorruptError struct {
	Path      string
	WantClear uint64
	GotClear  int
}

func (e *PayloadCorruptError) Error() string {
	return fmt.Sprintf("payload corrupt for %q: decompressed to %d bytes, want %d", e.Path, e.GotClear, e.WantClear)
}

// DuplicatePathError is returned when the tree builder encounters two
// entries with the same path.
type DuplicatePathError struct {
	Path string
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("duplicate path in index: %q", e.Path)
}
