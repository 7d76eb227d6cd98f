package mutation

import (
	"bytes"
	"testing"

	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

// memFile is a resizable, in-memory RWFile used to exercise the engine
// without touching the filesystem.
type memFile struct {
	buf []byte
}

func (m *memFile) Size() int64 { return int64(len(m.buf)) }

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if need := int(off) + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	return copy(m.buf[off:], p), nil
}

func (m *memFile) SetLen(n int64) error {
	if int(n) <= len(m.buf) {
		m.buf = m.buf[:n]
		return nil
	}
	grown := make([]byte, n)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func (m *memFile) Flush() error { return nil }

func freshEngine(t *testing.T) (*Engine, *memFile) {
	t.Helper()
	k := pck.DeriveKeys(1, pck.Overrides{})
	layout := pck.DefaultLayouts[0]
	header := pck.Header{DataAreaSize: 0}
	tail := pck.Entry{Kind: pck.KindTail, Flags: pck.FlagsFor(pck.KindTail, layout, k.C)}
	block, err := pck.WriteIndexTable([]pck.Entry{tail}, layout, k)
	if err != nil {
		t.Fatalf("WriteIndexTable: %v", err)
	}
	footer := pck.Footer{FileCount: 0, IndexOffset: headerEnd, IndexBlockSize: uint32(len(block))}

	f := &memFile{}
	f.WriteAt(pck.WriteHeader(header), 0)
	f.WriteAt(block, int64(footer.IndexOffset))
	f.WriteAt(pck.EncodeFooter(footer, k, pck.DefaultSentinel), int64(footer.IndexOffset)+int64(len(block)))

	eng := Open(f, k, pck.DefaultSentinel, layout, header, footer, []pck.Entry{tail})
	return eng, f
}

func TestAppendCommitReadBack(t *testing.T) {
	eng, f := freshEngine(t)
	data := []byte("hello, archive")
	if err := eng.Append("greeting.txt", data, pck.StoreRaw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	header, footer, err := eng.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if footer.FileCount != 1 {
		t.Fatalf("FileCount = %d, want 1", footer.FileCount)
	}

	k := pck.DeriveKeys(1, pck.Overrides{})
	layout := pck.DefaultLayouts[0]
	entries, err := pck.ReadIndexTable(memReaderFrom(f.buf), footer, layout, k)
	if err != nil {
		t.Fatalf("ReadIndexTable: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (file + tail)", len(entries))
	}
	got, err := pck.ReadPayload(memReaderFrom(f.buf), entries[0])
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadPayload = %q, want %q", got, data)
	}
	if err := pck.CheckHeaderFooter(header, footer); err != nil {
		t.Errorf("CheckHeaderFooter after commit: %v", err)
	}
}

type memReaderFrom []byte

func (m memReaderFrom) ReadAt(p []byte, off int64) (int, error) { return copy(p, m[off:]), nil }
func (m memReaderFrom) Size() int64                             { return int64(len(m)) }

func TestAppendDuplicatePath(t *testing.T) {
	eng, _ := freshEngine(t)
	if err := eng.Append("a.txt", []byte("x"), pck.StoreRaw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	err := eng.Append("a.txt", []byte("y"), pck.StoreRaw)
	if err == nil {
		t.Fatal("Append duplicate path: want error, got nil")
	}
	if _, ok := err.(*pck.DuplicatePathError); !ok {
		t.Fatalf("Append duplicate path returned %T, want *pck.DuplicatePathError", err)
	}
}

func TestReplaceInPlaceWhenSmaller(t *testing.T) {
	eng, _ := freshEngine(t)
	if err := eng.Append("a.txt", []byte("0123456789"), pck.StoreRaw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before := eng.entries[0].Offset
	if err := eng.Replace("a.txt", []byte("ab"), pck.StoreRaw); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if eng.entries[0].Offset != before {
		t.Errorf("Replace with a smaller payload moved the offset: got %d, want %d", eng.entries[0].Offset, before)
	}
	if eng.entries[0].ClearSize != 2 {
		t.Errorf("ClearSize after shrink-replace = %d, want 2", eng.entries[0].ClearSize)
	}
}

func TestReplaceAppendsWhenLarger(t *testing.T) {
	eng, _ := freshEngine(t)
	if err := eng.Append("a.txt", []byte("ab"), pck.StoreRaw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before := eng.entries[0].Offset
	if err := eng.Replace("a.txt", []byte("0123456789"), pck.StoreRaw); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if eng.entries[0].Offset == before {
		t.Error("Replace with a larger payload should move to a new offset")
	}
	if eng.entries[0].ClearSize != 10 {
		t.Errorf("ClearSize after grow-replace = %d, want 10", eng.entries[0].ClearSize)
	}
}

func TestRemoveUnknownPath(t *testing.T) {
	eng, _ := freshEngine(t)
	err := eng.Remove("missing.txt")
	if err == nil {
		t.Fatal("Remove unknown path: want error, got nil")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Remove unknown path returned %T, want *NotFoundError", err)
	}
}

func TestRemoveThenCommit(t *testing.T) {
	eng, _ := freshEngine(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := eng.Append(name, []byte(name), pck.StoreRaw); err != nil {
			t.Fatalf("Append(%s): %v", name, err)
		}
	}
	if err := eng.Remove("b.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, footer, err := eng.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if footer.FileCount != 2 {
		t.Fatalf("FileCount after remove+commit = %d, want 2", footer.FileCount)
	}
	if eng.Redundancy() == 0 {
		t.Error("Redundancy should account for the removed entry's abandoned payload")
	}
}

func TestAbortDiscardsDirtyFlag(t *testing.T) {
	eng, _ := freshEngine(t)
	if err := eng.Append("a.txt", []byte("x"), pck.StoreRaw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	eng.Abort()
	if eng.dirty {
		t.Error("Abort did not clear the dirty flag")
	}
}
