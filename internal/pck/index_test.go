package pck

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndexTableRoundTrip(t *testing.T) {
	k := DeriveKeys(3, Overrides{})
	layout := DefaultLayouts[0]
	entries := sampleEntries(layout, k)

	block, err := WriteIndexTable(entries, layout, k)
	if err != nil {
		t.Fatalf("WriteIndexTable: %v", err)
	}
	f := Footer{FileCount: uint32(len(entries) - 1), IndexOffset: 0, IndexBlockSize: uint32(len(block))}

	got, err := ReadIndexTable(memReader(block), f, layout, k)
	if err != nil {
		t.Fatalf("ReadIndexTable: %v", err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteIndexTableDeterministic(t *testing.T) {
	k := DeriveKeys(3, Overrides{})
	layout := DefaultLayouts[0]
	entries := sampleEntries(layout, k)

	a, err := WriteIndexTable(entries, layout, k)
	if err != nil {
		t.Fatalf("WriteIndexTable: %v", err)
	}
	b, err := WriteIndexTable(entries, layout, k)
	if err != nil {
		t.Fatalf("WriteIndexTable: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("WriteIndexTable is not deterministic (-first +second):\n%s", diff)
	}
}
