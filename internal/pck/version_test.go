package pck

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func buildIndexBlock(t *testing.T, layout Layout, k Keys, entries []Entry) []byte {
	t.Helper()
	block, err := WriteIndexTable(entries, layout, k)
	if err != nil {
		t.Fatalf("WriteIndexTable: %v", err)
	}
	return block
}

func sampleEntries(layout Layout, k Keys) []Entry {
	mk := func(kind Kind, path string) Entry {
		return Entry{
			Path:  path,
			Flags: FlagsFor(kind, layout, k.C),
			Kind:  kind,
		}
	}
	return []Entry{
		mk(KindFolder, "textures"),
		mk(KindFile, "textures/hero.dds"),
		mk(KindTail, ""),
	}
}

func TestDetectVersionPicksMatchingLayout(t *testing.T) {
	k := DeriveKeys(5, Overrides{})
	for _, layout := range DefaultLayouts {
		entries := sampleEntries(layout, k)
		block := buildIndexBlock(t, layout, k, entries)
		f := Footer{FileCount: uint32(len(entries) - 1), IndexOffset: 0, IndexBlockSize: uint32(len(block))}

		got, decoded, err := DetectVersion(memReader(block), f, k, DefaultLayouts)
		if err != nil {
			t.Fatalf("layout %s: DetectVersion: %v", layout.Name, err)
		}
		if got.Name != layout.Name {
			t.Errorf("layout %s: DetectVersion chose %s", layout.Name, got.Name)
		}
		if len(decoded) != len(entries) {
			t.Fatalf("layout %s: decoded %d entries, want %d", layout.Name, len(decoded), len(entries))
		}
		for i := range entries {
			if diff := cmp.Diff(entries[i], decoded[i]); diff != "" {
				t.Errorf("layout %s entry %d mismatch (-want +got):\n%s", layout.Name, i, diff)
			}
		}
	}
}

func TestDetectVersionUnknown(t *testing.T) {
	k := DeriveKeys(5, Overrides{})
	f := Footer{FileCount: 3, IndexOffset: 0, IndexBlockSize: 17}
	_, _, err := DetectVersion(memReader(make([]byte, 17)), f, k, DefaultLayouts)
	if err == nil {
		t.Fatal("DetectVersion on garbage block: want error, got nil")
	}
	if _, ok := err.(*UnknownVersionError); !ok {
		t.Fatalf("DetectVersion on garbage block returned %T, want *UnknownVersionError", err)
	}
}

func TestDetectVersionReversedCandidates(t *testing.T) {
	// Pass the candidates oldest-first: only the block's own width yields
	// file_count+1 records, so DetectVersion still picks that layout.
	k := DeriveKeys(5, Overrides{})
	reversed := make([]Layout, len(DefaultLayouts))
	for i, l := range DefaultLayouts {
		reversed[len(DefaultLayouts)-1-i] = l
	}
	entries := sampleEntries(DefaultLayouts[0], k)
	block := buildIndexBlock(t, DefaultLayouts[0], k, entries)
	f := Footer{FileCount: uint32(len(entries) - 1), IndexOffset: 0, IndexBlockSize: uint32(len(block))}

	got, _, err := DetectVersion(memReader(block), f, k, reversed)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if got.Name != DefaultLayouts[0].Name {
		t.Errorf("DetectVersion with reversed candidates chose %s, want %s", got.Name, DefaultLayouts[0].Name)
	}
}
