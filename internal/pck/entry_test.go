package pck

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEntryRoundTrip(t *testing.T) {
	k := DeriveKeys(42, Overrides{})
	for _, layout := range DefaultLayouts {
		for _, tt := range []struct {
			name string
			e    Entry
		}{
			{
				name: "file",
				e: Entry{
					Path:       "textures/hero/skin.dds",
					Offset:     1 << 20,
					ClearSize:  4096,
					CipherSize: 2048,
					Kind:       KindFile,
				},
			},
			{
				name: "folder",
				e: Entry{
					Path: "textures/hero",
					Kind: KindFolder,
				},
			},
			{
				name: "tail",
				e: Entry{
					Path: "",
					Kind: KindTail,
				},
			},
			{
				name: "zero sizes",
				e: Entry{
					Path: "empty.txt",
					Kind: KindFile,
				},
			},
		} {
			t.Run(layout.Name+"/"+tt.name, func(t *testing.T) {
				e := tt.e
				e.Flags = FlagsFor(e.Kind, layout, k.C)
				rec, err := EncodeEntry(e, layout.Width, k)
				if err != nil {
					t.Fatalf("EncodeEntry: %v", err)
				}
				if len(rec) != layout.Width {
					t.Fatalf("EncodeEntry produced %d bytes, want %d", len(rec), layout.Width)
				}
				got, err := DecodeEntry(rec, layout.Width, k)
				if err != nil {
					t.Fatalf("DecodeEntry: %v", err)
				}
				if diff := cmp.Diff(e, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
				if !CheckParity(got, layout, k.C) {
					t.Errorf("round-tripped entry does not satisfy I5 parity for layout %s", layout.Name)
				}
			})
		}
	}
}

func TestEntryNameTooLong(t *testing.T) {
	k := DeriveKeys(1, Overrides{})
	layout := DefaultLayouts[len(DefaultLayouts)-1] // narrowest
	nameWidth := layout.Width - fixedFieldsSize
	longPath := make([]byte, nameWidth)
	for i := range longPath {
		longPath[i] = 'a'
	}
	_, err := EncodeEntry(Entry{Path: string(longPath), Kind: KindFile}, layout.Width, k)
	if err == nil {
		t.Fatal("EncodeEntry with an oversized path: want error, got nil")
	}
}

func TestKindFromFlags(t *testing.T) {
	c := uint32(0x18734563)
	for kind := KindFile; kind <= KindTail; kind++ {
		flags := uint32(kind) ^ c
		if got := KindFromFlags(flags, c); got != kind {
			t.Errorf("KindFromFlags(%#x, %#x) = %v, want %v", flags, c, got, kind)
		}
	}
}

func TestDecodeEntryWrongWidth(t *testing.T) {
	k := DeriveKeys(1, Overrides{})
	if _, err := DecodeEntry(make([]byte, 10), 260, k); err == nil {
		t.Fatal("DecodeEntry with mismatched buffer length: want error, got nil")
	}
}
