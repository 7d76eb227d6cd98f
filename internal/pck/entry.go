package pck

import (
	"encoding/binary"
	"fmt"
)

// Kind discriminates what an index entry describes. It is derived from the
// two low bits of the entry's decoded flags word, XORed with the key
// schedule's check word C.
type Kind uint8

const (
	KindFile Kind = iota
	KindFolder
	KindTail
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindTail:
		return "tail"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// fixedFieldsSize is the combined byte size of offset, clear_size,
// cipher_size and flags — the part of the record that follows the name
// area, for every known layout.
const fixedFieldsSize = 8 + 8 + 8 + 4

// Entry is the decoded form of a single on-disk index record.
type Entry struct {
	Path       string
	Offset     uint64
	ClearSize  uint64
	CipherSize uint64
	// Flags is the decoded (de-obfuscated) flags word, kept bit-exact so
	// that re-encoding reproduces the original record even though only
	// the low two bits are semantically interpreted here.
	Flags uint32
	Kind  Kind
}

// KindFromFlags derives an entry's kind from its decoded flags word and
// the key schedule's check word, per spec: "Derive kind from the two low
// bits of flags ^ C."
func KindFromFlags(flags, c uint32) Kind {
	return Kind((flags ^ c) & 0x3)
}

// ParityByte returns the full low byte of flags^C, the value §9/I5 compares
// against a version- and kind-specific constant.
func ParityByte(flags, c uint32) byte {
	return byte((flags ^ c) & 0xFF)
}

// DecodeEntry decodes a single w-byte on-disk record using key schedule k.
func DecodeEntry(raw []byte, w int, k Keys) (Entry, error) {
	if len(raw) != w {
		return Entry{}, fmt.Errorf("pck: entry record is %d bytes, want %d", len(raw), w)
	}
	nameWidth := w - fixedFieldsSize

	nameBuf := make([]byte, nameWidth)
	lowM := byte(k.M)
	for i, b := range raw[:nameWidth] {
		nameBuf[i] = b ^ lowM
	}
	path := decodePathBytes(nameBuf)

	offset := xorField64(raw, nameWidth, k.M)
	clearSize := xorField64(raw, nameWidth+8, k.M)
	cipherSize := xorField64(raw, nameWidth+16, k.M)
	flags := xorField32(raw, nameWidth+24, k.M)

	return Entry{
		Path:       path,
		Offset:     offset,
		ClearSize:  clearSize,
		CipherSize: cipherSize,
		Flags:      flags,
		Kind:       KindFromFlags(flags, k.C),
	}, nil
}

// EncodeEntry encodes e into a fresh w-byte on-disk record using key
// schedule k. Unused name bytes are zeroed before obfuscation, and numeric
// fields are written little-endian before obfuscation, so that encoding is
// deterministic (spec §4.5).
func EncodeEntry(e Entry, w int, k Keys) ([]byte, error) {
	nameWidth := w - fixedFieldsSize
	nameBytes := encodePathBytes(e.Path)
	if len(nameBytes) >= nameWidth {
		return nil, fmt.Errorf("pck: path %q (%d bytes) does not fit in %d-byte name area", e.Path, len(nameBytes), nameWidth-1)
	}

	raw := make([]byte, w)
	lowM := byte(k.M)
	for i := 0; i < nameWidth; i++ {
		var b byte
		if i < len(nameBytes) {
			b = nameBytes[i]
		}
		raw[i] = b ^ lowM
	}

	putXorField64(raw, nameWidth, e.Offset, k.M)
	putXorField64(raw, nameWidth+8, e.ClearSize, k.M)
	putXorField64(raw, nameWidth+16, e.CipherSize, k.M)
	putXorField32(raw, nameWidth+24, e.Flags, k.M)

	return raw, nil
}

// xorField64 reads an 8-byte little-endian word at byte offset o within the
// record and un-obfuscates it: each of its two constituent 32-bit halves is
// XORed with M rotated by that half's own record offset, mod 32.
func xorField64(raw []byte, o int, m uint32) uint64 {
	lo := binary.LittleEndian.Uint32(raw[o : o+4])
	hi := binary.LittleEndian.Uint32(raw[o+4 : o+8])
	lo ^= rotl32(m, uint(o%32))
	hi ^= rotl32(m, uint((o+4)%32))
	return uint64(lo) | uint64(hi)<<32
}

func putXorField64(raw []byte, o int, v uint64, m uint32) {
	lo := uint32(v)
	hi := uint32(v >> 32)
	lo ^= rotl32(m, uint(o%32))
	hi ^= rotl32(m, uint((o+4)%32))
	binary.LittleEndian.PutUint32(raw[o:o+4], lo)
	binary.LittleEndian.PutUint32(raw[o+4:o+8], hi)
}

// xorField32 reads a 4-byte little-endian word at byte offset o and
// un-obfuscates it by XOR with M rotated by o mod 32.
func xorField32(raw []byte, o int, m uint32) uint32 {
	word := binary.LittleEndian.Uint32(raw[o : o+4])
	return word ^ rotl32(m, uint(o%32))
}

func putXorField32(raw []byte, o int, v, m uint32) {
	binary.LittleEndian.PutUint32(raw[o:o+4], v^rotl32(m, uint(o%32)))
}

func decodePathBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return DecodePath(b)
}

func encodePathBytes(path string) []byte {
	return EncodePath(path)
}
