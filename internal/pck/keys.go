// Package pck implements the PCK archive format codec: footer discovery,
// index table decoding across several on-disk layouts, per-entry field
// obfuscation, payload (de)compression, and the directory tree that flat
// index entries are grouped into.
//
// The package is a pure codec: it operates on an io.ReaderAt/io.WriterAt
// (or the narrower interfaces it needs) and never touches the filesystem
// directly. Session lifecycle, mutation, and the on-disk mapping live in
// sibling packages (internal/archive, internal/mutation).
package pck

// Keys holds the four 32-bit words derived from an archive's algorithm id.
// G0 and G1 are guard constants tested at the footer; M and C are mask
// words xor-folded into every obfuscated index-entry field.
type Keys struct {
	G0 uint32
	G1 uint32
	M  uint32
	C  uint32
}

// Overrides lets a caller force individual key-schedule words, e.g. when
// probing an archive produced with a non-standard algorithm id. A zero
// value leaves the corresponding derived word untouched, mirroring the
// original SetAlgorithmId(id, guard0, guard1, mask, check) convention
// where 0 means "use the derived value".
type Overrides struct {
	G0 uint32
	G1 uint32
	M  uint32
	C  uint32
}

// algorithm111Keys are the hard-coded constants for the "Hot Dance Party"
// algorithm id, copied from the original implementation's special case.
var algorithm111Keys = Keys{
	G0: 0xAB12908F,
	G1: 0xB3231902,
	M:  0x2A63810E,
	C:  0x18734563,
}

// DeriveKeys computes the key schedule for the given algorithm id, applying
// any non-zero overrides. It is a pure function of its arguments and
// produces identical results regardless of host byte order.
func DeriveKeys(algorithmID uint32, overrides Overrides) Keys {
	var k Keys
	if algorithmID == 111 {
		k = algorithm111Keys
	} else {
		id := algorithmID
		k = Keys{
			G0: 0xFDFDFEEE + id*0x72341F2,
			G1: 0xF00DBEEF + id*0x1237A73,
			M:  0xA8937462 + id*0xAB2321F,
			C:  0x59374231 + id*0x987A223,
		}
	}
	if overrides.G0 != 0 {
		k.G0 = overrides.G0
	}
	if overrides.G1 != 0 {
		k.G1 = overrides.G1
	}
	if overrides.M != 0 {
		k.M = overrides.M
	}
	if overrides.C != 0 {
		k.C = overrides.C
	}
	return k
}

// rotl32 rotates v left by n bits, n taken modulo 32.
func rotl32(v uint32, n uint) uint32 {
	n %= 32
	return (v << n) | (v >> (32 - n))
}

// DefaultSentinel is the pair of recognizable values that
// F0^G0 and F1^G1 must decode to for a footer to witness a given key
// schedule. PckStructs.h, which would define this authoritatively, was not
// part of the retrieved original source (see DESIGN.md); these constants
// are therefore a documented, overridable choice rather than a value
// recovered from a known-good corpus. They are exercised by every
// round-trip test in this package, so any self-consistent choice preserves
// the codec's correctness properties.
var DefaultSentinel = [2]uint32{0x5053574D, 0x434B3230} // "PSWM" "CK20"
