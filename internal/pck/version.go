package pck

// Layout describes one candidate on-disk index-entry layout ("version").
// The exact parity constants were not recoverable from the retrieved
// original source (see DESIGN.md); they are documented, self-consistent
// choices exercised by this package's round-trip tests.
type Layout struct {
	Width int
	Name  string
	// Parity holds, for each Kind, the expected full low byte of
	// flags^C (spec I5). The low two bits of each entry always equal
	// the Kind value by construction; the upper six bits are this
	// layout's check constant.
	Parity [3]byte
	// SupportsUpdate is true when the index region is guaranteed to sit
	// strictly after all payload regions, so in-place mutation never
	// needs to shift payload offsets (spec §4.9).
	SupportsUpdate bool
}

func parityFor(kind Kind, check byte) byte {
	return (check << 2) | byte(kind)
}

// FlagsFor returns the flags word an encoder must store for an entry of the
// given kind so that it satisfies I5 under layout l and key schedule c:
// ParityByte(flags, c) == l.Parity[kind]. This is the single source of truth
// for entry-flags encoding; every writer (builder, mutation engine, tests)
// must go through it rather than XOR-ing the kind in directly, or the
// written flags only carry the low two bits and CheckParity rejects every
// record on the next mount.
func FlagsFor(kind Kind, l Layout, c uint32) uint32 {
	return c ^ uint32(l.Parity[kind])
}

// DefaultLayouts lists the known layouts newest-to-oldest, the tie-break
// order spec §4.4 specifies for the built-in detector.
var DefaultLayouts = []Layout{
	{
		Width: 288,
		Name:  "v3",
		Parity: [3]byte{
			parityFor(KindFile, 0x2F),
			parityFor(KindFolder, 0x2F),
			parityFor(KindTail, 0x2F),
		},
		SupportsUpdate: true,
	},
	{
		Width: 276,
		Name:  "v2",
		Parity: [3]byte{
			parityFor(KindFile, 0x17),
			parityFor(KindFolder, 0x17),
			parityFor(KindTail, 0x17),
		},
		SupportsUpdate: true,
	},
	{
		Width: 260,
		Name:  "v1",
		Parity: [3]byte{
			parityFor(KindFile, 0x05),
			parityFor(KindFolder, 0x05),
			parityFor(KindTail, 0x05),
		},
		SupportsUpdate: true,
	},
}

// CheckParity reports whether e's flags satisfy I5 for layout l.
func CheckParity(e Entry, l Layout, c uint32) bool {
	return ParityByte(e.Flags, c) == l.Parity[e.Kind]
}

// DetectVersion implements spec §4.4: it reads the footer's index block
// once, inflates it if it starts with a zlib header (otherwise the block is
// taken as raw, uncompressed records), then tries each
// candidate layout in order, accepting the first whose decoded entries are
// all self-consistent (I2: cipher_size <= clear_size, and I5: parity).
//
// candidates is normally DefaultLayouts; callers (notably tests) may pass
// a different order or subset to exercise the tie-break rule directly.
func DetectVersion(r ReaderAt, f Footer, k Keys, candidates []Layout) (Layout, []Entry, error) {
	raw := make([]byte, f.IndexBlockSize)
	if _, err := readFullAt(r, raw, int64(f.IndexOffset)); err != nil {
		return Layout{}, nil, err
	}

	block := raw
	if looksZlib(raw) {
		decoded, err := decompressBlock(raw, 0)
		if err == nil {
			block = decoded
		}
	}

	var tried []int
	for _, layout := range candidates {
		tried = append(tried, layout.Width)
		if len(block)%layout.Width != 0 {
			continue
		}
		n := len(block) / layout.Width
		if n != int(f.FileCount)+1 {
			continue
		}
		entries := make([]Entry, 0, n)
		ok := true
		for i := 0; i < n; i++ {
			rec := block[i*layout.Width : (i+1)*layout.Width]
			e, err := DecodeEntry(rec, layout.Width, k)
			if err != nil {
				ok = false
				break
			}
			if e.CipherSize > e.ClearSize {
				ok = false
				break
			}
			if !CheckParity(e, layout, k.C) {
				ok = false
				break
			}
			entries = append(entries, e)
		}
		if !ok {
			continue
		}
		// The original implementation force-sets the final entry's kind
		// to tail after the index table loads (PckClassMount.cpp); do the
		// same here so a layout whose parity table happens to agree with
		// KindFile/KindFolder on the last record still yields a valid tail.
		if len(entries) > 0 {
			entries[len(entries)-1].Kind = KindTail
		}
		return layout, entries, nil
	}
	return Layout{}, nil, &UnknownVersionError{Tried: tried}
}
