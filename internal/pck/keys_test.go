package pck

import "testing"

func TestDeriveKeysAlgorithm111(t *testing.T) {
	k := DeriveKeys(111, Overrides{})
	if k != algorithm111Keys {
		t.Errorf("DeriveKeys(111) = %+v, want %+v", k, algorithm111Keys)
	}
}

func TestDeriveKeysOverrides(t *testing.T) {
	base := DeriveKeys(7, Overrides{})
	overridden := DeriveKeys(7, Overrides{M: 0xDEADBEEF})
	if overridden.M != 0xDEADBEEF {
		t.Errorf("M override not applied: got %#x", overridden.M)
	}
	if overridden.G0 != base.G0 || overridden.G1 != base.G1 || overridden.C != base.C {
		t.Errorf("override of M changed other words: base=%+v overridden=%+v", base, overridden)
	}
}

func TestDeriveKeysDistinctAlgorithms(t *testing.T) {
	a := DeriveKeys(1, Overrides{})
	b := DeriveKeys(2, Overrides{})
	if a == b {
		t.Errorf("DeriveKeys(1) and DeriveKeys(2) produced identical key schedules")
	}
}

func TestRotl32(t *testing.T) {
	for _, tt := range []struct {
		v    uint32
		n    uint
		want uint32
	}{
		{0x00000001, 1, 0x00000002},
		{0x80000000, 1, 0x00000001},
		{0x12345678, 0, 0x12345678},
		{0x12345678, 32, 0x12345678},
		{0x12345678, 36, rotl32(0x12345678, 4)},
	} {
		if got := rotl32(tt.v, tt.n); got != tt.want {
			t.Errorf("rotl32(%#x, %d) = %#x, want %#x", tt.v, tt.n, got, tt.want)
		}
	}
}
