package pck

import (
	"bytes"
	"strings"
	"testing"
)

func TestPayloadRoundTripCompressed(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog\n", 200))
	stored, clearSize, cipherSize := WritePayload(data, BestCompression)
	if cipherSize >= clearSize {
		t.Fatalf("highly compressible payload did not shrink: clear=%d cipher=%d", clearSize, cipherSize)
	}

	e := Entry{Path: "log.txt", ClearSize: clearSize, CipherSize: cipherSize}
	r := memReader(stored)
	got, err := ReadPayload(r, e)
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadPayload returned %d bytes, want %d matching the original", len(got), len(data))
	}
}

func TestPayloadRoundTripStoreRaw(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	stored, clearSize, cipherSize := WritePayload(data, StoreRaw)
	if clearSize != cipherSize {
		t.Fatalf("StoreRaw payload: clear=%d cipher=%d, want equal", clearSize, cipherSize)
	}
	e := Entry{Path: "raw.bin", ClearSize: clearSize, CipherSize: cipherSize}
	got, err := ReadPayload(memReader(stored), e)
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadPayload = %v, want %v", got, data)
	}
}

func TestPayloadIncompressibleFallsBackToRaw(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 97)
	}
	stored, clearSize, cipherSize := WritePayload(data, BestCompression)
	if clearSize != cipherSize {
		t.Errorf("incompressible payload unexpectedly shrank: clear=%d cipher=%d", clearSize, cipherSize)
	}
	if !bytes.Equal(stored, data) {
		t.Error("incompressible payload was not stored as-is")
	}
}

func TestReadPayloadCorrupt(t *testing.T) {
	data := []byte(strings.Repeat("payload", 50))
	stored, clearSize, cipherSize := WritePayload(data, BestCompression)
	if cipherSize < clearSize {
		e := Entry{Path: "bad.bin", ClearSize: clearSize + 1, CipherSize: cipherSize}
		if _, err := ReadPayload(memReader(stored), e); err == nil {
			t.Fatal("ReadPayload with wrong clear size: want error, got nil")
		} else if _, ok := err.(*PayloadCorruptError); !ok {
			t.Fatalf("ReadPayload with wrong clear size returned %T, want *PayloadCorruptError", err)
		}
	}
}
