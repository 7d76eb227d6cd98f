package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/crucifix86/WinPCK-Linux/internal/archive"
	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

func writeSourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"readme.txt":        "hello world",
		"textures/hero.dds": "binary-ish payload data that repeats repeats repeats repeats",
		"audio/theme.ogg":   "fake audio bytes",
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func TestBuildFromDirectoryRoundTrip(t *testing.T) {
	src := writeSourceTree(t)
	dest := filepath.Join(t.TempDir(), "out.pck")

	stats, err := BuildFromDirectory(context.Background(), src, dest, Options{
		AlgorithmID: 7,
		Level:       pck.StoreRaw,
		Description: "test archive",
	})
	if err != nil {
		t.Fatalf("BuildFromDirectory: %v", err)
	}
	if stats.FileCount != 3 {
		t.Errorf("stats.FileCount = %d, want 3", stats.FileCount)
	}

	s, err := archive.Mount(dest, 7, pck.Overrides{})
	if err != nil {
		t.Fatalf("Mount(built archive): %v", err)
	}
	defer s.Unmount()

	// three files plus the "audio" and "textures" folder entries
	if s.FileCount() != 5 {
		t.Errorf("mounted FileCount() = %d, want 5", s.FileCount())
	}
	n, ok := s.Lookup("textures/hero.dds")
	if !ok {
		t.Fatal("Lookup(textures/hero.dds) = not found")
	}
	data, err := s.ReadFile(n)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "binary-ish payload data that repeats repeats repeats repeats" {
		t.Errorf("ReadFile returned %q", data)
	}
}

func TestBuildFromDirectoryCompressed(t *testing.T) {
	src := writeSourceTree(t)
	dest := filepath.Join(t.TempDir(), "out.pck")

	_, err := BuildFromDirectory(context.Background(), src, dest, Options{
		AlgorithmID: 111,
		Level:       pck.BestCompression,
	})
	if err != nil {
		t.Fatalf("BuildFromDirectory: %v", err)
	}

	s, err := archive.Mount(dest, 111, pck.Overrides{})
	if err != nil {
		t.Fatalf("Mount(compressed archive): %v", err)
	}
	defer s.Unmount()

	n, ok := s.Lookup("readme.txt")
	if !ok {
		t.Fatal("Lookup(readme.txt) = not found")
	}
	data, err := s.ReadFile(n)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("ReadFile returned %q, want %q", data, "hello world")
	}
}

func TestBuildFromDirectoryEmpty(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "empty.pck")

	stats, err := BuildFromDirectory(context.Background(), src, dest, Options{AlgorithmID: 1})
	if err != nil {
		t.Fatalf("BuildFromDirectory: %v", err)
	}
	if stats.FileCount != 0 {
		t.Errorf("stats.FileCount = %d, want 0", stats.FileCount)
	}
}
