package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/crucifix86/WinPCK-Linux/internal/archive"
	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

// keyFlags holds the algorithm id and key-schedule overrides every
// subcommand that opens an archive needs (spec.md §4.1).
type keyFlags struct {
	algorithmID uint
	g0, g1      uint
	m, c        uint
}

func (k *keyFlags) register(fset *flag.FlagSet) {
	fset.UintVar(&k.algorithmID, "algorithm", 1, "archive algorithm id (key schedule selector)")
	fset.UintVar(&k.g0, "g0", 0, "override derived guard word G0 (0 = use derived value)")
	fset.UintVar(&k.g1, "g1", 0, "override derived guard word G1 (0 = use derived value)")
	fset.UintVar(&k.m, "m", 0, "override derived mask word M (0 = use derived value)")
	fset.UintVar(&k.c, "c", 0, "override derived check word C (0 = use derived value)")
}

func (k *keyFlags) overrides() pck.Overrides {
	return pck.Overrides{
		G0: uint32(k.g0),
		G1: uint32(k.g1),
		M:  uint32(k.m),
		C:  uint32(k.c),
	}
}

// mountOrExit opens path and returns any failure wrapped with the archive
// path for context; main prints the returned error to stderr.
func mountOrExit(path string, k *keyFlags) (*archive.Session, error) {
	s, err := archive.Mount(path, uint32(k.algorithmID), k.overrides())
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", path, err)
	}
	return s, nil
}

// progressWriter prints a single-line progress indicator to stderr, but
// only when stderr is an actual terminal (spec.md §6: "progress to
// stderr" without spamming redirected output).
func progressWriter(s *archive.Session, label string) func() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(200 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintf(os.Stderr, "\r%s: done.%s\n", label, "                    ")
				return
			case <-t.C:
				cur, total := s.Progress()
				fmt.Fprintf(os.Stderr, "\r%s: %d/%d", label, cur, total)
			}
		}
	}()
	return func() { close(done) }
}
