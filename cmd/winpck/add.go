package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

const addHelp = `winpck add [-flags] <pck> <file> [path]

Add file to an existing archive at path (the file's base name if omitted).
The archive's layout must support in-place updates.

Example:
  % winpck add data.pck newmesh.dds textures/newmesh.dds
`

func cmdAdd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("add", flag.ExitOnError)
	var k keyFlags
	k.register(fset)
	compress := fset.Bool("compress", false, "deflate-compress the added file instead of storing it raw")
	fset.Usage = usage(fset, addHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) < 2 || len(rest) > 3 {
		return fmt.Errorf("syntax: winpck add [-flags] <pck> <file> [path]")
	}
	archivePath := filepath.Base(rest[1])
	if len(rest) == 3 {
		archivePath = rest[2]
	}

	s, err := mountOrExit(rest[0], &k)
	if err != nil {
		return err
	}
	defer s.Unmount()

	level := pck.StoreRaw
	if *compress {
		level = pck.BestCompression
	}
	h, err := s.Add(rest[1], archivePath, level)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}
