package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/crucifix86/WinPCK-Linux/internal/builder"
	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

const createHelp = `winpck create [-flags] <dir> <pck>

Build a fresh archive from the contents of dir.

Example:
  % winpck create ./mymod mymod.pck
  % winpck create -compress ./mymod mymod.pck
`

func cmdCreate(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("create", flag.ExitOnError)
	var k keyFlags
	k.register(fset)
	compress := fset.Bool("compress", false, "deflate-compress each file instead of storing it raw")
	description := fset.String("description", "", "free-form header description (max 16 bytes)")
	fset.Usage = usage(fset, createHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) != 2 {
		return fmt.Errorf("syntax: winpck create [-flags] <dir> <pck>")
	}

	level := pck.StoreRaw
	if *compress {
		level = pck.BestCompression
	}
	stats, err := builder.BuildFromDirectory(ctx, rest[0], rest[1], builder.Options{
		AlgorithmID: uint32(k.algorithmID),
		Overrides:   k.overrides(),
		Level:       level,
		Description: *description,
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Printf("wrote %s: %d files, %d bytes of payload\n", rest[1], stats.FileCount, stats.DataAreaSize)
	return nil
}
