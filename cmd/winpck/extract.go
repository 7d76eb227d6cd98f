package main

import (
	"context"
	"flag"
	"fmt"
)

const extractHelp = `winpck extract [-flags] <pck> <dir>

Extract every file in the archive into dir.

Example:
  % winpck extract data.pck ./out
`

func cmdExtract(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("extract", flag.ExitOnError)
	var k keyFlags
	k.register(fset)
	fset.Usage = usage(fset, extractHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) != 2 {
		return fmt.Errorf("syntax: winpck extract [-flags] <pck> <dir>")
	}
	s, err := mountOrExit(rest[0], &k)
	if err != nil {
		return err
	}
	defer s.Unmount()

	h, err := s.ExtractAll(rest[1])
	if err != nil {
		return fmt.Errorf("extract_all: %w", err)
	}
	stop := progressWriter(s, "extract")
	err = h.Wait()
	stop()
	if err != nil {
		return fmt.Errorf("extract_all: %w", err)
	}
	return nil
}
