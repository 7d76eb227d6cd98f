package main

import (
	"context"
	"flag"
	"fmt"
)

const infoHelp = `winpck info [-flags] <pck>

Print archive metadata: detected layout, file count, sizes.

Example:
  % winpck info data.pck
`

func cmdInfo(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("info", flag.ExitOnError)
	var k keyFlags
	k.register(fset)
	fset.Usage = usage(fset, infoHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) != 1 {
		return fmt.Errorf("syntax: winpck info [-flags] <pck>")
	}
	s, err := mountOrExit(rest[0], &k)
	if err != nil {
		return err
	}
	defer s.Unmount()

	fmt.Printf("version:        %s\n", s.VersionName())
	fmt.Printf("file_count:     %d\n", s.FileCount())
	fmt.Printf("file_size:      %d\n", s.FileSize())
	fmt.Printf("data_area_size: %d\n", s.DataAreaSize())
	fmt.Printf("redundancy:     %d\n", s.RedundancySize())
	fmt.Printf("supports_update: %v\n", s.SupportsUpdate())
	return nil
}
