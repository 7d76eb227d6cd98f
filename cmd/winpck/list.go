package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/crucifix86/WinPCK-Linux/internal/pck"
)

const listHelp = `winpck list [-flags] <pck> [path]

List archive contents under path (the archive root if omitted).

Example:
  % winpck list data.pck
  % winpck list data.pck textures
`

func cmdList(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	var k keyFlags
	k.register(fset)
	recursive := fset.Bool("recursive", true, "descend into subfolders")
	fset.Usage = usage(fset, listHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) < 1 {
		return fmt.Errorf("syntax: winpck list [-flags] <pck> [path]")
	}
	s, err := mountOrExit(rest[0], &k)
	if err != nil {
		return err
	}
	defer s.Unmount()

	node := s.Root()
	if len(rest) > 1 {
		n, ok := s.Lookup(rest[1])
		if !ok {
			return fmt.Errorf("path %q not found in %s", rest[1], rest[0])
		}
		node = n
	}

	s.List(node, *recursive, func(_ int, path string, kind pck.Kind) {
		if kind == pck.KindFolder {
			fmt.Printf("%s/\n", path)
			return
		}
		fmt.Println(path)
	})
	return nil
}
