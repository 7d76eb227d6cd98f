// Command winpck is the CLI surface sketched in spec.md §6: list, extract,
// info, create, add against a single PCK archive. Exit code 0 on success,
// 1 on any failure, progress written to stderr only on a real terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	winpck "github.com/crucifix86/WinPCK-Linux"
	"github.com/crucifix86/WinPCK-Linux/internal/tracelog"
)

func funcmain() error {
	flag.Parse()
	winpck.RegisterAtExit(func() error {
		tracelog.Disable()
		return nil
	})

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"list":    {cmdList},
		"extract": {cmdExtract},
		"info":    {cmdInfo},
		"create":  {cmdCreate},
		"add":     {cmdAdd},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "winpck [-flags] <command> [-flags] <args>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "\tlist    <pck> [path]      list archive contents")
		fmt.Fprintln(os.Stderr, "\textract <pck> <dir>       extract the whole archive")
		fmt.Fprintln(os.Stderr, "\tinfo    <pck>             print archive metadata")
		fmt.Fprintln(os.Stderr, "\tcreate  <dir> <pck>       build a fresh archive from a directory")
		fmt.Fprintln(os.Stderr, "\tadd     <pck> <file> [path]  add a file to an existing archive")
		return fmt.Errorf("missing command")
	}
	verb, rest := args[0], args[1:]

	v, ok := verbs[verb]
	if !ok {
		return fmt.Errorf("unknown command %q", verb)
	}
	ctx, canc := winpck.InterruptibleContext()
	defer canc()
	return v.fn(ctx, rest)
}

func main() {
	err := funcmain()
	if atErr := winpck.RunAtExit(); atErr != nil && err == nil {
		err = atErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
