package main

import (
	"fmt"
	"io"
	"os"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
)

// cmdBlock reads and writes raw blocks of the configured store.
func cmdBlock(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-wallet block <put|get> ...")
		return 2
	}
	var g globalFlags
	var outPath string
	fs := newFlagSet("block "+args[0], errOut, &g)
	if args[0] == "get" {
		fs.StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	}
	if code, ok := parseFlags(fs, args[1:]); !ok {
		return code
	}
	if fs.NArg() != 1 || (args[0] != "put" && args[0] != "get") {
		fmt.Fprintln(errOut, "usage: xdao-wallet block put <file> | block get <cid> [--out <file>]")
		return 2
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	if args[0] == "put" {
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return fail(errOut, err)
		}
		id, err := e.cas.Put(data)
		if err != nil {
			return fail(errOut, err)
		}
		_, _ = fmt.Fprintln(out, id.String())
		return 0
	}

	id, ok := cidutil.ParseDefined(fs.Arg(0))
	if !ok {
		return fail(errOut, storage.ErrInvalidCID)
	}
	data, err := e.cas.Get(id)
	if err != nil {
		return fail(errOut, err)
	}
	if outPath == "" {
		_, _ = out.Write(data)
		return 0
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fail(errOut, err)
	}
	return 0
}
