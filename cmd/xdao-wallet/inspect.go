package main

import (
	"context"
	"fmt"
	"io"

	"xdao.co/wallet/storage/casregistry"
)

func cmdLs(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var g globalFlags
	fs := newFlagSet("ls", errOut, &g)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprintln(errOut, "usage: xdao-wallet ls <key> [dir]")
		return 2
	}
	dir := "/"
	if fs.NArg() == 2 {
		dir = fs.Arg(1)
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	u, err := e.store.Load(ctx, fs.Arg(0))
	if err != nil {
		return fail(errOut, err)
	}
	files, err := u.ListFiles(ctx, dir)
	if err != nil {
		return fail(errOut, err)
	}
	mounts, err := u.ListMounts(ctx, dir)
	if err != nil {
		return fail(errOut, err)
	}
	for _, f := range files {
		_, _ = fmt.Fprintln(out, f)
	}
	for _, mp := range mounts {
		_, _ = fmt.Fprintf(out, "%s\t-> %s\n", mp.Path, mp.Key)
	}
	return 0
}

func cmdCat(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var g globalFlags
	fs := newFlagSet("cat", errOut, &g)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: xdao-wallet cat <key> <path>")
		return 2
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	u, err := e.store.Load(ctx, fs.Arg(0))
	if err != nil {
		return fail(errOut, err)
	}
	data, err := u.ReadFile(ctx, fs.Arg(1))
	if err != nil {
		return fail(errOut, err)
	}
	_, _ = out.Write(data)
	return 0
}

func cmdBackends(out io.Writer) int {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}
