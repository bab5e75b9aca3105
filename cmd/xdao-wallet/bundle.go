package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/storage/bundle"
)

// headLabel prefixes the bundle label recording a unit's head.
const headLabel = "head:"

func cmdExport(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var g globalFlags
	var outPath string
	fs := newFlagSet("export", errOut, &g)
	fs.StringVarP(&outPath, "out", "o", "", "bundle file, or - for stdout")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if outPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: xdao-wallet export --out <file|-> <key> [<key> ...]")
		return 2
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	var ids []cid.Cid
	labels := map[string]cid.Cid{}
	for _, key := range fs.Args() {
		blocks, heads, err := e.store.Blocks(ctx, key)
		if err != nil {
			return fail(errOut, fmt.Errorf("export %s: %w", key, err))
		}
		ids = append(ids, blocks...)
		for k, head := range heads {
			labels[headLabel+k] = head
		}
	}

	w := out
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fail(errOut, err)
		}
		defer f.Close()
		w = f
	}
	if err := bundle.Export(w, e.cas, ids, bundle.ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		return fail(errOut, err)
	}
	e.logger.Info("exported bundle", "units", len(labels), "blocks", len(ids))
	return 0
}

func cmdImport(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var g globalFlags
	var ignoreUnknown bool
	fs := newFlagSet("import", errOut, &g)
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "skip unknown bundle entries")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-wallet import <file|->")
		return 2
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	var r io.Reader = os.Stdin
	if p := fs.Arg(0); p != "-" {
		f, err := os.Open(p)
		if err != nil {
			return fail(errOut, err)
		}
		defer f.Close()
		r = f
	}
	res, err := bundle.ImportWithOptions(r, e.cas, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
	if err != nil {
		return fail(errOut, err)
	}

	names := make([]string, 0, len(res.Labels))
	for name := range res.Labels {
		if strings.HasPrefix(name, headLabel) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.TrimPrefix(name, headLabel)
		if err := e.store.RestoreHead(ctx, key, res.Labels[name]); err != nil {
			return fail(errOut, fmt.Errorf("restore %s: %w", key, err))
		}
	}
	_, _ = fmt.Fprintf(out, "imported %d blocks, %d units\n", res.Blocks, len(names))
	return 0
}
