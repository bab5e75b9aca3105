package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"xdao.co/wallet/wallet"
)

func newBuilder(e *env) (*wallet.Builder, error) {
	return wallet.New(wallet.Options{
		Resolver:  e.store,
		Templates: os.DirFS(e.cfg.Templates),
		Config:    e.cfg,
		Logger:    e.logger,
	})
}

func cmdBuild(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var g globalFlags
	var secret, walletKey string
	var params []string
	fs := newFlagSet("build", errOut, &g)
	fs.StringVar(&secret, "secret", "", "wallet secret")
	fs.StringVar(&walletKey, "wallet-key", "", "existing writable unit for the wallet")
	fs.StringArrayVar(&params, "param", nil, "request parameter name=value (repeatable)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if secret == "" || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: xdao-wallet build --secret <secret> [--wallet-key <key>] [--param name=value ...]")
		return 2
	}
	values := url.Values{}
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			fmt.Fprintf(errOut, "invalid --param %q: want name=value\n", p)
			return 2
		}
		values.Add(name, value)
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	b, err := newBuilder(e)
	if err != nil {
		return fail(errOut, err)
	}
	key, err := b.WalletKey(secret)
	if err != nil {
		return fail(errOut, err)
	}
	w, err := b.Build(ctx, wallet.BuildRequest{Secret: secret, WalletKey: walletKey, Params: values})
	if err != nil {
		return fail(errOut, err)
	}
	_, _ = fmt.Fprintln(out, key)
	_, _ = fmt.Fprintln(out, w.Key())
	return 0
}

func cmdRebuild(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	var g globalFlags
	fs := newFlagSet("rebuild", errOut, &g)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-wallet rebuild <wallet-key>")
		return 2
	}

	e, err := openEnv(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer e.Close()

	b, err := newBuilder(e)
	if err != nil {
		return fail(errOut, err)
	}
	u, err := e.store.Load(ctx, fs.Arg(0))
	if err != nil {
		return fail(errOut, err)
	}
	if err := b.Rebuild(ctx, u); err != nil {
		return fail(errOut, err)
	}
	_, _ = fmt.Fprintln(out, "rebuilt", u.Key())
	return 0
}
