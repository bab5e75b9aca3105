// xdao-wallet builds, rebuilds and inspects wallets kept in a local or
// remote block store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "build":
		return cmdBuild(ctx, args[1:], out, errOut)
	case "rebuild":
		return cmdRebuild(ctx, args[1:], out, errOut)
	case "ls":
		return cmdLs(ctx, args[1:], out, errOut)
	case "cat":
		return cmdCat(ctx, args[1:], out, errOut)
	case "export":
		return cmdExport(ctx, args[1:], out, errOut)
	case "import":
		return cmdImport(ctx, args[1:], out, errOut)
	case "block":
		return cmdBlock(args[1:], out, errOut)
	case "backends":
		return cmdBackends(out)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-wallet: wallet builder")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-wallet build --secret <secret> [--wallet-key <key>] [--param name=value ...]")
	fmt.Fprintln(w, "  xdao-wallet rebuild <wallet-key>")
	fmt.Fprintln(w, "  xdao-wallet ls <key> [dir]")
	fmt.Fprintln(w, "  xdao-wallet cat <key> <path>")
	fmt.Fprintln(w, "  xdao-wallet export --out <file|-> <key> [<key> ...]")
	fmt.Fprintln(w, "  xdao-wallet import <file|->")
	fmt.Fprintln(w, "  xdao-wallet block put <file>")
	fmt.Fprintln(w, "  xdao-wallet block get <cid> [--out <file>]")
	fmt.Fprintln(w, "  xdao-wallet backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --config <file>     YAML configuration (default $XDAO_WALLET_CONFIG)")
	fmt.Fprintln(w, "  --templates <dir>   template tree (overrides templates:)")
	fmt.Fprintln(w, "  --backend <name>    open a single backend from its flags instead of storage.backends")
	fmt.Fprintln(w, "  --log-level <lvl>   debug|info|warn|error")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - build prints the wallet key, then the key of its writable unit")
	fmt.Fprintln(w, "  - --param appName=<app> --param <app>Seed=<key> installs an existing unit as <app>")
	fmt.Fprintln(w, "  - export labels each unit's head so import can restore it")
}
