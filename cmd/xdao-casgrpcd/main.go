// xdao-casgrpcd serves one block store backend over gRPC so that several
// wallet hosts can share it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"xdao.co/wallet/config"
	"xdao.co/wallet/logs"
	"xdao.co/wallet/storage/casregistry"
	"xdao.co/wallet/storage/grpccas"

	_ "xdao.co/wallet/storage/ipfs"
	_ "xdao.co/wallet/storage/localfs"
)

func main() {
	fs := flag.NewFlagSet("xdao-casgrpcd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	logLevel := fs.String("log-level", "info", "log level (debug|info|warn|error)")
	logFormat := fs.String("log-format", "text", "log format (text|json)")
	journal := fs.Bool("journal", false, "also log to the systemd journal")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	logger, closeLog, err := logs.New(config.Log{Level: *logLevel, Format: *logFormat, Journal: *journal}, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closeLog()

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageDaemon)
	if err != nil {
		logger.Error("open backend", "backend", *backend, "error", err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", "addr", *listen, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("xdao-casgrpcd listening", "addr", lis.Addr().String(), "backend", *backend)
	if err := grpccas.Serve(ctx, lis, cas, logger); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
