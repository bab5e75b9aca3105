package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"xdao.co/wallet/config"
	"xdao.co/wallet/logs"
	"xdao.co/wallet/storage"
	"xdao.co/wallet/storage/casregistry"
	"xdao.co/wallet/storage/localfs"
	"xdao.co/wallet/storage/memcas"
	"xdao.co/wallet/unit/castore"

	_ "xdao.co/wallet/storage/grpccas"
	_ "xdao.co/wallet/storage/ipfs"
)

type globalFlags struct {
	config    string
	templates string
	backend   string
	logLevel  string
}

// newFlagSet returns a flag set carrying the common flags and every CLI
// backend's own flags.
func newFlagSet(name string, errOut io.Writer, g *globalFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&g.config, "config", "", "YAML configuration file")
	fs.StringVar(&g.templates, "templates", "", "template tree")
	fs.StringVar(&g.backend, "backend", "", "single CAS backend, configured from its flags")
	fs.StringVar(&g.logLevel, "log-level", "", "log level")

	backendFlags := flag.NewFlagSet(name, flag.ContinueOnError)
	casregistry.RegisterFlags(backendFlags, casregistry.UsageCLI)
	fs.AddGoFlagSet(backendFlags)
	return fs
}

// env is everything a command needs to reach the store.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	cas     storage.CAS
	store   *castore.Store
	closers []func() error
}

func openEnv(g globalFlags, errOut io.Writer) (*env, error) {
	cfg, err := config.Load(g.config)
	if err != nil {
		return nil, err
	}
	if g.templates != "" {
		cfg.Templates = g.templates
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}

	e := &env{cfg: cfg}
	logger, closeLog, err := logs.New(cfg.Log, errOut)
	if err != nil {
		return nil, err
	}
	e.logger = logger
	e.closers = append(e.closers, closeLog)

	var closeCAS func() error
	if g.backend != "" {
		e.cas, closeCAS, err = casregistry.Open(g.backend, casregistry.UsageCLI)
	} else {
		e.cas, closeCAS, err = cfg.Storage.Config.Open(casregistry.UsageCLI, "")
	}
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	if closeCAS != nil {
		e.closers = append(e.closers, closeCAS)
	}

	var heads storage.Heads
	if cfg.Storage.HeadsDir == "" {
		logger.Warn("heads are kept in memory; nothing built here survives this process")
		heads = memcas.NewHeads()
	} else if heads, err = localfs.NewHeads(cfg.Storage.HeadsDir); err != nil {
		_ = e.Close()
		return nil, err
	}

	e.store, err = castore.NewStore(e.cas, heads, castore.Options{
		Compression: castore.Compression(cfg.Storage.Compression),
		Logger:      logger,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if e.closers[i] == nil {
			continue
		}
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parseFlags parses args and reports a usage failure as exit code 2.
func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	return 1
}
