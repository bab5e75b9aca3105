// Package wallet builds and rebuilds wallets from templates.
//
// A wallet is a storage unit whose app folder is filled from the wallet
// template and whose apps are mounted below the apps mount directory. Apps
// either reuse an existing unit or are instantiated from an app template.
// Every file is written in its own batch, and every failure names the stage
// (and app) it happened in.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"

	"xdao.co/wallet/config"
	"xdao.co/wallet/keys"
	"xdao.co/wallet/logs"
	"xdao.co/wallet/template"
	"xdao.co/wallet/unit"
)

// Options configures a Builder.
type Options struct {
	Resolver unit.Resolver
	// Templates is the tree holding the wallet and app templates.
	Templates fs.FS
	Config    *config.Config
	Logger    *slog.Logger
}

// Builder provisions wallets. It is safe to share between goroutines as long
// as no two calls work on the same wallet.
type Builder struct {
	resolver      unit.Resolver
	templates     *template.Loader
	layout        config.Layout
	domain        string
	environment   map[string]any
	strictLanding bool
	logger        *slog.Logger
}

func New(opts Options) (*Builder, error) {
	if opts.Resolver == nil {
		return nil, wrapError(KindConfig, "configure builder", errors.New("resolver is required"))
	}
	if opts.Templates == nil {
		return nil, wrapError(KindConfig, "configure builder", errors.New("template tree is required"))
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, wrapError(KindConfig, "configure builder", err)
	}
	if err := keys.CheckDomain(cfg.Domain); err != nil {
		return nil, wrapError(KindConfig, "configure builder", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		resolver:      opts.Resolver,
		templates:     template.NewLoader(opts.Templates),
		layout:        cfg.Layout,
		domain:        cfg.Domain,
		environment:   cfg.Environment,
		strictLanding: cfg.StrictLandingApp,
		logger:        logger,
	}, nil
}

// BuildRequest carries the inputs of one Build call.
type BuildRequest struct {
	Secret string
	// WalletKey, when set, names an existing writable unit the new wallet
	// points at. No content is written in that case.
	WalletKey string
	// Params holds request parameters; appName=<name> with <name>Seed=<key>
	// adds external apps.
	Params url.Values
}

// WalletKey returns the wallet capability for secret in the builder's domain.
func (b *Builder) WalletKey(secret string) (string, error) {
	c, err := keys.DeriveWallet(b.domain, secret)
	if err != nil {
		return "", wrapError(KindConfig, "derive wallet key", err)
	}
	return c.String(), nil
}

// Build returns the writable unit of the wallet for req.Secret, creating and
// populating the wallet first if it does not exist yet.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (unit.Unit, error) {
	ctx = logs.WithRun(ctx, ulid.Make().String())

	walletKey, err := b.WalletKey(req.Secret)
	if err != nil {
		return nil, err
	}
	existing, err := b.resolver.Load(ctx, walletKey)
	if err == nil {
		b.logger.WarnContext(ctx, "wallet already exists for these credentials; reusing it", "wallet", walletKey)
		w, err := existing.Writable(ctx)
		if err != nil {
			return nil, &Error{Kind: KindUnitLoad, Stage: "open wallet", Cause: err}
		}
		return w, nil
	}
	b.logger.DebugContext(ctx, "wallet not loadable; creating it", "wallet", walletKey, "error", err)

	typePath := path.Join(b.layout.WalletTemplateFolder, b.layout.TypeFile)
	typeData, err := b.templates.ReadFile(typePath)
	if err != nil {
		return nil, &Error{Kind: KindTemplateRead, Stage: "read wallet type", Path: typePath, Cause: err}
	}
	walletType := strings.TrimSpace(string(typeData))

	created, err := b.resolver.Create(ctx, walletKey, unit.CreateOptions{
		Type:     walletType,
		TypePath: "/" + b.layout.CodeFolder,
		Writable: req.WalletKey,
	})
	if err != nil {
		return nil, &Error{Kind: KindUnitCreate, Stage: "create wallet of type " + walletType, Cause: err}
	}
	w, err := created.Writable(ctx)
	if err != nil {
		return nil, &Error{Kind: KindUnitLoad, Stage: "open wallet", Cause: err}
	}
	b.logger.InfoContext(ctx, "created wallet", "wallet", walletKey, "writable", w.Key())
	if req.WalletKey != "" {
		return w, nil
	}

	m, err := b.loadTemplate(b.layout.WalletTemplateFolder)
	if err != nil {
		return nil, err
	}
	records := m.Without("/", b.layout.TypeFile).Flatten()
	if err := WriteFiles(ctx, w, records, "/"+b.layout.AppFolder); err != nil {
		return nil, err
	}
	if err := b.installApplications(ctx, w, req.Params); err != nil {
		return nil, err
	}

	env := b.environment
	if env == nil {
		env = map[string]any{}
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, wrapError(KindConfig, "encode environment", err)
	}
	if err := writeBatch(ctx, w, b.layout.EnvironmentFile, body); err != nil {
		return nil, err
	}
	b.logger.InfoContext(ctx, "wallet built", "wallet", walletKey)
	return w, nil
}

// Rebuild re-applies the wallet template and the templates of its
// registered apps to an existing wallet. No units are created.
func (b *Builder) Rebuild(ctx context.Context, wallet unit.Unit) error {
	ctx = logs.WithRun(ctx, ulid.Make().String())

	w, err := wallet.Writable(ctx)
	if err != nil {
		return &Error{Kind: KindUnitLoad, Stage: "open wallet", Cause: err}
	}
	m, err := b.loadTemplate(b.layout.WalletTemplateFolder)
	if err != nil {
		return err
	}
	records := m.Without("/", b.layout.SeedFile).Flatten()
	if err := WriteFiles(ctx, w, records, "/"+b.layout.AppFolder); err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "rebuilding applications", "wallet", wallet.Key())
	return b.rebuildApplications(ctx, w)
}
