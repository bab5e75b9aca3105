package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"xdao.co/wallet/unit"
)

// performInstallation installs names from reg into wallet, last name first.
// The first failure stops the remaining names.
func (b *Builder) performInstallation(ctx context.Context, wallet unit.Unit, reg Registry, names []string) error {
	for i := len(names) - 1; i >= 0; i-- {
		name := strings.TrimPrefix(names[i], "/")
		desc := reg[names[i]]

		var key string
		switch src := desc.Source().(type) {
		case Reuse:
			key = src.Key
		case Instantiate:
			built, err := b.BuildApp(ctx, name, src.Code, src.FromTemplate)
			if err != nil {
				return &Error{Kind: KindInstall, Stage: "build", App: name, Cause: err}
			}
			key = built
		}

		mountPath := unit.CleanPath(path.Join(b.layout.AppsMountDir, name))
		if rest, ok := unit.Within(unit.CleanPath(b.layout.AppsMountDir), mountPath); !ok || strings.Contains(rest, "/") {
			return &Error{Kind: KindInstall, Stage: "install", App: name, Path: mountPath, Cause: unit.ErrInvalidPath}
		}
		if err := wallet.Mount(ctx, mountPath, key); err != nil {
			return &Error{
				Kind:  KindInstall,
				Stage: "install",
				App:   name,
				Cause: &Error{Kind: KindMount, Stage: "mount", Path: mountPath, Cause: err},
			}
		}
		b.logger.DebugContext(ctx, "installed app", "app", name, "path", mountPath, "key", key)
	}
	return nil
}

// installApplications installs the on-disk registry plus any external apps
// named in params.
func (b *Builder) installApplications(ctx context.Context, wallet unit.Unit, params url.Values) error {
	reg, err := b.loadRegistry()
	if err != nil {
		return err
	}

	external := mergeExternalApps(reg, params, b.logger)
	if len(external) > 0 {
		if err := b.writeLandingApp(ctx, wallet, external[0].Name); err != nil {
			if b.strictLanding {
				return err
			}
			b.logger.WarnContext(ctx, "landing app marker not written", "app", external[0].Name, "error", err)
		}
	}

	names := reg.Names()
	if len(names) == 0 {
		return nil
	}
	b.logger.InfoContext(ctx, "installing applications", "apps", names)
	return b.performInstallation(ctx, wallet, reg, names)
}

// mergeExternalApps adds the apps named in params to reg as reused units and
// returns them in request order.
func mergeExternalApps(reg Registry, params url.Values, logger *slog.Logger) []externalApp {
	external := externalApps(params, logger)
	for _, app := range external {
		no := false
		reg.set(app.Name, Descriptor{Seed: app.Seed, HasTemplate: &no, NewInstance: &no})
	}
	return external
}

func (b *Builder) writeLandingApp(ctx context.Context, wallet unit.Unit, name string) error {
	body, err := json.Marshal(struct {
		Name string `json:"name"`
	}{Name: name})
	if err != nil {
		return err
	}
	if err := writeBatch(ctx, wallet, b.layout.LandingAppFile, body); err != nil {
		return withApp(err, name)
	}
	b.logger.DebugContext(ctx, "wrote landing app marker", "app", name)
	return nil
}
