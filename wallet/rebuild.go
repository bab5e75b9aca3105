package wallet

import (
	"context"
	"path"
	"strings"

	"xdao.co/wallet/unit"
)

// rebuildApplications re-applies app templates to the wallet's mounted apps.
// Only mounts whose name is in the registry are touched; the live mount is
// authoritative over the registry's seed. Registered apps marked
// hasTemplate:false are skipped rather than failing the rebuild.
func (b *Builder) rebuildApplications(ctx context.Context, wallet unit.Unit) error {
	reg, err := b.loadRegistry()
	if err != nil {
		return err
	}
	mounts, err := wallet.ListMounts(ctx, "/")
	if err != nil {
		return &Error{Kind: KindRebuild, Stage: "list mounted apps", Cause: err}
	}

	var names []string
	for _, mp := range mounts {
		key, ok := reg.lookup(path.Base(mp.Path))
		if !ok {
			continue
		}
		desc := reg[key]
		desc.Seed = mp.Key
		reg[key] = desc
		names = append(names, key)
	}
	return b.performApplicationsRebuild(ctx, reg, names)
}

// performApplicationsRebuild rebuilds names last to first, stopping at the
// first failure.
func (b *Builder) performApplicationsRebuild(ctx context.Context, reg Registry, names []string) error {
	for i := len(names) - 1; i >= 0; i-- {
		name := strings.TrimPrefix(names[i], "/")
		desc := reg[names[i]]
		if !desc.HasTemplateOrDefault() {
			b.logger.DebugContext(ctx, "app has no template; nothing to rebuild", "app", name)
			continue
		}
		if err := b.rebuildApp(ctx, name, desc.Seed); err != nil {
			return &Error{Kind: KindRebuild, Stage: "rebuild", App: name, Cause: err}
		}
	}
	return nil
}

// rebuildApp writes the current app template into the existing unit at seed.
func (b *Builder) rebuildApp(ctx context.Context, name, seed string) error {
	m, err := b.loadTemplate(path.Join(b.layout.AppsFolder, name))
	if err != nil {
		return err
	}
	u, err := b.resolver.Load(ctx, seed)
	if err != nil {
		return &Error{Kind: KindUnitLoad, Stage: "load app unit", App: name, Cause: err}
	}
	w, err := u.Writable(ctx)
	if err != nil {
		return &Error{Kind: KindUnitLoad, Stage: "open app unit", App: name, Cause: err}
	}
	records := m.Flatten()
	if err := WriteFiles(ctx, w, records, "/"+b.layout.AppFolder); err != nil {
		return err
	}
	b.logger.DebugContext(ctx, "rebuilt app", "app", name, "files", len(records))
	return nil
}
