package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"xdao.co/wallet/unit"
)

func (f *fixture) newWalletUnit(t *testing.T) unit.Unit {
	t.Helper()
	return f.load(t, f.seedUnit(t, nil))
}

func TestPerformInstallationReuseAndInstantiate(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	w := f.newWalletUnit(t)

	reg := Registry{
		"A": {Seed: f.sharedKey, NewInstance: boolPtr(false)},
		"B": {Seed: f.codeKey, NewInstance: boolPtr(true), HasTemplate: boolPtr(false)},
	}
	if err := f.builder.performInstallation(ctx, w, reg, reg.Names()); err != nil {
		t.Fatalf("performInstallation: %v", err)
	}

	mounts := mountsOf(t, w)
	if mounts["/apps/A"] != f.sharedKey {
		t.Fatalf("/apps/A = %q want reused %q", mounts["/apps/A"], f.sharedKey)
	}
	b := mounts["/apps/B"]
	if b == "" || b == f.codeKey {
		t.Fatalf("/apps/B = %q, want a freshly minted unit", b)
	}
	if got := mountsOf(t, f.load(t, b))["/code"]; got != f.codeKey {
		t.Fatalf("B code mount = %q want %q", got, f.codeKey)
	}
	if got := readString(t, w, "/apps/A/index.html"); got != "shared app" {
		t.Fatalf("reused app read = %q", got)
	}
}

func TestPerformInstallationStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, "")
	w := f.newWalletUnit(t)

	// Names are consumed last to first, so "zeta" fails before "alpha" runs.
	reg := Registry{
		"alpha": {Seed: f.sharedKey, NewInstance: boolPtr(false)},
		"zeta":  {Seed: "bogus", HasTemplate: boolPtr(false)},
	}
	err := f.builder.performInstallation(context.Background(), w, reg, reg.Names())
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindInstall || e.App != "zeta" {
		t.Fatalf("got %v want Install error naming zeta", err)
	}
	if len(mountsOf(t, w)) != 0 {
		t.Fatalf("remaining apps were installed after a failure")
	}
}

func TestPerformInstallationStripsLeadingSlash(t *testing.T) {
	f := newFixture(t, "")
	w := f.newWalletUnit(t)
	reg := Registry{"/todo": {Seed: f.codeKey}}
	if err := f.builder.performInstallation(context.Background(), w, reg, reg.Names()); err != nil {
		t.Fatalf("performInstallation: %v", err)
	}
	key, ok := mountsOf(t, w)["/apps/todo"]
	if !ok {
		t.Fatalf("app not mounted at /apps/todo")
	}
	if got := readString(t, f.load(t, key), "/app/index.html"); got != "todo v1" {
		t.Fatalf("templated app content = %q", got)
	}
}

func TestPerformInstallationMountFailure(t *testing.T) {
	f := newFixture(t, "")
	w := &faultyUnit{Unit: f.newWalletUnit(t), failMount: errInjected}
	reg := Registry{"A": {Seed: f.sharedKey, NewInstance: boolPtr(false)}}
	err := f.builder.performInstallation(context.Background(), w, reg, reg.Names())
	if !IsKind(err, KindInstall) || !IsKind(err, KindMount) || !errors.Is(err, errInjected) {
		t.Fatalf("got %v want Install wrapping Mount", err)
	}
}

func TestMergeExternalApps(t *testing.T) {
	reg := Registry{"/foo": {Seed: "old"}, "bar": {Seed: "b"}}
	params, err := url.ParseQuery("appName=foo&fooSeed=XYZ&appName=nope&appName=baz&bazSeed=Q")
	if err != nil {
		t.Fatal(err)
	}
	external := mergeExternalApps(reg, params, slog.New(slog.DiscardHandler))
	if len(external) != 2 || external[0].Name != "foo" || external[1].Name != "baz" {
		t.Fatalf("external = %+v", external)
	}
	foo, ok := reg["foo"]
	if !ok || foo.Seed != "XYZ" || foo.HasTemplateOrDefault() || foo.Source() != (Reuse{Key: "XYZ"}) {
		t.Fatalf("foo = %+v", foo)
	}
	if _, ok := reg["/foo"]; ok {
		t.Fatalf("registry still holds the replaced /foo entry")
	}
	if _, ok := reg["nope"]; ok {
		t.Fatalf("app without a seed was merged")
	}
	if reg["bar"].Seed != "b" {
		t.Fatalf("unrelated entry changed")
	}
}

func TestInstallApplicationsExternalApp(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	w := f.newWalletUnit(t)

	params := url.Values{"appName": {"foo"}, "fooSeed": {f.sharedKey}}
	if err := f.builder.installApplications(ctx, w, params); err != nil {
		t.Fatalf("installApplications: %v", err)
	}
	if got := mountsOf(t, w)["/apps/foo"]; got != f.sharedKey {
		t.Fatalf("/apps/foo = %q want %q", got, f.sharedKey)
	}
	var marker struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(readString(t, w, "/apps-patch/.landingApp")), &marker); err != nil {
		t.Fatalf("marker: %v", err)
	}
	if marker.Name != "foo" {
		t.Fatalf("landing app = %q want foo", marker.Name)
	}
}

func TestInstallApplicationsRejectsEscapingNames(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	w := f.newWalletUnit(t)

	params := url.Values{
		"appName":      {"../code2", "../app/x", "ok"},
		"../code2Seed": {f.sharedKey},
		"../app/xSeed": {f.sharedKey},
		"okSeed":       {f.sharedKey},
	}
	if err := f.builder.installApplications(ctx, w, params); err != nil {
		t.Fatalf("installApplications: %v", err)
	}
	mounts := mountsOf(t, w)
	if len(mounts) != 1 || mounts["/apps/ok"] != f.sharedKey {
		t.Fatalf("mounts = %v want only /apps/ok", mounts)
	}
	var marker struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(readString(t, w, "/apps-patch/.landingApp")), &marker); err != nil {
		t.Fatalf("marker: %v", err)
	}
	if marker.Name != "ok" {
		t.Fatalf("landing app = %q want ok", marker.Name)
	}
}

func TestPerformInstallationKeepsMountsBelowAppsDir(t *testing.T) {
	f := newFixture(t, "")
	for _, name := range []string{"../code2", "/../x", "a/b"} {
		w := f.newWalletUnit(t)
		reg := Registry{name: {Seed: f.sharedKey, NewInstance: boolPtr(false)}}
		err := f.builder.performInstallation(context.Background(), w, reg, reg.Names())
		if !IsKind(err, KindInstall) || !errors.Is(err, unit.ErrInvalidPath) {
			t.Fatalf("%s: got %v want Install error for an invalid path", name, err)
		}
		if len(mountsOf(t, w)) != 0 {
			t.Fatalf("%s: mounted despite the error", name)
		}
	}
}

func TestInstallApplicationsRegistryAndMissingRegistry(t *testing.T) {
	f := newFixture(t, "")
	f.fsys["apps-patch/apps.json"] = mapFile(`{
		// installed on every new wallet
		"/todo": {"seed": "` + f.codeKey + `"},
	}`)
	w := f.newWalletUnit(t)
	if err := f.builder.installApplications(context.Background(), w, nil); err != nil {
		t.Fatalf("installApplications: %v", err)
	}
	if _, ok := mountsOf(t, w)["/apps/todo"]; !ok {
		t.Fatalf("registry app not installed")
	}

	empty := newFixture(t, "")
	w2 := empty.newWalletUnit(t)
	if err := empty.builder.installApplications(context.Background(), w2, nil); err != nil {
		t.Fatalf("missing registry: %v", err)
	}
	if len(mountsOf(t, w2)) != 0 {
		t.Fatalf("mounts without a registry")
	}
}

func TestInstallApplicationsBrokenRegistry(t *testing.T) {
	f := newFixture(t, `{"/todo": `)
	err := f.builder.installApplications(context.Background(), f.newWalletUnit(t), nil)
	if !IsKind(err, KindManifestParse) {
		t.Fatalf("got %v want ManifestParse", err)
	}
}

func TestLandingAppMarkerPolicy(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	params := url.Values{"appName": {"foo"}, "fooSeed": {f.sharedKey}}

	w := &faultyUnit{Unit: f.newWalletUnit(t), failWrite: errInjected, failPath: "/apps-patch/.landingApp"}
	if err := f.builder.installApplications(ctx, w, params); err != nil {
		t.Fatalf("best-effort marker failure escalated: %v", err)
	}
	if _, ok := mountsOf(t, w)["/apps/foo"]; !ok {
		t.Fatalf("install skipped after marker failure")
	}

	f.cfg.StrictLandingApp = true
	strict := f.newBuilder(t)
	w2 := &faultyUnit{Unit: f.newWalletUnit(t), failWrite: errInjected, failPath: "/apps-patch/.landingApp"}
	err := strict.installApplications(ctx, w2, params)
	if !IsKind(err, KindWrite) || !errors.Is(err, errInjected) {
		t.Fatalf("strict marker: got %v want Write error", err)
	}
}

func boolPtr(v bool) *bool { return &v }
