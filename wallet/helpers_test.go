package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	"xdao.co/wallet/config"
	"xdao.co/wallet/keys"
	"xdao.co/wallet/storage/memcas"
	"xdao.co/wallet/unit"
	"xdao.co/wallet/unit/castore"
)

const testDomain = "example.org"

var errInjected = errors.New("injected failure")

type fixture struct {
	store    *castore.Store
	resolver *countingResolver
	fsys     fstest.MapFS
	cfg      *config.Config
	builder  *Builder

	// typeKey is the wallet type; codeKey and sharedKey are plain units
	// usable as app code or as reused apps.
	typeKey   string
	codeKey   string
	sharedKey string
}

func newFixture(t *testing.T, registry string) *fixture {
	t.Helper()
	store, err := castore.NewStore(memcas.New(), memcas.NewHeads(), castore.Options{Compression: castore.CompressZstd})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	f := &fixture{store: store, resolver: &countingResolver{Resolver: store}}
	f.typeKey = f.seedUnit(t, map[string]string{"/loader.js": "wallet loader"})
	f.codeKey = f.seedUnit(t, map[string]string{"/lib.js": "app runtime"})
	f.sharedKey = f.seedUnit(t, map[string]string{"/index.html": "shared app"})

	f.fsys = fstest.MapFS{
		"wallet-patch/seed":                 {Data: []byte(f.typeKey + "\n")},
		"wallet-patch/index.html":           {Data: []byte("<html>wallet</html>")},
		"wallet-patch/scripts/main.js":      {Data: []byte("main()")},
		"apps-patch/todo/index.html":        {Data: []byte("todo v1")},
		"apps-patch/todo/initialization.js": {Data: []byte("init todo")},
	}
	if registry != "" {
		f.fsys["apps-patch/apps.json"] = &fstest.MapFile{Data: []byte(registry)}
	}

	f.cfg = config.Default()
	f.cfg.Domain = testDomain
	f.cfg.Environment = map[string]any{"domain": testDomain, "mode": "test"}
	f.builder = f.newBuilder(t)
	return f
}

func (f *fixture) newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := New(Options{Resolver: f.resolver, Templates: f.fsys, Config: f.cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func (f *fixture) seedUnit(t *testing.T, files map[string]string) string {
	t.Helper()
	ctx := context.Background()
	u, err := f.store.Create(ctx, keys.TemplateSeed(testDomain).String(), unit.CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for p, body := range files {
		if err := u.WriteFile(ctx, p, []byte(body)); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return u.Key()
}

func (f *fixture) load(t *testing.T, key string) unit.Unit {
	t.Helper()
	u, err := f.store.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load(%s): %v", key, err)
	}
	return u
}

func readString(t *testing.T, u unit.Unit, p string) string {
	t.Helper()
	b, err := u.ReadFile(context.Background(), p)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", p, err)
	}
	return string(b)
}

func mountsOf(t *testing.T, u unit.Unit) map[string]string {
	t.Helper()
	mps, err := u.ListMounts(context.Background(), "/")
	if err != nil {
		t.Fatalf("ListMounts: %v", err)
	}
	out := map[string]string{}
	for _, mp := range mps {
		out[mp.Path] = mp.Key
	}
	return out
}

// countingResolver counts calls reaching the wrapped resolver.
type countingResolver struct {
	unit.Resolver

	mu      sync.Mutex
	creates int
	loads   int
}

func (r *countingResolver) Create(ctx context.Context, key string, opts unit.CreateOptions) (unit.Unit, error) {
	r.mu.Lock()
	r.creates++
	r.mu.Unlock()
	return r.Resolver.Create(ctx, key, opts)
}

func (r *countingResolver) Load(ctx context.Context, key string) (unit.Unit, error) {
	r.mu.Lock()
	r.loads++
	r.mu.Unlock()
	return r.Resolver.Load(ctx, key)
}

func (r *countingResolver) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

// faultyUnit injects failures into a unit. failPath limits write failures
// to one target.
type faultyUnit struct {
	unit.Unit

	failBegin  error
	failWrite  error
	failPath   string
	failCommit error
	failCancel error
	failMount  error

	writes  []string
	cancels int
}

func (f *faultyUnit) BeginBatch(ctx context.Context) error {
	if f.failBegin != nil {
		return f.failBegin
	}
	return f.Unit.BeginBatch(ctx)
}

func (f *faultyUnit) WriteFile(ctx context.Context, p string, data []byte) error {
	f.writes = append(f.writes, p)
	if f.failWrite != nil && (f.failPath == "" || f.failPath == p) {
		return f.failWrite
	}
	return f.Unit.WriteFile(ctx, p, data)
}

func (f *faultyUnit) CommitBatch(ctx context.Context) error {
	if f.failCommit != nil {
		return f.failCommit
	}
	return f.Unit.CommitBatch(ctx)
}

func (f *faultyUnit) CancelBatch(ctx context.Context) error {
	f.cancels++
	if err := f.Unit.CancelBatch(ctx); err != nil {
		return err
	}
	return f.failCancel
}

func (f *faultyUnit) Mount(ctx context.Context, p, key string) error {
	if f.failMount != nil {
		return f.failMount
	}
	return f.Unit.Mount(ctx, p, key)
}

func mapFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}
