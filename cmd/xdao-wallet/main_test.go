package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/wallet/keys"
)

// writeWorkspace lays out a template tree and a config using local storage
// under dir, and returns the config path.
func writeWorkspace(t *testing.T, dir string) string {
	t.Helper()
	typeKey, err := keys.Mint(keys.TemplateSeed("example.org"))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	files := map[string]string{
		"templates/wallet-patch/seed":       typeKey.String(),
		"templates/wallet-patch/index.html": "<html>wallet</html>",
		"templates/apps-patch/apps.json":    "{}",
	}
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := fmt.Sprintf(`domain: example.org
templates: %s
storage:
  backends:
    - name: localfs
      config:
        localfs-dir: %s
  heads_dir: %s
log:
  level: error
`, filepath.Join(dir, "templates"), filepath.Join(dir, "cas"), filepath.Join(dir, "heads"))
	p := filepath.Join(dir, "wallet.yaml")
	if err := os.WriteFile(p, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	if code := run(args, &out, &errOut); code != 0 {
		t.Fatalf("%v: exit %d: %s", args, code, errOut.String())
	}
	return out.String()
}

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("no args: exit %d", code)
	}
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("unknown command: exit %d", code)
	}
	if code := run([]string{"build"}, &out, &errOut); code != 2 {
		t.Fatalf("build without secret: exit %d", code)
	}
	if code := run([]string{"help"}, &out, &errOut); code != 0 || !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("help: exit %d", code)
	}
}

func TestRun_Backends(t *testing.T) {
	out := runOK(t, "backends")
	for _, name := range []string{"grpc", "ipfs", "localfs", "mem"} {
		if !strings.Contains(out, name) {
			t.Fatalf("backends output lacks %q:\n%s", name, out)
		}
	}
}

func TestRun_BuildCatExportImport(t *testing.T) {
	srcCfg := writeWorkspace(t, t.TempDir())

	lines := strings.Fields(runOK(t, "build", "--config", srcCfg, "--secret", "pw"))
	if len(lines) != 2 {
		t.Fatalf("build output = %q", lines)
	}
	walletKey := lines[0]

	if got := runOK(t, "cat", "--config", srcCfg, walletKey, "/app/index.html"); got != "<html>wallet</html>" {
		t.Fatalf("cat = %q", got)
	}
	if ls := runOK(t, "ls", "--config", srcCfg, walletKey); !strings.Contains(ls, "/environment.json") || !strings.Contains(ls, "/code\t-> ") {
		t.Fatalf("ls = %q", ls)
	}

	// Building again with the same secret finds the same wallet.
	again := strings.Fields(runOK(t, "build", "--config", srcCfg, "--secret", "pw"))
	if len(again) != 2 || again[1] != lines[1] {
		t.Fatalf("second build = %q want writable %s", again, lines[1])
	}

	bundlePath := filepath.Join(t.TempDir(), "wallet.tar")
	runOK(t, "export", "--config", srcCfg, "--out", bundlePath, walletKey)

	dstCfg := writeWorkspace(t, t.TempDir())
	if got := runOK(t, "import", "--config", dstCfg, bundlePath); !strings.Contains(got, "2 units") {
		t.Fatalf("import = %q", got)
	}
	if got := runOK(t, "cat", "--config", dstCfg, walletKey, "/app/index.html"); got != "<html>wallet</html>" {
		t.Fatalf("cat after import = %q", got)
	}
	runOK(t, "rebuild", "--config", dstCfg, walletKey)
}

func TestRun_BlockPutGet(t *testing.T) {
	dir := t.TempDir()
	cfg := writeWorkspace(t, dir)
	src := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(src, []byte("raw block"), 0o644); err != nil {
		t.Fatal(err)
	}
	id := strings.TrimSpace(runOK(t, "block", "put", "--config", cfg, src))
	if got := runOK(t, "block", "get", "--config", cfg, id); got != "raw block" {
		t.Fatalf("block get = %q", got)
	}
	var out, errOut bytes.Buffer
	if code := run([]string{"block", "get", "--config", cfg, "not-a-cid"}, &out, &errOut); code != 1 {
		t.Fatalf("bad cid: exit %d", code)
	}
}
