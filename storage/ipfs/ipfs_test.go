package ipfs

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
	"xdao.co/wallet/storage/testkit"
)

func TestIPFS_Conformance(t *testing.T) {
	bin, err := exec.LookPath("ipfs")
	if err != nil {
		t.Skip("ipfs executable not installed")
	}
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		repo := filepath.Join(t.TempDir(), "repo")
		cmd := exec.Command(bin, "init", "--profile=test")
		cmd.Env = append(os.Environ(), "IPFS_PATH="+repo)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("ipfs init: %v: %s", err, out)
		}
		return New(Options{Bin: bin, Repo: repo})
	})
}

func TestIPFS_MissingExecutable(t *testing.T) {
	cas := New(Options{Bin: filepath.Join(t.TempDir(), "no-such-ipfs")})
	if _, err := cas.Put([]byte("x")); err == nil {
		t.Fatalf("expected Put to fail without an executable")
	}
	id, err := cidutil.CIDv1RawSHA256CID([]byte("x"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if cas.Has(id) {
		t.Fatalf("expected Has to report false")
	}
	if _, err := cas.Get(id); err == nil {
		t.Fatalf("expected Get to fail")
	}
}
