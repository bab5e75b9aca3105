// Package ipfs stores wallet blocks in a local Kubo repository by running the
// ipfs command line tool.
//
// Blocks are put as raw sha2-256 CIDv1 blocks so their identifiers match the
// ones every other backend computes. Commands run with --offline, so no
// daemon is needed.
package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
)

type CAS struct {
	bin  string
	repo string
}

var _ storage.CAS = (*CAS)(nil)

type Options struct {
	// Bin is the ipfs executable. Defaults to "ipfs" on PATH.
	Bin string
	// Repo sets IPFS_PATH for every command. Empty uses the caller's.
	Repo string
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &CAS{bin: bin, repo: opts.Repo}
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := c.run(data, "block", "put", "--quiet",
		"--cid-codec=raw", "--mhtype=sha2-256", "--mhlen=32")
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(id) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(nil, "block", "get", id.String())
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return nil, err
	}
	if !cidutil.Verify(id, out) {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.run(nil, "block", "stat", id.String())
	return err == nil
}

func (c *CAS) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(c.bin, append([]string{"--offline"}, args...)...)
	if c.repo != "" {
		cmd.Env = append(os.Environ(), "IPFS_PATH="+c.repo)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if msg := strings.TrimSpace(string(ee.Stderr)); msg != "" {
			return nil, fmt.Errorf("ipfs %s: %s", args[0]+" "+args[1], msg)
		}
	}
	return nil, fmt.Errorf("ipfs %s: %w", args[0]+" "+args[1], err)
}

// notFound recognises Kubo's missing-block messages.
func notFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
