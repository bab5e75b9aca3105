package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
)

// Heads stores one small file per unit capability holding the CID of the
// unit's current snapshot.
//
// File names are the hex sha256 of the capability so that keys never appear
// on disk. SwapHead is atomic within one process (mutex + rename); sharing a
// heads directory between processes is not supported.
type Heads struct {
	root string
	mu   sync.Mutex
}

var _ storage.Heads = (*Heads)(nil)

func NewHeads(root string) (*Heads, error) {
	if root == "" {
		return nil, errors.New("localfs: heads directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &Heads{root: root}, nil
}

func (h *Heads) Head(ctx context.Context, name string) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read(name)
}

func (h *Heads) SwapHead(ctx context.Context, name string, prev, next cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !next.Defined() {
		return storage.ErrInvalidCID
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	cur, err := h.read(name)
	switch {
	case storage.IsNotFound(err):
		cur = cid.Undef
	case err != nil:
		return err
	}
	if !cur.Equals(prev) {
		return storage.ErrHeadConflict
	}

	path := h.pathFor(name)
	tmp, err := os.CreateTemp(h.root, ".head-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(next.String() + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (h *Heads) read(name string) (cid.Cid, error) {
	b, err := os.ReadFile(h.pathFor(name))
	if err != nil {
		if os.IsNotExist(err) {
			return cid.Undef, storage.ErrNotFound
		}
		return cid.Undef, err
	}
	id, ok := cidutil.ParseDefined(strings.TrimSpace(string(b)))
	if !ok {
		return cid.Undef, fmt.Errorf("localfs: corrupt head file for %s: %w", filepath.Base(h.pathFor(name)), storage.ErrInvalidCID)
	}
	return id, nil
}

func (h *Heads) pathFor(name string) string {
	sum := sha256.Sum256([]byte(name))
	return filepath.Join(h.root, hex.EncodeToString(sum[:]))
}
