package castore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/keys"
	"xdao.co/wallet/storage"
	"xdao.co/wallet/unit"
)

// handle is a writable unit. state is the last committed snapshot seen by
// this handle; pending is the working copy of an open batch.
type handle struct {
	store *Store
	key   string

	mu      sync.Mutex
	head    cid.Cid
	state   *node
	pending *node
}

var _ unit.Unit = (*handle)(nil)

func (s *Store) newHandle(key string, head cid.Cid, n *node) *handle {
	return &handle{store: s, key: key, head: head, state: n}
}

func (h *handle) Key() string { return h.key }

func (h *handle) Writable(ctx context.Context) (unit.Unit, error) { return h, nil }

// current returns the tree reads should see.
func (h *handle) current() *node {
	if h.pending != nil {
		return h.pending
	}
	return h.state
}

func (h *handle) ReadFile(ctx context.Context, p string) ([]byte, error) {
	p, err := unit.FilePath(p)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	n := h.current().clone()
	h.mu.Unlock()
	return h.store.read(ctx, n, p, 0)
}

func (h *handle) ListFiles(ctx context.Context, dir string) ([]string, error) {
	h.mu.Lock()
	n := h.current().clone()
	h.mu.Unlock()
	out := map[string]struct{}{}
	if err := h.store.list(ctx, n, unit.CleanPath(dir), 0, out); err != nil {
		return nil, err
	}
	return sortedKeys(out), nil
}

func (h *handle) ListMounts(ctx context.Context, dir string) ([]unit.MountPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = unit.CleanPath(dir)
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []unit.MountPoint
	for p, key := range h.current().Mounts {
		if _, ok := unit.Within(dir, p); ok {
			out = append(out, unit.MountPoint{Path: p, Key: key})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (h *handle) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := unit.FilePath(p)
	if err != nil {
		return err
	}
	ref, err := h.store.putBlob(data)
	if err != nil {
		return err
	}
	return h.apply(ctx, func(n *node) error {
		n.setFile(p, ref)
		return nil
	})
}

func (h *handle) Mount(ctx context.Context, p, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := unit.FilePath(p)
	if err != nil {
		return err
	}
	c, err := keys.Parse(key)
	if err != nil {
		return err
	}
	if c.IsTemplate() {
		return fmt.Errorf("castore: cannot mount template key %s", key)
	}
	if key == h.key {
		return fmt.Errorf("castore: unit %s cannot mount itself", key)
	}
	return h.apply(ctx, func(n *node) error {
		if _, ok := n.Mounts[p]; ok {
			return fmt.Errorf("%w: %s", unit.ErrMountExists, p)
		}
		n.setMount(p, key)
		return nil
	})
}

// apply runs change against the open batch, or commits it on its own when
// no batch is open.
func (h *handle) apply(ctx context.Context, change func(*node) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		return change(h.pending)
	}
	next := h.state.clone()
	if err := change(next); err != nil {
		return err
	}
	return h.commitLocked(ctx, next)
}

func (h *handle) BeginBatch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		return unit.ErrBatchOpen
	}
	h.pending = h.state.clone()
	return nil
}

// CommitBatch publishes the open batch. On failure the batch stays open so
// the caller can cancel it.
func (h *handle) CommitBatch(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return unit.ErrNoBatch
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.commitLocked(ctx, h.pending); err != nil {
		return err
	}
	h.pending = nil
	return nil
}

func (h *handle) CancelBatch(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return unit.ErrNoBatch
	}
	h.pending = nil
	return nil
}

func (h *handle) commitLocked(ctx context.Context, next *node) error {
	next.Parent = h.head.Bytes()
	id, err := h.store.putNode(next)
	if err != nil {
		return err
	}
	if err := h.store.heads.SwapHead(ctx, h.key, h.head, id); err != nil {
		if errors.Is(err, storage.ErrHeadConflict) {
			return fmt.Errorf("%w: %s", unit.ErrConflict, h.key)
		}
		return err
	}
	h.head = id
	h.state = next
	return nil
}
