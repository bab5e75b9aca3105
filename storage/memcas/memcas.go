// Package memcas holds blocks and heads in process memory.
//
// It backs tests and dry runs of the wallet CLI (--backend=mem): nothing
// survives the process.
package memcas

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
)

// CAS is an in-memory storage.CAS.
type CAS struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

var _ storage.CAS = (*CAS)(nil)

func New() *CAS {
	return &CAS{blocks: map[string][]byte{}}
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	key := id.KeyString()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.blocks[key]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.blocks[key] = bytes.Clone(data)
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.blocks[id.KeyString()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(b), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blocks[id.KeyString()]
	return ok
}

// Len reports the number of stored blocks.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Heads is an in-memory storage.Heads.
type Heads struct {
	mu    sync.Mutex
	heads map[string]cid.Cid
}

var _ storage.Heads = (*Heads)(nil)

func NewHeads() *Heads {
	return &Heads{heads: map[string]cid.Cid{}}
}

func (h *Heads) Head(ctx context.Context, name string) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.heads[name]
	if !ok {
		return cid.Undef, storage.ErrNotFound
	}
	return id, nil
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
	cur, ok := h.heads[name]
	if !ok {
		cur = cid.Undef
	}
	if !cur.Equals(prev) {
		return storage.ErrHeadConflict
	}
	h.heads[name] = next
	return nil
}
