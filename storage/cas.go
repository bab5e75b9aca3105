package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written (callers are responsible for supplying canonical bytes).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Heads is the only mutable state of a wallet store: it maps a name (a unit
// capability key) to the CID of that unit's current snapshot block.
//
// Contract:
// - Head MUST return ErrNotFound when name has never been set.
// - SwapHead MUST be atomic: it succeeds only if the current head equals prev
//   (cid.Undef meaning "unset") and otherwise returns ErrHeadConflict.
type Heads interface {
	Head(ctx context.Context, name string) (cid.Cid, error)
	SwapHead(ctx context.Context, name string, prev, next cid.Cid) error
}
