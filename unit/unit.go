// Package unit defines the storage unit contract the wallet builder drives.
//
// A unit is a mountable file tree named by a capability key. Writes are made
// durable by committing a batch; outside a batch every write commits on its
// own. Reads see the unit's own files first and fall through to mounted units.
package unit

import "context"

// MountPoint is one entry of a unit's own mount listing.
type MountPoint struct {
	Path string
	Key  string
}

// CreateOptions shapes a newly created unit.
type CreateOptions struct {
	// Type, when set, is a capability mounted at TypePath in the new unit's
	// writable tree.
	Type     string
	TypePath string

	// Writable points a wallet key at an existing unit instead of minting a
	// fresh writable unit behind it.
	Writable string
}

// Unit is a handle on one storage unit. Handles are safe for concurrent use
// but hold at most one open batch.
type Unit interface {
	// Key returns the unit's capability key.
	Key() string

	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	// ListFiles returns the file paths visible under dir, mounted units included.
	ListFiles(ctx context.Context, dir string) ([]string, error)

	// Mount attaches the unit named by key at path. Mount paths are unique.
	Mount(ctx context.Context, path, key string) error
	// ListMounts returns the unit's own mounts under dir, sorted by path.
	ListMounts(ctx context.Context, dir string) ([]MountPoint, error)

	BeginBatch(ctx context.Context) error
	CommitBatch(ctx context.Context) error
	CancelBatch(ctx context.Context) error

	// Writable returns the handle writes should go through. Wallet units are
	// read-only aliases of their writable unit; every other unit returns itself.
	Writable(ctx context.Context) (Unit, error)
}

// Resolver creates and loads units.
type Resolver interface {
	// Create makes a unit at key. A template key (no identifier) is completed
	// with a freshly minted one.
	Create(ctx context.Context, key string, opts CreateOptions) (Unit, error)
	Load(ctx context.Context, key string) (Unit, error)
}
