// Package castore implements storage units on top of a content-addressable
// block store.
//
// Every commit writes a new snapshot node into the CAS and advances the unit's
// head with a compare-and-swap, so two handles racing on one unit cannot both
// win. File contents are stored as separate, optionally compressed blobs.
package castore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/keys"
	"xdao.co/wallet/storage"
	"xdao.co/wallet/unit"
)

// maxMountDepth bounds mount chains followed by reads.
const maxMountDepth = 16

var errMountDepth = errors.New("castore: mount chain too deep")

type Options struct {
	Compression Compression
	Logger      *slog.Logger
}

// Store resolves capability keys to units.
type Store struct {
	cas    storage.CAS
	heads  storage.Heads
	codec  *blobCodec
	logger *slog.Logger
}

var _ unit.Resolver = (*Store)(nil)

func NewStore(cas storage.CAS, heads storage.Heads, opts Options) (*Store, error) {
	if cas == nil || heads == nil {
		return nil, errors.New("castore: CAS and heads are required")
	}
	codec, err := newBlobCodec(opts.Compression)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{cas: cas, heads: heads, codec: codec, logger: logger}, nil
}

// Create implements unit.Resolver.
//
// Seed keys yield a writable unit. Wallet keys yield a read-only alias whose
// writable unit is opts.Writable, or a freshly minted seed unit of the same
// domain carrying the type mount.
func (s *Store) Create(ctx context.Context, key string, opts unit.CreateOptions) (unit.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := keys.Parse(key)
	if err != nil {
		return nil, err
	}
	if c.IsTemplate() {
		if c, err = keys.Mint(c); err != nil {
			return nil, err
		}
	}

	switch c.Kind {
	case keys.KindSeed:
		if opts.Writable != "" {
			return nil, fmt.Errorf("castore: %s: only wallet units take a writable unit", c)
		}
		n := &node{}
		if err := typeMount(n, opts); err != nil {
			return nil, err
		}
		head, err := s.initHead(ctx, c.String(), n)
		if err != nil {
			return nil, err
		}
		return s.newHandle(c.String(), head, n), nil

	case keys.KindWallet:
		inner := opts.Writable
		if inner != "" {
			ic, err := keys.Parse(inner)
			if err != nil {
				return nil, err
			}
			if ic.Kind != keys.KindSeed {
				return nil, fmt.Errorf("castore: writable unit must be a seed unit, got %s", ic.Kind)
			}
			if _, _, err := s.loadNode(ctx, inner); err != nil {
				return nil, fmt.Errorf("castore: writable unit %s: %w", inner, err)
			}
		} else {
			created, err := s.Create(ctx, keys.TemplateSeed(c.Domain).String(), unit.CreateOptions{Type: opts.Type, TypePath: opts.TypePath})
			if err != nil {
				return nil, err
			}
			inner = created.Key()
		}
		n := &node{Writable: inner, Type: opts.Type}
		if _, err := s.initHead(ctx, c.String(), n); err != nil {
			return nil, err
		}
		s.logger.Debug("created wallet unit", "key", c.String(), "writable", inner)
		return &alias{store: s, key: c.String(), writable: inner}, nil
	}
	return nil, fmt.Errorf("castore: cannot create %s units", c.Kind)
}

func typeMount(n *node, opts unit.CreateOptions) error {
	if opts.Type == "" {
		return nil
	}
	if _, err := keys.Parse(opts.Type); err != nil {
		return fmt.Errorf("castore: type: %w", err)
	}
	p, err := unit.FilePath(opts.TypePath)
	if err != nil {
		return fmt.Errorf("castore: type path: %w", err)
	}
	n.setMount(p, opts.Type)
	n.Type = opts.Type
	return nil
}

// Load implements unit.Resolver.
func (s *Store) Load(ctx context.Context, key string) (unit.Unit, error) {
	head, n, err := s.loadNode(ctx, key)
	if err != nil {
		return nil, err
	}
	if n.Writable != "" {
		return &alias{store: s, key: key, writable: n.Writable}, nil
	}
	return s.newHandle(key, head, n), nil
}

// Head returns the CID of key's current snapshot node.
func (s *Store) Head(ctx context.Context, key string) (cid.Cid, error) {
	head, err := s.heads.Head(ctx, key)
	if storage.IsNotFound(err) {
		return cid.Undef, fmt.Errorf("%w: %s", unit.ErrNotFound, key)
	}
	return head, err
}

// RestoreHead points key at a snapshot node already present in the CAS. It
// refuses to move an existing head unless it already equals id.
func (s *Store) RestoreHead(ctx context.Context, key string, id cid.Cid) error {
	if _, err := keys.Parse(key); err != nil {
		return err
	}
	b, err := s.cas.Get(id)
	if err != nil {
		return fmt.Errorf("castore: restore %s: %w", key, err)
	}
	if _, err := decodeNode(b); err != nil {
		return err
	}
	cur, err := s.heads.Head(ctx, key)
	switch {
	case err == nil && cur.Equals(id):
		return nil
	case err == nil:
		return fmt.Errorf("%w: %s", unit.ErrExists, key)
	case !storage.IsNotFound(err):
		return err
	}
	if err := s.heads.SwapHead(ctx, key, cid.Undef, id); err != nil {
		if errors.Is(err, storage.ErrHeadConflict) {
			return fmt.Errorf("%w: %s", unit.ErrExists, key)
		}
		return err
	}
	return nil
}

func (s *Store) initHead(ctx context.Context, key string, n *node) (cid.Cid, error) {
	id, err := s.putNode(n)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.heads.SwapHead(ctx, key, cid.Undef, id); err != nil {
		if errors.Is(err, storage.ErrHeadConflict) {
			return cid.Undef, fmt.Errorf("%w: %s", unit.ErrExists, key)
		}
		return cid.Undef, err
	}
	return id, nil
}

func (s *Store) putNode(n *node) (cid.Cid, error) {
	b, err := encodeNode(n)
	if err != nil {
		return cid.Undef, err
	}
	return s.cas.Put(b)
}

func (s *Store) getNode(id cid.Cid) (*node, error) {
	b, err := s.cas.Get(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(b)
}

func (s *Store) loadNode(ctx context.Context, key string) (cid.Cid, *node, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, nil, err
	}
	c, err := keys.Parse(key)
	if err != nil {
		return cid.Undef, nil, err
	}
	if c.IsTemplate() {
		return cid.Undef, nil, fmt.Errorf("castore: cannot load template key %s", key)
	}
	head, err := s.Head(ctx, key)
	if err != nil {
		return cid.Undef, nil, err
	}
	n, err := s.getNode(head)
	if err != nil {
		return cid.Undef, nil, err
	}
	return head, n, nil
}

func (s *Store) putBlob(data []byte) (fileRef, error) {
	stored, tag := s.codec.encode(data)
	id, err := s.cas.Put(stored)
	if err != nil {
		return fileRef{}, err
	}
	return fileRef{Blob: id.Bytes(), Codec: tag, Size: len(data)}, nil
}

func (s *Store) getBlob(ref fileRef) ([]byte, error) {
	id, err := ref.blob()
	if err != nil {
		return nil, err
	}
	stored, err := s.cas.Get(id)
	if err != nil {
		return nil, err
	}
	return s.codec.decode(stored, ref.Codec, ref.Size)
}

// read resolves p against n: own files first, then the deepest mount
// containing p.
func (s *Store) read(ctx context.Context, n *node, p string, depth int) ([]byte, error) {
	if depth > maxMountDepth {
		return nil, errMountDepth
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.Writable != "" {
		_, inner, err := s.loadNode(ctx, n.Writable)
		if err != nil {
			return nil, err
		}
		return s.read(ctx, inner, p, depth+1)
	}
	if ref, ok := n.Files[p]; ok {
		return s.getBlob(ref)
	}
	mp, key, ok := deepestMount(n, p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", unit.ErrNotFound, p)
	}
	_, mounted, err := s.loadNode(ctx, key)
	if err != nil {
		return nil, err
	}
	rest, _ := unit.Within(mp, p)
	return s.read(ctx, mounted, "/"+rest, depth+1)
}

func deepestMount(n *node, p string) (string, string, bool) {
	best, key := "", ""
	for mp, k := range n.Mounts {
		if _, ok := unit.Within(mp, p); ok && len(mp) > len(best) {
			best, key = mp, k
		}
	}
	return best, key, best != ""
}

// list collects the visible file paths under dir. Own files shadow mounted
// files at the same path.
func (s *Store) list(ctx context.Context, n *node, dir string, depth int, out map[string]struct{}) error {
	if depth > maxMountDepth {
		return errMountDepth
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Writable != "" {
		_, inner, err := s.loadNode(ctx, n.Writable)
		if err != nil {
			return err
		}
		return s.list(ctx, inner, dir, depth+1, out)
	}
	for p := range n.Files {
		if _, ok := unit.Within(dir, p); ok {
			out[p] = struct{}{}
		}
	}
	for mp, key := range n.Mounts {
		// Descend into mounts below dir, and into a mount that contains dir.
		var sub string
		switch {
		case mp == dir:
			sub = "/"
		case strings.HasPrefix(dir, mp+"/"):
			sub = strings.TrimPrefix(dir, mp)
		default:
			if _, ok := unit.Within(dir, mp); !ok {
				continue
			}
			sub = "/"
		}
		_, mounted, err := s.loadNode(ctx, key)
		if err != nil {
			if errors.Is(err, unit.ErrNotFound) {
				s.logger.Warn("skipping dangling mount", "path", mp, "key", key)
				continue
			}
			return err
		}
		inner := map[string]struct{}{}
		if err := s.list(ctx, mounted, sub, depth+1, inner); err != nil {
			return err
		}
		for p := range inner {
			full := mp + p
			if _, own := n.Files[full]; !own {
				out[full] = struct{}{}
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
