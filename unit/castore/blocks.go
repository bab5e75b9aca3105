package castore

import (
	"context"
	"errors"
	"sort"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/unit"
)

// Blocks returns every block needed to restore key at its current head: the
// head nodes and file blobs of key, its writable unit and every unit mounted
// below them. heads maps each unit reached to its head CID.
//
// History is not followed; restored units start at their exported snapshot.
func (s *Store) Blocks(ctx context.Context, key string) (blocks []cid.Cid, heads map[string]cid.Cid, err error) {
	heads = map[string]cid.Cid{}
	seen := map[string]cid.Cid{}

	queue := []string{key}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if _, ok := heads[k]; ok {
			continue
		}
		head, n, err := s.loadNode(ctx, k)
		if err != nil {
			if k != key && errors.Is(err, unit.ErrNotFound) {
				s.logger.Warn("export skips dangling mount", "key", k)
				continue
			}
			return nil, nil, err
		}
		heads[k] = head
		seen[head.KeyString()] = head
		for _, ref := range n.Files {
			id, err := ref.blob()
			if err != nil {
				return nil, nil, err
			}
			seen[id.KeyString()] = id
		}
		if n.Writable != "" {
			queue = append(queue, n.Writable)
		}
		mounts := make([]string, 0, len(n.Mounts))
		for p := range n.Mounts {
			mounts = append(mounts, p)
		}
		sort.Strings(mounts)
		for _, p := range mounts {
			queue = append(queue, n.Mounts[p])
		}
	}

	blocks = make([]cid.Cid, 0, len(seen))
	for _, id := range seen {
		blocks = append(blocks, id)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].String() < blocks[j].String() })
	return blocks, heads, nil
}
