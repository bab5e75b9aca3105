package castore

import (
	"context"

	"xdao.co/wallet/unit"
)

// alias is a wallet unit: a read-only name for its writable unit.
type alias struct {
	store    *Store
	key      string
	writable string
}

var _ unit.Unit = (*alias)(nil)

func (a *alias) Key() string { return a.key }

func (a *alias) Writable(ctx context.Context) (unit.Unit, error) {
	return a.store.Load(ctx, a.writable)
}

func (a *alias) ReadFile(ctx context.Context, p string) ([]byte, error) {
	p, err := unit.FilePath(p)
	if err != nil {
		return nil, err
	}
	_, n, err := a.store.loadNode(ctx, a.writable)
	if err != nil {
		return nil, err
	}
	return a.store.read(ctx, n, p, 1)
}

func (a *alias) ListFiles(ctx context.Context, dir string) ([]string, error) {
	w, err := a.Writable(ctx)
	if err != nil {
		return nil, err
	}
	return w.ListFiles(ctx, dir)
}

func (a *alias) ListMounts(ctx context.Context, dir string) ([]unit.MountPoint, error) {
	w, err := a.Writable(ctx)
	if err != nil {
		return nil, err
	}
	return w.ListMounts(ctx, dir)
}

func (a *alias) WriteFile(context.Context, string, []byte) error { return unit.ErrReadOnly }
func (a *alias) Mount(context.Context, string, string) error     { return unit.ErrReadOnly }
func (a *alias) BeginBatch(context.Context) error                { return unit.ErrReadOnly }
func (a *alias) CommitBatch(context.Context) error               { return unit.ErrReadOnly }
func (a *alias) CancelBatch(context.Context) error               { return unit.ErrReadOnly }
