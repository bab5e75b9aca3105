package memcas

import (
	"context"
	"errors"
	"testing"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
	"xdao.co/wallet/storage/testkit"
)

func TestMemCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		return New()
	})
}

func TestMemHeads_Conformance(t *testing.T) {
	testkit.RunHeadsConformance(t, func(t *testing.T) storage.Heads {
		t.Helper()
		return NewHeads()
	})
}

func TestMemCAS_GetReturnsCopy(t *testing.T) {
	cas := New()
	id, err := cas.Put([]byte("abc"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := cas.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b[0] = 'z'
	again, err := cas.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(again) != "abc" {
		t.Fatalf("stored block was mutated through a returned slice")
	}
}

func TestMemHeads_CancelledContext(t *testing.T) {
	h := NewHeads()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id, err := cidutil.CIDv1RawSHA256CID([]byte("x"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if err := h.SwapHead(ctx, "k", id, id); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := h.Head(context.Background(), "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
