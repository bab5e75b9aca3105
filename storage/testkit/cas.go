// Package testkit holds conformance suites that every storage backend in this
// module runs from its own tests.
package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// NewHeads constructs a fresh, empty Heads instance for a test.
type NewHeads func(t *testing.T) storage.Heads

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("hello, wallet storage")

		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.CIDv1RawSHA256CID(want)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("EmptyBlock", func(t *testing.T) {
		cas := newCAS(t)
		id, err := cas.Put(nil)
		if err != nil {
			t.Fatalf("Put(empty) failed: %v", err)
		}
		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get(empty) failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty block, got %d bytes", len(got))
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		_, err = cas.Get(id)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := cas.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if cas.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})
}

func RunHeadsConformance(t *testing.T, newHeads NewHeads) {
	t.Helper()
	ctx := context.Background()

	a, err := cidutil.CIDv1RawSHA256CID([]byte("head a"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}
	b, err := cidutil.CIDv1RawSHA256CID([]byte("head b"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}

	t.Run("UnsetIsNotFound", func(t *testing.T) {
		h := newHeads(t)
		if _, err := h.Head(ctx, "cap:v1:seed:example:abc"); !storage.IsNotFound(err) {
			t.Fatalf("Head unset: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("CreateThenSwap", func(t *testing.T) {
		h := newHeads(t)
		name := "cap:v1:seed:example:abc"
		if err := h.SwapHead(ctx, name, cid.Undef, a); err != nil {
			t.Fatalf("create head: %v", err)
		}
		got, err := h.Head(ctx, name)
		if err != nil {
			t.Fatalf("Head: %v", err)
		}
		if got != a {
			t.Fatalf("Head: got %s want %s", got, a)
		}
		if err := h.SwapHead(ctx, name, a, b); err != nil {
			t.Fatalf("swap head: %v", err)
		}
		got, err = h.Head(ctx, name)
		if err != nil {
			t.Fatalf("Head: %v", err)
		}
		if got != b {
			t.Fatalf("Head after swap: got %s want %s", got, b)
		}
	})

	t.Run("StalePrevConflicts", func(t *testing.T) {
		h := newHeads(t)
		name := "cap:v1:wallet:example:xyz"
		if err := h.SwapHead(ctx, name, cid.Undef, a); err != nil {
			t.Fatalf("create head: %v", err)
		}
		if err := h.SwapHead(ctx, name, cid.Undef, b); !errors.Is(err, storage.ErrHeadConflict) {
			t.Fatalf("second create: got err=%v want ErrHeadConflict", err)
		}
		if err := h.SwapHead(ctx, name, b, a); !errors.Is(err, storage.ErrHeadConflict) {
			t.Fatalf("stale swap: got err=%v want ErrHeadConflict", err)
		}
		got, err := h.Head(ctx, name)
		if err != nil {
			t.Fatalf("Head: %v", err)
		}
		if got != a {
			t.Fatalf("conflicting swaps must not move the head")
		}
	})

	t.Run("NamesAreIndependent", func(t *testing.T) {
		h := newHeads(t)
		if err := h.SwapHead(ctx, "one", cid.Undef, a); err != nil {
			t.Fatalf("create one: %v", err)
		}
		if _, err := h.Head(ctx, "two"); !storage.IsNotFound(err) {
			t.Fatalf("Head(two): got err=%v want ErrNotFound", err)
		}
	})
}
