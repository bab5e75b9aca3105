package wallet

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := &Error{Kind: KindCommit, Stage: "commit batch", App: "todo", Path: "/app/x", Cause: errInjected, Cancel: errors.New("cancel failed")}
	msg := e.Error()
	for _, part := range []string{"commit batch", "todo", "/app/x", "injected failure", "cancel failed"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("message %q lacks %q", msg, part)
		}
	}
}

func TestErrorMessageNested(t *testing.T) {
	inner := &Error{Kind: KindMount, Stage: "mount", App: "todo", Path: "/apps/todo", Cause: errInjected}
	outer := &Error{Kind: KindInstall, Stage: "install", App: "todo", Cause: inner}
	want := "wallet: install for app todo: mount at /apps/todo: injected failure"
	if got := outer.Error(); got != want {
		t.Fatalf("Error() = %q want %q", got, want)
	}

	other := &Error{Kind: KindInstall, Stage: "install", App: "a", Cause: &Error{Kind: KindUnitCreate, Stage: "create", App: "b", Cause: errInjected}}
	if got := other.Error(); got != "wallet: install for app a: create for app b: injected failure" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestIsKindWalksTree(t *testing.T) {
	cancel := wrapError(KindCancel, "cancel batch", errors.New("boom"))
	inner := &Error{Kind: KindCommit, Stage: "commit batch", Cause: errInjected, Cancel: cancel}
	outer := fmt.Errorf("build: %w", &Error{Kind: KindInstall, Stage: "install", Cause: inner})

	for _, k := range []Kind{KindInstall, KindCommit, KindCancel} {
		if !IsKind(outer, k) {
			t.Fatalf("IsKind(%s) = false", k)
		}
	}
	if IsKind(outer, KindMount) || IsKind(nil, KindMount) {
		t.Fatalf("IsKind matched an absent kind")
	}
	if KindOf(outer) != KindInstall {
		t.Fatalf("KindOf = %s want Install", KindOf(outer))
	}
	if KindOf(errInjected) != "" {
		t.Fatalf("KindOf of a plain error = %q", KindOf(errInjected))
	}
	if !errors.Is(outer, errInjected) {
		t.Fatalf("cause not reachable through errors.Is")
	}
}
