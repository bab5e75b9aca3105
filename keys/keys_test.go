package keys

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDeriveWalletDeterministic(t *testing.T) {
	a, err := DeriveWallet("example.org", "correct horse")
	if err != nil {
		t.Fatalf("DeriveWallet: %v", err)
	}
	b, err := DeriveWallet("example.org", "correct horse")
	if err != nil {
		t.Fatalf("DeriveWallet: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("expected deterministic derivation")
	}
	if a.Kind != KindWallet || len(a.ID) != IDSize {
		t.Fatalf("unexpected wallet key %+v", a)
	}

	c, err := DeriveWallet("example.org", "battery staple")
	if err != nil {
		t.Fatalf("DeriveWallet: %v", err)
	}
	if bytes.Equal(a.ID, c.ID) {
		t.Fatalf("expected different secrets to derive different keys")
	}

	d, err := DeriveWallet("other.org", "correct horse")
	if err != nil {
		t.Fatalf("DeriveWallet: %v", err)
	}
	if bytes.Equal(a.ID, d.ID) {
		t.Fatalf("expected different domains to derive different keys")
	}
}

func TestDeriveWalletRejectsBadInput(t *testing.T) {
	if _, err := DeriveWallet("example.org", ""); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
	if _, err := DeriveWallet("bad:domain", "s"); err == nil {
		t.Fatalf("expected domain with separator to be rejected")
	}
}

func TestParseRoundTrip(t *testing.T) {
	minted, err := Mint(TemplateSeed("example.org"))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	s := minted.String()
	if !strings.HasPrefix(s, "cap:v1:seed:example.org:z") {
		t.Fatalf("unexpected form %q", s)
	}
	got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Kind != KindSeed || got.Domain != "example.org" || !bytes.Equal(got.ID, minted.ID) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestParseTemplate(t *testing.T) {
	c, err := Parse("cap:v1:seed:example.org:")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !c.IsTemplate() {
		t.Fatalf("expected template key")
	}
	if c.String() != TemplateSeed("example.org").String() {
		t.Fatalf("template text mismatch: %s", c)
	}
}

func TestParseRejects(t *testing.T) {
	for _, s := range []string{
		"",
		"cap:v2:seed:example.org:",
		"cap:v1:seed:example.org",
		"cap:v1:seed::",
		"cap:v1:seed:example.org:not-multibase",
		"cap:v1:seed:example.org:zabc",
	} {
		if _, err := Parse(s); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q): got %v want ErrMalformed", s, err)
		}
	}
	if _, err := Parse("cap:v1:const:example.org:"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
}

func TestMintFreshIdentifiers(t *testing.T) {
	tpl := TemplateSeed("example.org")
	a, err := Mint(tpl)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	b, err := Mint(tpl)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if a.String() == b.String() {
		t.Fatalf("expected distinct minted keys")
	}
	if _, err := Mint(a); err == nil {
		t.Fatalf("expected Mint to refuse a completed key")
	}
}
