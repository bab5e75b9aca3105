package keys

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

// Kind is the capability family.
type Kind string

const (
	// KindSeed names an ordinary writable unit.
	KindSeed Kind = "seed"
	// KindWallet names a wallet alias unit.
	KindWallet Kind = "wallet"
)

const (
	prefix  = "cap"
	version = "v1"

	// IDSize is the length of minted and derived unit identifiers.
	IDSize = 32
)

var (
	ErrMalformed   = errors.New("keys: malformed capability")
	ErrUnknownKind = errors.New("keys: unknown capability kind")
)

// Capability is a parsed capability key.
type Capability struct {
	Kind   Kind
	Domain string
	// ID is empty for template keys.
	ID []byte
}

// TemplateSeed returns the template key from which new seed units are minted.
func TemplateSeed(domain string) Capability {
	return Capability{Kind: KindSeed, Domain: domain}
}

// IsTemplate reports whether c still needs an identifier.
func (c Capability) IsTemplate() bool { return len(c.ID) == 0 }

// String renders c in its canonical text form.
func (c Capability) String() string {
	id := ""
	if len(c.ID) > 0 {
		// Encode only fails for unknown encodings.
		id, _ = multibase.Encode(multibase.Base58BTC, c.ID)
	}
	return strings.Join([]string{prefix, version, string(c.Kind), c.Domain, id}, ":")
}

// Parse decodes a capability key produced by String.
func Parse(s string) (Capability, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 5 || parts[0] != prefix || parts[1] != version {
		return Capability{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	c := Capability{Kind: Kind(parts[2]), Domain: parts[3]}
	switch c.Kind {
	case KindSeed, KindWallet:
	default:
		return Capability{}, fmt.Errorf("%w: %q", ErrUnknownKind, parts[2])
	}
	if err := CheckDomain(c.Domain); err != nil {
		return Capability{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parts[4] == "" {
		return c, nil
	}
	enc, id, err := multibase.Decode(parts[4])
	if err != nil {
		return Capability{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if enc != multibase.Base58BTC || len(id) != IDSize {
		return Capability{}, fmt.Errorf("%w: bad identifier in %q", ErrMalformed, s)
	}
	c.ID = id
	return c, nil
}

// Mint completes a template key with a fresh random identifier.
func Mint(template Capability) (Capability, error) {
	if !template.IsTemplate() {
		return Capability{}, fmt.Errorf("keys: %s is not a template", template)
	}
	id := make([]byte, IDSize)
	if _, err := rand.Read(id); err != nil {
		return Capability{}, err
	}
	template.ID = id
	return template, nil
}

// CheckDomain validates a vault domain name.
func CheckDomain(domain string) error {
	if domain == "" {
		return errors.New("domain cannot be empty")
	}
	for _, char := range domain {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.' {
			continue
		}
		return fmt.Errorf("invalid character %q in domain", char)
	}
	return nil
}
