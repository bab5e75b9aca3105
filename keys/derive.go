package keys

import (
	"errors"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for wallet key derivation.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
	saltSize     = 16
)

var saltKey = blake3.Sum256([]byte("xdao.co/wallet keys v1 wallet salt"))

// DeriveWallet returns the wallet capability for (domain, secret).
//
// The salt is bound to the domain, so one secret opens unrelated wallets in
// different domains.
func DeriveWallet(domain, secret string) (Capability, error) {
	if err := CheckDomain(domain); err != nil {
		return Capability{}, err
	}
	if secret == "" {
		return Capability{}, errors.New("keys: secret cannot be empty")
	}
	salt, err := domainSalt(domain)
	if err != nil {
		return Capability{}, err
	}
	id := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, IDSize)
	return Capability{Kind: KindWallet, Domain: domain, ID: id}, nil
}

func domainSalt(domain string) ([]byte, error) {
	h, err := blake3.NewKeyed(saltKey[:])
	if err != nil {
		return nil, err
	}
	_, _ = h.Write([]byte(domain))
	return h.Sum(nil)[:saltSize], nil
}
