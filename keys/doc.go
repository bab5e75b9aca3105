// Package keys formats, parses and derives capability keys.
//
// A capability key names one storage unit:
//
//	cap:v1:<kind>:<domain>:<id>
//
// where id is the multibase (base58btc) encoding of the unit identifier.
// Template keys carry an empty id ("cap:v1:seed:example.org:") and are
// completed by minting when a unit is created from them. Wallet keys are
// derived deterministically from (domain, secret), so the same credentials
// always reach the same wallet.
package keys
