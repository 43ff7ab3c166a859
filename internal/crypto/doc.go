// Package crypto provides key generation, signing, fingerprint
// derivation, and the at-rest encryption envelope used by the stores.
package crypto
