// Package identity owns the local long-term identity key pair and the
// cached, trust-annotated public keys of remote identities.
package identity
