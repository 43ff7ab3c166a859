// Package ratchet implements the double ratchet: HKDF chain-key
// advancement for per-message forward secrecy and DH ratchet steps for
// healing after a potential compromise. All functions mutate the state
// in place; callers own serialization and persistence.
package ratchet
