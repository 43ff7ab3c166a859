// Package store provides the key-value persistence glue: a LevelDB and
// an in-memory implementation of domain.KeyValueStore, plus the typed
// stores (identity, session, prekey) layered on top of it.
//
// Store failures surface wrapped in domain.ErrKeyStorage so callers can
// distinguish "the secure store is unavailable" from protocol errors.
package store
