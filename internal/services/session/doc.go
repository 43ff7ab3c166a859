// Package session implements the session manager: establishing
// sessions from prekey bundles and advancing them through the double
// ratchet. Session state is a single-writer resource per remote
// address; every mutation here happens under that address's lock and
// is persisted before derived key material leaves the package.
package session
