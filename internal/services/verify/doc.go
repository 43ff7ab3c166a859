// Package verify implements the verification engine: safety-number
// fingerprints, out-of-band comparison, and the trust state machine
// (unverified, verified, changed, blocked).
package verify
