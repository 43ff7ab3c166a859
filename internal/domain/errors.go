package domain

import "errors"

// Cryptographic failures never degrade to plaintext fallback or silent
// skip. Everything below is non-retryable with the same inputs; the
// only recovery paths are explicit user action (TrustNewKey/Block) or
// re-establishing a session from a fresh prekey bundle.
var (
	// ErrKeyStorage means the local secure store is unavailable or
	// rejected an operation. Fatal to the calling operation.
	ErrKeyStorage = errors.New("key storage unavailable")

	// ErrBundleInvalid means a fetched prekey bundle failed its
	// signature or consistency check. Treated as a security event.
	ErrBundleInvalid = errors.New("prekey bundle invalid")

	// ErrChainDesynchronized means an envelope's chain index lies
	// beyond the skipped-key tolerance window; the message cannot be
	// decrypted.
	ErrChainDesynchronized = errors.New("ratchet chain desynchronized")

	// ErrKeyAlreadyConsumed means the message key for an envelope's
	// chain index was already used once and discarded. Replays and
	// duplicates land here.
	ErrKeyAlreadyConsumed = errors.New("message key already consumed")

	// ErrDecryptionFailed means the authentication tag did not verify.
	// The same ciphertext must not be retried with another key guess.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrIntegrityCheck means an attachment's ciphertext hash did not
	// match; partially decrypted output is discarded.
	ErrIntegrityCheck = errors.New("media integrity check failed")

	// ErrIdentityBlocked means the user blocked the remote identity;
	// encrypt and decrypt both refuse until it is unblocked.
	ErrIdentityBlocked = errors.New("identity is blocked")

	// ErrNoSession means no session exists for the remote address and
	// none could be created in the current call.
	ErrNoSession = errors.New("no session with remote")

	// ErrNoLocalIdentity means the device has not generated its
	// identity key pair yet.
	ErrNoLocalIdentity = errors.New("local identity not initialized")

	// ErrUnknownIdentity means no record exists for the remote
	// address.
	ErrUnknownIdentity = errors.New("unknown remote identity")
)
