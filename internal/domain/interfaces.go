package domain

import (
	"context"
	"io"
)

// KeyValueStore is the persistence abstraction the core requires.
// Put must be atomic: a reader sees either the previous value or the
// new one, never a partial write.
type KeyValueStore interface {
	Get(key []byte) (value []byte, ok bool, err error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Close() error
}

// PrekeyBundleProvider supplies a remote device's current public key
// material for session bootstrap. Implementations are network calls and
// must honor ctx cancellation.
type PrekeyBundleProvider interface {
	FetchBundle(ctx context.Context, addr Address) (SignedPrekeyBundle, error)
}

// TrustObserver receives trust state transitions. The core emits; the
// application layer (banners, verification screens) subscribes.
type TrustObserver interface {
	OnTrustStateChanged(id RemoteIdentity, newState TrustState)
}

// IdentityService owns the local long-term identity key pair and the
// cached, trust-annotated public keys of remote identities.
type IdentityService interface {
	// GetOrCreateLocalIdentity is idempotent: it generates the key
	// pair on first call and returns the persisted pair afterwards.
	GetOrCreateLocalIdentity(passphrase string) (IdentityKeyPair, error)
	// LocalIdentity returns the persisted pair or ErrNoLocalIdentity.
	LocalIdentity(passphrase string) (IdentityKeyPair, error)

	GetRemoteIdentity(addr Address) (RemoteIdentity, bool, error)
	// UpsertRemoteIdentity creates an Unverified record on first
	// contact. If the stored public key differs from key, it sets
	// TrustChanged, updates LastChangedAt, and returns changed=true.
	// This is the sole trigger for key-change notification flows.
	UpsertRemoteIdentity(addr Address, key X25519Public, signingKey Ed25519Public) (id RemoteIdentity, changed bool, err error)
	// SetTrustState records a transition and notifies observers.
	SetTrustState(addr Address, state TrustState) (RemoteIdentity, error)

	Subscribe(obs TrustObserver)
}

// SessionManager builds new sessions from prekey bundles and advances
// existing sessions through the ratchet. All mutation of a session is
// serialized per remote address and persisted before any derived
// message key is released to the caller.
type SessionManager interface {
	// EstablishSession runs X3DH as initiator against bundle and
	// persists the fresh session. A failed establish leaves no state
	// behind. Fails with ErrBundleInvalid if the bundle's prekey
	// signature does not verify against its signing key. Concurrent
	// establishes against one remote resolve to a single session; a
	// live session under the same remote key is returned unchanged.
	EstablishSession(ctx context.Context, passphrase string, remote RemoteIdentity, bundle SignedPrekeyBundle) (SessionState, error)

	GetSession(addr Address) (SessionState, bool, error)

	// SealMessage advances the sending chain one step and encrypts
	// plaintext under the derived message key.
	SealMessage(passphrase string, from, to Address, plaintext []byte) (MessageEnvelope, error)
	// OpenMessage resolves the session for env.From, performs a DH
	// ratchet step if the envelope carries a new ratchet key, advances
	// or replays into the receiving chain at env.ChainIndex, and
	// decrypts. Bootstraps a responder session when env carries a
	// prekey message and no session exists.
	OpenMessage(passphrase string, to Address, env MessageEnvelope) ([]byte, error)

	// DestroySession discards all ratchet state for addr. Old keys are
	// not recoverable afterwards.
	DestroySession(addr Address) error
}

// MessageCipher turns plaintext message payloads into authenticated
// envelopes and back. It consults trust state and refuses blocked
// identities in both directions.
type MessageCipher interface {
	Encrypt(ctx context.Context, passphrase string, from, to Address, plaintext []byte) (MessageEnvelope, error)
	Decrypt(ctx context.Context, passphrase string, to Address, env MessageEnvelope) ([]byte, error)
}

// MediaCipher encrypts and decrypts attachment content independently of
// the message ratchet. The per-file content key is wrapped once per
// recipient through that recipient's messaging session, so attachment
// confidentiality is gated by the same trust model as messages.
type MediaCipher interface {
	EncryptAttachment(ctx context.Context, passphrase string, dst io.Writer, src io.Reader, mimeType string, from Address, recipients []Address) ([]WrappedMediaKey, error)
	// DecryptAttachment verifies the ciphertext integrity hash before
	// any plaintext reaches dst; on ErrIntegrityCheck nothing is
	// written.
	DecryptAttachment(ctx context.Context, passphrase string, dst io.Writer, src io.Reader, to Address, wrapped WrappedMediaKey) error
}

// VerificationEngine computes fingerprints and drives the trust state
// machine.
type VerificationEngine interface {
	ComputeFingerprint(user UserID, key X25519Public) Fingerprint
	LocalFingerprint(passphrase string, user UserID) (Fingerprint, error)
	// CombinedFingerprint builds the local:remote payload exchanged
	// out of band (QR or read aloud).
	CombinedFingerprint(local, remote Fingerprint) string
	QRCodePNG(local, remote Fingerprint) ([]byte, error)

	VerifyByComparison(local, remote, expectedRemote Fingerprint) VerificationResult
	// MarkVerified transitions to Verified. Only call after a
	// successful comparison or equivalent explicit user confirmation.
	MarkVerified(addr Address) error
	// ResolveKeyChange applies the user's decision after a key change:
	// TrustNewKey destroys the old session and resets trust to
	// Unverified; Block refuses further traffic.
	ResolveKeyChange(addr Address, decision KeyChangeDecision) error
	Unblock(addr Address) error
	GetTrustState(addr Address) (TrustState, error)
}

// FanoutCoordinator maps one logical message onto N pairwise envelopes,
// one per participant device.
type FanoutCoordinator interface {
	EncryptForAll(ctx context.Context, passphrase string, from Address, participants []Address, plaintext []byte) ([]MessageEnvelope, error)
}

// PrekeyService generates and publishes the local device's prekeys.
type PrekeyService interface {
	// GenerateAndStore creates a fresh signed prekey plus n one-time
	// prekeys, persists the private halves, and returns the public
	// bundle for registration with a directory.
	GenerateAndStore(passphrase string, addr Address, n int) (SignedPrekeyBundle, error)
	// Bundle rebuilds the public bundle from stored prekeys.
	Bundle(passphrase string, addr Address) (SignedPrekeyBundle, error)
}
