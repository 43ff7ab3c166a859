package domain

import (
	"fmt"
	"time"
)

// UserID identifies a user account.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// DeviceID identifies one device of a user. Each device carries its own
// identity key pair and its own sessions.
type DeviceID uint32

// Address is the (user, device) pair a session or identity is keyed by.
type Address struct {
	UserID   UserID   `json:"user_id"`
	DeviceID DeviceID `json:"device_id"`
}

// String renders the address as "user/device".
func (a Address) String() string { return fmt.Sprintf("%s/%d", a.UserID, a.DeviceID) }

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Fingerprint is the human-comparable safety number derived from a
// (user, public key) pair, formatted as grouped hex digits.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// TrustState tracks how far the user has gone in verifying a remote
// identity key.
type TrustState int

const (
	// TrustUnverified is the initial state of every remote identity.
	TrustUnverified TrustState = iota
	// TrustVerified means the user confirmed a fingerprint match.
	TrustVerified
	// TrustChanged means the remote identity key differs from the one
	// previously stored. Set automatically on key change, from any
	// prior state; resolved only by explicit user action.
	TrustChanged
	// TrustBlocked refuses all encrypt/decrypt traffic with the
	// identity until the user unblocks it.
	TrustBlocked
)

// String returns a stable lowercase name for the trust state.
func (t TrustState) String() string {
	switch t {
	case TrustUnverified:
		return "unverified"
	case TrustVerified:
		return "verified"
	case TrustChanged:
		return "changed"
	case TrustBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("trust(%d)", int(t))
	}
}

// IdentityKeyPair is the local long-term identity: an X25519 pair for
// Diffie-Hellman (X3DH and ratchet) and an Ed25519 pair for signing
// prekeys. Generated once per device, never transmitted.
type IdentityKeyPair struct {
	PublicKey  X25519Public   `json:"public_key"`
	PrivateKey X25519Private  `json:"private_key"`
	SigningPub Ed25519Public  `json:"signing_pub"`
	SigningKey Ed25519Private `json:"signing_key"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RemoteIdentity is the cached, trust-annotated public key of one
// remote (user, device).
type RemoteIdentity struct {
	Address       Address       `json:"address"`
	PublicKey     X25519Public  `json:"public_key"`
	SigningKey    Ed25519Public `json:"signing_key"`
	TrustState    TrustState    `json:"trust_state"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastChangedAt time.Time     `json:"last_changed_at"`
}

// RatchetState holds the double-ratchet chain state for one session.
//
// SkippedKeys caches message keys for out-of-order delivery, bounded by
// SkipWindow entries; each cached key is removed after a single use.
type RatchetState struct {
	RootKey      []byte        `json:"root_key"`
	DHPriv       X25519Private `json:"dh_priv"`
	DHPub        X25519Public  `json:"dh_pub"`
	PeerDHPub    X25519Public  `json:"peer_dh_pub"`
	SendChainKey []byte        `json:"send_ck,omitempty"`
	RecvChainKey []byte        `json:"recv_ck,omitempty"`
	SendCount    uint32        `json:"ns"`
	RecvCount    uint32        `json:"nr"`
	PrevChainLen uint32        `json:"pn"`

	// SkippedOrder records cache insertion order so the oldest entry
	// is the one evicted when the cache is full.
	SkippedKeys  map[string][]byte `json:"skipped_keys"`
	SkippedOrder []string          `json:"skipped_order,omitempty"`
	SkipWindow   uint32            `json:"skip_window"`
}

// SessionState is one ratcheting session with a remote device. Created
// lazily on the first outbound or inbound message; destroyed when the
// user trusts a new key after a key change.
type SessionState struct {
	Remote        Address      `json:"remote"`
	RemoteKey     X25519Public `json:"remote_key"`
	Ratchet       RatchetState `json:"ratchet"`
	EstablishedAt time.Time    `json:"established_at"`

	// PendingPrekey rides along on outbound envelopes until the peer's
	// first reply proves the session is established on both ends.
	PendingPrekey *PrekeyMessage `json:"pending_prekey,omitempty"`
}

// PrekeyMessage carries the X3DH handshake parameters inside the first
// envelope of a session so the responder can derive the same root key.
type PrekeyMessage struct {
	InitiatorKey    X25519Public `json:"initiator_key"`
	EphemeralKey    X25519Public `json:"ephemeral_key"`
	SignedPrekeyID  string       `json:"signed_prekey_id"`
	OneTimePrekeyID string       `json:"one_time_prekey_id,omitempty"`
}

// MessageEnvelope is the wire representation of one encrypted message.
//
// RatchetKey, ChainIndex, and PrevChainLen travel in the clear; the
// receiver needs them to resynchronize its receiving chain. Ciphertext
// is ChaCha20-Poly1305 output with the 16-byte auth tag appended, bound
// to the header fields as associated data.
type MessageEnvelope struct {
	From         Address        `json:"from"`
	To           Address        `json:"to"`
	RatchetKey   X25519Public   `json:"ratchet_key"`
	ChainIndex   uint32         `json:"chain_index"`
	PrevChainLen uint32         `json:"prev_chain_len"`
	Ciphertext   []byte         `json:"ciphertext"`
	Prekey       *PrekeyMessage `json:"prekey,omitempty"`
	SentAt       int64          `json:"sent_at"`
}

// OneTimePrekeyPair is a full one-time prekey as stored locally.
type OneTimePrekeyPair struct {
	ID   string        `json:"id"`
	Priv X25519Private `json:"priv"`
	Pub  X25519Public  `json:"pub"`
}

// OneTimePrekeyPublic is the public half of a one-time prekey as
// published in a bundle.
type OneTimePrekeyPublic struct {
	ID  string       `json:"id"`
	Pub X25519Public `json:"pub"`
}

// SignedPrekeyBundle is the public key material a device publishes so
// others can bootstrap a session without an interactive handshake. The
// signed prekey is signed with the device's Ed25519 identity key; a
// bundle whose signature does not verify is rejected outright.
//
// When fetched through a PrekeyBundleProvider the OneTimePrekeys list
// holds at most one entry, consumed by the directory on hand-out.
type SignedPrekeyBundle struct {
	Address         Address               `json:"address"`
	IdentityKey     X25519Public          `json:"identity_key"`
	SigningKey      Ed25519Public         `json:"signing_key"`
	SignedPrekeyID  string                `json:"signed_prekey_id"`
	SignedPrekey    X25519Public          `json:"signed_prekey"`
	PrekeySignature []byte                `json:"prekey_signature"`
	OneTimePrekeys  []OneTimePrekeyPublic `json:"one_time_prekeys,omitempty"`
}

// WrappedMediaKey carries everything one recipient needs to decrypt an
// attachment: the per-file content key wrapped through that recipient's
// messaging session, plus metadata and the ciphertext integrity hash.
type WrappedMediaKey struct {
	AttachmentID  string          `json:"attachment_id"`
	Recipient     Address         `json:"recipient"`
	KeyEnvelope   MessageEnvelope `json:"key_envelope"`
	MimeType      string          `json:"mime_type"`
	PlaintextSize int64           `json:"plaintext_size"`
	IntegrityHash []byte          `json:"integrity_hash"`
}

// VerificationResult is the outcome of a fingerprint comparison.
type VerificationResult int

const (
	// VerificationMatch means both fingerprints compared equal.
	VerificationMatch VerificationResult = iota
	// VerificationMismatch means at least one fingerprint differed.
	// Must be surfaced to the user as a security warning.
	VerificationMismatch
)

// String returns a stable name for the result.
func (r VerificationResult) String() string {
	if r == VerificationMatch {
		return "match"
	}
	return "mismatch"
}

// KeyChangeDecision is the user's resolution of a key change.
type KeyChangeDecision int

const (
	// TrustNewKey discards the old session and resets trust to
	// unverified; trust in a changed key must be re-earned.
	TrustNewKey KeyChangeDecision = iota
	// Block refuses all further traffic with the identity.
	Block
)
