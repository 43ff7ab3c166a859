package ratchet

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	"hearth/internal/util/memzero"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize

	// DefaultSkipWindow bounds the skipped-message-key cache when the
	// caller does not configure one.
	DefaultSkipWindow = 512
)

var errChainUninitialised = errors.New("ratchet: chain key is uninitialised")

// Header is the clear portion of an envelope the receiver needs to
// resynchronize: the sender's current ratchet public key, the previous
// chain length, and the message index within the current chain.
type Header struct {
	DHPub domain.X25519Public
	PN    uint32
	N     uint32
}

// InitAsInitiator seeds a fresh state whose sending chain is derived
// from root and the peer's identity key. The receiving chain stays
// empty until the peer's first ratchet key arrives.
func InitAsInitiator(root []byte, peerIdentity domain.X25519Public, window uint32) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.X25519(priv, peerIdentity)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, sendCK := kdfRoot(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:      newRoot,
		DHPriv:       priv,
		DHPub:        pub,
		PeerDHPub:    peerIdentity, // placeholder until the first remote ratchet key arrives
		SendChainKey: sendCK,
		SkippedKeys:  make(map[string][]byte),
		SkipWindow:   windowOrDefault(window),
	}, nil
}

// InitAsResponder seeds a fresh state whose receiving chain is derived
// from root, our identity private, and the sender's ratchet key from
// the first envelope.
func InitAsResponder(root []byte, ourIDPriv domain.X25519Private, senderRatchetPub domain.X25519Public, window uint32) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.X25519(ourIDPriv, senderRatchetPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, recvCK := kdfRoot(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:      newRoot,
		DHPriv:       priv,
		DHPub:        pub,
		PeerDHPub:    senderRatchetPub,
		RecvChainKey: recvCK,
		SkippedKeys:  make(map[string][]byte),
		SkipWindow:   windowOrDefault(window),
	}, nil
}

// AdvanceSending derives the next message key from the sending chain
// and ratchets the chain key forward. The old chain key is overwritten;
// irrecoverability is the forward-secrecy guarantee. The send counter
// is monotonic and never reused for a given chain key.
//
// A responder whose sending chain is still empty performs its first DH
// ratchet step here.
func AdvanceSending(st *domain.RatchetState) (mk []byte, h Header, err error) {
	if len(st.SendChainKey) == 0 {
		if err := sendRatchetStep(st); err != nil {
			return nil, Header{}, err
		}
	}
	next, mk := kdfChain(st.SendChainKey)
	memzero.Zero(st.SendChainKey)
	st.SendChainKey = next

	h = Header{DHPub: st.DHPub, PN: st.PrevChainLen, N: st.SendCount}
	st.SendCount++
	return mk, h, nil
}

// AdvanceReceiving returns the message key for index n of the current
// receiving chain. In-order indices ratchet the chain forward exactly
// like sending. Indices already passed are served once from the
// skipped-key cache and fail with ErrKeyAlreadyConsumed afterwards.
// Indices beyond the tolerance window fail with ErrChainDesynchronized.
func AdvanceReceiving(st *domain.RatchetState, n uint32) ([]byte, error) {
	if n < st.RecvCount {
		id := skippedKeyID(st.PeerDHPub, n)
		mk, ok := st.SkippedKeys[id]
		if !ok {
			return nil, domain.ErrKeyAlreadyConsumed
		}
		delete(st.SkippedKeys, id)
		return mk, nil
	}
	if err := skipUntil(st, n); err != nil {
		return nil, err
	}
	next, mk := kdfChain(st.RecvChainKey)
	memzero.Zero(st.RecvChainKey)
	st.RecvChainKey = next
	st.RecvCount = n + 1
	return mk, nil
}

// DHRatchetStep absorbs a new remote ratchet key: it caches the
// remainder of the old receiving chain (up to pn), derives a fresh
// receiving chain from the new key, generates a new local ratchet key
// pair, and derives a fresh sending chain. This is what provides
// continuous forward secrecy across the conversation, not just per
// session.
func DHRatchetStep(st *domain.RatchetState, newPeer domain.X25519Public, pn uint32) error {
	if len(st.RecvChainKey) > 0 {
		if err := skipUntil(st, pn); err != nil {
			return err
		}
	}

	dh, err := crypto.X25519(st.DHPriv, newPeer)
	if err != nil {
		return err
	}
	newRoot, recvCK := kdfRoot(st.RootKey, dh[:])
	memzero.Zero(dh[:])

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh2, err := crypto.X25519(priv, newPeer)
	if err != nil {
		return err
	}
	nextRoot, sendCK := kdfRoot(newRoot, dh2[:])
	memzero.Zero(dh2[:])
	memzero.Zero(newRoot)

	st.PrevChainLen = st.SendCount
	st.SendCount, st.RecvCount = 0, 0
	memzero.Zero(st.RootKey)
	st.RootKey = nextRoot
	st.DHPriv, st.DHPub = priv, pub
	st.PeerDHPub = newPeer
	memzero.Zero(st.SendChainKey)
	memzero.Zero(st.RecvChainKey)
	st.SendChainKey, st.RecvChainKey = sendCK, recvCK
	return nil
}

// Encrypt advances the sending chain one step and seals plaintext under
// the derived message key, binding the header and ad.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (Header, []byte, error) {
	mk, h, err := AdvanceSending(st)
	if err != nil {
		return Header{}, nil, err
	}
	ct, err := seal(mk, h, ad, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return Header{}, nil, err
	}
	return h, ct, nil
}

// Decrypt resolves the message key for header — stepping the DH ratchet
// first if the header carries a new remote ratchet key — and opens the
// ciphertext. A tag mismatch surfaces as ErrDecryptionFailed.
func Decrypt(st *domain.RatchetState, ad []byte, h Header, ciphertext []byte) ([]byte, error) {
	if st.PeerDHPub != h.DHPub {
		// Keys for the old chain may still be cached; try them before
		// committing to a ratchet step.
		if mk, ok := st.SkippedKeys[skippedKeyID(h.DHPub, h.N)]; ok {
			delete(st.SkippedKeys, skippedKeyID(h.DHPub, h.N))
			pt, err := open(mk, h, ad, ciphertext)
			memzero.Zero(mk)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
			}
			return pt, nil
		}
		if err := DHRatchetStep(st, h.DHPub, h.PN); err != nil {
			return nil, err
		}
	}

	mk, err := AdvanceReceiving(st, h.N)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, h, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
	}
	return pt, nil
}

// --- helpers ---

func sendRatchetStep(st *domain.RatchetState) error {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh, err := crypto.X25519(priv, st.PeerDHPub)
	if err != nil {
		return err
	}
	newRoot, sendCK := kdfRoot(st.RootKey, dh[:])
	memzero.Zero(dh[:])

	st.PrevChainLen = st.SendCount
	st.SendCount = 0
	memzero.Zero(st.RootKey)
	st.RootKey = newRoot
	st.DHPriv, st.DHPub = priv, pub
	st.SendChainKey = sendCK
	return nil
}

// skipUntil derives and caches receiving-chain keys up to (but not
// including) n. The cache is bounded: a gap wider than the configured
// window fails closed, and the oldest cached entries are evicted once
// the cache is full.
func skipUntil(st *domain.RatchetState, n uint32) error {
	if n <= st.RecvCount {
		return nil
	}
	window := windowOrDefault(st.SkipWindow)
	if n-st.RecvCount > window {
		return domain.ErrChainDesynchronized
	}
	if len(st.RecvChainKey) == 0 {
		return errChainUninitialised
	}
	for st.RecvCount < n {
		next, mk := kdfChain(st.RecvChainKey)
		memzero.Zero(st.RecvChainKey)
		st.RecvChainKey = next
		if uint32(len(st.SkippedKeys)) >= window {
			evictOldest(st)
		}
		id := skippedKeyID(st.PeerDHPub, st.RecvCount)
		st.SkippedKeys[id] = mk
		st.SkippedOrder = append(st.SkippedOrder, id)
		st.RecvCount++
	}
	return nil
}

// evictOldest drops the oldest cached skipped key. Entries already
// consumed stay in SkippedOrder until they scroll past here, so the
// loop skips over IDs no longer in the map.
func evictOldest(st *domain.RatchetState) {
	for len(st.SkippedOrder) > 0 {
		id := st.SkippedOrder[0]
		st.SkippedOrder = st.SkippedOrder[1:]
		if mk, ok := st.SkippedKeys[id]; ok {
			memzero.Zero(mk)
			delete(st.SkippedKeys, id)
			return
		}
	}
}

func seal(mk []byte, h Header, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], h.N)
	return aead.Seal(nil, nonce, plaintext, associatedData(h, ad)), nil
}

func open(mk []byte, h Header, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], h.N)
	return aead.Open(nil, nonce, ciphertext, associatedData(h, ad))
}

// associatedData binds the clear header fields to the ciphertext so a
// tampered header fails authentication.
func associatedData(h Header, ad []byte) []byte {
	out := make([]byte, 0, len(ad)+32+8)
	out = append(out, ad...)
	out = append(out, h.DHPub[:]...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PN)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.N)
	out = append(out, b[:]...)
	return out
}

// skippedKeyID is hex so the cache survives JSON persistence of the
// session state.
func skippedKeyID(peer domain.X25519Public, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return hex.EncodeToString(b)
}

// HKDF-based KDFs with distinct labels for root and chain steps.

func kdfRoot(root, dh []byte) (newRoot, ck []byte) {
	r := hkdf.New(sha256.New, dh, root, []byte("hearth-dr-root"))
	newRoot = make([]byte, 32)
	ck = make([]byte, 32)
	_, _ = io.ReadFull(r, newRoot)
	_, _ = io.ReadFull(r, ck)
	return
}

func kdfChain(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte("hearth-dr-chain"))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func windowOrDefault(w uint32) uint32 {
	if w == 0 {
		return DefaultSkipWindow
	}
	return w
}
