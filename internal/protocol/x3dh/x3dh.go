package x3dh

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	"hearth/internal/util/memzero"
)

// kdfInfo labels the HKDF expansion so root keys cannot collide with
// other derivations from the same secrets.
var kdfInfo = []byte("hearth-x3dh-v1")

var errBadKey = errors.New("x3dh: bad public key")

// VerifyBundle checks the bundle's internal consistency: the signed
// prekey must carry a valid Ed25519 signature by the bundle's signing
// key. A bundle that fails this check must be discarded.
func VerifyBundle(b domain.SignedPrekeyBundle) bool {
	return crypto.VerifyEd25519(b.SigningKey, b.SignedPrekey.Slice(), b.PrekeySignature)
}

// InitiatorRoot runs X3DH as the initiator against a fetched bundle.
// It returns the derived root key, the IDs of the prekeys used, and the
// ephemeral public key the responder needs to recompute the same root.
func InitiatorRoot(local domain.IdentityKeyPair, b domain.SignedPrekeyBundle) (root []byte, spkID, opkID string, ephPub domain.X25519Public, err error) {
	ephPriv, ephPubKey, err := crypto.GenerateX25519()
	if err != nil {
		return nil, "", "", domain.X25519Public{}, err
	}
	defer memzero.Zero(ephPriv[:])

	dh1, err := crypto.X25519(local.PrivateKey, b.SignedPrekey) // DH(IKa, SPKb)
	if err != nil {
		return nil, "", "", domain.X25519Public{}, err
	}
	dh2, err := crypto.X25519(ephPriv, b.IdentityKey) // DH(EKa, IKb)
	if err != nil {
		return nil, "", "", domain.X25519Public{}, err
	}
	dh3, err := crypto.X25519(ephPriv, b.SignedPrekey) // DH(EKa, SPKb)
	if err != nil {
		return nil, "", "", domain.X25519Public{}, err
	}

	concat := make([]byte, 0, 32*4)
	concat = append(concat, dh1[:]...)
	concat = append(concat, dh2[:]...)
	concat = append(concat, dh3[:]...)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])

	if len(b.OneTimePrekeys) > 0 {
		opk := b.OneTimePrekeys[0]
		dh4, err := crypto.X25519(ephPriv, opk.Pub) // DH(EKa, OPKb)
		if err != nil {
			return nil, "", "", domain.X25519Public{}, err
		}
		concat = append(concat, dh4[:]...)
		memzero.Zero(dh4[:])
		opkID = opk.ID
	}

	root = deriveRoot(concat)
	memzero.Zero(concat)
	return root, b.SignedPrekeyID, opkID, ephPubKey, nil
}

// ResponderRoot recomputes the root key from the initiator's prekey
// message using our identity, signed prekey private, and (optionally)
// the consumed one-time prekey private.
func ResponderRoot(local domain.IdentityKeyPair, spkPriv domain.X25519Private, opkPriv *domain.X25519Private, pm domain.PrekeyMessage) ([]byte, error) {
	if !validPoint(pm.InitiatorKey) || !validPoint(pm.EphemeralKey) {
		return nil, errBadKey
	}

	dh1, err := crypto.X25519(spkPriv, pm.InitiatorKey) // DH(SPKb, IKa)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.X25519(local.PrivateKey, pm.EphemeralKey) // DH(IKb, EKa)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.X25519(spkPriv, pm.EphemeralKey) // DH(SPKb, EKa)
	if err != nil {
		return nil, err
	}

	concat := make([]byte, 0, 32*4)
	concat = append(concat, dh1[:]...)
	concat = append(concat, dh2[:]...)
	concat = append(concat, dh3[:]...)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])

	if opkPriv != nil {
		dh4, err := crypto.X25519(*opkPriv, pm.EphemeralKey) // DH(OPKb, EKa)
		if err != nil {
			return nil, err
		}
		concat = append(concat, dh4[:]...)
		memzero.Zero(dh4[:])
	}

	root := deriveRoot(concat)
	memzero.Zero(concat)
	return root, nil
}

func deriveRoot(ikm []byte) []byte {
	r := hkdf.New(sha256.New, ikm, nil, kdfInfo)
	root := make([]byte, 32)
	_, _ = io.ReadFull(r, root)
	return root
}

// validPoint rejects the all-zero key, which would force a zero shared
// secret.
func validPoint(p domain.X25519Public) bool {
	var zero domain.X25519Public
	return p != zero
}
