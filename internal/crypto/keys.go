package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"hearth/internal/domain"
)

// GenerateX25519 returns a fresh clamped Curve25519 key pair.
func GenerateX25519() (domain.X25519Private, domain.X25519Public, error) {
	var priv domain.X25519Private
	if _, err := rand.Read(priv[:]); err != nil {
		return domain.X25519Private{}, domain.X25519Public{}, err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pubBytes, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.X25519Private{}, domain.X25519Public{}, err
	}
	var pub domain.X25519Public
	copy(pub[:], pubBytes)
	return priv, pub, nil
}

// GenerateEd25519 returns a fresh Ed25519 signing key pair.
func GenerateEd25519() (domain.Ed25519Private, domain.Ed25519Public, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.Ed25519Private{}, domain.Ed25519Public{}, err
	}
	var privArr domain.Ed25519Private
	var pubArr domain.Ed25519Public
	copy(privArr[:], priv)
	copy(pubArr[:], pub)
	return privArr, pubArr, nil
}

// SignEd25519 signs msg with the identity signing key.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(priv.Slice(), msg)
}

// VerifyEd25519 reports whether sig is a valid signature of msg.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(pub.Slice(), msg, sig)
}

// X25519 computes the shared secret between priv and pub.
func X25519(priv domain.X25519Private, pub domain.X25519Public) ([32]byte, error) {
	var out [32]byte
	res, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], res)
	return out, nil
}
