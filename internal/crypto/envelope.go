package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"hearth/internal/util/memzero"
)

// At-rest envelope for secrets persisted by the stores: scrypt-derived
// key, ChaCha20-Poly1305 seal, salt bound as associated data. The nonce
// is all-zero; the salt-bound key is unique per envelope.

const envelopeVersion = 1

// ErrWrongPassphrase is returned when the passphrase is incorrect or
// the stored blob was modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted blob")

type envelopeBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// SealEnvelope encrypts raw under a key derived from passphrase.
func SealEnvelope(passphrase string, raw []byte) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	N, r, p := scryptParamsDefault()
	key, err := scrypt.Key([]byte(passphrase), salt[:], N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(envelopeBlob{
		V:      envelopeVersion,
		Salt:   salt[:],
		N:      N,
		R:      r,
		P:      p,
		Cipher: ct,
	})
}

// OpenEnvelope decrypts a blob produced by SealEnvelope.
func OpenEnvelope(passphrase string, blob []byte) ([]byte, error) {
	var env envelopeBlob
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, ErrWrongPassphrase
	}
	if env.V != envelopeVersion || len(env.Salt) != 16 {
		return nil, ErrWrongPassphrase
	}
	key, err := scrypt.Key([]byte(passphrase), env.Salt, env.N, env.R, env.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	raw, err := aead.Open(nil, nonce[:], env.Cipher, env.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return raw, nil
}
