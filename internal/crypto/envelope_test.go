package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"hearth/internal/crypto"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := []byte("secret key material")
	blob, err := crypto.SealEnvelope("hunter2", raw)
	if err != nil {
		t.Fatalf("SealEnvelope: %v", err)
	}
	if bytes.Contains(blob, raw) {
		t.Fatal("sealed blob contains the plaintext")
	}
	got, err := crypto.OpenEnvelope("hunter2", blob)
	if err != nil {
		t.Fatalf("OpenEnvelope: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("got %q, want %q", got, raw)
	}
}

func TestEnvelopeWrongPassphrase(t *testing.T) {
	blob, err := crypto.SealEnvelope("right", []byte("data"))
	if err != nil {
		t.Fatalf("SealEnvelope: %v", err)
	}
	if _, err := crypto.OpenEnvelope("wrong", blob); !errors.Is(err, crypto.ErrWrongPassphrase) {
		t.Fatalf("got %v, want ErrWrongPassphrase", err)
	}
}

func TestEnvelopeTamperDetected(t *testing.T) {
	blob, err := crypto.SealEnvelope("pass", []byte("data"))
	if err != nil {
		t.Fatalf("SealEnvelope: %v", err)
	}
	blob[len(blob)-2] ^= 0x01
	if _, err := crypto.OpenEnvelope("pass", blob); err == nil {
		t.Fatal("tampered envelope decrypted")
	}
}
