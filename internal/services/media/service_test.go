package media_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"hearth/internal/domain"
	mediasvc "hearth/internal/services/media"
)

// xorCipher is a stand-in message cipher: reversible, not secure, and
// good enough to exercise key wrapping without a full session stack.
type xorCipher struct{}

func (xorCipher) Encrypt(_ context.Context, _ string, from, to domain.Address, plaintext []byte) (domain.MessageEnvelope, error) {
	ct := make([]byte, len(plaintext))
	for i, b := range plaintext {
		ct[i] = b ^ 0x5a
	}
	return domain.MessageEnvelope{From: from, To: to, Ciphertext: ct}, nil
}

func (c xorCipher) Decrypt(_ context.Context, _ string, _ domain.Address, env domain.MessageEnvelope) ([]byte, error) {
	pt := make([]byte, len(env.Ciphertext))
	for i, b := range env.Ciphertext {
		pt[i] = b ^ 0x5a
	}
	return pt, nil
}

var (
	alice = domain.Address{UserID: "alice", DeviceID: 1}
	bob   = domain.Address{UserID: "bob", DeviceID: 1}
	carol = domain.Address{UserID: "carol", DeviceID: 1}
)

func testBlob(t *testing.T, n int) []byte {
	t.Helper()
	blob := make([]byte, n)
	_, err := rand.Read(blob)
	require.NoError(t, err)
	return blob
}

func TestAttachmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := mediasvc.New(xorCipher{}, nil)
	// Larger than one chunk so the pump loops.
	plain := testBlob(t, 200*1024)

	var ct bytes.Buffer
	wrapped, err := svc.EncryptAttachment(ctx, "pw", &ct, bytes.NewReader(plain), "image/png", alice, []domain.Address{bob})
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	require.Equal(t, int64(len(plain)), wrapped[0].PlaintextSize)
	require.Equal(t, "image/png", wrapped[0].MimeType)
	require.NotEqual(t, plain, ct.Bytes())

	var out bytes.Buffer
	require.NoError(t, svc.DecryptAttachment(ctx, "pw", &out, bytes.NewReader(ct.Bytes()), bob, wrapped[0]))
	require.Equal(t, plain, out.Bytes())
}

func TestAttachmentFanout(t *testing.T) {
	ctx := context.Background()
	svc := mediasvc.New(xorCipher{}, nil)
	plain := testBlob(t, 4096)

	var ct bytes.Buffer
	wrapped, err := svc.EncryptAttachment(ctx, "pw", &ct, bytes.NewReader(plain), "video/mp4", alice, []domain.Address{bob, carol})
	require.NoError(t, err)
	require.Len(t, wrapped, 2)

	// One ciphertext, one attachment ID, one digest; only the wrapping
	// differs per recipient.
	require.Equal(t, wrapped[0].AttachmentID, wrapped[1].AttachmentID)
	require.Equal(t, wrapped[0].IntegrityHash, wrapped[1].IntegrityHash)
	require.Equal(t, bob, wrapped[0].Recipient)
	require.Equal(t, carol, wrapped[1].Recipient)

	for _, w := range wrapped {
		var out bytes.Buffer
		require.NoError(t, svc.DecryptAttachment(ctx, "pw", &out, bytes.NewReader(ct.Bytes()), w.Recipient, w))
		require.Equal(t, plain, out.Bytes())
	}
}

func TestCorruptedCiphertextRejected(t *testing.T) {
	ctx := context.Background()
	svc := mediasvc.New(xorCipher{}, nil)
	plain := testBlob(t, 4096)

	var ct bytes.Buffer
	wrapped, err := svc.EncryptAttachment(ctx, "pw", &ct, bytes.NewReader(plain), "", alice, []domain.Address{bob})
	require.NoError(t, err)

	corrupted := ct.Bytes()
	corrupted[1000] ^= 0x01

	var out bytes.Buffer
	err = svc.DecryptAttachment(ctx, "pw", &out, bytes.NewReader(corrupted), bob, wrapped[0])
	require.ErrorIs(t, err, domain.ErrIntegrityCheck)
	// No partial plaintext escaped.
	require.Zero(t, out.Len())
}

func TestTruncatedCiphertextRejected(t *testing.T) {
	ctx := context.Background()
	svc := mediasvc.New(xorCipher{}, nil)
	plain := testBlob(t, 4096)

	var ct bytes.Buffer
	wrapped, err := svc.EncryptAttachment(ctx, "pw", &ct, bytes.NewReader(plain), "", alice, []domain.Address{bob})
	require.NoError(t, err)

	var out bytes.Buffer
	err = svc.DecryptAttachment(ctx, "pw", &out, bytes.NewReader(ct.Bytes()[:2048]), bob, wrapped[0])
	require.ErrorIs(t, err, domain.ErrIntegrityCheck)
	require.Zero(t, out.Len())
}

func TestMalformedKeyBlobRejected(t *testing.T) {
	ctx := context.Background()
	svc := mediasvc.New(xorCipher{}, nil)

	var ct bytes.Buffer
	wrapped, err := svc.EncryptAttachment(ctx, "pw", &ct, bytes.NewReader(testBlob(t, 128)), "", alice, []domain.Address{bob})
	require.NoError(t, err)

	w := wrapped[0]
	w.KeyEnvelope.Ciphertext = w.KeyEnvelope.Ciphertext[:8]
	var out bytes.Buffer
	err = svc.DecryptAttachment(ctx, "pw", &out, bytes.NewReader(ct.Bytes()), bob, w)
	require.ErrorIs(t, err, domain.ErrIntegrityCheck)
}

func TestEncryptHonorsContext(t *testing.T) {
	svc := mediasvc.New(xorCipher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ct bytes.Buffer
	_, err := svc.EncryptAttachment(ctx, "pw", &ct, bytes.NewReader(testBlob(t, 128)), "", alice, []domain.Address{bob})
	require.ErrorIs(t, err, context.Canceled)
}
