package media

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"golang.org/x/crypto/chacha20"

	"hearth/internal/domain"
	"hearth/internal/util/memzero"
)

const (
	contentKeySize = chacha20.KeySize
	nonceSize      = chacha20.NonceSize
	chunkSize      = 64 * 1024
)

// Service encrypts and decrypts attachment streams.
type Service struct {
	cipher domain.MessageCipher
	log    slog.Logger
}

// New constructs a media cipher on top of the message cipher, which
// provides the per-recipient key-wrapping primitive.
func New(cipher domain.MessageCipher, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{cipher: cipher, log: log}
}

// EncryptAttachment stream-encrypts src into dst under a fresh random
// content key and wraps that key once per recipient. The returned
// WrappedMediaKeys all reference the same ciphertext; the integrity
// hash covers the ciphertext bytes written to dst.
func (s *Service) EncryptAttachment(ctx context.Context, passphrase string, dst io.Writer, src io.Reader, mimeType string, from domain.Address, recipients []domain.Address) ([]domain.WrappedMediaKey, error) {
	var key [contentKeySize]byte
	var nonce [nonceSize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	defer memzero.Zero(key[:])

	stream, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}

	hash := sha256.New()
	size, err := pump(ctx, dst, src, stream, hash)
	if err != nil {
		return nil, err
	}
	digest := hash.Sum(nil)

	attachmentID := uuid.NewString()
	keyBlob := make([]byte, 0, contentKeySize+nonceSize)
	keyBlob = append(keyBlob, key[:]...)
	keyBlob = append(keyBlob, nonce[:]...)
	defer memzero.Zero(keyBlob)

	wrapped := make([]domain.WrappedMediaKey, 0, len(recipients))
	for _, r := range recipients {
		env, err := s.cipher.Encrypt(ctx, passphrase, from, r, keyBlob)
		if err != nil {
			return nil, fmt.Errorf("wrap content key for %s: %w", r, err)
		}
		wrapped = append(wrapped, domain.WrappedMediaKey{
			AttachmentID:  attachmentID,
			Recipient:     r,
			KeyEnvelope:   env,
			MimeType:      mimeType,
			PlaintextSize: size,
			IntegrityHash: digest,
		})
	}
	s.log.Debugf("encrypted attachment %s (%d bytes) for %d recipients", attachmentID, size, len(recipients))
	return wrapped, nil
}

// DecryptAttachment unwraps the content key through the sender's
// session and stream-decrypts src. The ciphertext hash is verified
// against wrapped.IntegrityHash before a single plaintext byte reaches
// dst; decryption spools to a temp file that is discarded on mismatch.
func (s *Service) DecryptAttachment(ctx context.Context, passphrase string, dst io.Writer, src io.Reader, to domain.Address, wrapped domain.WrappedMediaKey) error {
	keyBlob, err := s.cipher.Decrypt(ctx, passphrase, to, wrapped.KeyEnvelope)
	if err != nil {
		return fmt.Errorf("unwrap content key: %w", err)
	}
	defer memzero.Zero(keyBlob)
	if len(keyBlob) != contentKeySize+nonceSize {
		return fmt.Errorf("%w: malformed content key", domain.ErrIntegrityCheck)
	}

	stream, err := chacha20.NewUnauthenticatedCipher(keyBlob[:contentKeySize], keyBlob[contentKeySize:])
	if err != nil {
		return err
	}

	spool, err := os.CreateTemp("", "hearth-media-*")
	if err != nil {
		return err
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	hash := sha256.New()
	size, err := pumpHashingCiphertext(ctx, spool, src, stream, hash)
	if err != nil {
		return err
	}

	if !hmac.Equal(hash.Sum(nil), wrapped.IntegrityHash) {
		return domain.ErrIntegrityCheck
	}
	if wrapped.PlaintextSize != 0 && size != wrapped.PlaintextSize {
		return domain.ErrIntegrityCheck
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(dst, spool)
	return err
}

// pump encrypts src into dst chunk by chunk, hashing the ciphertext.
func pump(ctx context.Context, dst io.Writer, src io.Reader, stream *chacha20.Cipher, hash io.Writer) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			chunk := buf[:n]
			stream.XORKeyStream(chunk, chunk)
			hash.Write(chunk)
			if _, werr := dst.Write(chunk); werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// pumpHashingCiphertext decrypts src into dst chunk by chunk, hashing
// the ciphertext before it is transformed.
func pumpHashingCiphertext(ctx context.Context, dst io.Writer, src io.Reader, stream *chacha20.Cipher, hash io.Writer) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			hash.Write(chunk)
			stream.XORKeyStream(chunk, chunk)
			total += int64(n)
			if _, werr := dst.Write(chunk); werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

var _ domain.MediaCipher = (*Service)(nil)
