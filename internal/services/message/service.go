package message

import (
	"context"
	"fmt"

	"github.com/decred/slog"

	"hearth/internal/domain"
)

// Service encrypts and decrypts message payloads.
type Service struct {
	identity domain.IdentityService
	sessions domain.SessionManager
	provider domain.PrekeyBundleProvider
	log      slog.Logger
}

// New constructs a message cipher. provider may be nil when the caller
// guarantees sessions are established out of band.
func New(identity domain.IdentityService, sessions domain.SessionManager, provider domain.PrekeyBundleProvider, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{identity: identity, sessions: sessions, provider: provider, log: log}
}

// Encrypt seals plaintext for the remote device at to, establishing a
// session from a freshly fetched prekey bundle when none exists.
// Refuses blocked identities.
func (s *Service) Encrypt(ctx context.Context, passphrase string, from, to domain.Address, plaintext []byte) (domain.MessageEnvelope, error) {
	remote, known, err := s.identity.GetRemoteIdentity(to)
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	if known && remote.TrustState == domain.TrustBlocked {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %s", domain.ErrIdentityBlocked, to)
	}

	if _, ok, err := s.sessions.GetSession(to); err != nil {
		return domain.MessageEnvelope{}, err
	} else if !ok {
		remote, err = s.ensureSession(ctx, passphrase, to)
		if err != nil {
			return domain.MessageEnvelope{}, err
		}
		if remote.TrustState == domain.TrustBlocked {
			return domain.MessageEnvelope{}, fmt.Errorf("%w: %s", domain.ErrIdentityBlocked, to)
		}
	}

	return s.sessions.SealMessage(passphrase, from, to, plaintext)
}

// Decrypt opens env addressed to the local device at to. An envelope
// carrying a prekey message updates the remote identity record first,
// so a key change is detected before any decryption is attempted.
// Refuses blocked identities; a tag mismatch is non-retryable.
func (s *Service) Decrypt(ctx context.Context, passphrase string, to domain.Address, env domain.MessageEnvelope) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if env.Prekey != nil {
		if _, changed, err := s.identity.UpsertRemoteIdentity(env.From, env.Prekey.InitiatorKey, domain.Ed25519Public{}); err != nil {
			return nil, err
		} else if changed {
			s.log.Warnf("inbound envelope from %s announces a new identity key", env.From)
		}
	}

	remote, known, err := s.identity.GetRemoteIdentity(env.From)
	if err != nil {
		return nil, err
	}
	if known && remote.TrustState == domain.TrustBlocked {
		return nil, fmt.Errorf("%w: %s", domain.ErrIdentityBlocked, env.From)
	}

	return s.sessions.OpenMessage(passphrase, to, env)
}

// ensureSession fetches the remote's bundle, records its identity key,
// and establishes a fresh session.
func (s *Service) ensureSession(ctx context.Context, passphrase string, to domain.Address) (domain.RemoteIdentity, error) {
	if s.provider == nil {
		return domain.RemoteIdentity{}, fmt.Errorf("%w: %s", domain.ErrNoSession, to)
	}
	bundle, err := s.provider.FetchBundle(ctx, to)
	if err != nil {
		return domain.RemoteIdentity{}, fmt.Errorf("fetch bundle for %s: %w", to, err)
	}
	remote, changed, err := s.identity.UpsertRemoteIdentity(to, bundle.IdentityKey, bundle.SigningKey)
	if err != nil {
		return domain.RemoteIdentity{}, err
	}
	if changed {
		s.log.Warnf("bundle for %s announces a new identity key", to)
	}
	if _, err := s.sessions.EstablishSession(ctx, passphrase, remote, bundle); err != nil {
		return domain.RemoteIdentity{}, err
	}
	return remote, nil
}

var _ domain.MessageCipher = (*Service)(nil)
