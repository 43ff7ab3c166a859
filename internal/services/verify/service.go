package verify

import (
	"crypto/subtle"
	"fmt"

	"github.com/decred/slog"
	qrcode "github.com/skip2/go-qrcode"

	"hearth/internal/crypto"
	"hearth/internal/domain"
)

// Service drives fingerprint verification and trust transitions.
type Service struct {
	identity domain.IdentityService
	sessions domain.SessionManager
	log      slog.Logger
}

// New constructs a verification engine.
func New(identity domain.IdentityService, sessions domain.SessionManager, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{identity: identity, sessions: sessions, log: log}
}

// ComputeFingerprint derives the safety-number half for one
// (user, public key) pair. Deterministic and stable.
func (s *Service) ComputeFingerprint(user domain.UserID, key domain.X25519Public) domain.Fingerprint {
	return crypto.Fingerprint(user, key)
}

// LocalFingerprint derives the fingerprint of the local identity.
func (s *Service) LocalFingerprint(passphrase string, user domain.UserID) (domain.Fingerprint, error) {
	id, err := s.identity.LocalIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(user, id.PublicKey), nil
}

// CombinedFingerprint builds the local:remote payload exchanged out of
// band.
func (s *Service) CombinedFingerprint(local, remote domain.Fingerprint) string {
	return crypto.CombinedFingerprint(local, remote)
}

// QRCodePNG encodes the combined payload as a PNG for display; scanning
// and camera handling belong to the application layer.
func (s *Service) QRCodePNG(local, remote domain.Fingerprint) ([]byte, error) {
	return qrcode.Encode(crypto.CombinedFingerprint(local, remote), qrcode.Medium, 256)
}

// VerifyByComparison compares the peer-supplied remote fingerprint with
// the expected one. Exact match only; a mismatch never passes silently.
// The local half is included so swapped halves compare unequal rather
// than vacuously true.
func (s *Service) VerifyByComparison(local, remote, expectedRemote domain.Fingerprint) domain.VerificationResult {
	if local == remote {
		// Identical halves means the peer echoed our own fingerprint.
		return domain.VerificationMismatch
	}
	if subtle.ConstantTimeCompare([]byte(remote), []byte(expectedRemote)) == 1 {
		return domain.VerificationMatch
	}
	return domain.VerificationMismatch
}

// MarkVerified transitions addr to Verified. Call only after a
// successful comparison or equivalent explicit user confirmation.
func (s *Service) MarkVerified(addr domain.Address) error {
	state, err := s.GetTrustState(addr)
	if err != nil {
		return err
	}
	if state == domain.TrustBlocked {
		return fmt.Errorf("%w: unblock before verifying", domain.ErrIdentityBlocked)
	}
	_, err = s.identity.SetTrustState(addr, domain.TrustVerified)
	return err
}

// ResolveKeyChange applies the user's decision after a key change.
// TrustNewKey destroys the stale session and resets trust to
// Unverified — trust in a changed key must be re-earned, never carried
// over. Block refuses all further traffic until Unblock.
func (s *Service) ResolveKeyChange(addr domain.Address, decision domain.KeyChangeDecision) error {
	state, err := s.GetTrustState(addr)
	if err != nil {
		return err
	}

	switch decision {
	case domain.TrustNewKey:
		if state != domain.TrustChanged {
			return fmt.Errorf("no key change pending for %s", addr)
		}
		if err := s.sessions.DestroySession(addr); err != nil {
			return err
		}
		_, err := s.identity.SetTrustState(addr, domain.TrustUnverified)
		return err
	case domain.Block:
		_, err := s.identity.SetTrustState(addr, domain.TrustBlocked)
		return err
	default:
		return fmt.Errorf("unknown key change decision %d", decision)
	}
}

// Unblock returns a blocked identity to Unverified.
func (s *Service) Unblock(addr domain.Address) error {
	state, err := s.GetTrustState(addr)
	if err != nil {
		return err
	}
	if state != domain.TrustBlocked {
		return fmt.Errorf("%s is not blocked", addr)
	}
	_, err = s.identity.SetTrustState(addr, domain.TrustUnverified)
	return err
}

// GetTrustState returns the current trust state for addr.
func (s *Service) GetTrustState(addr domain.Address) (domain.TrustState, error) {
	id, ok, err := s.identity.GetRemoteIdentity(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrUnknownIdentity
	}
	return id.TrustState, nil
}

var _ domain.VerificationEngine = (*Service)(nil)
