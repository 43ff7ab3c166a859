package prekey

import (
	"errors"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	"hearth/internal/store"
)

// ErrNoSignedPrekey means no signed prekey has been generated yet.
var ErrNoSignedPrekey = errors.New("no signed prekey available")

// Service manages prekey pairs and builds the public bundle.
type Service struct {
	identity domain.IdentityService
	prekeys  *store.PrekeyStore
	log      slog.Logger
}

// New constructs a prekey service.
func New(identity domain.IdentityService, prekeys *store.PrekeyStore, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{identity: identity, prekeys: prekeys, log: log}
}

// GenerateAndStore creates a signed prekey pair, signed with the local
// Ed25519 identity key, plus n one-time pairs, marks the signed prekey
// current, and returns the public bundle for registration.
func (s *Service) GenerateAndStore(passphrase string, addr domain.Address, n int) (domain.SignedPrekeyBundle, error) {
	id, err := s.identity.LocalIdentity(passphrase)
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	spkID := "spk-" + uuid.NewString()
	sig := crypto.SignEd25519(id.SigningKey, spkPub.Slice())
	if err := s.prekeys.SaveSignedPrekey(spkID, spkPriv, spkPub, sig); err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	if err := s.prekeys.SetCurrentSignedPrekeyID(spkID); err != nil {
		return domain.SignedPrekeyBundle{}, err
	}

	pairs := make([]domain.OneTimePrekeyPair, 0, n)
	publics := make([]domain.OneTimePrekeyPublic, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.SignedPrekeyBundle{}, err
		}
		opkID := "opk-" + uuid.NewString()
		pairs = append(pairs, domain.OneTimePrekeyPair{ID: opkID, Priv: priv, Pub: pub})
		publics = append(publics, domain.OneTimePrekeyPublic{ID: opkID, Pub: pub})
	}
	if err := s.prekeys.SaveOneTimePrekeys(pairs); err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	s.log.Infof("generated signed prekey %s and %d one-time prekeys", spkID, n)

	return domain.SignedPrekeyBundle{
		Address:         addr,
		IdentityKey:     id.PublicKey,
		SigningKey:      id.SigningPub,
		SignedPrekeyID:  spkID,
		SignedPrekey:    spkPub,
		PrekeySignature: sig,
		OneTimePrekeys:  publics,
	}, nil
}

// Bundle rebuilds the public bundle from the current signed prekey and
// the remaining one-time prekeys.
func (s *Service) Bundle(passphrase string, addr domain.Address) (domain.SignedPrekeyBundle, error) {
	id, err := s.identity.LocalIdentity(passphrase)
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	spkID, ok, err := s.prekeys.CurrentSignedPrekeyID()
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	if !ok {
		return domain.SignedPrekeyBundle{}, ErrNoSignedPrekey
	}
	_, spkPub, sig, found, err := s.prekeys.LoadSignedPrekey(spkID)
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	if !found {
		return domain.SignedPrekeyBundle{}, ErrNoSignedPrekey
	}
	publics, err := s.prekeys.ListOneTimePublics()
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}

	return domain.SignedPrekeyBundle{
		Address:         addr,
		IdentityKey:     id.PublicKey,
		SigningKey:      id.SigningPub,
		SignedPrekeyID:  spkID,
		SignedPrekey:    spkPub,
		PrekeySignature: sig,
		OneTimePrekeys:  publics,
	}, nil
}

var _ domain.PrekeyService = (*Service)(nil)
