package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/decred/slog"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	"hearth/internal/store"
)

// Service manages identity keys and the remote trust registry. Trust
// state mutation funnels through SetTrustState so every transition is
// persisted and observed exactly once.
type Service struct {
	store *store.IdentityStore
	log   slog.Logger

	mu        sync.Mutex
	observers []domain.TrustObserver
}

// New returns an identity service backed by s.
func New(s *store.IdentityStore, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{store: s, log: log}
}

// GetOrCreateLocalIdentity returns the persisted local key pair,
// generating and persisting a fresh one on first call.
func (s *Service) GetOrCreateLocalIdentity(passphrase string) (domain.IdentityKeyPair, error) {
	id, err := s.store.LoadLocal(passphrase)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrNoLocalIdentity) {
		return domain.IdentityKeyPair{}, err
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	id = domain.IdentityKeyPair{
		PublicKey:  xPub,
		PrivateKey: xPriv,
		SigningPub: edPub,
		SigningKey: edPriv,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveLocal(passphrase, id); err != nil {
		return domain.IdentityKeyPair{}, err
	}
	s.log.Infof("generated local identity key pair")
	return id, nil
}

// LocalIdentity returns the persisted local key pair.
func (s *Service) LocalIdentity(passphrase string) (domain.IdentityKeyPair, error) {
	return s.store.LoadLocal(passphrase)
}

// GetRemoteIdentity returns the stored record for addr, if any.
func (s *Service) GetRemoteIdentity(addr domain.Address) (domain.RemoteIdentity, bool, error) {
	return s.store.LoadRemote(addr)
}

// UpsertRemoteIdentity records the identity key observed for addr.
//
// First contact creates an Unverified record. A key that differs from
// the stored one flips the record to TrustChanged — regardless of the
// prior state, a Verified peer never silently stays Verified across a
// key change — and returns changed=true. An unchanged key never alters
// trust state.
func (s *Service) UpsertRemoteIdentity(addr domain.Address, key domain.X25519Public, signingKey domain.Ed25519Public) (domain.RemoteIdentity, bool, error) {
	id, changed, err := s.upsertRemote(addr, key, signingKey)
	if err != nil {
		return domain.RemoteIdentity{}, false, err
	}
	if changed {
		s.notify(id, domain.TrustChanged)
	}
	return id, changed, nil
}

func (s *Service) upsertRemote(addr domain.Address, key domain.X25519Public, signingKey domain.Ed25519Public) (domain.RemoteIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.store.LoadRemote(addr)
	if err != nil {
		return domain.RemoteIdentity{}, false, err
	}
	now := time.Now().UTC()

	if !ok {
		id = domain.RemoteIdentity{
			Address:       addr,
			PublicKey:     key,
			SigningKey:    signingKey,
			TrustState:    domain.TrustUnverified,
			FirstSeenAt:   now,
			LastChangedAt: now,
		}
		if err := s.store.SaveRemote(id); err != nil {
			return domain.RemoteIdentity{}, false, err
		}
		s.log.Debugf("first contact with %s", addr)
		return id, false, nil
	}

	if id.PublicKey == key {
		return id, false, nil
	}

	id.PublicKey = key
	if signingKey != (domain.Ed25519Public{}) {
		id.SigningKey = signingKey
	}
	id.TrustState = domain.TrustChanged
	id.LastChangedAt = now
	if err := s.store.SaveRemote(id); err != nil {
		return domain.RemoteIdentity{}, false, err
	}
	s.log.Warnf("identity key changed for %s", addr)
	return id, true, nil
}

// SetTrustState records a transition for addr and notifies observers.
func (s *Service) SetTrustState(addr domain.Address, state domain.TrustState) (domain.RemoteIdentity, error) {
	id, transitioned, err := s.setTrustState(addr, state)
	if err != nil {
		return domain.RemoteIdentity{}, err
	}
	if transitioned {
		s.notify(id, state)
	}
	return id, nil
}

func (s *Service) setTrustState(addr domain.Address, state domain.TrustState) (domain.RemoteIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.store.LoadRemote(addr)
	if err != nil {
		return domain.RemoteIdentity{}, false, err
	}
	if !ok {
		return domain.RemoteIdentity{}, false, domain.ErrUnknownIdentity
	}
	if id.TrustState == state {
		return id, false, nil
	}
	id.TrustState = state
	if err := s.store.SaveRemote(id); err != nil {
		return domain.RemoteIdentity{}, false, err
	}
	s.log.Infof("trust state for %s -> %s", addr, state)
	return id, true, nil
}

// Subscribe registers an observer for trust state transitions.
func (s *Service) Subscribe(obs domain.TrustObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// notify invokes observers on a snapshot of the subscription list,
// outside the registry lock, so a callback may call back into the
// service.
func (s *Service) notify(id domain.RemoteIdentity, state domain.TrustState) {
	s.mu.Lock()
	obs := make([]domain.TrustObserver, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()
	for _, o := range obs {
		o.OnTrustStateChanged(id, state)
	}
}

var _ domain.IdentityService = (*Service)(nil)
