package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"hearth/internal/domain"
	"hearth/internal/protocol/ratchet"
	"hearth/internal/protocol/x3dh"
	"hearth/internal/store"
	"hearth/internal/util/memzero"
)

// Service is the session manager.
type Service struct {
	identity domain.IdentityService
	sessions *store.SessionStore
	prekeys  *store.PrekeyStore
	window   uint32
	log      slog.Logger

	mu    sync.Mutex
	locks map[domain.Address]*sync.Mutex
}

// New constructs a session manager. window bounds the skipped-key
// cache; zero selects the default.
func New(identity domain.IdentityService, sessions *store.SessionStore, prekeys *store.PrekeyStore, window uint32, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{
		identity: identity,
		sessions: sessions,
		prekeys:  prekeys,
		window:   window,
		log:      log,
		locks:    make(map[domain.Address]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing all ratchet mutation for addr.
// Sessions with different remotes advance fully in parallel.
func (s *Service) lockFor(addr domain.Address) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[addr]
	if !ok {
		l = new(sync.Mutex)
		s.locks[addr] = l
	}
	return l
}

// EstablishSession runs X3DH as initiator against the remote's bundle
// and persists the fresh session. Nothing is written on failure.
//
// The per-remote lock is held from the liveness check through the save,
// so concurrent establishes against one remote resolve to a single
// session: whoever derives first wins, and later callers get that
// session back unchanged rather than clobbering it with a second
// handshake the peer never bootstraps from. DestroySession first to
// force a fresh handshake.
func (s *Service) EstablishSession(ctx context.Context, passphrase string, remote domain.RemoteIdentity, bundle domain.SignedPrekeyBundle) (domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionState{}, err
	}
	if !x3dh.VerifyBundle(bundle) {
		return domain.SessionState{}, fmt.Errorf("%w: prekey signature rejected for %s", domain.ErrBundleInvalid, bundle.Address)
	}
	if bundle.Address != remote.Address || bundle.IdentityKey != remote.PublicKey {
		return domain.SessionState{}, fmt.Errorf("%w: bundle does not match identity record for %s", domain.ErrBundleInvalid, remote.Address)
	}

	lock := s.lockFor(remote.Address)
	lock.Lock()
	defer lock.Unlock()

	if sess, ok, err := s.sessions.Load(remote.Address); err != nil {
		return domain.SessionState{}, err
	} else if ok && sess.RemoteKey == bundle.IdentityKey {
		s.log.Debugf("session with %s already live, keeping it", remote.Address)
		return sess, nil
	}

	local, err := s.identity.LocalIdentity(passphrase)
	if err != nil {
		return domain.SessionState{}, err
	}

	root, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(local, bundle)
	if err != nil {
		return domain.SessionState{}, err
	}
	st, err := ratchet.InitAsInitiator(root, bundle.IdentityKey, s.window)
	memzero.Zero(root)
	if err != nil {
		return domain.SessionState{}, err
	}

	sess := domain.SessionState{
		Remote:        remote.Address,
		RemoteKey:     bundle.IdentityKey,
		Ratchet:       st,
		EstablishedAt: time.Now().UTC(),
		PendingPrekey: &domain.PrekeyMessage{
			InitiatorKey:    local.PublicKey,
			EphemeralKey:    ephPub,
			SignedPrekeyID:  spkID,
			OneTimePrekeyID: opkID,
		},
	}

	if err := s.sessions.Save(sess); err != nil {
		return domain.SessionState{}, err
	}
	s.log.Debugf("established session with %s (spk=%s opk=%q)", remote.Address, spkID, opkID)
	return sess, nil
}

// GetSession returns the persisted session for addr, if any.
func (s *Service) GetSession(addr domain.Address) (domain.SessionState, bool, error) {
	return s.sessions.Load(addr)
}

// SealMessage advances the sending chain one step and encrypts
// plaintext under the derived message key. The advanced state is
// durable before the envelope is returned: a crash after SealMessage
// can lose the envelope but never desynchronize the chain.
func (s *Service) SealMessage(passphrase string, from, to domain.Address, plaintext []byte) (domain.MessageEnvelope, error) {
	lock := s.lockFor(to)
	lock.Lock()
	defer lock.Unlock()

	sess, ok, err := s.sessions.Load(to)
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	if !ok {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %s", domain.ErrNoSession, to)
	}

	h, ct, err := ratchet.Encrypt(&sess.Ratchet, envelopeAD(from, to), plaintext)
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	if err := s.sessions.Save(sess); err != nil {
		return domain.MessageEnvelope{}, err
	}

	return domain.MessageEnvelope{
		From:         from,
		To:           to,
		RatchetKey:   h.DHPub,
		ChainIndex:   h.N,
		PrevChainLen: h.PN,
		Ciphertext:   ct,
		Prekey:       sess.PendingPrekey,
		SentAt:       time.Now().Unix(),
	}, nil
}

// OpenMessage decrypts env within the session for env.From,
// bootstrapping a responder session from the attached prekey message
// when none exists. State is persisted only after a successful decrypt,
// so a failed attempt leaves the stored chain untouched.
func (s *Service) OpenMessage(passphrase string, to domain.Address, env domain.MessageEnvelope) ([]byte, error) {
	lock := s.lockFor(env.From)
	lock.Lock()
	defer lock.Unlock()

	sess, ok, err := s.sessions.Load(env.From)
	if err != nil {
		return nil, err
	}
	if !ok {
		sess, err = s.bootstrapInbound(passphrase, env)
		if err != nil {
			return nil, err
		}
	}

	h := ratchet.Header{DHPub: env.RatchetKey, PN: env.PrevChainLen, N: env.ChainIndex}
	pt, err := ratchet.Decrypt(&sess.Ratchet, envelopeAD(env.From, to), h, env.Ciphertext)
	if err != nil {
		return nil, err
	}

	// The peer demonstrably holds the session now; stop attaching the
	// handshake to our outbound envelopes.
	sess.PendingPrekey = nil

	if err := s.sessions.Save(sess); err != nil {
		memzero.Zero(pt)
		return nil, err
	}
	return pt, nil
}

// DestroySession discards all ratchet state for addr.
func (s *Service) DestroySession(addr domain.Address) error {
	lock := s.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()
	s.log.Infof("destroying session with %s", addr)
	return s.sessions.Delete(addr)
}

// bootstrapInbound builds a responder session from the prekey message
// attached to the first envelope of a conversation.
func (s *Service) bootstrapInbound(passphrase string, env domain.MessageEnvelope) (domain.SessionState, error) {
	if env.Prekey == nil {
		return domain.SessionState{}, fmt.Errorf("%w: %s", domain.ErrNoSession, env.From)
	}
	pm := *env.Prekey

	local, err := s.identity.LocalIdentity(passphrase)
	if err != nil {
		return domain.SessionState{}, err
	}

	spkPriv, _, _, ok, err := s.prekeys.LoadSignedPrekey(pm.SignedPrekeyID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if !ok {
		return domain.SessionState{}, fmt.Errorf("%w: signed prekey %q not held", domain.ErrNoSession, pm.SignedPrekeyID)
	}

	var opkPriv *domain.X25519Private
	if pm.OneTimePrekeyID != "" {
		priv, _, ok, err := s.prekeys.ConsumeOneTimePrekey(pm.OneTimePrekeyID)
		if err != nil {
			return domain.SessionState{}, err
		}
		if ok {
			opkPriv = &priv
		}
	}

	root, err := x3dh.ResponderRoot(local, spkPriv, opkPriv, pm)
	if err != nil {
		return domain.SessionState{}, err
	}
	st, err := ratchet.InitAsResponder(root, local.PrivateKey, env.RatchetKey, s.window)
	memzero.Zero(root)
	if err != nil {
		return domain.SessionState{}, err
	}

	s.log.Debugf("bootstrapped inbound session with %s", env.From)
	return domain.SessionState{
		Remote:        env.From,
		RemoteKey:     pm.InitiatorKey,
		Ratchet:       st,
		EstablishedAt: time.Now().UTC(),
	}, nil
}

// envelopeAD binds sender and recipient addresses into the AEAD
// associated data so an envelope cannot be re-addressed.
func envelopeAD(from, to domain.Address) []byte {
	return []byte(from.String() + "|" + to.String())
}

var _ domain.SessionManager = (*Service)(nil)
