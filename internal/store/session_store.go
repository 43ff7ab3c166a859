package store

import (
	"fmt"
	"sync"

	"hearth/internal/domain"
)

// SessionStore persists one ratcheting session per remote address.
type SessionStore struct {
	kv domain.KeyValueStore
	mu sync.Mutex
}

// NewSessionStore wraps kv.
func NewSessionStore(kv domain.KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv}
}

// Load returns the session for addr, if any.
func (s *SessionStore) Load(addr domain.Address) (domain.SessionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess domain.SessionState
	ok, err := getJSON(s.kv, sessionKey(addr), &sess)
	return sess, ok, err
}

// Save stores sess under its remote address. The write is durable
// before Save returns; callers rely on this ordering to never hand out
// a message key whose chain state could be lost in a crash.
func (s *SessionStore) Save(sess domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putJSON(s.kv, sessionKey(sess.Remote), sess)
}

// Delete discards the session for addr. Old chain keys are gone for
// good; a new session has to be established from a fresh bundle.
func (s *SessionStore) Delete(addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(sessionKey(addr)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	return nil
}
