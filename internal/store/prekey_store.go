package store

import (
	"sync"
	"time"

	"hearth/internal/domain"
)

type signedPrekeyPair struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
	Sig  []byte               `json:"sig"`
	At   int64                `json:"at"`
}

type oneTimePair struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
	At   int64                `json:"at"`
}

type prekeyMeta struct {
	CurrentSignedPrekeyID string `json:"current_spk_id"`
}

// PrekeyStore persists the local signed and one-time prekey pairs.
// One-time privates are deleted on consumption; each can serve exactly
// one inbound session bootstrap.
type PrekeyStore struct {
	kv domain.KeyValueStore
	mu sync.Mutex
}

// NewPrekeyStore wraps kv.
func NewPrekeyStore(kv domain.KeyValueStore) *PrekeyStore {
	return &PrekeyStore{kv: kv}
}

// SaveSignedPrekey records a signed prekey pair under id.
func (s *PrekeyStore) SaveSignedPrekey(id string, priv domain.X25519Private, pub domain.X25519Public, sig []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]signedPrekeyPair)
	if _, err := getJSON(s.kv, signedPrekeysKey(), &m); err != nil {
		return err
	}
	m[id] = signedPrekeyPair{Priv: priv, Pub: pub, Sig: append([]byte(nil), sig...), At: time.Now().Unix()}
	return putJSON(s.kv, signedPrekeysKey(), m)
}

// LoadSignedPrekey returns the pair stored under id.
func (s *PrekeyStore) LoadSignedPrekey(id string) (priv domain.X25519Private, pub domain.X25519Public, sig []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]signedPrekeyPair)
	if _, err = getJSON(s.kv, signedPrekeysKey(), &m); err != nil {
		return priv, pub, nil, false, err
	}
	p, exists := m[id]
	if !exists {
		return priv, pub, nil, false, nil
	}
	return p.Priv, p.Pub, append([]byte(nil), p.Sig...), true, nil
}

// SetCurrentSignedPrekeyID marks id as the prekey to publish.
func (s *PrekeyStore) SetCurrentSignedPrekeyID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putJSON(s.kv, prekeyMetaKey(), prekeyMeta{CurrentSignedPrekeyID: id})
}

// CurrentSignedPrekeyID returns the published prekey ID, if set.
func (s *PrekeyStore) CurrentSignedPrekeyID() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta prekeyMeta
	if _, err := getJSON(s.kv, prekeyMetaKey(), &meta); err != nil {
		return "", false, err
	}
	if meta.CurrentSignedPrekeyID == "" {
		return "", false, nil
	}
	return meta.CurrentSignedPrekeyID, true, nil
}

// SaveOneTimePrekeys adds a batch of one-time pairs.
func (s *PrekeyStore) SaveOneTimePrekeys(pairs []domain.OneTimePrekeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]oneTimePair)
	if _, err := getJSON(s.kv, oneTimePrekeysKey(), &m); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, p := range pairs {
		m[p.ID] = oneTimePair{Priv: p.Priv, Pub: p.Pub, At: now}
	}
	return putJSON(s.kv, oneTimePrekeysKey(), m)
}

// ConsumeOneTimePrekey removes and returns the pair stored under id.
func (s *PrekeyStore) ConsumeOneTimePrekey(id string) (priv domain.X25519Private, pub domain.X25519Public, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]oneTimePair)
	if _, err = getJSON(s.kv, oneTimePrekeysKey(), &m); err != nil {
		return priv, pub, false, err
	}
	p, exists := m[id]
	if !exists {
		return priv, pub, false, nil
	}
	delete(m, id)
	if err = putJSON(s.kv, oneTimePrekeysKey(), m); err != nil {
		return priv, pub, false, err
	}
	return p.Priv, p.Pub, true, nil
}

// ListOneTimePublics returns the public halves of the remaining pairs.
func (s *PrekeyStore) ListOneTimePublics() ([]domain.OneTimePrekeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]oneTimePair)
	if _, err := getJSON(s.kv, oneTimePrekeysKey(), &m); err != nil {
		return nil, err
	}
	out := make([]domain.OneTimePrekeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePrekeyPublic{ID: id, Pub: p.Pub})
	}
	return out, nil
}
