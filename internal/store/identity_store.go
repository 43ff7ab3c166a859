package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"hearth/internal/crypto"
	"hearth/internal/domain"
)

// IdentityStore persists the local identity key pair (sealed under the
// user's passphrase) and the trust-annotated remote identity records.
type IdentityStore struct {
	kv domain.KeyValueStore
	mu sync.Mutex
}

// NewIdentityStore wraps kv.
func NewIdentityStore(kv domain.KeyValueStore) *IdentityStore {
	return &IdentityStore{kv: kv}
}

// SaveLocal seals the identity under passphrase and stores it.
func (s *IdentityStore) SaveLocal(passphrase string, id domain.IdentityKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := marshalSealed(passphrase, id)
	if err != nil {
		return err
	}
	if err := s.kv.Put(localIdentityKey(), raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	return nil
}

// LoadLocal decrypts and returns the local identity. Returns
// domain.ErrNoLocalIdentity if none has been generated.
func (s *IdentityStore) LoadLocal(passphrase string) (domain.IdentityKeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok, err := s.kv.Get(localIdentityKey())
	if err != nil {
		return domain.IdentityKeyPair{}, fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	if !ok {
		return domain.IdentityKeyPair{}, domain.ErrNoLocalIdentity
	}
	var id domain.IdentityKeyPair
	if err := unmarshalSealed(passphrase, blob, &id); err != nil {
		return domain.IdentityKeyPair{}, err
	}
	return id, nil
}

// LoadRemote returns the stored record for addr, if any.
func (s *IdentityStore) LoadRemote(addr domain.Address) (domain.RemoteIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id domain.RemoteIdentity
	ok, err := getJSON(s.kv, remoteIdentityKey(addr), &id)
	return id, ok, err
}

// SaveRemote stores the record for its address.
func (s *IdentityStore) SaveRemote(id domain.RemoteIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putJSON(s.kv, remoteIdentityKey(id.Address), id)
}

func marshalSealed(passphrase string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	blob, err := crypto.SealEnvelope(passphrase, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	return blob, nil
}

func unmarshalSealed(passphrase string, blob []byte, v any) error {
	raw, err := crypto.OpenEnvelope(passphrase, blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	return nil
}
