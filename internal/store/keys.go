package store

import (
	"encoding/json"
	"fmt"

	"hearth/internal/domain"
)

// Key layout inside the KV store. Keys are plain strings; values are
// JSON, with the local identity additionally sealed under the user's
// passphrase.
func localIdentityKey() []byte { return []byte("identity/local") }

func remoteIdentityKey(addr domain.Address) []byte {
	return []byte(fmt.Sprintf("identity/remote/%s/%d", addr.UserID, addr.DeviceID))
}

func sessionKey(addr domain.Address) []byte {
	return []byte(fmt.Sprintf("session/%s/%d", addr.UserID, addr.DeviceID))
}

func signedPrekeysKey() []byte { return []byte("prekey/spk") }

func oneTimePrekeysKey() []byte { return []byte("prekey/opk") }

func prekeyMetaKey() []byte { return []byte("prekey/meta") }

// getJSON loads and unmarshals the value at key into v.
func getJSON(kv domain.KeyValueStore, key []byte, v any) (bool, error) {
	raw, ok, err := kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	return true, nil
}

// putJSON marshals v and stores it at key.
func putJSON(kv domain.KeyValueStore, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	if err := kv.Put(key, raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyStorage, err)
	}
	return nil
}
