package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	"hearth/internal/store"
)

func testIdentity(t *testing.T) domain.IdentityKeyPair {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return domain.IdentityKeyPair{
		PublicKey:  xPub,
		PrivateKey: xPriv,
		SigningPub: edPub,
		SigningKey: edPriv,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestIdentityStoreLocalRoundTrip(t *testing.T) {
	s := store.NewIdentityStore(store.NewMemory())

	_, err := s.LoadLocal("pass")
	require.ErrorIs(t, err, domain.ErrNoLocalIdentity)

	id := testIdentity(t)
	require.NoError(t, s.SaveLocal("pass", id))

	got, err := s.LoadLocal("pass")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = s.LoadLocal("not the passphrase")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrNoLocalIdentity)
}

func TestIdentityStoreRemoteRoundTrip(t *testing.T) {
	s := store.NewIdentityStore(store.NewMemory())
	addr := domain.Address{UserID: "bob", DeviceID: 2}

	_, ok, err := s.LoadRemote(addr)
	require.NoError(t, err)
	require.False(t, ok)

	id := domain.RemoteIdentity{
		Address:     addr,
		PublicKey:   testIdentity(t).PublicKey,
		TrustState:  domain.TrustVerified,
		FirstSeenAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveRemote(id))

	got, ok, err := s.LoadRemote(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, got)

	// Devices are distinct rows.
	_, ok, err = s.LoadRemote(domain.Address{UserID: "bob", DeviceID: 3})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	s := store.NewSessionStore(store.NewMemory())
	addr := domain.Address{UserID: "bob", DeviceID: 1}

	_, ok, err := s.Load(addr)
	require.NoError(t, err)
	require.False(t, ok)

	sess := domain.SessionState{
		Remote: addr,
		Ratchet: domain.RatchetState{
			RootKey:     []byte{1, 2, 3},
			SendCount:   7,
			SkippedKeys: map[string][]byte{"k": {4, 5}},
			SkipWindow:  64,
		},
		EstablishedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Save(sess))

	got, ok, err := s.Load(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess, got)

	require.NoError(t, s.Delete(addr))
	_, ok, err = s.Load(addr)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent session is a no-op.
	require.NoError(t, s.Delete(addr))
}

func TestPrekeyStoreSignedPrekeys(t *testing.T) {
	s := store.NewPrekeyStore(store.NewMemory())

	_, _, err := s.CurrentSignedPrekeyID()
	require.NoError(t, err)

	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	require.NoError(t, s.SaveSignedPrekey("spk-1", priv, pub, []byte("sig")))
	require.NoError(t, s.SetCurrentSignedPrekeyID("spk-1"))

	id, ok, err := s.CurrentSignedPrekeyID()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "spk-1", id)

	gotPriv, gotPub, gotSig, ok, err := s.LoadSignedPrekey("spk-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, priv, gotPriv)
	require.Equal(t, pub, gotPub)
	require.Equal(t, []byte("sig"), gotSig)

	_, _, _, ok, err = s.LoadSignedPrekey("spk-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrekeyStoreOneTimeConsumption(t *testing.T) {
	s := store.NewPrekeyStore(store.NewMemory())

	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	require.NoError(t, s.SaveOneTimePrekeys([]domain.OneTimePrekeyPair{{ID: "opk-1", Priv: priv, Pub: pub}}))

	pubs, err := s.ListOneTimePublics()
	require.NoError(t, err)
	require.Len(t, pubs, 1)

	gotPriv, gotPub, ok, err := s.ConsumeOneTimePrekey("opk-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, priv, gotPriv)
	require.Equal(t, pub, gotPub)

	// One-time means one-time.
	_, _, ok, err = s.ConsumeOneTimePrekey("opk-1")
	require.NoError(t, err)
	require.False(t, ok)

	pubs, err = s.ListOneTimePublics()
	require.NoError(t, err)
	require.Empty(t, pubs)
}

func TestStorageErrorsWrapped(t *testing.T) {
	s := store.NewSessionStore(failingKV{})
	_, _, err := s.Load(domain.Address{UserID: "bob", DeviceID: 1})
	require.ErrorIs(t, err, domain.ErrKeyStorage)
}

type failingKV struct{}

func (failingKV) Get([]byte) ([]byte, bool, error) { return nil, false, errors.New("disk gone") }
func (failingKV) Put([]byte, []byte) error         { return errors.New("disk gone") }
func (failingKV) Delete([]byte) error              { return errors.New("disk gone") }
func (failingKV) Close() error                     { return nil }
