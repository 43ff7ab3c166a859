package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	"hearth/internal/services/identity"
	"hearth/internal/store"
)

func newService(t *testing.T) *identity.Service {
	t.Helper()
	return identity.New(store.NewIdentityStore(store.NewMemory()), nil)
}

func newKey(t *testing.T) domain.X25519Public {
	t.Helper()
	_, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	return pub
}

type recordingObserver struct {
	events []domain.TrustState
}

func (o *recordingObserver) OnTrustStateChanged(_ domain.RemoteIdentity, state domain.TrustState) {
	o.events = append(o.events, state)
}

func TestGetOrCreateLocalIdentityIdempotent(t *testing.T) {
	svc := newService(t)

	first, err := svc.GetOrCreateLocalIdentity("pass")
	require.NoError(t, err)
	second, err := svc.GetOrCreateLocalIdentity("pass")
	require.NoError(t, err)
	require.Equal(t, first.PublicKey, second.PublicKey)
	require.Equal(t, first.SigningPub, second.SigningPub)
}

func TestUpsertFirstContactIsUnverified(t *testing.T) {
	svc := newService(t)
	addr := domain.Address{UserID: "bob", DeviceID: 1}

	id, changed, err := svc.UpsertRemoteIdentity(addr, newKey(t), domain.Ed25519Public{})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, domain.TrustUnverified, id.TrustState)
	require.False(t, id.FirstSeenAt.IsZero())
}

func TestUpsertSameKeyKeepsTrust(t *testing.T) {
	svc := newService(t)
	addr := domain.Address{UserID: "bob", DeviceID: 1}
	key := newKey(t)

	_, _, err := svc.UpsertRemoteIdentity(addr, key, domain.Ed25519Public{})
	require.NoError(t, err)
	_, err = svc.SetTrustState(addr, domain.TrustVerified)
	require.NoError(t, err)

	id, changed, err := svc.UpsertRemoteIdentity(addr, key, domain.Ed25519Public{})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, domain.TrustVerified, id.TrustState)
}

func TestUpsertNewKeyFlipsVerifiedToChanged(t *testing.T) {
	svc := newService(t)
	addr := domain.Address{UserID: "bob", DeviceID: 1}
	obs := &recordingObserver{}
	svc.Subscribe(obs)

	_, _, err := svc.UpsertRemoteIdentity(addr, newKey(t), domain.Ed25519Public{})
	require.NoError(t, err)
	_, err = svc.SetTrustState(addr, domain.TrustVerified)
	require.NoError(t, err)

	id, changed, err := svc.UpsertRemoteIdentity(addr, newKey(t), domain.Ed25519Public{})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, domain.TrustChanged, id.TrustState)
	require.Equal(t, []domain.TrustState{domain.TrustVerified, domain.TrustChanged}, obs.events)
}

func TestUpsertKeepsSigningKeyWhenAbsent(t *testing.T) {
	svc := newService(t)
	addr := domain.Address{UserID: "bob", DeviceID: 1}

	_, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	_, _, err = svc.UpsertRemoteIdentity(addr, newKey(t), edPub)
	require.NoError(t, err)

	// Key change observed via a prekey message, which carries no
	// signing key.
	id, changed, err := svc.UpsertRemoteIdentity(addr, newKey(t), domain.Ed25519Public{})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, edPub, id.SigningKey)
}

// autoBlocker blocks a peer the moment its key changes, calling back
// into the service from inside the callback.
type autoBlocker struct{ svc *identity.Service }

func (o *autoBlocker) OnTrustStateChanged(id domain.RemoteIdentity, state domain.TrustState) {
	if state == domain.TrustChanged {
		_, _ = o.svc.SetTrustState(id.Address, domain.TrustBlocked)
	}
}

func TestObserverMayReenterService(t *testing.T) {
	svc := newService(t)
	addr := domain.Address{UserID: "bob", DeviceID: 1}
	svc.Subscribe(&autoBlocker{svc: svc})

	_, _, err := svc.UpsertRemoteIdentity(addr, newKey(t), domain.Ed25519Public{})
	require.NoError(t, err)
	_, changed, err := svc.UpsertRemoteIdentity(addr, newKey(t), domain.Ed25519Public{})
	require.NoError(t, err)
	require.True(t, changed)

	id, ok, err := svc.GetRemoteIdentity(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.TrustBlocked, id.TrustState)
}

func TestSetTrustStateUnknownIdentity(t *testing.T) {
	svc := newService(t)
	_, err := svc.SetTrustState(domain.Address{UserID: "ghost", DeviceID: 1}, domain.TrustVerified)
	require.ErrorIs(t, err, domain.ErrUnknownIdentity)
}

func TestDevicesTrackedIndependently(t *testing.T) {
	svc := newService(t)
	d1 := domain.Address{UserID: "bob", DeviceID: 1}
	d2 := domain.Address{UserID: "bob", DeviceID: 2}
	key := newKey(t)

	_, _, err := svc.UpsertRemoteIdentity(d1, key, domain.Ed25519Public{})
	require.NoError(t, err)
	_, _, err = svc.UpsertRemoteIdentity(d2, key, domain.Ed25519Public{})
	require.NoError(t, err)

	_, err = svc.SetTrustState(d1, domain.TrustBlocked)
	require.NoError(t, err)

	id, ok, err := svc.GetRemoteIdentity(d2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.TrustUnverified, id.TrustState)
}
