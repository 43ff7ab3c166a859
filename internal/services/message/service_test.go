package message_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"hearth/internal/domain"
	identitysvc "hearth/internal/services/identity"
	messagesvc "hearth/internal/services/message"
	prekeysvc "hearth/internal/services/prekey"
	sessionsvc "hearth/internal/services/session"
	"hearth/internal/store"
)

const pw = "correct horse"

// device is one endpoint with its own stores and full service stack.
type device struct {
	addr     domain.Address
	identity *identitysvc.Service
	prekeys  *prekeysvc.Service
	sessions *sessionsvc.Service
	messages *messagesvc.Service
}

// staticProvider serves bundles from a fixed map, standing in for the
// directory.
type staticProvider map[domain.Address]domain.SignedPrekeyBundle

func (p staticProvider) FetchBundle(_ context.Context, addr domain.Address) (domain.SignedPrekeyBundle, error) {
	b, ok := p[addr]
	if !ok {
		return domain.SignedPrekeyBundle{}, fmt.Errorf("%w: no bundle for %s", domain.ErrBundleInvalid, addr)
	}
	return b, nil
}

func newDevice(t *testing.T, user string, provider domain.PrekeyBundleProvider) *device {
	t.Helper()
	kv := store.NewMemory()
	idsvc := identitysvc.New(store.NewIdentityStore(kv), nil)
	pkstore := store.NewPrekeyStore(kv)
	sessions := sessionsvc.New(idsvc, store.NewSessionStore(kv), pkstore, 0, nil)
	d := &device{
		addr:     domain.Address{UserID: domain.UserID(user), DeviceID: 1},
		identity: idsvc,
		prekeys:  prekeysvc.New(idsvc, pkstore, nil),
		sessions: sessions,
		messages: messagesvc.New(idsvc, sessions, provider, nil),
	}
	_, err := idsvc.GetOrCreateLocalIdentity(pw)
	require.NoError(t, err)
	return d
}

// publish registers d's bundle with the shared provider.
func publish(t *testing.T, p staticProvider, d *device) {
	t.Helper()
	bundle, err := d.prekeys.GenerateAndStore(pw, d.addr, 4)
	require.NoError(t, err)
	p[d.addr] = bundle
}

func TestEncryptEstablishesSessionLazily(t *testing.T) {
	ctx := context.Background()
	dir := staticProvider{}
	alice := newDevice(t, "alice", dir)
	bob := newDevice(t, "bob", dir)
	publish(t, dir, bob)

	env, err := alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("hello"))
	require.NoError(t, err)

	pt, err := bob.messages.Decrypt(ctx, pw, bob.addr, env)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)

	// Bob's record of alice was created by the inbound envelope.
	id, ok, err := bob.identity.GetRemoteIdentity(alice.addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.TrustUnverified, id.TrustState)
}

func TestEncryptReusesEstablishedSession(t *testing.T) {
	ctx := context.Background()
	dir := staticProvider{}
	alice := newDevice(t, "alice", dir)
	bob := newDevice(t, "bob", dir)
	publish(t, dir, bob)

	_, err := alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("m1"))
	require.NoError(t, err)

	// The bundle is gone from the directory; a live session must not
	// refetch it.
	delete(dir, bob.addr)
	_, err = alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("m2"))
	require.NoError(t, err)
}

func TestConcurrentFirstContactEncrypts(t *testing.T) {
	ctx := context.Background()
	dir := staticProvider{}
	alice := newDevice(t, "alice", dir)
	bob := newDevice(t, "bob", dir)
	publish(t, dir, bob)

	// Two sends race to set up the first session with bob. Exactly one
	// handshake may win; an envelope sealed under a session that a
	// racing establish then overwrote would never decrypt on bob's end.
	start := make(chan struct{})
	envs := make([]domain.MessageEnvelope, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range envs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			envs[i], errs[i] = alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte(fmt.Sprintf("m%d", i)))
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range envs {
		require.NoError(t, errs[i])
		pt, err := bob.messages.Decrypt(ctx, pw, bob.addr, envs[i])
		require.NoError(t, err)
		require.Equal(t, []byte(fmt.Sprintf("m%d", i)), pt)
	}
}

func TestEncryptRefusesBlocked(t *testing.T) {
	ctx := context.Background()
	dir := staticProvider{}
	alice := newDevice(t, "alice", dir)
	bob := newDevice(t, "bob", dir)
	publish(t, dir, bob)

	_, err := alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("m1"))
	require.NoError(t, err)
	_, err = alice.identity.SetTrustState(bob.addr, domain.TrustBlocked)
	require.NoError(t, err)

	_, err = alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("m2"))
	require.ErrorIs(t, err, domain.ErrIdentityBlocked)
}

func TestDecryptRefusesBlocked(t *testing.T) {
	ctx := context.Background()
	dir := staticProvider{}
	alice := newDevice(t, "alice", dir)
	bob := newDevice(t, "bob", dir)
	publish(t, dir, bob)

	env, err := alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("m1"))
	require.NoError(t, err)

	// Bob blocked alice before the envelope arrived.
	_, _, err = bob.identity.UpsertRemoteIdentity(alice.addr, env.Prekey.InitiatorKey, domain.Ed25519Public{})
	require.NoError(t, err)
	_, err = bob.identity.SetTrustState(alice.addr, domain.TrustBlocked)
	require.NoError(t, err)

	_, err = bob.messages.Decrypt(ctx, pw, bob.addr, env)
	require.ErrorIs(t, err, domain.ErrIdentityBlocked)
}

func TestDecryptDetectsKeyChange(t *testing.T) {
	ctx := context.Background()
	dir := staticProvider{}
	alice := newDevice(t, "alice", dir)
	bob := newDevice(t, "bob", dir)
	publish(t, dir, alice)
	publish(t, dir, bob)

	// Normal exchange pins bob's key on alice's side.
	env, err := alice.messages.Encrypt(ctx, pw, alice.addr, bob.addr, []byte("m1"))
	require.NoError(t, err)
	_, err = bob.messages.Decrypt(ctx, pw, bob.addr, env)
	require.NoError(t, err)
	_, err = alice.identity.SetTrustState(bob.addr, domain.TrustVerified)
	require.NoError(t, err)

	// Bob reinstalls: same address, brand new identity.
	bob2 := newDevice(t, "bob", dir)
	publish(t, dir, bob2)
	env2, err := bob2.messages.Encrypt(ctx, pw, bob2.addr, alice.addr, []byte("it's me"))
	require.NoError(t, err)

	// The stale session cannot open the new ratchet, but the key change
	// is recorded before the decrypt attempt.
	_, err = alice.messages.Decrypt(ctx, pw, alice.addr, env2)
	require.ErrorIs(t, err, domain.ErrDecryptionFailed)

	state, ok, err := alice.identity.GetRemoteIdentity(bob.addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.TrustChanged, state.TrustState)
}

func TestEncryptWithoutProviderNeedsSession(t *testing.T) {
	alice := newDevice(t, "alice", nil)
	_, err := alice.messages.Encrypt(context.Background(), pw, alice.addr, domain.Address{UserID: "bob", DeviceID: 1}, []byte("m"))
	require.ErrorIs(t, err, domain.ErrNoSession)
}
