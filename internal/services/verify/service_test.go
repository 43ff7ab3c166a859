package verify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hearth/internal/crypto"
	"hearth/internal/domain"
	identitysvc "hearth/internal/services/identity"
	sessionsvc "hearth/internal/services/session"
	verifysvc "hearth/internal/services/verify"
	"hearth/internal/store"
)

const pw = "correct horse"

type fixture struct {
	identity     *identitysvc.Service
	sessions     *sessionsvc.Service
	sessionStore *store.SessionStore
	verify       *verifysvc.Service
	bob          domain.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := store.NewMemory()
	idsvc := identitysvc.New(store.NewIdentityStore(kv), nil)
	sessionStore := store.NewSessionStore(kv)
	sessions := sessionsvc.New(idsvc, sessionStore, store.NewPrekeyStore(kv), 0, nil)
	f := &fixture{
		identity:     idsvc,
		sessions:     sessions,
		sessionStore: sessionStore,
		verify:       verifysvc.New(idsvc, sessions, nil),
		bob:          domain.Address{UserID: "bob", DeviceID: 1},
	}
	_, err := idsvc.GetOrCreateLocalIdentity(pw)
	require.NoError(t, err)

	_, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, _, err = idsvc.UpsertRemoteIdentity(f.bob, pub, domain.Ed25519Public{})
	require.NoError(t, err)
	return f
}

func (f *fixture) state(t *testing.T) domain.TrustState {
	t.Helper()
	state, err := f.verify.GetTrustState(f.bob)
	require.NoError(t, err)
	return state
}

func (f *fixture) changeKey(t *testing.T) {
	t.Helper()
	_, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, changed, err := f.identity.UpsertRemoteIdentity(f.bob, pub, domain.Ed25519Public{})
	require.NoError(t, err)
	require.True(t, changed)
}

func TestVerifyByComparison(t *testing.T) {
	f := newFixture(t)
	local := domain.Fingerprint("AAAAA BBBBB")
	remote := domain.Fingerprint("CCCCC DDDDD")

	require.Equal(t, domain.VerificationMatch, f.verify.VerifyByComparison(local, remote, remote))
	require.Equal(t, domain.VerificationMismatch, f.verify.VerifyByComparison(local, remote, "CCCCC EEEEE"))

	// A peer echoing our own fingerprint back must not pass.
	require.Equal(t, domain.VerificationMismatch, f.verify.VerifyByComparison(local, local, local))
}

func TestMarkVerified(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, domain.TrustUnverified, f.state(t))
	require.NoError(t, f.verify.MarkVerified(f.bob))
	require.Equal(t, domain.TrustVerified, f.state(t))
}

func TestMarkVerifiedRefusesBlocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.verify.ResolveKeyChange(f.bob, domain.Block))
	require.ErrorIs(t, f.verify.MarkVerified(f.bob), domain.ErrIdentityBlocked)
}

func TestTrustNewKeyResetsToUnverified(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.verify.MarkVerified(f.bob))
	f.changeKey(t)
	require.Equal(t, domain.TrustChanged, f.state(t))

	require.NoError(t, f.verify.ResolveKeyChange(f.bob, domain.TrustNewKey))
	// Trust is never carried over to a new key.
	require.Equal(t, domain.TrustUnverified, f.state(t))
}

func TestTrustNewKeyRequiresPendingChange(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.verify.ResolveKeyChange(f.bob, domain.TrustNewKey))
}

func TestBlockFromAnyStateAndUnblock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.verify.MarkVerified(f.bob))
	require.NoError(t, f.verify.ResolveKeyChange(f.bob, domain.Block))
	require.Equal(t, domain.TrustBlocked, f.state(t))

	require.NoError(t, f.verify.Unblock(f.bob))
	require.Equal(t, domain.TrustUnverified, f.state(t))

	// Unblocking a peer who is not blocked is an error.
	require.Error(t, f.verify.Unblock(f.bob))
}

func TestGetTrustStateUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.verify.GetTrustState(domain.Address{UserID: "ghost", DeviceID: 1})
	require.ErrorIs(t, err, domain.ErrUnknownIdentity)
}

func TestFingerprintHelpers(t *testing.T) {
	f := newFixture(t)

	localFP, err := f.verify.LocalFingerprint(pw, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, localFP)

	id, ok, err := f.identity.GetRemoteIdentity(f.bob)
	require.NoError(t, err)
	require.True(t, ok)
	remoteFP := f.verify.ComputeFingerprint(f.bob.UserID, id.PublicKey)
	require.NotEqual(t, localFP, remoteFP)

	combined := f.verify.CombinedFingerprint(localFP, remoteFP)
	require.Contains(t, combined, string(localFP))
	require.Contains(t, combined, string(remoteFP))

	png, err := f.verify.QRCodePNG(localFP, remoteFP)
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), png[:4])
}

// A trusted key change destroys the stale session so the next exchange
// re-bootstraps.
func TestTrustNewKeyDestroysSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessionStore.Save(domain.SessionState{Remote: f.bob}))

	f.changeKey(t)
	require.NoError(t, f.verify.ResolveKeyChange(f.bob, domain.TrustNewKey))

	_, ok, err := f.sessions.GetSession(f.bob)
	require.NoError(t, err)
	require.False(t, ok)
}
