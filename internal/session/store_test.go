package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantage/internal/credentials"
	"vantage/internal/identity"
)

func newTestStore(t *testing.T) (*Store, *credentials.InMemoryStore) {
	t.Helper()
	creds := credentials.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(creds, WithLogger(logger)), creds
}

func demoIdentity() *identity.Identity {
	return &identity.Identity{
		ID:    "user-1",
		Email: "ops@example.com",
		Role:  identity.RoleInternalStaff,
	}
}

func TestInitialState(t *testing.T) {
	t.Run("empty storage starts unauthenticated", func(t *testing.T) {
		store, _ := newTestStore(t)
		snap := store.Snapshot()
		assert.False(t, snap.Authenticated)
		assert.Nil(t, snap.Identity)
	})

	t.Run("stored tokens start authenticated with no identity", func(t *testing.T) {
		creds := credentials.NewMemory()
		require.NoError(t, creds.Save(context.Background(), &credentials.TokenPair{
			AccessToken:  "a",
			RefreshToken: "r",
		}))

		store := New(creds, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		snap := store.Snapshot()
		assert.True(t, snap.Authenticated, "token presence flips the flag optimistically")
		assert.Nil(t, snap.Identity, "identity only comes from a server round trip")
	})
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	store, creds := newTestStore(t)

	require.NoError(t, store.Login(ctx, demoIdentity(), &credentials.TokenPair{
		AccessToken:  "a1",
		RefreshToken: "r1",
	}, "sess-1"))

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "sess-1", snap.SessionID)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "user-1", snap.Identity.ID)

	pair, err := creds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", pair.AccessToken)

	require.NoError(t, store.Logout(ctx))
	snap = store.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.Identity)
	assert.Empty(t, snap.SessionID)

	_, err = creds.Load(ctx)
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var seen []Session
	unsubscribe := store.Subscribe(func(s Session) {
		seen = append(seen, s)
	})

	store.SetLoading(true)
	store.SetLoading(true) // unchanged, no notification
	store.SetError("bad credentials")
	store.SetError("bad credentials") // unchanged, no notification
	require.NoError(t, store.Login(ctx, demoIdentity(), &credentials.TokenPair{AccessToken: "a", RefreshToken: "r"}, "s"))

	require.Len(t, seen, 3)
	assert.True(t, seen[0].Loading)
	assert.Equal(t, "bad credentials", seen[1].Err)
	assert.True(t, seen[2].Authenticated)
	assert.Empty(t, seen[2].Err, "login resets the error")
	assert.False(t, seen[2].Loading)

	unsubscribe()
	store.SetLoading(true)
	assert.Len(t, seen, 3, "unsubscribed listener must not fire")
}

func TestLoginIsAtomicToObservers(t *testing.T) {
	ctx := context.Background()
	store, creds := newTestStore(t)

	store.Subscribe(func(s Session) {
		if s.Authenticated {
			// By the time observers see the authenticated state, tokens must
			// already be persisted.
			pair, err := creds.Load(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "a1", pair.AccessToken)
			assert.NotNil(t, s.Identity)
		}
	})

	require.NoError(t, store.Login(ctx, demoIdentity(), &credentials.TokenPair{
		AccessToken:  "a1",
		RefreshToken: "r1",
	}, "sess-1"))
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Login(ctx, demoIdentity(), &credentials.TokenPair{
		AccessToken:  "a",
		RefreshToken: "r",
	}, "sess-1"))

	var notified []Session
	store.Subscribe(func(s Session) {
		notified = append(notified, s)
	})

	store.Expire("Your session has expired. Please log in again")

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.Identity)
	assert.Empty(t, snap.SessionID)
	assert.Equal(t, "Your session has expired. Please log in again", snap.Err)

	require.Len(t, notified, 1)
	assert.False(t, notified[0].Authenticated)
}

func TestSetIdentityRestoresWithoutTouchingTokens(t *testing.T) {
	ctx := context.Background()
	creds := credentials.NewMemory()
	require.NoError(t, creds.Save(ctx, &credentials.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	store := New(creds, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	store.SetIdentity(demoIdentity(), "sess-9")

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "sess-9", snap.SessionID)
	require.NotNil(t, snap.Identity)

	pair, err := creds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", pair.AccessToken)
}
