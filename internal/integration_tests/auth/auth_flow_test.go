package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantage/internal/authops"
	"vantage/internal/client"
	"vantage/internal/credentials"
	"vantage/internal/mockapi"
	"vantage/internal/platform/config"
	"vantage/internal/session"
	"vantage/pkg/apierr"
	"vantage/pkg/testutil"
)

type env struct {
	baseURL  string
	creds    *credentials.InMemoryStore
	sessions *session.Store
	api      *client.Client
	auth     *authops.Service

	authFailures atomic.Int32
}

// setup wires the full client stack against a live mock backend, the same way
// cmd/server plus an app would: real JWTs, real refresh rotation, no fakes.
func setup(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := mockapi.New(config.Server{
		JWTSigningKey: "integration-signing-key",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, logger, nil)
	srv := httptest.NewServer(backend.Router())
	t.Cleanup(srv.Close)

	e := &env{baseURL: srv.URL, creds: credentials.NewMemory()}
	e.sessions = session.New(e.creds, session.WithLogger(logger))
	e.api = client.NewFromConfig(config.Client{
		BaseURL:       srv.URL,
		Timeout:       10 * time.Second,
		ClientVersion: "integration",
	}, e.creds,
		client.WithLogger(logger),
		client.WithOnAuthFailure(func() { e.authFailures.Add(1) }),
	)
	e.auth = authops.New(e.api, e.sessions, authops.WithLogger(logger))
	return e
}

func TestLoginProfileLogout(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	who, err := e.auth.Login(ctx, "admin@vantage.dev", "Sup3radmin!")
	require.NoError(t, err)
	assert.Equal(t, "admin@vantage.dev", who.Email)

	snap := e.sessions.Snapshot()
	require.True(t, snap.Authenticated)
	assert.NotEmpty(t, snap.SessionID)

	pair, err := e.creds.Load(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.AccessExpiresAt.After(time.Now()))

	profile, err := e.auth.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, who.ID, profile.ID)

	require.NoError(t, e.auth.Logout(ctx))
	assert.False(t, e.sessions.Snapshot().Authenticated)
	_, err = e.creds.Load(ctx)
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)
}

func TestStaleAccessTokenIsRefreshedTransparently(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.auth.Login(ctx, "admin@vantage.dev", "Sup3radmin!")
	require.NoError(t, err)

	// Corrupt only the access token. The next authenticated call gets a 401,
	// the client exchanges the still-valid refresh token and replays.
	pair, err := e.creds.Load(ctx)
	require.NoError(t, err)
	stale := *pair
	stale.AccessToken = "not-a-token"
	require.NoError(t, e.creds.Save(ctx, &stale))

	profile, err := e.auth.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin@vantage.dev", profile.Email)

	rotated, err := e.creds.Load(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-token", rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken, "refresh token rotates on use")
	assert.Zero(t, e.authFailures.Load())
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.auth.Login(ctx, "admin@vantage.dev", "Sup3radmin!")
	require.NoError(t, err)

	pair, err := e.creds.Load(ctx)
	require.NoError(t, err)
	stale := *pair
	stale.AccessToken = "not-a-token"
	require.NoError(t, e.creds.Save(ctx, &stale))

	// The refresh token is single use on the server, so every caller must
	// come through the coordinated refresh path to succeed. A clean sweep
	// means nobody raced the rotation with a spent token.
	result := testutil.RunConcurrent(8, func(int) error {
		_, err := e.auth.Profile(ctx)
		return err
	})
	assert.Equal(t, int32(8), result.Successes)
	assert.Zero(t, result.AuthFailures)
	assert.Zero(t, result.Errors)
	assert.Zero(t, e.authFailures.Load())
}

func TestValidateSessionRebuildsIdentity(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.auth.Login(ctx, "ops@vantage.dev", "Op3rator!")
	require.NoError(t, err)
	pair, err := e.creds.Load(ctx)
	require.NoError(t, err)

	// A fresh store seeded with the persisted pair models an app restart:
	// authenticated but with no identity until the server confirms.
	restarted := credentials.NewMemory()
	require.NoError(t, restarted.Save(ctx, pair))
	sessions := session.New(restarted)
	require.True(t, sessions.Snapshot().Authenticated)
	require.Nil(t, sessions.Snapshot().Identity)

	api := client.New(e.baseURL, restarted, client.WithMaxRetries(0))
	auth := authops.New(api, sessions)

	who, err := auth.ValidateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ops@vantage.dev", who.Email)
	assert.Equal(t, "ops@vantage.dev", sessions.Snapshot().Identity.Email)
}

func TestRevokedSessionEndsInRefreshFailure(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.auth.Login(ctx, "admin@vantage.dev", "Sup3radmin!")
	require.NoError(t, err)
	pair, err := e.creds.Load(ctx)
	require.NoError(t, err)

	// Log out through the backend only, then restore the revoked pair. Every
	// recovery path is now dead: the replayed request cannot be saved by a
	// refresh, credentials are destroyed, and the failure hook fires.
	require.NoError(t, e.auth.Logout(ctx))
	require.NoError(t, e.creds.Save(ctx, pair))

	_, err = e.auth.Profile(ctx)
	require.Error(t, err)
	assert.True(t, apierr.HasKind(err, apierr.KindRefresh))
	assert.Equal(t, int32(1), e.authFailures.Load())
	_, err = e.creds.Load(ctx)
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)

	snap := e.sessions.Snapshot()
	assert.False(t, snap.Authenticated, "terminal refresh failure drops the session")
	assert.Nil(t, snap.Identity)
	assert.Equal(t, "Your session has expired. Please log in again", snap.Err)
}

func TestLoginFailureSetsSessionError(t *testing.T) {
	e := setup(t)

	_, err := e.auth.Login(context.Background(), "admin@vantage.dev", "wrong")
	require.Error(t, err)

	snap := e.sessions.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Equal(t, "Invalid email or password", snap.Err)
}
