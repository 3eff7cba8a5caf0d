// Package session holds the authoritative in-memory authentication state for
// the console: who is signed in, whether an auth operation is running, and
// the last user-facing auth error. It knows nothing about network transport;
// the auth facade drives its transitions.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"vantage/internal/credentials"
	"vantage/internal/identity"
)

// Session is an immutable snapshot of the current authentication state.
//
// Authenticated is true iff an identity is present or a persisted token pair
// exists. The flag is optimistic on startup: presence of stored tokens flips
// it before any server round-trip, and identity stays nil until a
// session-validate call repopulates it. Identity is never reconstructed from
// client-side storage alone.
type Session struct {
	Identity      *identity.Identity
	SessionID     string
	Authenticated bool
	Loading       bool
	Err           string
}

// Listener receives session snapshots after each observable transition.
type Listener func(Session)

// Store owns the session state and serializes its transitions.
type Store struct {
	creds  credentials.Store
	logger *slog.Logger

	mu        sync.Mutex
	current   Session
	listeners map[int]Listener
	nextID    int
}

// Option configures the store.
type Option func(*Store)

// WithLogger sets the structured logger used for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New constructs the session store. If the credential store already holds a
// token pair, the session starts authenticated with no identity; callers are
// expected to validate the session against the server to fill it in.
func New(creds credentials.Store, opts ...Option) *Store {
	s := &Store{
		creds:     creds,
		logger:    slog.Default(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := creds.Load(context.Background()); err == nil {
		s.current.Authenticated = true
	} else if !errors.Is(err, credentials.ErrNoCredentials) {
		s.logger.Warn("could not read stored credentials at startup", "error", err)
	}
	return s
}

// Snapshot returns a copy of the current session state.
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers a listener for session transitions and returns an
// unsubscribe function. Listeners run outside the store lock.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Login persists the token pair and then applies the authenticated state in a
// single transition; observers never see tokens stored without the identity
// or the other way around.
func (s *Store) Login(ctx context.Context, who *identity.Identity, pair *credentials.TokenPair, sessionID string) error {
	if err := s.creds.Save(ctx, pair); err != nil {
		return err
	}

	s.transition(func(cur Session) Session {
		return Session{
			Identity:      who,
			SessionID:     sessionID,
			Authenticated: true,
		}
	})
	s.logger.InfoContext(ctx, "session established", "user_id", who.ID, "session_id", sessionID)
	return nil
}

// Logout clears persisted tokens and resets to the empty session. The local
// state is reset even when clearing storage fails; the error is reported so
// the caller can surface it.
func (s *Store) Logout(ctx context.Context) error {
	err := s.creds.Clear(ctx)

	s.transition(func(Session) Session {
		return Session{}
	})
	s.logger.InfoContext(ctx, "session cleared")
	return err
}

// Expire drops to the unauthenticated state carrying a user-facing message.
// It only touches local state: the transport has already destroyed the stored
// credentials by the time an unrecoverable refresh failure reaches here.
func (s *Store) Expire(msg string) {
	s.transition(func(Session) Session {
		return Session{Err: msg}
	})
	s.logger.Warn("session expired", "reason", msg)
}

// SetIdentity fills in the identity after a session-validate round trip
// without touching stored credentials.
func (s *Store) SetIdentity(who *identity.Identity, sessionID string) {
	s.transition(func(cur Session) Session {
		cur.Identity = who
		cur.SessionID = sessionID
		cur.Authenticated = true
		return cur
	})
}

// SetLoading flips the loading flag. A no-op when the value is unchanged, so
// observers are not notified redundantly.
func (s *Store) SetLoading(loading bool) {
	s.transitionIfChanged(func(cur Session) (Session, bool) {
		if cur.Loading == loading {
			return cur, false
		}
		cur.Loading = loading
		return cur, true
	})
}

// SetError records the last auth error message. A no-op when unchanged.
func (s *Store) SetError(msg string) {
	s.transitionIfChanged(func(cur Session) (Session, bool) {
		if cur.Err == msg {
			return cur, false
		}
		cur.Err = msg
		return cur, true
	})
}

func (s *Store) transition(apply func(Session) Session) {
	s.transitionIfChanged(func(cur Session) (Session, bool) {
		return apply(cur), true
	})
}

func (s *Store) transitionIfChanged(apply func(Session) (Session, bool)) {
	s.mu.Lock()
	next, changed := apply(s.current)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.current = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
