// Package authops is the domain facade over the authenticated transport:
// login, logout, password management, and session validation. It owns the
// mapping between API endpoints and session-store transitions, and it is the
// only layer that translates errors into user-facing messages.
package authops

import (
	"context"
	"log/slog"
	"net/url"

	"vantage/internal/client"
	"vantage/internal/identity"
	"vantage/internal/session"
)

// Transport is the slice of the API client the facade depends on.
type Transport interface {
	Get(ctx context.Context, path string, out any, opts ...client.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
	Patch(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
	Refresh(ctx context.Context) error
}

// authFailureRegistrar is satisfied by transports that report terminal
// refresh failures, such as *client.Client.
type authFailureRegistrar interface {
	OnAuthFailure(func())
}

// Service exposes the console's auth operations.
type Service struct {
	transport Transport
	sessions  *session.Store
	logger    *slog.Logger

	// onLogout runs after every logout, successful or not, so the app can
	// navigate back to its login entry point.
	onLogout func()
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithOnLogout registers the post-logout hook.
func WithOnLogout(fn func()) Option {
	return func(s *Service) {
		s.onLogout = fn
	}
}

// New constructs the auth facade. When the transport reports terminal refresh
// failures, the facade registers itself so the session store is reset the
// moment the transport terminates the session.
func New(transport Transport, sessions *session.Store, opts ...Option) *Service {
	s := &Service{
		transport: transport,
		sessions:  sessions,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if reg, ok := transport.(authFailureRegistrar); ok {
		reg.OnAuthFailure(s.HandleAuthFailure)
	}
	return s
}

// HandleAuthFailure drops the session to unauthenticated with a user-facing
// message. The transport has already destroyed the stored credentials when an
// unrecoverable refresh failure lands here; only local state remains.
func (s *Service) HandleAuthFailure() {
	s.sessions.Expire(MessageForCode("AUTH_TOKEN_EXPIRED"))
}

// loginResponse is the login/validate payload from the backend.
type loginResponse struct {
	User      identity.Identity   `json:"user"`
	Tokens    client.TokenPayload `json:"tokens"`
	SessionID string              `json:"sessionId"`
}

// Login authenticates with email and password. On success the token pair is
// persisted and the session becomes authenticated in one observable step; on
// failure the session carries a user-facing error message.
func (s *Service) Login(ctx context.Context, email, password string) (*identity.Identity, error) {
	s.sessions.SetLoading(true)
	defer s.sessions.SetLoading(false)

	var resp loginResponse
	err := s.transport.Post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, client.SkipAuth())
	if err != nil {
		s.sessions.SetError(FormatErrorMessage(err))
		return nil, err
	}

	if err := s.sessions.Login(ctx, &resp.User, resp.Tokens.Pair(), resp.SessionID); err != nil {
		s.sessions.SetError(FormatErrorMessage(err))
		return nil, err
	}
	return &resp.User, nil
}

// Logout ends the session. The local session and stored credentials are
// always cleared and the post-logout hook always runs, even when the network
// call fails; the server-side error is returned for display only.
func (s *Service) Logout(ctx context.Context) error {
	netErr := s.transport.Post(ctx, "/auth/logout", nil, nil)
	if netErr != nil {
		s.logger.WarnContext(ctx, "logout request failed, clearing local session anyway", "error", netErr)
	}

	if err := s.sessions.Logout(ctx); err != nil {
		s.logger.ErrorContext(ctx, "could not clear stored credentials on logout", "error", err)
	}
	if s.onLogout != nil {
		s.onLogout()
	}
	return netErr
}

// Refresh forces a token refresh through the shared single-flight path.
func (s *Service) Refresh(ctx context.Context) error {
	return s.transport.Refresh(ctx)
}

// ValidateSession asks the server whether the stored credentials still map to
// a live session and, if so, repopulates the identity. This is the only way
// identity and permissions are reconstructed after a restart.
func (s *Service) ValidateSession(ctx context.Context) (*identity.Identity, error) {
	var resp loginResponse
	if err := s.transport.Get(ctx, "/auth/session/validate", &resp); err != nil {
		return nil, err
	}
	s.sessions.SetIdentity(&resp.User, resp.SessionID)
	return &resp.User, nil
}

// Profile fetches the current user's profile.
func (s *Service) Profile(ctx context.Context) (*identity.Identity, error) {
	var who identity.Identity
	if err := s.transport.Get(ctx, "/auth/profile", &who); err != nil {
		return nil, err
	}
	return &who, nil
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// UpdateProfile patches the current user's profile and returns the result.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (*identity.Identity, error) {
	var who identity.Identity
	if err := s.transport.Patch(ctx, "/auth/profile", update, &who); err != nil {
		return nil, err
	}
	return &who, nil
}

// ForgotPassword requests a password-reset email.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	return s.transport.Post(ctx, "/auth/forgot-password", map[string]string{
		"email": email,
	}, nil, client.SkipAuth())
}

// ResetPassword completes a password reset with the emailed token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.transport.Post(ctx, "/auth/reset-password", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	}, nil, client.SkipAuth())
}

// ChangePassword replaces the password of the signed-in user.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return s.transport.Post(ctx, "/auth/change-password", map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}, nil)
}

// VerifyEmail confirms an email address with the emailed token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.transport.Post(ctx, "/auth/verify-email", map[string]string{
		"token": token,
	}, nil, client.SkipAuth())
}

// ResendVerification re-sends the verification email.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	return s.transport.Post(ctx, "/auth/resend-verification", map[string]string{
		"email": email,
	}, nil, client.SkipAuth())
}

// CheckEmail reports whether an account exists for the given address.
func (s *Service) CheckEmail(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	path := "/auth/check-email?email=" + url.QueryEscape(email)
	if err := s.transport.Get(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

var _ Transport = (*client.Client)(nil)
