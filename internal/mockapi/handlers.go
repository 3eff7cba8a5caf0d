package mockapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vantage/pkg/secrets"
	str "vantage/pkg/string"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireAuth guards the post-authentication endpoints.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "missing bearer token")
			return
		}

		claims, err := s.tokens.verifyAccess(token)
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_EXPIRED", "access token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "access token rejected")
			return
		}
		if _, ok := s.touchSession(claims.SessionID); !ok {
			writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "session no longer exists")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(r *http.Request) *sessionClaims {
	claims, _ := r.Context().Value(claimsKey).(*sessionClaims)
	return claims
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	str.TrimStrings(&body.Email)

	u, result := s.users.authenticate(body.Email, body.Password)
	switch result {
	case authBadCredentials:
		writeError(w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "Invalid email or password")
		return
	case authLocked:
		writeError(w, http.StatusLocked, "AUTH_ACCOUNT_LOCKED", "Account is temporarily locked due to too many failed attempts")
		return
	case authUnverified:
		writeError(w, http.StatusForbidden, "AUTH_EMAIL_NOT_VERIFIED", "Please verify your email address before logging in")
		return
	}

	session := s.newSession(u.ID, r)
	pair, err := s.tokens.issue(u.ID, session.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not issue tokens")
		return
	}

	s.logins.Inc()
	s.logger.Info("demo login", "user_id", u.ID, "session_id", session.ID, "device", session.Device)
	writeData(w, http.StatusOK, map[string]any{
		"user":      u.Identity,
		"tokens":    pair,
		"sessionId": session.ID,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	pair, claims, err := s.tokens.rotate(body.RefreshToken)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_EXPIRED", "refresh token expired")
			return
		}
		writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "refresh token rejected")
		return
	}
	if _, ok := s.touchSession(claims.SessionID); !ok {
		writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "session no longer exists")
		return
	}

	writeData(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	s.tokens.revoke(claims.SessionID)
	s.dropSession(claims.SessionID)
	writeData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	str.TrimStrings(&body.Email)

	// Same response whether or not the account exists.
	if _, ok := s.users.findByEmail(body.Email); ok {
		token, err := secrets.Generate()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not issue reset token")
			return
		}
		s.mu.Lock()
		s.resetTokens[token] = body.Email
		s.mu.Unlock()
		s.logger.Info("password reset requested", "email", body.Email, "reset_token", token)
	}
	writeData(w, http.StatusOK, map[string]string{
		"message": "If that address exists, a reset link has been sent",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	email, ok := s.resetTokens[body.Token]
	if ok {
		delete(s.resetTokens, body.Token)
	}
	s.mu.Unlock()
	if !ok || !s.users.setPassword(email, body.NewPassword) {
		writeError(w, http.StatusBadRequest, "AUTH_TOKEN_INVALID", "reset token rejected")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	claims := claimsFrom(r)
	if !s.users.changePassword(claims.Subject, body.CurrentPassword, body.NewPassword) {
		writeError(w, http.StatusBadRequest, "AUTH_INVALID_CREDENTIALS", "current password is incorrect")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token" validate:"required"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	email, ok := s.verifyTokens[body.Token]
	if ok {
		delete(s.verifyTokens, body.Token)
	}
	s.mu.Unlock()
	if !ok || !s.users.markVerified(email) {
		writeError(w, http.StatusBadRequest, "AUTH_TOKEN_INVALID", "verification token rejected")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	str.TrimStrings(&body.Email)

	if u, ok := s.users.findByEmail(body.Email); ok && !u.EmailVerified {
		token, err := secrets.Generate()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not issue verification token")
			return
		}
		s.mu.Lock()
		s.verifyTokens[token] = body.Email
		s.mu.Unlock()
		s.logger.Info("verification email resent", "email", body.Email, "verify_token", token)
	}
	writeData(w, http.StatusOK, map[string]string{
		"message": "If that address needs verification, an email has been sent",
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	u, ok := s.users.find(claims.Subject)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user no longer exists")
		return
	}
	writeData(w, http.StatusOK, u.Identity)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	claims := claimsFrom(r)
	u, ok := s.users.updateProfile(claims.Subject, body.FirstName, body.LastName)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user no longer exists")
		return
	}
	writeData(w, http.StatusOK, u.Identity)
}

func (s *Server) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	session, ok := s.touchSession(claims.SessionID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "session no longer exists")
		return
	}
	u, ok := s.users.find(claims.Subject)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user no longer exists")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"user":      u.Identity,
		"sessionId": session.ID,
		"device":    session.Device,
	})
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "email query parameter is required")
		return
	}
	_, exists := s.users.findByEmail(email)
	writeData(w, http.StatusOK, map[string]bool{"exists": exists})
}
