// Package mockapi is the placeholder backend the console client talks to in
// development: every consumed endpoint implemented against in-memory demo
// data, speaking the same response envelope as the real service.
package mockapi

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vantage/internal/platform/config"
	"vantage/internal/platform/health"
	"vantage/internal/platform/middleware"
)

// sessionRecord tracks a live console session for the validate endpoint.
type sessionRecord struct {
	ID         string
	UserID     string
	Device     string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Server implements the mock console backend.
type Server struct {
	logger *slog.Logger
	users  *userStore
	tokens *tokenIssuer
	health *health.Handler

	mu       sync.Mutex
	sessions map[string]*sessionRecord

	// one-shot tokens for the email flows, logged instead of mailed
	resetTokens  map[string]string // token -> email
	verifyTokens map[string]string // token -> email

	logins prometheus.Counter
}

// New constructs the mock backend from config. A nil registerer keeps the
// metrics private, which lets tests construct servers freely.
func New(cfg config.Server, logger *slog.Logger, reg prometheus.Registerer) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		logger:       logger,
		users:        newUserStore(),
		tokens:       newTokenIssuer(cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		health:       health.New("mock"),
		sessions:     make(map[string]*sessionRecord),
		resetTokens:  make(map[string]string),
		verifyTokens: make(map[string]string),
		logins: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vantage_mockapi_logins_total",
			Help: "Successful demo logins",
		}),
	}
	s.health.RegisterCheck("token-signer", func() error {
		if cfg.JWTSigningKey == "" {
			return errors.New("signing key is not configured")
		}
		return nil
	})
	return s
}

// Router wires all endpoints the client consumes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.ContentTypeJSON)

	s.health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)
		r.Post("/verify-email", s.handleVerifyEmail)
		r.Post("/resend-verification", s.handleResendVerification)
		r.Get("/check-email", s.handleCheckEmail)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.handleLogout)
			r.Post("/change-password", s.handleChangePassword)
			r.Get("/profile", s.handleGetProfile)
			r.Patch("/profile", s.handleUpdateProfile)
			r.Get("/session/validate", s.handleValidateSession)
		})
	})

	return r
}

// newSession registers a session record with a human-readable device label
// derived from the User-Agent header.
func (s *Server) newSession(userID string, r *http.Request) *sessionRecord {
	record := &sessionRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Device:     deviceLabel(r.UserAgent()),
		CreatedAt:  time.Now().UTC(),
		LastSeenAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.sessions[record.ID] = record
	s.mu.Unlock()
	return record
}

func (s *Server) touchSession(id string) (*sessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	record.LastSeenAt = time.Now().UTC()
	copied := *record
	return &copied, true
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// deviceLabel renders "Chrome on Mac OS X" style labels for session records.
func deviceLabel(rawUA string) string {
	if rawUA == "" {
		return "unknown client"
	}
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	os := ua.OS()
	switch {
	case name != "" && os != "":
		return name + " on " + os
	case name != "":
		return name
	case os != "":
		return os
	default:
		return rawUA
	}
}
