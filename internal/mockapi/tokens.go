package mockapi

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errTokenExpired = errors.New("token expired")
	errTokenInvalid = errors.New("token invalid")
)

// tokenIssuer mints and verifies the HS256 token pairs the mock backend
// hands out. Refresh tokens are single-use: each refresh rotates the pair and
// invalidates the previous refresh token's jti.
type tokenIssuer struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu             sync.Mutex
	currentRefresh map[string]string // session id -> live refresh jti
	revoked        map[string]bool   // session id -> revoked
}

func newTokenIssuer(signingKey string, accessTTL, refreshTTL time.Duration) *tokenIssuer {
	return &tokenIssuer{
		signingKey:     []byte(signingKey),
		accessTTL:      accessTTL,
		refreshTTL:     refreshTTL,
		currentRefresh: make(map[string]string),
		revoked:        make(map[string]bool),
	}
}

// tokenPair is the wire shape of an issued pair, expiries in epoch millis.
type tokenPair struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresAt  int64  `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt int64  `json:"refreshTokenExpiresAt"`
}

type sessionClaims struct {
	TokenType string `json:"typ"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// issue mints a fresh pair for the session, making it the only valid
// refresh generation.
func (t *tokenIssuer) issue(userID, sessionID string) (*tokenPair, error) {
	now := time.Now()
	accessExp := now.Add(t.accessTTL)
	refreshExp := now.Add(t.refreshTTL)
	refreshJTI := uuid.NewString()

	access, err := t.sign(&sessionClaims{
		TokenType: "access",
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return nil, err
	}

	refresh, err := t.sign(&sessionClaims{
		TokenType: "refresh",
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        refreshJTI,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.currentRefresh[sessionID] = refreshJTI
	delete(t.revoked, sessionID)
	t.mu.Unlock()

	return &tokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp.UnixMilli(),
		RefreshTokenExpiresAt: refreshExp.UnixMilli(),
	}, nil
}

func (t *tokenIssuer) sign(claims *sessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
}

// verifyAccess validates an access token and returns its claims.
func (t *tokenIssuer) verifyAccess(token string) (*sessionClaims, error) {
	claims, err := t.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, errTokenInvalid
	}
	t.mu.Lock()
	revoked := t.revoked[claims.SessionID]
	t.mu.Unlock()
	if revoked {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// rotate consumes a refresh token and issues the next generation pair.
func (t *tokenIssuer) rotate(refreshToken string) (*tokenPair, *sessionClaims, error) {
	claims, err := t.parse(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, nil, errTokenInvalid
	}

	t.mu.Lock()
	live, ok := t.currentRefresh[claims.SessionID]
	revoked := t.revoked[claims.SessionID]
	t.mu.Unlock()
	if !ok || revoked || live != claims.ID {
		return nil, nil, errTokenInvalid
	}

	pair, err := t.issue(claims.Subject, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}

// revoke ends a session; both its tokens stop working.
func (t *tokenIssuer) revoke(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[sessionID] = true
	delete(t.currentRefresh, sessionID)
}

func (t *tokenIssuer) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}
	return claims, nil
}
