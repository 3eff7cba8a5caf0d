// Package credentials owns durable storage of the access/refresh token pair.
// The pair is the only state shared across in-flight requests, so stores
// replace and remove both tokens together; no reader may ever observe an
// access token from one generation next to a refresh token from another.
package credentials

//go:generate mockgen -source=credentials.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"time"
)

// ErrNoCredentials is returned by Load when nothing is stored.
var ErrNoCredentials = errors.New("no stored credentials")

// TokenPair holds one generation of session credentials. Expiry timestamps
// are advisory only; the server remains authoritative.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at,omitzero"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}

// AccessLooksExpired reports whether the advisory access expiry has passed.
// A zero expiry means unknown and is treated as not expired.
func (p *TokenPair) AccessLooksExpired(now time.Time) bool {
	return !p.AccessExpiresAt.IsZero() && now.After(p.AccessExpiresAt)
}

// Store persists the token pair across restarts.
//
// Error Contract:
// - Load returns ErrNoCredentials when nothing is stored
// - Save replaces the whole pair atomically
// - Clear removes both tokens together and is a no-op when nothing is stored
type Store interface {
	Load(ctx context.Context) (*TokenPair, error)
	Save(ctx context.Context, pair *TokenPair) error
	Clear(ctx context.Context) error
}
