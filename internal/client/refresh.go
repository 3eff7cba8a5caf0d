package client

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vantage/internal/credentials"
	"vantage/pkg/apierr"
	str "vantage/pkg/string"
)

// TokenPayload is the token portion of login and refresh responses.
// Expiry fields are epoch milliseconds; when absent the advisory expiry is
// read from the token's own exp claim.
type TokenPayload struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresAt  int64  `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt int64  `json:"refreshTokenExpiresAt"`
}

// Pair converts the wire payload to the stored token pair.
func (p *TokenPayload) Pair() *credentials.TokenPair {
	pair := &credentials.TokenPair{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if p.AccessTokenExpiresAt > 0 {
		pair.AccessExpiresAt = time.UnixMilli(p.AccessTokenExpiresAt)
	} else {
		pair.AccessExpiresAt = advisoryExpiry(p.AccessToken)
	}
	if p.RefreshTokenExpiresAt > 0 {
		pair.RefreshExpiresAt = time.UnixMilli(p.RefreshTokenExpiresAt)
	} else {
		pair.RefreshExpiresAt = advisoryExpiry(p.RefreshToken)
	}
	return pair
}

// advisoryExpiry reads the exp claim without verifying the signature. The
// client never trusts this for access decisions; it only sizes the stored
// advisory expiry.
func advisoryExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Refresh exchanges the stored refresh token for a new pair. Safe to call
// concurrently; all callers share one network refresh.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx)
}

// refresh serializes concurrent refresh attempts: the first caller performs
// the network exchange, later callers block on the same in-flight call and
// observe its outcome. The group drops the key once the call settles, so the
// coordinator always returns to idle no matter how the refresh ended.
func (c *Client) refresh(ctx context.Context) error {
	_, err, shared := c.refreshGroup.Do("token-refresh", func() (any, error) {
		// Detached from the triggering request's context: one caller giving
		// up must not fail the refresh every waiter depends on.
		return nil, c.doRefresh(context.WithoutCancel(ctx))
	})
	if c.debug && shared {
		c.logger.DebugContext(ctx, "joined in-flight token refresh")
	}
	return err
}

func (c *Client) doRefresh(ctx context.Context) error {
	pair, err := c.creds.Load(ctx)
	if err != nil {
		return c.failRefresh(ctx, err)
	}

	req := Request{
		Method:   http.MethodPost,
		Path:     "/auth/refresh",
		Body:     map[string]string{"refreshToken": pair.RefreshToken},
		SkipAuth: true,
	}
	var payload TokenPayload
	if err := c.do(ctx, req, &payload); err != nil {
		return c.failRefresh(ctx, err)
	}

	if err := c.creds.Save(ctx, payload.Pair()); err != nil {
		return c.failRefresh(ctx, err)
	}

	c.metrics.refreshes.Inc()
	if c.debug {
		c.logger.DebugContext(ctx, "token refresh succeeded",
			"access_token", str.Mask(payload.AccessToken))
	}
	return nil
}

// failRefresh is the terminal path: both tokens are destroyed together and
// the auth-failure hook sends the app back to its login entry point.
func (c *Client) failRefresh(ctx context.Context, cause error) error {
	c.metrics.refreshFailures.Inc()
	if clearErr := c.creds.Clear(ctx); clearErr != nil {
		c.logger.ErrorContext(ctx, "could not clear credentials after failed refresh", "error", clearErr)
	}
	c.logger.WarnContext(ctx, "token refresh failed, session terminated", "error", cause)
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
	return apierr.AsRefreshFailure(cause)
}
