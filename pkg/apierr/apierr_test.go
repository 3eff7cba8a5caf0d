package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	t.Run("defaults to status code and text", func(t *testing.T) {
		e := FromResponse(503, nil)
		assert.Equal(t, KindServer, e.Kind)
		assert.Equal(t, "503", e.Code)
		assert.Equal(t, "Service Unavailable", e.Message)
		assert.Equal(t, 503, e.Status)
	})

	t.Run("server body overrides code and message", func(t *testing.T) {
		body := []byte(`{"success":false,"code":"AUTH_ACCOUNT_LOCKED","message":"account locked","errors":[{"field":"email"}]}`)
		e := FromResponse(423, body)
		assert.Equal(t, "AUTH_ACCOUNT_LOCKED", e.Code)
		assert.Equal(t, "account locked", e.Message)
		require.NotNil(t, e.Details)
	})

	t.Run("malformed body keeps defaults", func(t *testing.T) {
		e := FromResponse(500, []byte("<html>oops</html>"))
		assert.Equal(t, "500", e.Code)
		assert.Equal(t, "Internal Server Error", e.Message)
	})

	t.Run("401 maps to auth kind", func(t *testing.T) {
		e := FromResponse(401, nil)
		assert.Equal(t, KindAuth, e.Kind)
	})

	t.Run("404 maps to client kind", func(t *testing.T) {
		e := FromResponse(404, nil)
		assert.Equal(t, KindClient, e.Kind)
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(FromTransport(errors.New("dial tcp: refused"))))
	assert.True(t, Retryable(FromResponse(502, nil)))
	assert.False(t, Retryable(FromResponse(400, nil)))
	assert.False(t, Retryable(FromResponse(401, nil)))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection reset")
	e := FromTransport(cause)

	assert.True(t, errors.Is(e, cause))
	assert.True(t, HasKind(e, KindNetwork))
	assert.False(t, HasKind(e, KindServer))

	wrapped := fmt.Errorf("fetching profile: %w", e)
	var out *Error
	require.True(t, errors.As(wrapped, &out))
	assert.Equal(t, "NETWORK_ERROR", out.Code)
}

func TestAsRefreshFailure(t *testing.T) {
	t.Run("keeps server code from the failed refresh", func(t *testing.T) {
		inner := FromResponse(401, []byte(`{"code":"AUTH_TOKEN_EXPIRED","message":"expired"}`))
		e := AsRefreshFailure(inner)
		assert.Equal(t, KindRefresh, e.Kind)
		assert.Equal(t, "AUTH_TOKEN_EXPIRED", e.Code)
		assert.True(t, errors.Is(e, inner))
	})

	t.Run("plain error gets a generic code", func(t *testing.T) {
		e := AsRefreshFailure(errors.New("boom"))
		assert.Equal(t, "AUTH_REFRESH_FAILED", e.Code)
		assert.Equal(t, KindRefresh, e.Kind)
	})
}
