package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessLooksExpired(t *testing.T) {
	now := time.Now()

	t.Run("past expiry", func(t *testing.T) {
		pair := &TokenPair{AccessToken: "a", AccessExpiresAt: now.Add(-time.Minute)}
		assert.True(t, pair.AccessLooksExpired(now))
	})

	t.Run("future expiry", func(t *testing.T) {
		pair := &TokenPair{AccessToken: "a", AccessExpiresAt: now.Add(time.Minute)}
		assert.False(t, pair.AccessLooksExpired(now))
	})

	t.Run("zero expiry means unknown, not expired", func(t *testing.T) {
		pair := &TokenPair{AccessToken: "a"}
		assert.False(t, pair.AccessLooksExpired(now))
	})
}
