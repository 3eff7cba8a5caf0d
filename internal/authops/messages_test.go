package authops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"vantage/pkg/apierr"
)

func TestFormatErrorMessage(t *testing.T) {
	t.Run("raw string passes through unchanged", func(t *testing.T) {
		assert.Equal(t, "something specific", FormatErrorMessage("something specific"))
	})

	t.Run("message field wins when present", func(t *testing.T) {
		err := apierr.New(apierr.KindClient, "AUTH_TOKEN_EXPIRED", "custom server text")
		assert.Equal(t, "custom server text", FormatErrorMessage(err))
	})

	t.Run("known code maps through the table", func(t *testing.T) {
		err := apierr.New(apierr.KindAuth, "AUTH_TOKEN_EXPIRED", "")
		assert.Equal(t, "Your session has expired. Please log in again", FormatErrorMessage(err))
	})

	t.Run("unknown code falls back to the generic auth message", func(t *testing.T) {
		err := apierr.New(apierr.KindClient, "UNKNOWN_X", "")
		assert.Equal(t, genericAuthMessage, FormatErrorMessage(err))
	})

	t.Run("plain error gets the generic unexpected message", func(t *testing.T) {
		assert.Equal(t, genericUnexpectedMessage, FormatErrorMessage(errors.New("boom")))
	})

	t.Run("non-error value gets the generic unexpected message", func(t *testing.T) {
		assert.Equal(t, genericUnexpectedMessage, FormatErrorMessage(42))
	})

	t.Run("wrapped api error is still unwrapped", func(t *testing.T) {
		inner := apierr.New(apierr.KindAuth, "AUTH_ACCOUNT_LOCKED", "")
		wrapped := errors.Join(errors.New("login"), inner)
		assert.Equal(t, "Account is temporarily locked due to too many failed attempts", FormatErrorMessage(wrapped))
	})
}

func TestMessageForCode(t *testing.T) {
	assert.Equal(t, "Invalid email or password", MessageForCode("AUTH_INVALID_CREDENTIALS"))
	assert.Equal(t, genericAuthMessage, MessageForCode("SOMETHING_ELSE"))
}
