package authops

import (
	"errors"

	"vantage/pkg/apierr"
)

// User-facing fallbacks when the server gave us nothing better.
const (
	genericAuthMessage       = "Authentication failed. Please try again"
	genericUnexpectedMessage = "An unexpected error occurred"
)

// authMessages maps backend error codes to user-facing messages.
var authMessages = map[string]string{
	"AUTH_INVALID_CREDENTIALS":      "Invalid email or password",
	"AUTH_ACCOUNT_LOCKED":           "Account is temporarily locked due to too many failed attempts",
	"AUTH_EMAIL_NOT_VERIFIED":       "Please verify your email address before logging in",
	"AUTH_TOKEN_EXPIRED":            "Your session has expired. Please log in again",
	"AUTH_TOKEN_INVALID":            "Invalid authentication token",
	"AUTH_INSUFFICIENT_PERMISSIONS": "You do not have permission to access this resource",
}

// FormatErrorMessage turns an arbitrary error value into a displayable
// string. Precedence: a literal string passes through unchanged; a normalized
// API error uses its message, then its code via the lookup table with a
// generic auth fallback; anything else gets the generic unexpected message.
func FormatErrorMessage(v any) string {
	switch err := v.(type) {
	case string:
		return err
	case error:
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			if apiErr.Message != "" {
				return apiErr.Message
			}
			if msg, ok := authMessages[apiErr.Code]; ok {
				return msg
			}
			return genericAuthMessage
		}
		return genericUnexpectedMessage
	default:
		return genericUnexpectedMessage
	}
}

// MessageForCode resolves a backend error code to its user-facing message,
// falling back to the generic authentication message.
func MessageForCode(code string) string {
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	return genericAuthMessage
}
