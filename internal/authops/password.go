package authops

import (
	"strings"
	"unicode"
)

// PasswordStrength is the result of scoring a candidate password.
type PasswordStrength struct {
	Score    int // 0-5, one point per satisfied check
	Valid    bool
	Feedback []string
}

const minPasswordLength = 8

// CheckPasswordStrength scores a password over five independent checks:
// length, uppercase, lowercase, digit, symbol. A password is valid when at
// least four checks pass. Feedback lists one message per failed check, in
// check order.
func CheckPasswordStrength(password string) PasswordStrength {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			if !unicode.IsSpace(r) {
				hasSymbol = true
			}
		}
	}

	checks := []struct {
		passed  bool
		message string
	}{
		{len(password) >= minPasswordLength, "Password must be at least 8 characters long"},
		{hasUpper, "Add an uppercase letter"},
		{hasLower, "Add a lowercase letter"},
		{hasDigit, "Add a number"},
		{hasSymbol, "Add a special character"},
	}

	result := PasswordStrength{}
	for _, check := range checks {
		if check.passed {
			result.Score++
		} else {
			result.Feedback = append(result.Feedback, check.message)
		}
	}
	result.Valid = result.Score >= 4
	return result
}

// NormalizeEmail lowercases and trims an email address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
