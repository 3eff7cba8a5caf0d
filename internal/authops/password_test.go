package authops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPasswordStrength(t *testing.T) {
	t.Run("short lowercase password scores low", func(t *testing.T) {
		result := CheckPasswordStrength("short")
		assert.LessOrEqual(t, result.Score, 2)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, "Password must be at least 8 characters long")
	})

	t.Run("strong password passes every check", func(t *testing.T) {
		result := CheckPasswordStrength("Abcdefg1!")
		assert.Equal(t, 5, result.Score)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Feedback)
	})

	t.Run("long lowercase password reports the missing checks in order", func(t *testing.T) {
		result := CheckPasswordStrength("alllowercase")
		assert.False(t, result.Valid)
		assert.Equal(t, []string{
			"Add an uppercase letter",
			"Add a number",
			"Add a special character",
		}, result.Feedback)
	})

	t.Run("four of five checks is enough", func(t *testing.T) {
		result := CheckPasswordStrength("Abcdefg1")
		assert.Equal(t, 4, result.Score)
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"Add a special character"}, result.Feedback)
	})

	t.Run("empty password fails everything", func(t *testing.T) {
		result := CheckPasswordStrength("")
		assert.Equal(t, 0, result.Score)
		assert.False(t, result.Valid)
		assert.Len(t, result.Feedback, 5)
	})
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ops@example.com", NormalizeEmail("  Ops@Example.COM "))
}
