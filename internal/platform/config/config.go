// Package config builds runtime configuration from the environment so main
// stays lean. The client never hardcodes its base URL, timeout, retry bound,
// or debug flag.
package config

import (
	"os"
	"strconv"
	"time"
)

// Client captures configuration for the authenticated API client.
type Client struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	Debug         bool
	ClientVersion string
}

// Server captures configuration for the bundled mock backend.
type Server struct {
	Addr          string
	JWTSigningKey string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Debug         bool
}

// ClientFromEnv builds client config from environment variables.
func ClientFromEnv() Client {
	return Client{
		BaseURL:       getenv("VANTAGE_API_URL", "http://localhost:8080"),
		Timeout:       getDuration("VANTAGE_TIMEOUT", 30*time.Second),
		MaxRetries:    getInt("VANTAGE_MAX_RETRIES", 3),
		Debug:         os.Getenv("VANTAGE_DEBUG") == "true",
		ClientVersion: getenv("VANTAGE_CLIENT_VERSION", "dev"),
	}
}

// ServerFromEnv builds mock-backend config from environment variables.
func ServerFromEnv() Server {
	return Server{
		Addr:          getenv("VANTAGE_ADDR", ":8080"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AccessTTL:     getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		Debug:         os.Getenv("VANTAGE_DEBUG") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
