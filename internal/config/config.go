// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	// PollInterval is the fallback polling cadence. The stored checkInterval
	// preference takes priority whenever it is set.
	PollInterval time.Duration
	// SecretKey is the AES-256 key used to encrypt stored credentials.
	// nil when DEVWATCH_SECRET_KEY is unset; credential storage is then disabled.
	SecretKey []byte
	// GitHubToken is an optional bootstrap token. A token stored via the API
	// takes priority over this value.
	GitHubToken string
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: DEVWATCH_LISTEN_ADDR (127.0.0.1:8080),
// DEVWATCH_DB_PATH (devwatch.db), DEVWATCH_POLL_INTERVAL (5m),
// DEVWATCH_SECRET_KEY (hex-encoded 32 bytes; unset disables credential storage),
// DEVWATCH_GITHUB_TOKEN (bootstrap token; polling is inactive without a token).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("DEVWATCH_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "devwatch.db"
	if v, ok := os.LookupEnv("DEVWATCH_DB_PATH"); ok {
		dbPath = v
	}

	pollInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("DEVWATCH_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DEVWATCH_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("DEVWATCH_POLL_INTERVAL must be positive, got %q", v)
		}
		pollInterval = parsed
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("DEVWATCH_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("DEVWATCH_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("DEVWATCH_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		PollInterval: pollInterval,
		SecretKey:    secretKey,
		GitHubToken:  os.Getenv("DEVWATCH_GITHUB_TOKEN"),
	}, nil
}
