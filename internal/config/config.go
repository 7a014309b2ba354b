package config

import (
	"encoding/base64"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration for the service. Values are read
// from PULSE_* environment variables and may be overridden by flags in main.
type Config struct {
	ServerAddr     string   `env:"PULSE_ADDR" envDefault:"localhost:8000"`
	DatabaseDSN    string   `env:"PULSE_DATABASE_DSN"`
	SigningSecret  string   `env:"PULSE_SIGNING_KEY"`
	AllowedOrigins []string `env:"PULSE_ALLOWED_ORIGINS" envSeparator:","`

	SigningKey []byte `env:"-"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

// NewConfig parses the environment and applies non-empty overrides.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}
	if databaseDSN != "" {
		cfg.DatabaseDSN = databaseDSN
	}
	if base64Secret != "" {
		cfg.SigningSecret = base64Secret
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}
