package config

import (
	"fmt"
	"time"
)

type Config struct {
	HTTPPort string
	Database DatabaseConfig
	Auth     AuthConfig

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig carries the two equivalent endpoints: URL points at
// the pooled proxy, DirectURL at the database itself. Mutations
// prefer the direct endpoint and fall back to the pooled one.
type DatabaseConfig struct {
	URL           string
	DirectURL     string
	MigrationsDir string
}

type AuthConfig struct {
	JWTSecret string
}

func Load() (*Config, error) {
	databaseURL, err := requiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}

	jwtSecret, err := requiredString("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	requestTimeout, err := durationWithDefault("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := durationWithDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort: stringWithDefault("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			URL:           databaseURL,
			DirectURL:     stringWithDefault("DIRECT_DATABASE_URL", databaseURL),
			MigrationsDir: stringWithDefault("MIGRATIONS_DIR", "migrations"),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return cfg, nil
}
