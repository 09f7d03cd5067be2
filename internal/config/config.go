package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the full application configuration surface.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Report ReportConfig
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Addr string
}

// DBConfig holds the SQLite database location.
type DBConfig struct {
	Path string
}

// AuthConfig holds token signing settings. An empty secret means the server
// generates one at startup (tokens are then invalidated on restart).
type AuthConfig struct {
	JWTSecret string
}

// ReportConfig holds the pipeline summary schedule. An empty schedule
// disables the report.
type ReportConfig struct {
	CronSchedule string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: getenvWithDefault("BEANTRACK_ADDR", ":8080"),
		},
		DB: DBConfig{
			Path: getenvWithDefault("BEANTRACK_DB", "beantrack.sqlite3"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("BEANTRACK_JWT_SECRET"),
		},
		Report: ReportConfig{
			CronSchedule: getenvWithDefault("BEANTRACK_REPORT_SCHEDULE", "0 6 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Addr == "" {
		return errors.New("BEANTRACK_ADDR must not be empty")
	}
	if c.DB.Path == "" {
		return errors.New("BEANTRACK_DB must not be empty")
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
