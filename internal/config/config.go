// Package config loads the environment-driven runtime configuration. A
// .env file in the working directory is honored when present; real
// environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/nextlevelbuilder/triagebot/internal/store/pg"
)

// Config is the full runtime configuration.
type Config struct {
	BotToken             string
	BotUsername          string
	SupportAdminUsername string

	DB pg.PoolConfig

	NanoGPTAPIKey  string
	NanoGPTBaseURL string

	ProxyAuth   string
	SessionsDir string

	Development bool
}

// Load reads .env (if any) and the process environment. Malformed integer
// values are fatal: a pool misconfiguration must not boot half-working.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		BotToken:             os.Getenv("BOT_TOKEN"),
		BotUsername:          os.Getenv("BOT_USERNAME"),
		SupportAdminUsername: os.Getenv("SUPPORT_ADMIN_USERNAME"),
		DB: pg.PoolConfig{
			Host:     envOr("DB_HOST", "localhost"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),
		},
		NanoGPTAPIKey:  os.Getenv("NANO_GPT_API_KEY"),
		NanoGPTBaseURL: os.Getenv("NANO_GPT_BASE_URL"),
		ProxyAuth:      os.Getenv("IPROYAL_PROXY_AUTH"),
		SessionsDir:    envOr("SESSIONS_DIR", "sessions"),
		Development:    os.Getenv("DEVELOPMENT_MODE") == "true",
	}

	var err error
	if cfg.DB.Port, err = envInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.DB.PoolSize, err = envInt("DB_POOL_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.DB.Overflow, err = envInt("DB_MAX_OVERFLOW", 10); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"BOT_TOKEN":        c.BotToken,
		"BOT_USERNAME":     c.BotUsername,
		"DB_USER":          c.DB.User,
		"DB_NAME":          c.DB.Database,
		"NANO_GPT_API_KEY": c.NanoGPTAPIKey,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("config: %s is required", name)
		}
	}
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", name, raw)
	}
	return v, nil
}
