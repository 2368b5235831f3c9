package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BOT_USERNAME", "triage_bot")
	t.Setenv("DB_USER", "triage")
	t.Setenv("DB_NAME", "triage")
	t.Setenv("NANO_GPT_API_KEY", "key")

	// Pin the optional keys so ambient environment cannot leak in.
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_POOL_SIZE", "")
	t.Setenv("DB_MAX_OVERFLOW", "")
	t.Setenv("SESSIONS_DIR", "")
	t.Setenv("SUPPORT_ADMIN_USERNAME", "")
	t.Setenv("DEVELOPMENT_MODE", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 5, cfg.DB.PoolSize)
	assert.Equal(t, "sessions", cfg.SessionsDir)
	assert.False(t, cfg.Development)
}

func TestLoadDevelopmentModeWithoutAdminOverride(t *testing.T) {
	// Development escalations invite a built-in admin account, so the
	// override stays optional.
	setRequiredEnv(t)
	t.Setenv("DEVELOPMENT_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Development)
	assert.Empty(t, cfg.SupportAdminUsername)
}

func TestLoadMissingRequiredKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}

func TestLoadMalformedInteger(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
}
