package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "clinic-notify", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Equal(t, time.Second, cfg.Telegram.Quiescence)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.SettingsTTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoadTokenIsOptional(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	// A missing token must not fail config validation: the service runs
	// without a bot connection until one is configured.
	_, err := Load()

	require.NoError(t, err)
}

func TestLoadProductionRequiresAdminTokenHash(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ADMIN_TOKEN_HASH", "")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_TOKEN_HASH is required in production")
}

func TestLoadProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ADMIN_TOKEN_HASH", "$2a$10$abcdefghijklmnopqrstuv")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.App.Debug)
}

func TestLoadOperatorRecipients(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("OPERATOR_CHAT_IDS", "100, 200, bogus, 300")
	t.Setenv("OPERATOR_HANDLES", "clinic_ops, @second")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, cfg.Operators.ChatIDs)
	assert.Equal(t, []string{"clinic_ops", "@second"}, cfg.Operators.Handles)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("TELEGRAM_POLL_TIMEOUT", "not-a-number")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.True(t, cfg.Redis.Enabled)
}
