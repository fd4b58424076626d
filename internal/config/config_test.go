package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, config.LockLocal, cfg.LockBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTSessionTTL)
	assert.Equal(t, "Africa/Cairo", cfg.BusinessTimezone)
	assert.False(t, cfg.DevTools)
	assert.False(t, cfg.AuthDisabled)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("LOCK_WAIT", "250ms")
	t.Setenv("DEV_TOOLS", "true")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, config.StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWait)
	assert.True(t, cfg.DevTools)
	assert.True(t, cfg.AuthDisabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	t.Setenv("BUSINESS_TIMEZONE", "Nowhere/Invalid")
	assert.Equal(t, time.UTC, config.Load().Location())
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_TEST_A=from-file\nLEDGER_TEST_B=\"quoted\"\n"), 0o600))

	t.Setenv("LEDGER_TEST_A", "from-env")
	t.Setenv("LEDGER_TEST_B", "")
	os.Unsetenv("LEDGER_TEST_B")

	require.NoError(t, config.LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("LEDGER_TEST_B") })

	assert.Equal(t, "from-env", os.Getenv("LEDGER_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("LEDGER_TEST_B"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
