package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"7d":  7 * 24 * time.Hour,
		"36h": 36 * time.Hour,
		" 1d": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTTL("xd")
	assert.Error(t, err)
	_, err = ParseTTL("soon")
	assert.Error(t, err)
}

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "")
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, "rl:auth", cfg.Prefix)
	assert.GreaterOrEqual(t, cfg.TTL, 5*cfg.RefillInterval)
}

func TestLoadRateLimitConfig_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestLoad_ReadsAuthSettings(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "3001",
		"DB_USER": "root", "DB_HOST": "localhost", "DB_PORT": "3306", "DB_NAME": "meatshop",
		"JWT_SECRET": "a", "JWT_REFRESH_SECRET": "b",
		"JWT_EXPIRATION": "5m", "JWT_REFRESH_EXPIRATION": "2d",
		"COOKIE_SECURE": "true", "COOKIE_SAMESITE": "Strict",
	} {
		t.Setenv(k, v)
	}
	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "strict", cfg.CookieSameSite)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.IsProduction())
}
