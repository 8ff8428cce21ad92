package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "Bearer", cfg.API.AuthScheme)
	assert.Equal(t, 5*time.Second, cfg.Catalog.RefreshInterval)
	assert.Equal(t, 5, cfg.Catalog.LowStockThreshold)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("API_BASE_URL", "http://pos.internal:9000/")
	t.Setenv("API_AUTH_SCHEME", "")
	t.Setenv("CATALOG_REFRESH_INTERVAL", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg := Load()

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "http://pos.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, "", cfg.API.AuthScheme)
	assert.Equal(t, 2*time.Second, cfg.Catalog.RefreshInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoad_InvalidIntervalFallsBack(t *testing.T) {
	t.Setenv("CATALOG_REFRESH_INTERVAL", "0s")
	t.Setenv("BREAKER_MAX_FAILURES", "0")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.Catalog.RefreshInterval)
	assert.Equal(t, uint32(1), cfg.Breaker.MaxFailures)
}
