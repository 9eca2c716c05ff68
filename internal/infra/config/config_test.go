package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/ohaasa")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, DefaultOhaasaPageURL, cfg.OhaasaPageURL)
	assert.Equal(t, DefaultOhaasaJSONURL, cfg.OhaasaJSONURL)
	assert.Equal(t, DefaultGeminiAPIURL, cfg.GeminiAPIURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")

	t.Setenv("TELEGRAM_TOKEN", "token")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/ohaasa")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "10s")
	t.Setenv("HTTP_TIMEOUT", "1m")
	t.Setenv("GEMINI_API_URL", "http://localhost:9999/generate")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, time.Minute, cfg.HTTPTimeout)
	assert.Equal(t, "http://localhost:9999/generate", cfg.GeminiAPIURL)
}

func TestLoad_InvalidTick(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/ohaasa")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SCHEDULER_TICK_INTERVAL", "-5s")
	_, err = Load()
	assert.Error(t, err)
}
