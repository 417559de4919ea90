package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(Defaults())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 65000.0, cfg.BTCPriceFallback)
	assert.Equal(t, time.Minute, cfg.PriceCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.BTCPriceURLs)
	assert.Equal(t, 3, cfg.BridgeFailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.BridgeCooldown)
	assert.Equal(t, 1.0, cfg.ConfirmationDelayScale)
	assert.True(t, cfg.SeedDemoData)
	assert.False(t, cfg.DevMode)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("BTC_PRICE_URL", "https://a.example/price, https://b.example/price")
	t.Setenv("CONFIRMATION_DELAY_SCALE", "0.5")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("BRIDGE_COOLDOWN", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example/price", "https://b.example/price"}, cfg.BTCPriceURLs)
	assert.Equal(t, 0.5, cfg.ConfirmationDelayScale)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 30*time.Second, cfg.BridgeCooldown)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric port", key: "PORT", value: "http"},
		{name: "unknown log format", key: "LOG_FORMAT", value: "xml"},
		{name: "bad feed url", key: "BTC_PRICE_URL", value: "not a url"},
		{name: "zero rate limit", key: "RATE_LIMIT_RPS", value: "0"},
		{name: "webhook without url", key: "WEBHOOK_ENABLED", value: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_FILE", "does-not-exist.env")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
