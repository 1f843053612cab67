package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "memory", cfg.Tokens.Backend)
	assert.Equal(t, 10*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.PublishTimeout)
	assert.Equal(t, "EBAY_DE", cfg.Marketplaces.Ebay.MarketplaceID)
	assert.False(t, cfg.Marketplaces.Ebay.Configured())
	assert.False(t, cfg.Marketplaces.Facebook.Configured())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LISTFORGE_EBAY_CLIENT_ID", "app-123")
	t.Setenv("LISTFORGE_EBAY_REDIRECT_URI", "https://listforge.test/api/auth/ebay/callback")
	t.Setenv("LISTFORGE_HTTP_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "app-123", cfg.Marketplaces.Ebay.ClientID)
	assert.True(t, cfg.Marketplaces.Ebay.Configured())
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
}

func TestLoad_RejectsRelativeRedirect(t *testing.T) {
	t.Setenv("LISTFORGE_FACEBOOK_REDIRECT_URI", "/callback")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facebook.redirect_uri")
}

func TestLoad_RedisBackendNeedsKey(t *testing.T) {
	t.Setenv("LISTFORGE_TOKENS_BACKEND", "redis")
	t.Setenv("LISTFORGE_TOKENS_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")

	t.Setenv("LISTFORGE_TOKENS_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	cfg, err := Load()
	require.NoError(t, err)
	key, err := cfg.TokenEncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Tokens:    TokenConfig{Backend: "memory"},
			HTTP:      HTTPConfig{RequestTimeout: time.Second, PublishTimeout: time.Second},
			Reasoning: ReasoningConfig{Timeout: time.Second},
			Reconcile: ReconcileConfig{Enabled: true, Schedule: "@every 15m"},
			Market:    MarketConfig{SearchURL: "https://example.test/s-%s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Tokens.Backend = "vault" }, "unknown tokens.backend"},
		{"zero timeout", func(c *Config) { c.HTTP.PublishTimeout = 0 }, "timeouts must be positive"},
		{"bad schedule", func(c *Config) { c.Reconcile.Schedule = "sometimes" }, "reconcile.schedule"},
		{"disabled schedule ignored", func(c *Config) { c.Reconcile = ReconcileConfig{Schedule: "sometimes"} }, ""},
		{"search url without placeholder", func(c *Config) { c.Market.SearchURL = "https://example.test" }, "market.search_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
