package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Log          LogConfig
	Database     DatabaseConfig
	Tokens       TokenConfig
	HTTP         HTTPConfig
	Reconcile    ReconcileConfig
	Reasoning    ReasoningConfig
	Market       MarketConfig
	Marketplaces MarketplacesConfig
}

// AppConfig holds process settings
type AppConfig struct {
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DatabaseConfig points at the document store
type DatabaseConfig struct {
	DSN string // sqlite file path or ":memory:"
}

// TokenConfig selects where OAuth tokens live
type TokenConfig struct {
	Backend       string // memory or redis
	EncryptionKey string // base64, 32 bytes decoded
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// HTTPConfig holds outbound HTTP timeouts
type HTTPConfig struct {
	RequestTimeout time.Duration
	PublishTimeout time.Duration
}

// ReconcileConfig controls status polling
type ReconcileConfig struct {
	Enabled  bool
	Schedule string
}

// ReasoningConfig points at the price reasoning service
type ReasoningConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// MarketConfig configures market snapshot scraping
type MarketConfig struct {
	SearchURL         string // must contain %s for the query
	CacheTTL          time.Duration
	RequestsPerSecond float64
}

// MarketplacesConfig holds one typed block per marketplace
type MarketplacesConfig struct {
	Ebay          EbayConfig
	Facebook      FacebookConfig
	Kleinanzeigen KleinanzeigenConfig
}

// EbayConfig holds eBay application credentials and seller policies
type EbayConfig struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	Sandbox             bool
	Scopes              []string
	MarketplaceID       string // e.g. EBAY_DE
	Currency            string
	SiteID              string // Trading API site id, 77 = Germany
	MerchantLocationKey string
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

// Configured returns true if OAuth credentials are present
func (c EbayConfig) Configured() bool {
	return c.ClientID != "" && c.RedirectURI != ""
}

// FacebookConfig holds Meta app credentials and the selling page
type FacebookConfig struct {
	AppID        string
	AppSecret    string
	RedirectURI  string
	PageID       string
	GraphVersion string
	Scopes       []string
	Currency     string
}

// Configured returns true if OAuth credentials are present
func (c FacebookConfig) Configured() bool {
	return c.AppID != "" && c.RedirectURI != ""
}

// KleinanzeigenConfig has no credentials; the marketplace is preparation-only
type KleinanzeigenConfig struct {
	Currency string
}

// Load reads .env (if present), config.toml (if present) and LISTFORGE_* environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/listforge")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LISTFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		Tokens: TokenConfig{
			Backend:       v.GetString("tokens.backend"),
			EncryptionKey: v.GetString("tokens.encryption_key"),
			RedisAddr:     v.GetString("tokens.redis_addr"),
			RedisPassword: v.GetString("tokens.redis_password"),
			RedisDB:       v.GetInt("tokens.redis_db"),
		},
		HTTP: HTTPConfig{
			RequestTimeout: v.GetDuration("http.request_timeout"),
			PublishTimeout: v.GetDuration("http.publish_timeout"),
		},
		Reconcile: ReconcileConfig{
			Enabled:  v.GetBool("reconcile.enabled"),
			Schedule: v.GetString("reconcile.schedule"),
		},
		Reasoning: ReasoningConfig{
			BaseURL: v.GetString("reasoning.base_url"),
			APIKey:  v.GetString("reasoning.api_key"),
			Model:   v.GetString("reasoning.model"),
			Timeout: v.GetDuration("reasoning.timeout"),
		},
		Market: MarketConfig{
			SearchURL:         v.GetString("market.search_url"),
			CacheTTL:          v.GetDuration("market.cache_ttl"),
			RequestsPerSecond: v.GetFloat64("market.requests_per_second"),
		},
		Marketplaces: MarketplacesConfig{
			Ebay: EbayConfig{
				ClientID:            v.GetString("ebay.client_id"),
				ClientSecret:        v.GetString("ebay.client_secret"),
				RedirectURI:         v.GetString("ebay.redirect_uri"),
				Sandbox:             v.GetBool("ebay.sandbox"),
				Scopes:              v.GetStringSlice("ebay.scopes"),
				MarketplaceID:       v.GetString("ebay.marketplace_id"),
				Currency:            v.GetString("ebay.currency"),
				SiteID:              v.GetString("ebay.site_id"),
				MerchantLocationKey: v.GetString("ebay.merchant_location_key"),
				FulfillmentPolicyID: v.GetString("ebay.fulfillment_policy_id"),
				PaymentPolicyID:     v.GetString("ebay.payment_policy_id"),
				ReturnPolicyID:      v.GetString("ebay.return_policy_id"),
			},
			Facebook: FacebookConfig{
				AppID:        v.GetString("facebook.app_id"),
				AppSecret:    v.GetString("facebook.app_secret"),
				RedirectURI:  v.GetString("facebook.redirect_uri"),
				PageID:       v.GetString("facebook.page_id"),
				GraphVersion: v.GetString("facebook.graph_version"),
				Scopes:       v.GetStringSlice("facebook.scopes"),
				Currency:     v.GetString("facebook.currency"),
			},
			Kleinanzeigen: KleinanzeigenConfig{
				Currency: v.GetString("kleinanzeigen.currency"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("database.dsn", "listforge.db")
	v.SetDefault("tokens.backend", "memory")
	v.SetDefault("tokens.encryption_key", "")
	v.SetDefault("tokens.redis_addr", "localhost:6379")
	v.SetDefault("tokens.redis_password", "")
	v.SetDefault("tokens.redis_db", 0)
	v.SetDefault("http.request_timeout", 10*time.Second)
	v.SetDefault("http.publish_timeout", 30*time.Second)
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.schedule", "@every 15m")
	v.SetDefault("reasoning.base_url", "https://api.openai.com/v1")
	v.SetDefault("reasoning.api_key", "")
	v.SetDefault("reasoning.model", "gpt-4o-mini")
	v.SetDefault("reasoning.timeout", 15*time.Second)
	v.SetDefault("market.search_url", "https://www.kleinanzeigen.de/s-%s/k0")
	v.SetDefault("market.cache_ttl", 30*time.Minute)
	v.SetDefault("market.requests_per_second", 0.5)
	v.SetDefault("ebay.client_id", "")
	v.SetDefault("ebay.client_secret", "")
	v.SetDefault("ebay.redirect_uri", "")
	v.SetDefault("ebay.sandbox", false)
	v.SetDefault("ebay.scopes", []string{
		"https://api.ebay.com/oauth/api_scope",
		"https://api.ebay.com/oauth/api_scope/sell.inventory",
		"https://api.ebay.com/oauth/api_scope/sell.account",
	})
	v.SetDefault("ebay.marketplace_id", "EBAY_DE")
	v.SetDefault("ebay.currency", "EUR")
	v.SetDefault("ebay.site_id", "77")
	v.SetDefault("ebay.merchant_location_key", "")
	v.SetDefault("ebay.fulfillment_policy_id", "")
	v.SetDefault("ebay.payment_policy_id", "")
	v.SetDefault("ebay.return_policy_id", "")
	v.SetDefault("facebook.app_id", "")
	v.SetDefault("facebook.app_secret", "")
	v.SetDefault("facebook.redirect_uri", "")
	v.SetDefault("facebook.page_id", "")
	v.SetDefault("facebook.graph_version", "v19.0")
	v.SetDefault("facebook.scopes", []string{"pages_manage_posts", "pages_read_engagement", "catalog_management"})
	v.SetDefault("facebook.currency", "EUR")
	v.SetDefault("kleinanzeigen.currency", "EUR")
}

// Validate checks the configuration once at load time
func (c *Config) Validate() error {
	for name, uri := range map[string]string{
		"ebay.redirect_uri":     c.Marketplaces.Ebay.RedirectURI,
		"facebook.redirect_uri": c.Marketplaces.Facebook.RedirectURI,
	} {
		if uri == "" {
			continue
		}
		u, err := url.Parse(uri)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("config: %s must be an absolute URL, got %q", name, uri)
		}
	}

	switch c.Tokens.Backend {
	case "memory":
	case "redis":
		if _, err := c.TokenEncryptionKey(); err != nil {
			return err
		}
		if c.Tokens.RedisAddr == "" {
			return errors.New("config: tokens.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown tokens.backend %q", c.Tokens.Backend)
	}

	if c.HTTP.RequestTimeout <= 0 || c.HTTP.PublishTimeout <= 0 || c.Reasoning.Timeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}

	if c.Reconcile.Enabled {
		if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
			return fmt.Errorf("config: invalid reconcile.schedule %q: %w", c.Reconcile.Schedule, err)
		}
	}

	if !strings.Contains(c.Market.SearchURL, "%s") {
		return errors.New("config: market.search_url must contain %s")
	}

	return nil
}

// TokenEncryptionKey decodes the 32-byte token encryption key
func (c *Config) TokenEncryptionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Tokens.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("config: tokens.encryption_key is not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config: tokens.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
