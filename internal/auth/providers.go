package auth

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/guarzo/listforge/internal/config"
)

// Grant selects the marketplace-specific refresh grant
type Grant int

const (
	// GrantRefreshToken is the standard refresh_token grant with HTTP Basic client auth
	GrantRefreshToken Grant = iota
	// GrantFBExchange trades the current long-lived access token for a fresh one
	GrantFBExchange
)

// ProviderConfig describes one marketplace's OAuth endpoints and client credentials
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	Grant        Grant
	AuthStyle    oauth2.AuthStyle
	// AuthParams are added to the authorization URL
	AuthParams map[string]string
}

func (p ProviderConfig) configured() bool {
	return p.ClientID != "" && p.RedirectURI != ""
}

func (p ProviderConfig) oauth2Config(scopes []string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = p.Scopes
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: p.AuthStyle,
		},
	}
}

// eBay OAuth endpoints
const (
	ebayAuthURL        = "https://auth.ebay.com/oauth2/authorize"
	ebayTokenURL       = "https://api.ebay.com/identity/v1/oauth2/token"
	ebaySandboxAuthURL = "https://auth.sandbox.ebay.com/oauth2/authorize"
	ebaySandboxToken   = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
)

// EbayProvider builds the eBay provider configuration
func EbayProvider(cfg config.EbayConfig) ProviderConfig {
	p := ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthURL:      ebayAuthURL,
		TokenURL:     ebayTokenURL,
		Scopes:       cfg.Scopes,
		Grant:        GrantRefreshToken,
		AuthStyle:    oauth2.AuthStyleInHeader,
		AuthParams:   map[string]string{"prompt": "login"},
	}
	if cfg.Sandbox {
		p.AuthURL = ebaySandboxAuthURL
		p.TokenURL = ebaySandboxToken
	}
	return p
}

// FacebookProvider builds the Facebook provider configuration
func FacebookProvider(cfg config.FacebookConfig) ProviderConfig {
	version := cfg.GraphVersion
	if version == "" {
		version = "v19.0"
	}
	return ProviderConfig{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthURL:      fmt.Sprintf("https://www.facebook.com/%s/dialog/oauth", version),
		TokenURL:     fmt.Sprintf("https://graph.facebook.com/%s/oauth/access_token", version),
		Scopes:       cfg.Scopes,
		Grant:        GrantFBExchange,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}
