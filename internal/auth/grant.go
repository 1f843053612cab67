package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guarzo/listforge/internal/model"
)

type grantResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// refresh runs the provider's refresh grant and returns the replacement token.
// The current token is never modified.
func (s *TokenStore) refresh(ctx context.Context, m model.MarketplaceID, p ProviderConfig, current *Token) (*Token, error) {
	var (
		out grantResponse
		req = s.client.R().SetContext(ctx).SetResult(&out)
	)

	switch p.Grant {
	case GrantRefreshToken:
		if current.RefreshToken == "" {
			return nil, model.NewError(model.ErrAuthRefresh, m, "no refresh token stored", nil)
		}
		req.SetBasicAuth(p.ClientID, p.ClientSecret).
			SetFormData(map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": current.RefreshToken,
				"scope":         strings.Join(p.Scopes, " "),
			})
		resp, err := req.Post(p.TokenURL)
		if err != nil {
			return nil, model.NewError(model.ErrAuthRefresh, m, "refresh grant", err)
		}
		if resp.IsError() {
			return nil, model.NewError(model.ErrAuthRefresh, m,
				fmt.Sprintf("refresh grant returned %d", resp.StatusCode()), errors.New(resp.String()))
		}

	case GrantFBExchange:
		req.SetQueryParams(map[string]string{
			"grant_type":        "fb_exchange_token",
			"client_id":         p.ClientID,
			"client_secret":     p.ClientSecret,
			"fb_exchange_token": current.AccessToken,
		})
		resp, err := req.Get(p.TokenURL)
		if err != nil {
			return nil, model.NewError(model.ErrAuthRefresh, m, "token exchange grant", err)
		}
		if resp.IsError() {
			return nil, model.NewError(model.ErrAuthRefresh, m,
				fmt.Sprintf("token exchange grant returned %d", resp.StatusCode()), errors.New(resp.String()))
		}

	default:
		return nil, model.NewError(model.ErrConfiguration, m, fmt.Sprintf("unknown grant %d", p.Grant), nil)
	}

	if out.AccessToken == "" {
		return nil, model.NewError(model.ErrAuthRefresh, m, "grant response had no access token", nil)
	}

	next := &Token{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		TokenType:    out.TokenType,
		Scope:        out.Scope,
	}
	// eBay does not rotate refresh tokens
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if out.ExpiresIn > 0 {
		exp := s.now().Add(time.Duration(out.ExpiresIn) * time.Second)
		next.ExpiresAt = &exp
	}
	return next, nil
}
