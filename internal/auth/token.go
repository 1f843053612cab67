package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/guarzo/listforge/internal/model"
)

// RefreshBuffer is how long before expiry a token is treated as expired
const RefreshBuffer = 60 * time.Second

// Token is the OAuth token set held for one marketplace
type Token struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	TokenType    string     `json:"tokenType,omitempty"`
	Scope        string     `json:"scope,omitempty"`
}

// needsRefresh returns true once now is past expiresAt minus the buffer.
// A token without expiry never needs a refresh.
func (t *Token) needsRefresh(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return now.After(t.ExpiresAt.Add(-RefreshBuffer))
}

func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

func fromOAuth2(t *oauth2.Token) *Token {
	tok := &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if !t.Expiry.IsZero() {
		exp := t.Expiry
		tok.ExpiresAt = &exp
	}
	if scope, ok := t.Extra("scope").(string); ok {
		tok.Scope = scope
	}
	return tok
}

// TokenStatus is the public view of a marketplace connection; it never carries token values
type TokenStatus struct {
	Marketplace  model.MarketplaceID `json:"marketplace"`
	Connected    bool                `json:"connected"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	NeedsRefresh bool                `json:"needsRefresh"`
	Refreshable  bool                `json:"refreshable"`
}

// Backend persists at most one token per marketplace.
// Load returns (nil, nil) when no token is stored.
type Backend interface {
	Load(ctx context.Context, m model.MarketplaceID) (*Token, error)
	Save(ctx context.Context, m model.MarketplaceID, t *Token) error
	Delete(ctx context.Context, m model.MarketplaceID) error
}

// MemoryBackend keeps tokens in process memory
type MemoryBackend struct {
	mu     sync.RWMutex
	tokens map[model.MarketplaceID]*Token
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tokens: make(map[model.MarketplaceID]*Token)}
}

func (b *MemoryBackend) Load(_ context.Context, m model.MarketplaceID) (*Token, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tokens[m].clone(), nil
}

func (b *MemoryBackend) Save(_ context.Context, m model.MarketplaceID, t *Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[m] = t.clone()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, m model.MarketplaceID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, m)
	return nil
}
