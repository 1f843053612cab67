package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(ErrAuthRefresh, MarketplaceEbay, "refresh grant", cause)

	assert.ErrorIs(t, err, ErrAuthRefresh)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrAuthExchange)
	assert.Equal(t, "ebay: token refresh failed: refresh grant: connection reset", err.Error())

	wrapped := fmt.Errorf("publishing: %w", err)
	var typed *Error
	assert.True(t, errors.As(wrapped, &typed))
	assert.Equal(t, MarketplaceEbay, typed.Marketplace)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not authenticated", NewError(ErrNotAuthenticated, MarketplaceEbay, "", nil), true},
		{"refresh", NewError(ErrAuthRefresh, MarketplaceFacebook, "", nil), true},
		{"configuration", NewError(ErrConfiguration, MarketplaceEbay, "", nil), false},
		{"no api", NewError(ErrNoProgrammaticPublish, MarketplaceKleinanzeigen, "", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestMarketplaceID(t *testing.T) {
	for _, m := range AllMarketplaces() {
		assert.True(t, m.IsValid(), m)
		assert.NotEqual(t, string(m), "")
	}
	assert.False(t, MarketplaceID("etsy").IsValid())
	assert.Equal(t, "Kleinanzeigen", MarketplaceKleinanzeigen.DisplayName())
}

func TestDateRange_Contains(t *testing.T) {
	from := mustTime("2026-01-01T00:00:00Z")
	to := mustTime("2026-01-31T23:59:59Z")
	r := DateRange{From: &from, To: &to}

	assert.True(t, r.Contains(mustTime("2026-01-15T12:00:00Z")))
	assert.True(t, r.Contains(from))
	assert.False(t, r.Contains(mustTime("2025-12-31T23:59:59Z")))
	assert.False(t, r.Contains(mustTime("2026-02-01T00:00:00Z")))
	assert.True(t, DateRange{}.Contains(mustTime("1999-01-01T00:00:00Z")))
}

func TestProductAnalysis_CloneDoesNotAlias(t *testing.T) {
	a := ProductAnalysis{Title: "Lamp", Keywords: []string{"lamp"}, Features: []string{"dimmable"}}
	c := a.Clone()
	c.Keywords[0] = "changed"
	c.Features = append(c.Features, "extra")

	assert.Equal(t, "lamp", a.Keywords[0])
	assert.Len(t, a.Features, 1)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
