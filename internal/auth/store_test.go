package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/listforge/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// tokenServer is a fake OAuth token endpoint counting grants by type
type tokenServer struct {
	srv       *httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
	fail      atomic.Bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ts.fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = r.ParseForm()
		grant := r.Form.Get("grant_type")

		resp := map[string]any{"token_type": "Bearer", "expires_in": 7200}
		switch grant {
		case "authorization_code":
			ts.exchanges.Add(1)
			resp["access_token"] = "access-" + r.Form.Get("code")
			resp["refresh_token"] = "refresh-1"
		case "refresh_token":
			n := ts.refreshes.Add(1)
			resp["access_token"] = "refreshed-" + string(rune('0'+n))
		case "fb_exchange_token":
			ts.refreshes.Add(1)
			resp["access_token"] = "long-lived"
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *tokenServer) provider(grant Grant) ProviderConfig {
	return ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://listforge.test/callback",
		AuthURL:      ts.srv.URL + "/authorize",
		TokenURL:     ts.srv.URL + "/token",
		Scopes:       []string{"sell.inventory"},
		Grant:        grant,
	}
}

func newTestStore(ts *tokenServer, now func() time.Time) *TokenStore {
	return NewTokenStore(map[model.MarketplaceID]ProviderConfig{
		model.MarketplaceEbay:     ts.provider(GrantRefreshToken),
		model.MarketplaceFacebook: ts.provider(GrantFBExchange),
	}, NewMemoryBackend(), WithClock(now), WithTimeout(2*time.Second))
}

func expiringAt(t time.Time) *time.Time { return &t }

func TestBuildAuthorizationURL(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })

	raw, state, err := s.BuildAuthorizationURL(model.MarketplaceEbay, nil)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://listforge.test/callback", q.Get("redirect_uri"))
	assert.Equal(t, "sell.inventory", q.Get("scope"))
	assert.Equal(t, state, q.Get("state"))
}

func TestBuildAuthorizationURL_NotConfigured(t *testing.T) {
	s := NewTokenStore(map[model.MarketplaceID]ProviderConfig{
		model.MarketplaceEbay: {ClientID: "only-id"},
	}, nil)

	_, _, err := s.BuildAuthorizationURL(model.MarketplaceEbay, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, _, err = s.BuildAuthorizationURL(model.MarketplaceFacebook, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, _, err = s.BuildAuthorizationURL("etsy", nil)
	assert.ErrorIs(t, err, model.ErrUnsupportedMarketplace)
}

func TestExchangeCode(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	tok, err := s.ExchangeCode(ctx, model.MarketplaceEbay, "abc")
	require.NoError(t, err)
	assert.Equal(t, "access-abc", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	require.NotNil(t, tok.ExpiresAt)

	st, err := s.Status(ctx, model.MarketplaceEbay)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.True(t, st.Refreshable)
}

func TestExchangeCode_Non2xx(t *testing.T) {
	ts := newTokenServer(t)
	ts.fail.Store(true)
	s := newTestStore(ts, func() time.Time { return fixedNow })

	_, err := s.ExchangeCode(context.Background(), model.MarketplaceEbay, "abc")
	assert.ErrorIs(t, err, model.ErrAuthExchange)

	st, err := s.Status(context.Background(), model.MarketplaceEbay)
	require.NoError(t, err)
	assert.False(t, st.Connected)
}

func TestHandleCallback(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	_, state, err := s.BuildAuthorizationURL(model.MarketplaceFacebook, nil)
	require.NoError(t, err)

	m, err := s.HandleCallback(ctx, state, "xyz")
	require.NoError(t, err)
	assert.Equal(t, model.MarketplaceFacebook, m)

	// states are single use
	_, err = s.HandleCallback(ctx, state, "xyz")
	assert.ErrorIs(t, err, model.ErrAuthExchange)
}

func TestEnsureValid_NotAuthenticated(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })

	_, err := s.EnsureValid(context.Background(), model.MarketplaceEbay)
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestEnsureValid_RefreshBuffer(t *testing.T) {
	tests := []struct {
		name          string
		expiresIn     time.Duration
		wantRefreshes int32
	}{
		{"far from expiry", time.Hour, 0},
		{"just outside buffer", 61 * time.Second, 0},
		{"exactly at buffer", 60 * time.Second, 0},
		{"inside buffer", 59 * time.Second, 1},
		{"already expired", -time.Minute, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t)
			s := newTestStore(ts, func() time.Time { return fixedNow })
			ctx := context.Background()

			require.NoError(t, s.Seed(ctx, model.MarketplaceEbay, &Token{
				AccessToken:  "old",
				RefreshToken: "refresh-1",
				ExpiresAt:    expiringAt(fixedNow.Add(tt.expiresIn)),
			}))

			access, err := s.EnsureValid(ctx, model.MarketplaceEbay)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRefreshes, ts.refreshes.Load())
			if tt.wantRefreshes == 0 {
				assert.Equal(t, "old", access)
			} else {
				assert.Equal(t, "refreshed-1", access)
			}
		})
	}
}

func TestEnsureValid_RefreshKeepsRefreshToken(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, model.MarketplaceEbay, &Token{
		AccessToken: "old", RefreshToken: "keep-me", ExpiresAt: expiringAt(fixedNow),
	}))
	_, err := s.EnsureValid(ctx, model.MarketplaceEbay)
	require.NoError(t, err)

	stored, err := s.backend.Load(ctx, model.MarketplaceEbay)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", stored.RefreshToken)
	assert.Equal(t, fixedNow.Add(7200*time.Second), *stored.ExpiresAt)
}

func TestEnsureValid_FacebookExchangeGrant(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, model.MarketplaceFacebook, &Token{
		AccessToken: "short-lived", ExpiresAt: expiringAt(fixedNow.Add(10 * time.Second)),
	}))

	access, err := s.EnsureValid(ctx, model.MarketplaceFacebook)
	require.NoError(t, err)
	assert.Equal(t, "long-lived", access)
	assert.Equal(t, int32(1), ts.refreshes.Load())
}

func TestEnsureValid_RefreshFailure(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, model.MarketplaceEbay, &Token{
		AccessToken: "old", RefreshToken: "r", ExpiresAt: expiringAt(fixedNow.Add(-time.Hour)),
	}))
	ts.fail.Store(true)

	_, err := s.EnsureValid(ctx, model.MarketplaceEbay)
	assert.ErrorIs(t, err, model.ErrAuthRefresh)

	// the stale token is left in place, not partially overwritten
	stored, _ := s.backend.Load(ctx, model.MarketplaceEbay)
	assert.Equal(t, "old", stored.AccessToken)
}

func TestEnsureValid_NoRefreshToken(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, model.MarketplaceEbay, &Token{
		AccessToken: "old", ExpiresAt: expiringAt(fixedNow.Add(-time.Hour)),
	}))

	_, err := s.EnsureValid(ctx, model.MarketplaceEbay)
	assert.ErrorIs(t, err, model.ErrAuthRefresh)
	assert.Equal(t, int32(0), ts.refreshes.Load())
}

func TestEnsureValid_ConcurrentCallersShareOneRefresh(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, model.MarketplaceEbay, &Token{
		AccessToken: "old", RefreshToken: "r", ExpiresAt: expiringAt(fixedNow),
	}))

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			access, err := s.EnsureValid(ctx, model.MarketplaceEbay)
			assert.NoError(t, err)
			results[i] = access
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ts.refreshes.Load())
	for _, access := range results {
		assert.Equal(t, "refreshed-1", access)
	}
}

func TestDisconnect(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestStore(ts, func() time.Time { return fixedNow })
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, model.MarketplaceEbay, &Token{AccessToken: "a"}))
	require.NoError(t, s.Disconnect(ctx, model.MarketplaceEbay))

	_, err := s.EnsureValid(ctx, model.MarketplaceEbay)
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestTokenWithoutExpiryNeverRefreshes(t *testing.T) {
	tok := &Token{AccessToken: "a"}
	assert.False(t, tok.needsRefresh(fixedNow.Add(100*365*24*time.Hour)))
}

func TestSealedTokenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	aead, err := newTokenCipher(key)
	require.NoError(t, err)

	tok := &Token{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresAt: expiringAt(fixedNow)}
	sealed, err := sealToken(aead, model.MarketplaceEbay, tok)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret-access")

	opened, err := openToken(aead, model.MarketplaceEbay, sealed)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, opened.AccessToken)
	assert.True(t, tok.ExpiresAt.Equal(*opened.ExpiresAt))

	// bound to the marketplace it was sealed for
	_, err = openToken(aead, model.MarketplaceFacebook, sealed)
	assert.Error(t, err)

	_, err = newTokenCipher([]byte("short"))
	assert.Error(t, err)
}

func TestStateManager_Expiry(t *testing.T) {
	now := fixedNow
	sm := NewStateManager(time.Minute, func() time.Time { return now })

	state, err := sm.Issue(model.MarketplaceEbay)
	require.NoError(t, err)
	assert.Equal(t, 1, sm.Pending())

	now = now.Add(2 * time.Minute)
	_, ok := sm.Consume(state)
	assert.False(t, ok)
	assert.Equal(t, 0, sm.Pending())
}
