// Package auth holds one OAuth token set per marketplace and keeps it usable.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
)

// DefaultTimeout bounds a single token endpoint call
const DefaultTimeout = 10 * time.Second

// TokenStore owns the marketplace tokens; tokens never leave it except as access token strings
type TokenStore struct {
	providers map[model.MarketplaceID]ProviderConfig
	backend   Backend
	states    *StateManager
	client    *resty.Client
	http      *http.Client
	now       func() time.Time
	logger    *zap.Logger

	locksMu sync.Mutex
	locks   map[model.MarketplaceID]*sync.Mutex
}

// Option configures a TokenStore
type Option func(*TokenStore)

// WithClock sets the clock used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *TokenStore) { s.logger = logging.OrNop(l) }
}

// WithTimeout sets the per-call timeout for token endpoints
func WithTimeout(d time.Duration) Option {
	return func(s *TokenStore) {
		s.client.SetTimeout(d)
		s.http.Timeout = d
	}
}

// WithStateManager replaces the authorization state tracker
func WithStateManager(sm *StateManager) Option {
	return func(s *TokenStore) { s.states = sm }
}

// NewTokenStore creates a token store over the given backend
func NewTokenStore(providers map[model.MarketplaceID]ProviderConfig, backend Backend, opts ...Option) *TokenStore {
	if backend == nil {
		backend = NewMemoryBackend()
	}

	s := &TokenStore{
		providers: providers,
		backend:   backend,
		client:    resty.New().SetTimeout(DefaultTimeout),
		http:      &http.Client{Timeout: DefaultTimeout},
		now:       time.Now,
		logger:    zap.NewNop(),
		locks:     make(map[model.MarketplaceID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.states == nil {
		s.states = NewStateManager(DefaultStateTTL, s.now)
	}
	return s
}

func (s *TokenStore) provider(m model.MarketplaceID) (ProviderConfig, error) {
	if !m.IsValid() {
		return ProviderConfig{}, model.NewError(model.ErrUnsupportedMarketplace, m, "", nil)
	}
	p, ok := s.providers[m]
	if !ok || !p.configured() {
		return ProviderConfig{}, model.NewError(model.ErrConfiguration, m, "client id or redirect URI not configured", nil)
	}
	return p, nil
}

// lockFor returns the mutex serializing token access for one marketplace
func (s *TokenStore) lockFor(m model.MarketplaceID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[m]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[m] = mu
	}
	return mu
}

// BuildAuthorizationURL returns the consent URL and the state value the callback must echo
func (s *TokenStore) BuildAuthorizationURL(m model.MarketplaceID, scopes []string) (string, string, error) {
	p, err := s.provider(m)
	if err != nil {
		return "", "", err
	}

	state, err := s.states.Issue(m)
	if err != nil {
		return "", "", fmt.Errorf("generating state: %w", err)
	}

	var opts []oauth2.AuthCodeOption
	for k, v := range p.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	return p.oauth2Config(scopes).AuthCodeURL(state, opts...), state, nil
}

// ExchangeCode performs the authorization-code exchange and stores the resulting token
func (s *TokenStore) ExchangeCode(ctx context.Context, m model.MarketplaceID, code string) (*Token, error) {
	p, err := s.provider(m)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	raw, err := p.oauth2Config(nil).Exchange(ctx, code)
	if err != nil {
		return nil, model.NewError(model.ErrAuthExchange, m, "", err)
	}
	tok := fromOAuth2(raw)

	lock := s.lockFor(m)
	lock.Lock()
	defer lock.Unlock()

	if err := s.backend.Save(ctx, m, tok); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}

	s.logger.Info("marketplace connected",
		zap.String("marketplace", string(m)),
		zap.Bool("refreshable", tok.RefreshToken != "" || p.Grant == GrantFBExchange))
	return tok.clone(), nil
}

// HandleCallback validates the callback state and exchanges the code for the marketplace it was issued for
func (s *TokenStore) HandleCallback(ctx context.Context, state, code string) (model.MarketplaceID, error) {
	m, ok := s.states.Consume(state)
	if !ok {
		return "", model.NewError(model.ErrAuthExchange, "", "unknown or expired state", nil)
	}
	if _, err := s.ExchangeCode(ctx, m, code); err != nil {
		return m, err
	}
	return m, nil
}

// EnsureValid returns a usable access token, refreshing it first when it expires within RefreshBuffer.
// The check, refresh and write happen under the marketplace lock, so concurrent callers see one refresh.
func (s *TokenStore) EnsureValid(ctx context.Context, m model.MarketplaceID) (string, error) {
	if !m.IsValid() {
		return "", model.NewError(model.ErrUnsupportedMarketplace, m, "", nil)
	}

	lock := s.lockFor(m)
	lock.Lock()
	defer lock.Unlock()

	tok, err := s.backend.Load(ctx, m)
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	if tok == nil {
		return "", model.NewError(model.ErrNotAuthenticated, m, "", nil)
	}
	if !tok.needsRefresh(s.now()) {
		return tok.AccessToken, nil
	}

	p, err := s.provider(m)
	if err != nil {
		return "", err
	}

	s.logger.Debug("refreshing token", zap.String("marketplace", string(m)), zap.Timep("expires_at", tok.ExpiresAt))

	next, err := s.refresh(ctx, m, p, tok)
	if err != nil {
		s.logger.Warn("token refresh failed", zap.String("marketplace", string(m)), zap.Error(err))
		return "", err
	}
	if err := s.backend.Save(ctx, m, next); err != nil {
		return "", fmt.Errorf("storing refreshed token: %w", err)
	}
	return next.AccessToken, nil
}

// Status reports the connection state without contacting the marketplace
func (s *TokenStore) Status(ctx context.Context, m model.MarketplaceID) (TokenStatus, error) {
	st := TokenStatus{Marketplace: m}
	if !m.IsValid() {
		return st, model.NewError(model.ErrUnsupportedMarketplace, m, "", nil)
	}

	lock := s.lockFor(m)
	lock.Lock()
	defer lock.Unlock()

	tok, err := s.backend.Load(ctx, m)
	if err != nil {
		return st, fmt.Errorf("loading token: %w", err)
	}
	if tok == nil {
		return st, nil
	}

	st.Connected = true
	st.ExpiresAt = tok.ExpiresAt
	st.NeedsRefresh = tok.needsRefresh(s.now())
	st.Refreshable = tok.RefreshToken != "" || s.providers[m].Grant == GrantFBExchange
	return st, nil
}

// Disconnect clears the stored token
func (s *TokenStore) Disconnect(ctx context.Context, m model.MarketplaceID) error {
	if !m.IsValid() {
		return model.NewError(model.ErrUnsupportedMarketplace, m, "", nil)
	}

	lock := s.lockFor(m)
	lock.Lock()
	defer lock.Unlock()

	if err := s.backend.Delete(ctx, m); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	s.logger.Info("marketplace disconnected", zap.String("marketplace", string(m)))
	return nil
}

// Seed stores a token directly; used when tokens are provisioned out of band
func (s *TokenStore) Seed(ctx context.Context, m model.MarketplaceID, t *Token) error {
	lock := s.lockFor(m)
	lock.Lock()
	defer lock.Unlock()
	return s.backend.Save(ctx, m, t.clone())
}
