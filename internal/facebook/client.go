// Package facebook publishes page-scoped Marketplace listings through the Graph API.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/listforge/internal/config"
	"github.com/guarzo/listforge/internal/logging"
)

const (
	graphBaseURL = "https://graph.facebook.com"
	itemURL      = "https://www.facebook.com/marketplace/item/"

	// Graph error code for an object that does not exist or was removed
	errCodeNoSuchObject = 100
)

// ErrListingNotFound is returned when the Graph API no longer knows a listing
var ErrListingNotFound = errors.New("facebook: listing not found")

// Listing states reported by the Graph API
const (
	StatusActive  = "ACTIVE"
	StatusSold    = "SOLD"
	StatusExpired = "EXPIRED"
	StatusDeleted = "DELETED"
)

// Config holds the Graph client configuration
type Config struct {
	BaseURL           string
	GraphVersion      string
	PageID            string
	ItemURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// ConfigFromSettings builds a client configuration from application settings
func ConfigFromSettings(cfg config.FacebookConfig, timeout time.Duration) Config {
	return Config{
		BaseURL:      graphBaseURL,
		GraphVersion: cfg.GraphVersion,
		PageID:       cfg.PageID,
		ItemURL:      itemURL,
		Timeout:      timeout,
	}
}

// Client calls the Graph API with a per-call page access token
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new Graph client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = graphBaseURL
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = "v19.0"
	}
	if cfg.ItemURL == "" {
		cfg.ItemURL = itemURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}

	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.GraphVersion).
			SetTimeout(cfg.Timeout),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 2),
		logger:  logging.OrNop(logger).Named("facebook"),
	}
}

// ListingURL derives the public listing URL from a Graph listing id
func (c *Client) ListingURL(id string) string {
	return c.cfg.ItemURL + id
}

// ListingInput is the page-scoped listing creation payload
type ListingInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Currency    string   `json:"currency"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Brand       string   `json:"brand,omitempty"`
}

// ListingState is the reconciliation view of a listing
type ListingState struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ViewCount  int    `json:"view_count"`
	SavedCount int    `json:"saved_count"`
	Permalink  string `json:"permalink_url"`
}

// GraphError is an error object returned by the Graph API
type GraphError struct {
	StatusCode int
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api: status %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

type errorEnvelope struct {
	Error *GraphError `json:"error"`
}

type createResponse struct {
	ID string `json:"id"`
}

func (c *Client) request(ctx context.Context, token string) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetError(&errorEnvelope{}), nil
}

func graphError(resp *resty.Response) *GraphError {
	if env, ok := resp.Error().(*errorEnvelope); ok && env != nil && env.Error != nil {
		env.Error.StatusCode = resp.StatusCode()
		return env.Error
	}
	return &GraphError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
}

// CreateListing creates a listing on the configured page and returns its id
func (c *Client) CreateListing(ctx context.Context, token string, in ListingInput) (string, error) {
	if c.cfg.PageID == "" {
		return "", errors.New("facebook: page id not configured")
	}

	req, err := c.request(ctx, token)
	if err != nil {
		return "", err
	}

	var out createResponse
	resp, err := req.
		SetBody(in).
		SetResult(&out).
		Post("/" + c.cfg.PageID + "/marketplace_listings")
	if err != nil {
		return "", fmt.Errorf("creating listing: %w", err)
	}
	if resp.IsError() {
		return "", graphError(resp)
	}
	if out.ID == "" {
		return "", errors.New("facebook: create listing response had no id")
	}

	c.logger.Info("listing created", zap.String("listing_id", out.ID))
	return out.ID, nil
}

// GetListing returns the listing state. A removed listing returns ErrListingNotFound.
func (c *Client) GetListing(ctx context.Context, token, id string) (*ListingState, error) {
	req, err := c.request(ctx, token)
	if err != nil {
		return nil, err
	}

	var out ListingState
	resp, err := req.
		SetQueryParam("fields", "id,status,view_count,saved_count,permalink_url").
		SetResult(&out).
		Get("/" + id)
	if err != nil {
		return nil, fmt.Errorf("fetching listing: %w", err)
	}
	if resp.IsError() {
		gerr := graphError(resp)
		if resp.StatusCode() == http.StatusNotFound || gerr.Code == errCodeNoSuchObject {
			return nil, fmt.Errorf("%w: %s", ErrListingNotFound, gerr.Message)
		}
		return nil, gerr
	}
	return &out, nil
}
