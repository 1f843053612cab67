// Package ebay talks to the eBay Sell Inventory API (publish) and the Trading API (status).
package ebay

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
	productionAPI     = "https://api.ebay.com"
	sandboxAPI        = "https://api.sandbox.ebay.com"
	productionViewURL = "https://www.ebay.de/itm/"
	sandboxViewURL    = "https://www.sandbox.ebay.com/itm/"
)

// ErrItemNotFound is returned when eBay no longer knows a listing
var ErrItemNotFound = errors.New("ebay: item not found")

// Config holds the eBay client configuration
type Config struct {
	BaseURL             string // REST base, e.g. https://api.ebay.com
	TradingURL          string // Trading API endpoint
	ViewURL             string // prefix for public listing URLs
	AppID               string
	MarketplaceID       string // e.g. EBAY_DE
	SiteID              string // Trading API site id
	ContentLanguage     string
	MerchantLocationKey string
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
	Timeout             time.Duration
	RequestsPerSecond   float64
}

// ConfigFromSettings builds a client configuration from application settings
func ConfigFromSettings(cfg config.EbayConfig, timeout time.Duration) Config {
	c := Config{
		BaseURL:             productionAPI,
		ViewURL:             productionViewURL,
		AppID:               cfg.ClientID,
		MarketplaceID:       cfg.MarketplaceID,
		SiteID:              cfg.SiteID,
		ContentLanguage:     "de-DE",
		MerchantLocationKey: cfg.MerchantLocationKey,
		FulfillmentPolicyID: cfg.FulfillmentPolicyID,
		PaymentPolicyID:     cfg.PaymentPolicyID,
		ReturnPolicyID:      cfg.ReturnPolicyID,
		Timeout:             timeout,
	}
	if cfg.Sandbox {
		c.BaseURL = sandboxAPI
		c.ViewURL = sandboxViewURL
	}
	return c
}

// Client calls eBay on behalf of the connected seller. The access token is
// passed per call; the client never stores it.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new eBay client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = productionAPI
	}
	if cfg.TradingURL == "" {
		cfg.TradingURL = strings.TrimRight(cfg.BaseURL, "/") + "/ws/api.dll"
	}
	if cfg.ViewURL == "" {
		cfg.ViewURL = productionViewURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.ContentLanguage == "" {
		cfg.ContentLanguage = "de-DE"
	}

	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 3),
		logger:  logging.OrNop(logger).Named("ebay"),
	}
}

// ListingURL derives the public listing URL from an eBay listing id
func (c *Client) ListingURL(listingID string) string {
	return c.cfg.ViewURL + listingID
}

// MarketplaceID returns the eBay site the client lists on
func (c *Client) MarketplaceID() string {
	return c.cfg.MarketplaceID
}

// APIError is a non-2xx response from a REST call
type APIError struct {
	Operation  string
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("ebay %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("ebay %s: status %d: %s", e.Operation, e.StatusCode, strings.Join(e.Messages, "; "))
}

// NotFound reports a 404 response
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type errorResponse struct {
	Errors []struct {
		ErrorID  int    `json:"errorId"`
		Message  string `json:"message"`
		LongMsg  string `json:"longMessage"`
		Category string `json:"category"`
	} `json:"errors"`
}

func (c *Client) request(ctx context.Context, token string) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetError(&errorResponse{}), nil
}

func apiError(op string, resp *resty.Response) error {
	e := &APIError{Operation: op, StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorResponse); ok && body != nil {
		for _, item := range body.Errors {
			msg := item.Message
			if item.LongMsg != "" {
				msg = item.LongMsg
			}
			e.Messages = append(e.Messages, msg)
		}
	}
	return e
}
