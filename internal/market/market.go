// Package market provides read-only market snapshots used as pricing context.
package market

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/listforge/internal/adapter"
	"github.com/guarzo/listforge/internal/cache"
	"github.com/guarzo/listforge/internal/config"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// priceSelectors are tried in order; the first one with matches wins
var priceSelectors = []string{
	"[data-price]",
	".aditem-main--middle--price-shipping--price",
	".s-item__price",
	".price",
}

// Query identifies what to look up
type Query struct {
	Text        string              `json:"text"`
	Marketplace model.MarketplaceID `json:"marketplace"`
}

// Snapshot summarizes the asking prices of comparable active listings
type Snapshot struct {
	Query          Query             `json:"query"`
	Prices         []decimal.Decimal `json:"prices"`
	AveragePrice   decimal.Decimal   `json:"averagePrice"`
	Min            decimal.Decimal   `json:"min"`
	Max            decimal.Decimal   `json:"max"`
	ActiveListings int               `json:"activeListings"`
	FetchedAt      time.Time         `json:"fetchedAt"`
}

// Source returns market snapshots
type Source interface {
	Snapshot(ctx context.Context, q Query) (*Snapshot, error)
}

// Config configures the search scraper
type Config struct {
	SearchURL         string // contains %s for the escaped query
	CacheTTL          time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

// ConfigFromSettings builds a scraper config from application settings
func ConfigFromSettings(c config.MarketConfig, timeout time.Duration) Config {
	return Config{
		SearchURL:         c.SearchURL,
		CacheTTL:          c.CacheTTL,
		RequestsPerSecond: c.RequestsPerSecond,
		Timeout:           timeout,
	}
}

// SearchScraper reads prices from a public search result page
type SearchScraper struct {
	cfg     Config
	client  *resty.Client
	cache   cache.Cache
	limiter *rate.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

// NewSearchScraper creates a scraper; a nil cache disables caching
func NewSearchScraper(cfg Config, c cache.Cache, logger *zap.Logger) *SearchScraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &SearchScraper{
		cfg:     cfg,
		client:  resty.New().SetTimeout(cfg.Timeout),
		cache:   c,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		logger:  logging.OrNop(logger),
	}
}

// Snapshot fetches, or returns the cached, snapshot for a query
func (s *SearchScraper) Snapshot(ctx context.Context, q Query) (*Snapshot, error) {
	key := cache.SnapshotKey(string(q.Marketplace), q.Text)
	if s.cache != nil {
		var cached Snapshot
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("market cache read failed", zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := s.fetch(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	snap := summarize(q, extractPrices(doc), s.now().UTC())
	s.logger.Debug("market snapshot fetched",
		zap.String("query", q.Text),
		zap.String("marketplace", string(q.Marketplace)),
		zap.Int("listings", snap.ActiveListings))

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Put(ctx, key, snap, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("market cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

func (s *SearchScraper) fetch(ctx context.Context, text string) (io.ReadCloser, error) {
	searchURL := fmt.Sprintf(s.cfg.SearchURL, url.PathEscape(strings.ToLower(strings.TrimSpace(text))))

	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Encoding", "gzip, br").
		Get(searchURL)
	if err != nil {
		return nil, fmt.Errorf("performing search request: %w", err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		raw.Close()
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode())
	}

	return decode(resp.Header().Get("Content-Encoding"), raw)
}

// decode unwraps a compressed body; the returned closer closes the raw body
func decode(encoding string, raw io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(encoding) {
	case "gzip":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		return readCloser{Reader: zr, close: raw.Close}, nil
	case "br":
		return readCloser{Reader: brotli.NewReader(raw), close: raw.Close}, nil
	default:
		return raw, nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

func extractPrices(doc *goquery.Document) []decimal.Decimal {
	var prices []decimal.Decimal
	for _, selector := range priceSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if v, ok := sel.Attr("data-price"); ok && v != "" {
				text = v
			}
			if p, ok := adapter.ParsePrice(text); ok && p.IsPositive() {
				prices = append(prices, p)
			}
		})
		if len(prices) > 0 {
			break
		}
	}
	return prices
}

func summarize(q Query, prices []decimal.Decimal, at time.Time) *Snapshot {
	snap := &Snapshot{
		Query:          q,
		Prices:         prices,
		AveragePrice:   decimal.Zero,
		Min:            decimal.Zero,
		Max:            decimal.Zero,
		ActiveListings: len(prices),
		FetchedAt:      at,
	}
	if len(prices) == 0 {
		return snap
	}

	sorted := append([]decimal.Decimal(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	snap.Min = sorted[0]
	snap.Max = sorted[len(sorted)-1]
	snap.AveragePrice = decimal.Avg(sorted[0], sorted[1:]...).Round(2)
	return snap
}

// Empty returns a snapshot with no data, used when no source is available
func Empty(q Query, at time.Time) *Snapshot {
	return summarize(q, nil, at)
}
