// Package pricing suggests price adjustments for active listings.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/market"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/store"
)

const (
	// RecentSalesLimit caps the comparable sales sent as context
	RecentSalesLimit = 10

	// FallbackConfidence is reported for heuristic suggestions
	FallbackConfidence = 0.7

	// FallbackReasoning explains heuristic suggestions to the seller
	FallbackReasoning = "Market analysis is currently unavailable. A 5% reduction usually improves visibility for listings that have not sold yet."

	// FallbackStrategy names the heuristic in the market summary
	FallbackStrategy = "reduce-5-percent"
)

// FallbackFactor is applied to the current price when reasoning fails
var FallbackFactor = decimal.RequireFromString("0.95")

// Optimizer produces price suggestions. It never mutates the listing.
type Optimizer struct {
	store    store.Store
	market   market.Source
	reasoner Reasoner
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures an Optimizer
type Option func(*Optimizer)

// WithClock sets the clock
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) { o.logger = logging.OrNop(l) }
}

// NewOptimizer creates an optimizer. A nil market source yields empty snapshots;
// a nil reasoner always falls back.
func NewOptimizer(s store.Store, src market.Source, r Reasoner, opts ...Option) *Optimizer {
	o := &Optimizer{
		store:    s,
		market:   src,
		reasoner: r,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Suggest returns a price suggestion for a listing. Failures of the reasoning
// service are absorbed into a heuristic suggestion flagged as Fallback.
func (o *Optimizer) Suggest(ctx context.Context, listing model.Listing, analysis *model.ProductAnalysis) *model.PriceOptimization {
	now := o.now().UTC()

	sales := o.recentSales(ctx, listing)
	snap := o.snapshot(ctx, listing, analysis, now)
	req := buildRequest(listing, analysis, sales, snap, now)

	if o.reasoner == nil {
		return o.fallback(listing, snap, len(sales), now)
	}

	s, err := o.reasoner.Suggest(ctx, req)
	if err == nil {
		err = s.Validate()
	}
	if err != nil {
		o.logger.Warn("price reasoning failed, using fallback",
			zap.String("listing_id", listing.ID),
			zap.Error(err))
		return o.fallback(listing, snap, len(sales), now)
	}

	return &model.PriceOptimization{
		ListingID:      listing.ID,
		CurrentPrice:   listing.Price,
		SuggestedPrice: s.SuggestedPrice.Round(2),
		Reasoning:      s.Reasoning,
		Confidence:     s.Confidence,
		MarketData: model.MarketSummary{
			AveragePrice:    s.MarketAnalysis.AveragePrice,
			PriceRange:      s.MarketAnalysis.PriceRange,
			Strategy:        s.MarketAnalysis.Strategy,
			ComparableSales: len(sales),
			ActiveListings:  snap.ActiveListings,
		},
		CreatedAt: now,
	}
}

func (o *Optimizer) fallback(listing model.Listing, snap *market.Snapshot, comparable int, now time.Time) *model.PriceOptimization {
	return &model.PriceOptimization{
		ListingID:      listing.ID,
		CurrentPrice:   listing.Price,
		SuggestedPrice: listing.Price.Mul(FallbackFactor),
		Reasoning:      FallbackReasoning,
		Confidence:     FallbackConfidence,
		MarketData: model.MarketSummary{
			AveragePrice:    snap.AveragePrice,
			PriceRange:      model.PriceRange{Min: snap.Min, Max: snap.Max},
			Strategy:        FallbackStrategy,
			ComparableSales: comparable,
			ActiveListings:  snap.ActiveListings,
		},
		Fallback:  true,
		CreatedAt: now,
	}
}

func (o *Optimizer) recentSales(ctx context.Context, listing model.Listing) []model.SaleTransaction {
	sales, err := o.store.Sales(ctx, store.SaleFilter{
		UserID:      listing.UserID,
		Marketplace: listing.Marketplace,
		Limit:       RecentSalesLimit,
	})
	if err != nil {
		o.logger.Warn("loading comparable sales failed", zap.String("listing_id", listing.ID), zap.Error(err))
		return nil
	}
	return sales
}

func (o *Optimizer) snapshot(ctx context.Context, listing model.Listing, analysis *model.ProductAnalysis, now time.Time) *market.Snapshot {
	q := market.Query{Text: listing.Title, Marketplace: listing.Marketplace}
	if analysis != nil && analysis.Title != "" {
		q.Text = analysis.Title
	}
	if o.market == nil {
		return market.Empty(q, now)
	}

	snap, err := o.market.Snapshot(ctx, q)
	if err != nil {
		o.logger.Warn("market snapshot failed", zap.String("query", q.Text), zap.Error(err))
		return market.Empty(q, now)
	}
	return snap
}

func buildRequest(listing model.Listing, analysis *model.ProductAnalysis, sales []model.SaleTransaction, snap *market.Snapshot, now time.Time) Request {
	req := Request{
		Title:        listing.Title,
		Marketplace:  listing.Marketplace.DisplayName(),
		CurrentPrice: listing.Price,
		Currency:     listing.Currency,
		DaysListed:   now.Sub(listing.CreatedAt).Hours() / 24,
		Views:        listing.Views,
		WatchCount:   listing.WatchCount,
		RecentSales:  make([]Comparable, 0, len(sales)),
		Market: MarketContext{
			AveragePrice:   snap.AveragePrice,
			MinPrice:       snap.Min,
			MaxPrice:       snap.Max,
			ActiveListings: snap.ActiveListings,
		},
	}
	if analysis != nil {
		req.Condition = analysis.Condition
		req.Category = analysis.Category
		req.Brand = analysis.Brand
	}
	for _, s := range sales {
		req.RecentSales = append(req.RecentSales, Comparable{
			SalePrice:   s.SalePrice,
			DaysToSell:  s.SoldAt.Sub(s.ListingCreatedAt).Hours() / 24,
			SoldAt:      s.SoldAt.Format(time.DateOnly),
			Marketplace: string(s.Marketplace),
		})
	}
	return req
}
