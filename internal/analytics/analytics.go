// Package analytics aggregates a seller's listings and sales into metrics.
// Metrics are recomputed on every call.
package analytics

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/store"
)

const hoursPerDay = 24

// Service computes sales metrics from the store
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// New creates an analytics service
func New(s store.Store, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logging.OrNop(logger)}
}

// MetricsFor aggregates a user's listings created in range and sales sold in range.
// Sell-through is the share of the in-range listings that have sold, so it stays within 0..100.
func (s *Service) MetricsFor(ctx context.Context, userID string, r model.DateRange) (*model.SalesMetrics, error) {
	listings, err := s.store.ListingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}
	sales, err := s.store.Sales(ctx, store.SaleFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("loading sales: %w", err)
	}

	total := newAccumulator()
	per := make(map[model.MarketplaceID]*accumulator)
	forMarketplace := func(m model.MarketplaceID) *accumulator {
		a, ok := per[m]
		if !ok {
			a = newAccumulator()
			per[m] = a
		}
		return a
	}

	for _, l := range listings {
		if !r.Contains(l.CreatedAt) {
			continue
		}
		sold := l.Status == model.ListingStatusSold
		total.addListing(sold)
		forMarketplace(l.Marketplace).addListing(sold)
	}
	for _, tx := range sales {
		if !r.Contains(tx.SoldAt) {
			continue
		}
		total.addSale(tx)
		forMarketplace(tx.Marketplace).addSale(tx)
	}

	out := &model.SalesMetrics{
		UserID:        userID,
		Range:         r,
		ByMarketplace: make(map[model.MarketplaceID]model.MarketplaceMetrics, len(per)),
	}
	tm := total.metrics("")
	out.TotalListings = tm.TotalListings
	out.SoldListings = tm.SoldListings
	out.TotalRevenue = tm.TotalRevenue
	out.TotalFees = tm.TotalFees
	out.TotalCommission = tm.TotalCommission
	out.NetProfit = tm.NetProfit
	out.SellThroughRate = tm.SellThroughRate
	out.AverageTimeToSell = tm.AverageTimeToSell

	for m, a := range per {
		out.ByMarketplace[m] = a.metrics(m)
	}

	s.logger.Debug("metrics computed",
		zap.String("user_id", userID),
		zap.Int("listings", out.TotalListings),
		zap.Int("sold", out.SoldListings))
	return out, nil
}

type accumulator struct {
	listings int
	// listed listings that have reached sold, whenever the sale happened
	listedSold int
	sold       int
	revenue    decimal.Decimal
	fees       decimal.Decimal
	commission decimal.Decimal
	sellHours  float64
}

func newAccumulator() *accumulator {
	return &accumulator{revenue: decimal.Zero, fees: decimal.Zero, commission: decimal.Zero}
}

func (a *accumulator) addListing(sold bool) {
	a.listings++
	if sold {
		a.listedSold++
	}
}

func (a *accumulator) addSale(tx model.SaleTransaction) {
	a.sold++
	a.revenue = a.revenue.Add(tx.SalePrice)
	a.fees = a.fees.Add(tx.Fees)
	a.commission = a.commission.Add(tx.Commission)
	a.sellHours += tx.SoldAt.Sub(tx.ListingCreatedAt).Hours()
}

func (a *accumulator) metrics(m model.MarketplaceID) model.MarketplaceMetrics {
	mm := model.MarketplaceMetrics{
		Marketplace:     m,
		TotalListings:   a.listings,
		SoldListings:    a.sold,
		TotalRevenue:    a.revenue,
		TotalFees:       a.fees,
		TotalCommission: a.commission,
		NetProfit:       a.revenue.Sub(a.fees).Sub(a.commission),
	}
	if a.listings > 0 {
		mm.SellThroughRate = float64(a.listedSold) / float64(a.listings) * 100
	}
	if a.sold > 0 {
		mm.AverageTimeToSell = a.sellHours / hoursPerDay / float64(a.sold)
	}
	return mm
}
