// Package ledger is the durable record of listings and the state machine that moves them.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/store"
)

// Ledger owns listing and sale transaction persistence
type Ledger struct {
	store  store.Store
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock sets the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator sets the generator for listing and transaction ids
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logging.OrNop(logger) }
}

// New creates a ledger over a store
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewListing holds the fields of a freshly published listing
type NewListing struct {
	UserID               string
	AnalysisID           string
	Marketplace          model.MarketplaceID
	MarketplaceListingID string
	Price                decimal.Decimal
	Currency             string
	Title                string
	URL                  string
}

// CreateListing records a published listing. New listings always start active.
func (l *Ledger) CreateListing(ctx context.Context, in NewListing) (*model.Listing, error) {
	if !in.Marketplace.IsValid() {
		return nil, model.NewError(model.ErrUnsupportedMarketplace, in.Marketplace, "", nil)
	}

	now := l.now().UTC()
	listing := &model.Listing{
		ID:                   l.newID(),
		UserID:               in.UserID,
		AnalysisID:           in.AnalysisID,
		Marketplace:          in.Marketplace,
		MarketplaceListingID: in.MarketplaceListingID,
		Status:               model.ListingStatusActive,
		URL:                  in.URL,
		CreatedAt:            now,
		UpdatedAt:            now,
		Price:                in.Price,
		Currency:             in.Currency,
		Title:                in.Title,
	}
	if err := l.store.SaveListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}

	l.logger.Info("listing created",
		zap.String("listing_id", listing.ID),
		zap.String("marketplace", string(listing.Marketplace)),
		zap.String("marketplace_listing_id", listing.MarketplaceListingID))
	return listing, nil
}

// Extra carries optional transition details
type Extra struct {
	// At overrides the transition time. It may not precede the listing's creation.
	At *time.Time
}

// TransitionStatus moves an active listing to sold, expired, ended or deleted.
// Selling synthesizes exactly one sale transaction at the listing price. Any transition of a listing
// that is no longer active fails with model.ErrInvalidTransition.
func (l *Ledger) TransitionStatus(ctx context.Context, listingID string, to model.ListingStatus, extra *Extra) (*model.Listing, error) {
	if !to.IsValid() || to == model.ListingStatusActive {
		return nil, fmt.Errorf("transition to %q: %w", to, model.ErrInvalidTransition)
	}

	current, err := l.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.ListingStatusActive {
		return nil, fmt.Errorf("listing %s is %s: %w", listingID, current.Status, model.ErrInvalidTransition)
	}

	at := l.now().UTC()
	if extra != nil && extra.At != nil {
		at = extra.At.UTC()
		if at.Before(current.CreatedAt) {
			return nil, fmt.Errorf("listing %s: %s at %s precedes creation at %s: %w",
				listingID, to, at.Format(time.RFC3339), current.CreatedAt.Format(time.RFC3339), model.ErrInvalidTransition)
		}
	}

	var sale *model.SaleTransaction
	if to == model.ListingStatusSold {
		sale = l.saleFor(current, at)
	}

	updated, err := l.store.TransitionListing(ctx, listingID, model.ListingStatusActive, to, at, sale)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("listing_id", listingID),
		zap.String("status", string(to)),
	}
	if sale != nil {
		fields = append(fields,
			zap.String("transaction_id", sale.ID),
			zap.String("sale_price", sale.SalePrice.StringFixed(2)))
	}
	l.logger.Info("listing transitioned", fields...)
	return updated, nil
}

func (l *Ledger) saleFor(listing *model.Listing, at time.Time) *model.SaleTransaction {
	price := listing.Price
	s := Settle(listing.Marketplace, price)
	return &model.SaleTransaction{
		ID:               l.newID(),
		ListingID:        listing.ID,
		UserID:           listing.UserID,
		Marketplace:      listing.Marketplace,
		SalePrice:        price.Round(2),
		Fees:             s.Fees,
		NetAmount:        s.NetAmount,
		Commission:       s.Commission,
		Currency:         listing.Currency,
		ListingCreatedAt: listing.CreatedAt,
		SoldAt:           at,
		PaymentStatus:    model.PaymentStatusPending,
		ShippingStatus:   model.ShippingStatusPending,
	}
}

// Observation is a status-check reading that does not change the lifecycle state
type Observation struct {
	Views      *int
	WatchCount *int
}

// RecordObservation stores views, watch count and the check time of a listing.
// Only those fields are written, so a concurrent transition is never undone.
func (l *Ledger) RecordObservation(ctx context.Context, listingID string, obs Observation) (*model.Listing, error) {
	listing, err := l.store.RecordObservation(ctx, listingID, store.Observation{
		Views:      obs.Views,
		WatchCount: obs.WatchCount,
		At:         l.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("recording observation: %w", err)
	}
	return listing, nil
}

// Get returns one listing
func (l *Ledger) Get(ctx context.Context, listingID string) (*model.Listing, error) {
	return l.store.GetListing(ctx, listingID)
}

// ListByUser returns a user's listings, newest first
func (l *Ledger) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	return l.store.ListingsByUser(ctx, userID)
}

// ActiveListings returns every active listing, newest first
func (l *Ledger) ActiveListings(ctx context.Context) ([]model.Listing, error) {
	return l.store.ListingsByStatus(ctx, model.ListingStatusActive)
}

// Sale returns the sale transaction of a sold listing
func (l *Ledger) Sale(ctx context.Context, listingID string) (*model.SaleTransaction, error) {
	return l.store.SaleByListing(ctx, listingID)
}
