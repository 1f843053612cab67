// Package store persists listings, sale transactions and user profiles.
package store

import (
	"context"
	"time"

	"github.com/guarzo/listforge/internal/model"
)

// SaleFilter selects sale transactions. Zero fields match everything.
type SaleFilter struct {
	UserID      string
	Marketplace model.MarketplaceID
	Limit       int
}

// Observation is a status-check reading of a listing
type Observation struct {
	Views      *int
	WatchCount *int
	At         time.Time
}

// Store is the document store the engine runs on.
// Listing and sale queries return newest first.
type Store interface {
	SaveListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	// RecordObservation writes views, watch count and the check time. Nil counters keep
	// their stored value. Status and price are never touched.
	RecordObservation(ctx context.Context, id string, obs Observation) (*model.Listing, error)
	ListingsByUser(ctx context.Context, userID string) ([]model.Listing, error)
	ListingsByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error)

	// TransitionListing moves a listing from one status to another and, when sale is
	// non-nil, records the sale in the same operation. It fails with
	// model.ErrInvalidTransition when the listing is no longer in status from.
	TransitionListing(ctx context.Context, id string, from, to model.ListingStatus, at time.Time, sale *model.SaleTransaction) (*model.Listing, error)

	Sales(ctx context.Context, f SaleFilter) ([]model.SaleTransaction, error)
	SaleByListing(ctx context.Context, listingID string) (*model.SaleTransaction, error)

	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SaveProfile(ctx context.Context, p *model.UserProfile) error
}
