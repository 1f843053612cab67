// Package reconcile polls marketplaces for the state of active listings and
// carries sold, expired and ended outcomes into the ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/ledger"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/publisher"
)

// Ledger is the part of the listing ledger the reconciler drives
type Ledger interface {
	Get(ctx context.Context, listingID string) (*model.Listing, error)
	ActiveListings(ctx context.Context) ([]model.Listing, error)
	RecordObservation(ctx context.Context, listingID string, obs ledger.Observation) (*model.Listing, error)
	TransitionStatus(ctx context.Context, listingID string, to model.ListingStatus, extra *ledger.Extra) (*model.Listing, error)
}

// StatusChecker asks a marketplace about one listing
type StatusChecker interface {
	CheckStatus(ctx context.Context, marketplaceListingID string, m model.MarketplaceID) (*publisher.Result, error)
}

// Report summarizes one reconciliation pass
type Report struct {
	Checked      int `json:"checked"`
	Transitioned int `json:"transitioned"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Reconciler compares ledger listings with marketplace state
type Reconciler struct {
	ledger  Ledger
	checker StatusChecker
	logger  *zap.Logger
}

// New creates a reconciler
func New(l Ledger, checker StatusChecker, logger *zap.Logger) *Reconciler {
	return &Reconciler{ledger: l, checker: checker, logger: logging.OrNop(logger)}
}

// terminalFor maps a marketplace answer to the ledger state it implies
func terminalFor(s model.PublishStatus) (model.ListingStatus, bool) {
	switch s {
	case model.PublishStatusSold:
		return model.ListingStatusSold, true
	case model.PublishStatusExpired:
		return model.ListingStatusExpired, true
	case model.PublishStatusEnded:
		return model.ListingStatusEnded, true
	default:
		return "", false
	}
}

// Run checks every active listing one after another. A failure on one listing
// is logged and counted; the pass always continues.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	active, err := r.ledger.ActiveListings(ctx)
	if err != nil {
		return report, fmt.Errorf("loading active listings: %w", err)
	}

	for i := range active {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		listing := &active[i]
		_, changed, err := r.reconcile(ctx, listing)
		switch {
		case errors.Is(err, model.ErrNoProgrammaticPublish), errors.Is(err, model.ErrNotAuthenticated):
			report.Skipped++
		case err != nil:
			report.Failed++
			r.logger.Warn("reconciling listing failed",
				zap.String("listing_id", listing.ID),
				zap.String("marketplace", string(listing.Marketplace)),
				zap.Error(err))
		default:
			report.Checked++
			if changed {
				report.Transitioned++
			}
		}
	}

	r.logger.Info("reconciliation finished",
		zap.Int("active", len(active)),
		zap.Int("checked", report.Checked),
		zap.Int("transitioned", report.Transitioned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// ReconcileListing checks one listing on demand and returns its updated record
func (r *Reconciler) ReconcileListing(ctx context.Context, listingID string) (*model.Listing, error) {
	listing, err := r.ledger.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != model.ListingStatusActive {
		return listing, nil
	}
	updated, _, err := r.reconcile(ctx, listing)
	return updated, err
}

func (r *Reconciler) reconcile(ctx context.Context, listing *model.Listing) (*model.Listing, bool, error) {
	res, err := r.checker.CheckStatus(ctx, listing.MarketplaceListingID, listing.Marketplace)
	if err != nil {
		return nil, false, err
	}

	updated, err := r.ledger.RecordObservation(ctx, listing.ID, ledger.Observation{
		Views:      res.Views,
		WatchCount: res.WatchCount,
	})
	if err != nil {
		return nil, false, err
	}

	to, ok := terminalFor(res.Status)
	if !ok {
		return updated, false, nil
	}

	updated, err = r.ledger.TransitionStatus(ctx, listing.ID, to, nil)
	if errors.Is(err, model.ErrInvalidTransition) {
		// moved by someone else since it was loaded
		current, getErr := r.ledger.Get(ctx, listing.ID)
		if getErr != nil {
			return nil, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}
