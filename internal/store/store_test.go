package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/listforge/internal/model"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// forEachStore runs a test against every Store implementation
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		g, err := OpenSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() {
			if sqlDB, err := g.DB().DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		fn(t, g)
	})
}

func newListing(id, user string, m model.MarketplaceID, createdAt time.Time) *model.Listing {
	return &model.Listing{
		ID:                   id,
		UserID:               user,
		AnalysisID:           "an-" + id,
		Marketplace:          m,
		MarketplaceListingID: "ext-" + id,
		Status:               model.ListingStatusActive,
		URL:                  "https://example.test/" + id,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
		Price:                decimal.RequireFromString("19.99"),
		Currency:             "EUR",
		Title:                "Item " + id,
	}
}

func newSale(l *model.Listing, soldAt time.Time) *model.SaleTransaction {
	return &model.SaleTransaction{
		ID:               "sale-" + l.ID,
		ListingID:        l.ID,
		UserID:           l.UserID,
		Marketplace:      l.Marketplace,
		SalePrice:        l.Price,
		Fees:             decimal.RequireFromString("2.35"),
		NetAmount:        decimal.RequireFromString("17.64"),
		Commission:       decimal.RequireFromString("0.40"),
		Currency:         l.Currency,
		ListingCreatedAt: l.CreatedAt,
		SoldAt:           soldAt,
		PaymentStatus:    model.PaymentStatusPending,
		ShippingStatus:   model.ShippingStatusPending,
	}
}

func TestStore_SaveAndGetListing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		l := newListing("l1", "u1", model.MarketplaceEbay, base)
		require.NoError(t, s.SaveListing(ctx, l))

		got, err := s.GetListing(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, model.MarketplaceEbay, got.Marketplace)
		assert.Equal(t, model.ListingStatusActive, got.Status)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("19.99")), got.Price.String())
		assert.True(t, got.CreatedAt.Equal(base))
		assert.Nil(t, got.Views)

		_, err = s.GetListing(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestStore_RecordObservation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveListing(ctx, newListing("l1", "u1", model.MarketplaceFacebook, base)))

		views := 42
		checked := base.Add(time.Hour)
		got, err := s.RecordObservation(ctx, "l1", Observation{Views: &views, At: checked})
		require.NoError(t, err)
		require.NotNil(t, got.Views)
		assert.Equal(t, 42, *got.Views)
		assert.Nil(t, got.WatchCount)
		require.NotNil(t, got.LastCheckedAt)
		assert.True(t, got.LastCheckedAt.Equal(checked))
		assert.True(t, got.CreatedAt.Equal(base))
		assert.True(t, got.Price.Equal(decimal.RequireFromString("19.99")))

		// nil counters keep what is stored
		watchers := 3
		got, err = s.RecordObservation(ctx, "l1", Observation{WatchCount: &watchers, At: checked.Add(time.Hour)})
		require.NoError(t, err)
		require.NotNil(t, got.Views)
		assert.Equal(t, 42, *got.Views)
		assert.Equal(t, 3, *got.WatchCount)

		_, err = s.RecordObservation(ctx, "nope", Observation{At: checked})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestStore_ObservationAfterSaleKeepsStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		l := newListing("l1", "u1", model.MarketplaceEbay, base)
		require.NoError(t, s.SaveListing(ctx, l))

		soldAt := base.Add(2 * time.Hour)
		_, err := s.TransitionListing(ctx, "l1", model.ListingStatusActive, model.ListingStatusSold, soldAt, newSale(l, soldAt))
		require.NoError(t, err)

		// a reading taken while the listing was still active lands after the sale
		views := 9
		got, err := s.RecordObservation(ctx, "l1", Observation{Views: &views, At: soldAt.Add(time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, model.ListingStatusSold, got.Status)

		stored, err := s.GetListing(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, model.ListingStatusSold, stored.Status)

		_, err = s.TransitionListing(ctx, "l1", model.ListingStatusActive, model.ListingStatusSold, soldAt, newSale(l, soldAt))
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})
}

func TestStore_ListingsNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveListing(ctx, newListing("old", "u1", model.MarketplaceEbay, base)))
		require.NoError(t, s.SaveListing(ctx, newListing("new", "u1", model.MarketplaceEbay, base.Add(2*time.Hour))))
		require.NoError(t, s.SaveListing(ctx, newListing("mid", "u1", model.MarketplaceFacebook, base.Add(time.Hour))))
		require.NoError(t, s.SaveListing(ctx, newListing("other", "u2", model.MarketplaceEbay, base)))

		got, err := s.ListingsByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"new", "mid", "old"}, []string{got[0].ID, got[1].ID, got[2].ID})

		none, err := s.ListingsByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)

		active, err := s.ListingsByStatus(ctx, model.ListingStatusActive)
		require.NoError(t, err)
		assert.Len(t, active, 4)
	})
}

func TestStore_TransitionListing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		l := newListing("l1", "u1", model.MarketplaceEbay, base)
		require.NoError(t, s.SaveListing(ctx, l))

		soldAt := base.Add(72 * time.Hour)
		got, err := s.TransitionListing(ctx, "l1", model.ListingStatusActive, model.ListingStatusSold, soldAt, newSale(l, soldAt))
		require.NoError(t, err)
		assert.Equal(t, model.ListingStatusSold, got.Status)
		assert.True(t, got.UpdatedAt.Equal(soldAt))

		sale, err := s.SaleByListing(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, "sale-l1", sale.ID)
		assert.True(t, sale.Fees.Equal(decimal.RequireFromString("2.35")))

		// a second transition no longer starts from active
		_, err = s.TransitionListing(ctx, "l1", model.ListingStatusActive, model.ListingStatusSold, soldAt, newSale(l, soldAt))
		assert.ErrorIs(t, err, model.ErrInvalidTransition)

		sales, err := s.Sales(ctx, SaleFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Len(t, sales, 1)

		_, err = s.TransitionListing(ctx, "missing", model.ListingStatusActive, model.ListingStatusEnded, soldAt, nil)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestStore_TransitionWithoutSale(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveListing(ctx, newListing("l1", "u1", model.MarketplaceFacebook, base)))

		got, err := s.TransitionListing(ctx, "l1", model.ListingStatusActive, model.ListingStatusExpired, base.Add(time.Hour), nil)
		require.NoError(t, err)
		assert.Equal(t, model.ListingStatusExpired, got.Status)

		_, err = s.SaleByListing(ctx, "l1")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestStore_SalesFilter(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, m := range []model.MarketplaceID{model.MarketplaceEbay, model.MarketplaceEbay, model.MarketplaceFacebook, model.MarketplaceEbay} {
			l := newListing(string(rune('a'+i)), "u1", m, base)
			require.NoError(t, s.SaveListing(ctx, l))
			soldAt := base.Add(time.Duration(i+1) * time.Hour)
			_, err := s.TransitionListing(ctx, l.ID, model.ListingStatusActive, model.ListingStatusSold, soldAt, newSale(l, soldAt))
			require.NoError(t, err)
		}

		ebaySales, err := s.Sales(ctx, SaleFilter{Marketplace: model.MarketplaceEbay})
		require.NoError(t, err)
		require.Len(t, ebaySales, 3)
		assert.Equal(t, "d", ebaySales[0].ListingID)

		limited, err := s.Sales(ctx, SaleFilter{UserID: "u1", Marketplace: model.MarketplaceEbay, Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, []string{"d", "b"}, []string{limited[0].ListingID, limited[1].ListingID})

		none, err := s.Sales(ctx, SaleFilter{UserID: "u2"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStore_Profiles(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetProfile(ctx, "u1")
		assert.ErrorIs(t, err, model.ErrNotFound)

		p := &model.UserProfile{
			UserID:       "u1",
			Subscription: model.Subscription{Plan: "pro", Status: "active"},
			Onboarding:   model.Onboarding{Step: "connect", Marketplaces: []model.MarketplaceID{model.MarketplaceEbay}},
			UpdatedAt:    base,
		}
		require.NoError(t, s.SaveProfile(ctx, p))

		p.Onboarding.Completed = true
		require.NoError(t, s.SaveProfile(ctx, p))

		got, err := s.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, got.Subscription.Active())
		assert.True(t, got.Onboarding.Completed)
		assert.Equal(t, []model.MarketplaceID{model.MarketplaceEbay}, got.Onboarding.Marketplaces)
	})
}
