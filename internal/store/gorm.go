package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guarzo/listforge/internal/model"
)

type listingRecord struct {
	ID                   string `gorm:"primaryKey;size:36"`
	UserID               string `gorm:"index:idx_listings_user_created,priority:1;size:64;not null"`
	AnalysisID           string `gorm:"size:64"`
	Marketplace          string `gorm:"size:32;not null"`
	MarketplaceListingID string `gorm:"size:128"`
	Status               string `gorm:"index;size:16;not null"`
	URL                  string
	Price                decimal.Decimal `gorm:"type:decimal(12,2)"`
	Currency             string          `gorm:"size:3"`
	Title                string
	Views                *int
	WatchCount           *int
	LastCheckedAt        *time.Time
	CreatedAt            time.Time `gorm:"index:idx_listings_user_created,priority:2;autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false"`
}

func (listingRecord) TableName() string { return "listings" }

type saleRecord struct {
	ID               string `gorm:"primaryKey;size:36"`
	ListingID        string `gorm:"uniqueIndex;size:36;not null"`
	UserID           string `gorm:"index:idx_sales_user_sold,priority:1;size:64;not null"`
	Marketplace      string `gorm:"size:32;not null"`
	SalePrice        decimal.Decimal `gorm:"type:decimal(12,2)"`
	Fees             decimal.Decimal `gorm:"type:decimal(12,2)"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(12,2)"`
	Commission       decimal.Decimal `gorm:"type:decimal(12,2)"`
	Currency         string          `gorm:"size:3"`
	ListingCreatedAt time.Time
	SoldAt           time.Time `gorm:"index:idx_sales_user_sold,priority:2"`
	PaymentStatus    string    `gorm:"size:16"`
	ShippingStatus   string    `gorm:"size:16"`
}

func (saleRecord) TableName() string { return "sale_transactions" }

type profileRecord struct {
	UserID       string             `gorm:"primaryKey;size:64"`
	Subscription model.Subscription `gorm:"serializer:json"`
	Onboarding   model.Onboarding   `gorm:"serializer:json"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime:false"`
}

func (profileRecord) TableName() string { return "users" }

// Gorm implements Store on a SQL database through GORM
type Gorm struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a sqlite database and migrates the schema
func OpenSQLite(dsn string) (*Gorm, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// sqlite has a single writer; ":memory:" databases also exist per connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return NewGorm(db)
}

// NewGorm wraps an open database and migrates the schema
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&listingRecord{}, &saleRecord{}, &profileRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Gorm{db: db}, nil
}

// DB exposes the underlying connection
func (g *Gorm) DB() *gorm.DB {
	return g.db
}

func (g *Gorm) SaveListing(ctx context.Context, l *model.Listing) error {
	rec := toListingRecord(l)
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("saving listing: %w", err)
	}
	return nil
}

func (g *Gorm) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var rec listingRecord
	if err := g.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("listing %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("loading listing: %w", err)
	}
	l := rec.toModel()
	return &l, nil
}

func (g *Gorm) RecordObservation(ctx context.Context, id string, obs Observation) (*model.Listing, error) {
	cols := map[string]any{"last_checked_at": obs.At, "updated_at": obs.At}
	if obs.Views != nil {
		cols["views"] = *obs.Views
	}
	if obs.WatchCount != nil {
		cols["watch_count"] = *obs.WatchCount
	}

	res := g.db.WithContext(ctx).Model(&listingRecord{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("recording observation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("listing %s: %w", id, model.ErrNotFound)
	}
	return g.GetListing(ctx, id)
}

func (g *Gorm) ListingsByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	var recs []listingRecord
	if err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	return toListings(recs), nil
}

func (g *Gorm) ListingsByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error) {
	var recs []listingRecord
	if err := g.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	return toListings(recs), nil
}

func (g *Gorm) TransitionListing(ctx context.Context, id string, from, to model.ListingStatus, at time.Time, sale *model.SaleTransaction) (*model.Listing, error) {
	var out listingRecord
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&listingRecord{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]any{"status": string(to), "updated_at": at})
		if res.Error != nil {
			return fmt.Errorf("updating status: %w", res.Error)
		}

		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("listing %s: %w", id, model.ErrNotFound)
			}
			return fmt.Errorf("loading listing: %w", err)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("listing %s is %s: %w", id, out.Status, model.ErrInvalidTransition)
		}

		if sale != nil {
			rec := toSaleRecord(sale)
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("saving sale transaction: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l := out.toModel()
	return &l, nil
}

func (g *Gorm) Sales(ctx context.Context, f SaleFilter) ([]model.SaleTransaction, error) {
	q := g.db.WithContext(ctx).Model(&saleRecord{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Marketplace != "" {
		q = q.Where("marketplace = ?", string(f.Marketplace))
	}
	q = q.Order("sold_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var recs []saleRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying sales: %w", err)
	}

	out := make([]model.SaleTransaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) SaleByListing(ctx context.Context, listingID string) (*model.SaleTransaction, error) {
	var rec saleRecord
	if err := g.db.WithContext(ctx).First(&rec, "listing_id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sale for listing %s: %w", listingID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("loading sale: %w", err)
	}
	s := rec.toModel()
	return &s, nil
}

func (g *Gorm) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var rec profileRecord
	if err := g.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return &model.UserProfile{
		UserID:       rec.UserID,
		Subscription: rec.Subscription,
		Onboarding:   rec.Onboarding,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

func (g *Gorm) SaveProfile(ctx context.Context, p *model.UserProfile) error {
	rec := profileRecord{
		UserID:       p.UserID,
		Subscription: p.Subscription,
		Onboarding:   p.Onboarding,
		UpdatedAt:    p.UpdatedAt,
	}
	if err := g.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

func toListingRecord(l *model.Listing) listingRecord {
	return listingRecord{
		ID:                   l.ID,
		UserID:               l.UserID,
		AnalysisID:           l.AnalysisID,
		Marketplace:          string(l.Marketplace),
		MarketplaceListingID: l.MarketplaceListingID,
		Status:               string(l.Status),
		URL:                  l.URL,
		Price:                l.Price,
		Currency:             l.Currency,
		Title:                l.Title,
		Views:                l.Views,
		WatchCount:           l.WatchCount,
		LastCheckedAt:        l.LastCheckedAt,
		CreatedAt:            l.CreatedAt,
		UpdatedAt:            l.UpdatedAt,
	}
}

func (r listingRecord) toModel() model.Listing {
	return model.Listing{
		ID:                   r.ID,
		UserID:               r.UserID,
		AnalysisID:           r.AnalysisID,
		Marketplace:          model.MarketplaceID(r.Marketplace),
		MarketplaceListingID: r.MarketplaceListingID,
		Status:               model.ListingStatus(r.Status),
		URL:                  r.URL,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		Price:                r.Price,
		Currency:             r.Currency,
		Title:                r.Title,
		Views:                r.Views,
		WatchCount:           r.WatchCount,
		LastCheckedAt:        r.LastCheckedAt,
	}
}

func toListings(recs []listingRecord) []model.Listing {
	out := make([]model.Listing, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out
}

func toSaleRecord(s *model.SaleTransaction) saleRecord {
	return saleRecord{
		ID:               s.ID,
		ListingID:        s.ListingID,
		UserID:           s.UserID,
		Marketplace:      string(s.Marketplace),
		SalePrice:        s.SalePrice,
		Fees:             s.Fees,
		NetAmount:        s.NetAmount,
		Commission:       s.Commission,
		Currency:         s.Currency,
		ListingCreatedAt: s.ListingCreatedAt,
		SoldAt:           s.SoldAt,
		PaymentStatus:    s.PaymentStatus,
		ShippingStatus:   s.ShippingStatus,
	}
}

func (r saleRecord) toModel() model.SaleTransaction {
	return model.SaleTransaction{
		ID:               r.ID,
		ListingID:        r.ListingID,
		UserID:           r.UserID,
		Marketplace:      model.MarketplaceID(r.Marketplace),
		SalePrice:        r.SalePrice,
		Fees:             r.Fees,
		NetAmount:        r.NetAmount,
		Commission:       r.Commission,
		Currency:         r.Currency,
		ListingCreatedAt: r.ListingCreatedAt,
		SoldAt:           r.SoldAt,
		PaymentStatus:    r.PaymentStatus,
		ShippingStatus:   r.ShippingStatus,
	}
}
