package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketplaceID identifies a supported sale channel
type MarketplaceID string

const (
	MarketplaceEbay          MarketplaceID = "ebay"
	MarketplaceFacebook      MarketplaceID = "facebook-marketplace"
	MarketplaceKleinanzeigen MarketplaceID = "ebay-kleinanzeigen"
)

// AllMarketplaces returns every supported marketplace in a stable order
func AllMarketplaces() []MarketplaceID {
	return []MarketplaceID{MarketplaceEbay, MarketplaceFacebook, MarketplaceKleinanzeigen}
}

// IsValid returns true if the marketplace is supported
func (m MarketplaceID) IsValid() bool {
	switch m {
	case MarketplaceEbay, MarketplaceFacebook, MarketplaceKleinanzeigen:
		return true
	default:
		return false
	}
}

func (m MarketplaceID) String() string {
	return string(m)
}

// DisplayName returns a human-readable marketplace name
func (m MarketplaceID) DisplayName() string {
	switch m {
	case MarketplaceEbay:
		return "eBay"
	case MarketplaceFacebook:
		return "Facebook Marketplace"
	case MarketplaceKleinanzeigen:
		return "Kleinanzeigen"
	default:
		return string(m)
	}
}

// PriceFormat controls how a marketplace expects prices
type PriceFormat string

const (
	PriceFormatDecimal PriceFormat = "decimal"
	PriceFormatInteger PriceFormat = "integer"
)

// MarketplaceRequirements holds the fixed listing constraints of one marketplace
type MarketplaceRequirements struct {
	Marketplace          MarketplaceID `json:"marketplace"`
	TitleMaxLength       int           `json:"titleMaxLength"`
	DescriptionMaxLength int           `json:"descriptionMaxLength"`
	MaxImages            int           `json:"maxImages"`
	AllowedCategories    []string      `json:"allowedCategories"`
	PriceFormat          PriceFormat   `json:"priceFormat"`
	Currency             string        `json:"currency"`
}

// ProductAnalysis is the structured result of the image-analysis provider.
// Price holds the numeric price; when zero it is derived from PriceEstimate.
type ProductAnalysis struct {
	ID            string          `json:"id,omitempty"`
	Title         string          `json:"title"`
	PriceEstimate string          `json:"priceEstimate"`
	Price         decimal.Decimal `json:"price"`
	Condition     string          `json:"condition"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Keywords      []string        `json:"keywords"`
	Brand         string          `json:"brand,omitempty"`
	Model         string          `json:"model,omitempty"`
	Features      []string        `json:"features,omitempty"`
	Defects       []string        `json:"defects,omitempty"`
}

// Clone returns a deep copy of the analysis
func (a ProductAnalysis) Clone() ProductAnalysis {
	c := a
	c.Keywords = append([]string(nil), a.Keywords...)
	c.Features = append([]string(nil), a.Features...)
	c.Defects = append([]string(nil), a.Defects...)
	return c
}

// ListingStatus is the ledger lifecycle state of a listing
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusExpired ListingStatus = "expired"
	ListingStatusEnded   ListingStatus = "ended"
	ListingStatusDeleted ListingStatus = "deleted"
)

// IsValid returns true if the status is known
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusActive, ListingStatusSold, ListingStatusExpired, ListingStatusEnded, ListingStatusDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once no further transition is allowed
func (s ListingStatus) IsTerminal() bool {
	return s != ListingStatusActive
}

// PublishStatus is the outcome code of a publish or status-check call
type PublishStatus string

const (
	PublishStatusDraft     PublishStatus = "draft"
	PublishStatusPublished PublishStatus = "published"
	PublishStatusSold      PublishStatus = "sold"
	PublishStatusExpired   PublishStatus = "expired"
	PublishStatusEnded     PublishStatus = "ended"
)

// Listing is the durable record of one item offered on one marketplace
type Listing struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	AnalysisID           string          `json:"analysisId"`
	Marketplace          MarketplaceID   `json:"marketplace"`
	MarketplaceListingID string          `json:"marketplaceListingId"`
	Status               ListingStatus   `json:"status"`
	URL                  string          `json:"url,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	Price                decimal.Decimal `json:"price"`
	Currency             string          `json:"currency"`
	Title                string          `json:"title"`
	Views                *int            `json:"views,omitempty"`
	WatchCount           *int            `json:"watchCount,omitempty"`
	LastCheckedAt        *time.Time      `json:"lastCheckedAt,omitempty"`
}

// Payment and shipping progress of a sale
const (
	PaymentStatusPending  = "pending"
	ShippingStatusPending = "pending"
)

// SaleTransaction is derived exactly once when a listing becomes sold
type SaleTransaction struct {
	ID               string          `json:"id"`
	ListingID        string          `json:"listingId"`
	UserID           string          `json:"userId"`
	Marketplace      MarketplaceID   `json:"marketplace"`
	SalePrice        decimal.Decimal `json:"salePrice"`
	Fees             decimal.Decimal `json:"fees"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	Commission       decimal.Decimal `json:"commission"`
	Currency         string          `json:"currency"`
	ListingCreatedAt time.Time       `json:"listingCreatedAt"`
	SoldAt           time.Time       `json:"soldAt"`
	PaymentStatus    string          `json:"paymentStatus"`
	ShippingStatus   string          `json:"shippingStatus"`
}

// DateRange bounds a query; nil ends are open
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the range (inclusive)
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// MarketplaceMetrics is the per-marketplace slice of SalesMetrics
type MarketplaceMetrics struct {
	Marketplace       MarketplaceID   `json:"marketplace"`
	TotalListings     int             `json:"totalListings"`
	SoldListings      int             `json:"soldListings"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalFees         decimal.Decimal `json:"totalFees"`
	TotalCommission   decimal.Decimal `json:"totalCommission"`
	NetProfit         decimal.Decimal `json:"netProfit"`
	SellThroughRate   float64         `json:"sellThroughRate"`
	AverageTimeToSell float64         `json:"averageTimeToSell"`
}

// SalesMetrics is recomputed on every request and never persisted
type SalesMetrics struct {
	UserID            string                               `json:"userId"`
	Range             DateRange                            `json:"range"`
	TotalListings     int                                  `json:"totalListings"`
	SoldListings      int                                  `json:"soldListings"`
	TotalRevenue      decimal.Decimal                      `json:"totalRevenue"`
	TotalFees         decimal.Decimal                      `json:"totalFees"`
	TotalCommission   decimal.Decimal                      `json:"totalCommission"`
	NetProfit         decimal.Decimal                      `json:"netProfit"`
	SellThroughRate   float64                              `json:"sellThroughRate"`
	AverageTimeToSell float64                              `json:"averageTimeToSell"` // days
	ByMarketplace     map[MarketplaceID]MarketplaceMetrics `json:"byMarketplace"`
}

// PriceRange is a min/max pair
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// MarketSummary condenses the market data a price suggestion was based on
type MarketSummary struct {
	AveragePrice    decimal.Decimal `json:"averagePrice"`
	PriceRange      PriceRange      `json:"priceRange"`
	Strategy        string          `json:"strategy"`
	ComparableSales int             `json:"comparableSales"`
	ActiveListings  int             `json:"activeListings"`
}

// PriceOptimization is a price suggestion for an active listing; it never mutates the listing
type PriceOptimization struct {
	ListingID      string          `json:"listingId"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	SuggestedPrice decimal.Decimal `json:"suggestedPrice"`
	Reasoning      string          `json:"reasoning"`
	Confidence     float64         `json:"confidence"`
	MarketData     MarketSummary   `json:"marketData"`
	Fallback       bool            `json:"fallback"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Subscription is the plan state written by the payment processor integration
type Subscription struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// Active returns true while the subscription grants its plan
func (s Subscription) Active() bool {
	return s.Status == "active" || s.Status == "trialing"
}

// Onboarding tracks the first-run steps a seller has completed
type Onboarding struct {
	Completed    bool            `json:"completed"`
	Step         string          `json:"step,omitempty"`
	Marketplaces []MarketplaceID `json:"marketplaces,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// UserProfile is the per-user document carrying subscription and onboarding state
type UserProfile struct {
	UserID       string       `json:"userId"`
	Subscription Subscription `json:"subscription"`
	Onboarding   Onboarding   `json:"onboarding"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
