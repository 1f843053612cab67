package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/guarzo/listforge/internal/model"
)

// ErrInvalidSuggestion marks a reasoning response that cannot be used
var ErrInvalidSuggestion = errors.New("invalid price suggestion")

// Comparable is a recent sale given to the reasoning service as context
type Comparable struct {
	SalePrice   decimal.Decimal `json:"salePrice"`
	DaysToSell  float64         `json:"daysToSell"`
	SoldAt      string          `json:"soldAt"`
	Marketplace string          `json:"marketplace"`
}

// MarketContext is the snapshot part of a reasoning request
type MarketContext struct {
	AveragePrice   decimal.Decimal `json:"averagePrice"`
	MinPrice       decimal.Decimal `json:"minPrice"`
	MaxPrice       decimal.Decimal `json:"maxPrice"`
	ActiveListings int             `json:"activeListings"`
}

// Request is everything the reasoning service sees about one listing
type Request struct {
	Title        string          `json:"title"`
	Marketplace  string          `json:"marketplace"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Currency     string          `json:"currency"`
	DaysListed   float64         `json:"daysListed"`
	Views        *int            `json:"views,omitempty"`
	WatchCount   *int            `json:"watchCount,omitempty"`
	Condition    string          `json:"condition,omitempty"`
	Category     string          `json:"category,omitempty"`
	Brand        string          `json:"brand,omitempty"`
	RecentSales  []Comparable    `json:"recentSales"`
	Market       MarketContext   `json:"market"`
}

// MarketAnalysis is the reasoning service's view of the market
type MarketAnalysis struct {
	AveragePrice decimal.Decimal  `json:"averagePrice"`
	PriceRange   model.PriceRange `json:"priceRange"`
	Strategy     string           `json:"strategy"`
}

// Suggestion is a reasoning service answer
type Suggestion struct {
	SuggestedPrice decimal.Decimal `json:"suggestedPrice"`
	Reasoning      string          `json:"reasoning"`
	Confidence     float64         `json:"confidence"`
	MarketAnalysis MarketAnalysis  `json:"marketAnalysis"`
}

// Validate rejects suggestions that cannot be shown to a seller
func (s *Suggestion) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: no answer", ErrInvalidSuggestion)
	}
	if !s.SuggestedPrice.IsPositive() {
		return fmt.Errorf("%w: price %s", ErrInvalidSuggestion, s.SuggestedPrice)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v", ErrInvalidSuggestion, s.Confidence)
	}
	return nil
}

// Reasoner is the external price reasoning service
type Reasoner interface {
	Suggest(ctx context.Context, req Request) (*Suggestion, error)
}
