package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/adapter"
	"github.com/guarzo/listforge/internal/auth"
	"github.com/guarzo/listforge/internal/ebay"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
)

// EbayAPI is the part of the eBay client the marketplace needs
type EbayAPI interface {
	CreateOrReplaceInventoryItem(ctx context.Context, token, sku string, item ebay.InventoryItem) error
	CreateOffer(ctx context.Context, token string, offer ebay.Offer) (string, error)
	PublishOffer(ctx context.Context, token, offerID string) (string, error)
	GetItem(ctx context.Context, token, itemID string) (*ebay.ItemStatus, error)
	ListingURL(listingID string) string
}

var _ EbayAPI = (*ebay.Client)(nil)

// Ebay publishes through the inventory item, offer, publish sequence
type Ebay struct {
	api      EbayAPI
	provider auth.ProviderConfig
	req      model.MarketplaceRequirements
	newSKU   func() string
	logger   *zap.Logger
}

// NewEbay creates the eBay marketplace; currency overrides the default when set
func NewEbay(api EbayAPI, provider auth.ProviderConfig, currency string, logger *zap.Logger) *Ebay {
	req, _ := adapter.RequirementsFor(model.MarketplaceEbay)
	if currency != "" {
		req.Currency = currency
	}
	return &Ebay{
		api:      api,
		provider: provider,
		req:      req,
		newSKU:   func() string { return "LF-" + strings.ToUpper(uuid.NewString()) },
		logger:   logging.OrNop(logger),
	}
}

func (e *Ebay) ID() model.MarketplaceID { return model.MarketplaceEbay }

func (e *Ebay) Requirements() model.MarketplaceRequirements { return e.req }

func (e *Ebay) OAuth() (auth.ProviderConfig, bool) { return e.provider, true }

func (e *Ebay) CanPublish() bool { return true }

func (e *Ebay) Adapt(a model.ProductAnalysis) (model.ProductAnalysis, error) {
	return adapter.Adapt(a, model.MarketplaceEbay)
}

// Publish runs the three-call sequence. The inventory record is keyed by a fresh SKU.
func (e *Ebay) Publish(ctx context.Context, token string, d Draft) (*Publication, error) {
	a := d.Analysis
	sku := e.newSKU()

	item := ebay.InventoryItem{
		SKU:       sku,
		Locale:    "de_DE",
		Condition: adapter.ConditionCode(model.MarketplaceEbay, a.Condition),
		Product: &ebay.Product{
			Title:       a.Title,
			Description: a.Description,
			ImageURLs:   capImages(d.Images, e.req.MaxImages),
			Brand:       a.Brand,
			MPN:         a.Model,
			Aspects:     aspects(a),
		},
		Availability: &ebay.Availability{
			ShipToLocationAvailability: &ebay.ShipToLocation{Quantity: 1},
		},
	}
	if err := e.api.CreateOrReplaceInventoryItem(ctx, token, sku, item); err != nil {
		return nil, err
	}

	categoryID, mapped := adapter.CategoryID(model.MarketplaceEbay, a.Category)
	if !mapped {
		e.logger.Debug("category not mapped, using miscellaneous",
			zap.String("category", a.Category), zap.String("category_id", categoryID))
	}

	offerID, err := e.api.CreateOffer(ctx, token, ebay.Offer{
		SKU:                sku,
		Format:             "FIXED_PRICE",
		AvailableQuantity:  1,
		CategoryID:         categoryID,
		ListingDescription: a.Description,
		PricingSummary: &ebay.PricingSummary{
			Price: &ebay.Amount{
				Value:    adapter.FormatPrice(a.Price, e.req.PriceFormat),
				Currency: e.req.Currency,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	listingID, err := e.api.PublishOffer(ctx, token, offerID)
	if err != nil {
		return nil, err
	}

	return &Publication{ListingID: listingID, URL: e.api.ListingURL(listingID)}, nil
}

// CheckStatus maps the Trading API item state; a removed item is expired
func (e *Ebay) CheckStatus(ctx context.Context, token, listingID string) (*Status, error) {
	item, err := e.api.GetItem(ctx, token, listingID)
	if errors.Is(err, ebay.ErrItemNotFound) {
		return &Status{State: model.PublishStatusExpired}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking ebay item %s: %w", listingID, err)
	}

	st := &Status{
		URL:        item.URL,
		Views:      intPtr(item.ViewCount),
		WatchCount: intPtr(item.WatchCount),
	}
	if st.URL == "" {
		st.URL = e.api.ListingURL(listingID)
	}

	switch {
	case item.QuantitySold > 0:
		st.State = model.PublishStatusSold
	case item.ListingStatus == ebay.ListingStatusActive:
		st.State = model.PublishStatusPublished
	case item.ListingStatus == ebay.ListingStatusCompleted:
		st.State = model.PublishStatusExpired
	default:
		st.State = model.PublishStatusEnded
	}
	return st, nil
}

func aspects(a model.ProductAnalysis) map[string][]string {
	out := make(map[string][]string)
	if a.Brand != "" {
		out["Marke"] = []string{a.Brand}
	}
	if a.Model != "" {
		out["Modell"] = []string{a.Model}
	}
	if len(a.Features) > 0 {
		out["Besonderheiten"] = append([]string(nil), a.Features...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
