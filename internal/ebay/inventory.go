package ebay

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// InventoryItem is the Sell Inventory API inventory record
type InventoryItem struct {
	SKU          string        `json:"sku,omitempty"`
	Locale       string        `json:"locale,omitempty"`
	Product      *Product      `json:"product,omitempty"`
	Condition    string        `json:"condition,omitempty"`
	Availability *Availability `json:"availability,omitempty"`
}

// Product holds product details
type Product struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
	Brand       string              `json:"brand,omitempty"`
	MPN         string              `json:"mpn,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
}

// Availability holds inventory availability
type Availability struct {
	ShipToLocationAvailability *ShipToLocation `json:"shipToLocationAvailability,omitempty"`
}

// ShipToLocation holds quantity info
type ShipToLocation struct {
	Quantity int `json:"quantity"`
}

// Offer is a listing offer referencing an inventory item
type Offer struct {
	OfferID             string           `json:"offerId,omitempty"`
	SKU                 string           `json:"sku"`
	MarketplaceID       string           `json:"marketplaceId"`
	Format              string           `json:"format"`
	AvailableQuantity   int              `json:"availableQuantity,omitempty"`
	CategoryID          string           `json:"categoryId"`
	ListingDescription  string           `json:"listingDescription,omitempty"`
	PricingSummary      *PricingSummary  `json:"pricingSummary"`
	ListingPolicies     *ListingPolicies `json:"listingPolicies,omitempty"`
	MerchantLocationKey string           `json:"merchantLocationKey,omitempty"`
}

// PricingSummary holds pricing info
type PricingSummary struct {
	Price *Amount `json:"price"`
}

// Amount holds a monetary value as eBay expects it
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// ListingPolicies holds business policy references
type ListingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	PaymentPolicyID     string `json:"paymentPolicyId,omitempty"`
	ReturnPolicyID      string `json:"returnPolicyId,omitempty"`
}

type offerResponse struct {
	OfferID string `json:"offerId"`
}

type publishResponse struct {
	ListingID string `json:"listingId"`
}

// CreateOrReplaceInventoryItem writes the inventory record for sku
func (c *Client) CreateOrReplaceInventoryItem(ctx context.Context, token, sku string, item InventoryItem) error {
	req, err := c.request(ctx, token)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Content-Language", c.cfg.ContentLanguage).
		SetBody(item).
		Put("/sell/inventory/v1/inventory_item/" + url.PathEscape(sku))
	if err != nil {
		return fmt.Errorf("creating inventory item: %w", err)
	}
	if resp.IsError() {
		return apiError("createOrReplaceInventoryItem", resp)
	}

	c.logger.Debug("inventory item stored", zap.String("sku", sku))
	return nil
}

// CreateOffer creates an unpublished offer and returns its id
func (c *Client) CreateOffer(ctx context.Context, token string, offer Offer) (string, error) {
	if offer.MarketplaceID == "" {
		offer.MarketplaceID = c.cfg.MarketplaceID
	}
	if offer.MerchantLocationKey == "" {
		offer.MerchantLocationKey = c.cfg.MerchantLocationKey
	}
	if offer.ListingPolicies == nil && (c.cfg.FulfillmentPolicyID != "" || c.cfg.PaymentPolicyID != "" || c.cfg.ReturnPolicyID != "") {
		offer.ListingPolicies = &ListingPolicies{
			FulfillmentPolicyID: c.cfg.FulfillmentPolicyID,
			PaymentPolicyID:     c.cfg.PaymentPolicyID,
			ReturnPolicyID:      c.cfg.ReturnPolicyID,
		}
	}

	req, err := c.request(ctx, token)
	if err != nil {
		return "", err
	}

	var out offerResponse
	resp, err := req.
		SetHeader("Content-Language", c.cfg.ContentLanguage).
		SetBody(offer).
		SetResult(&out).
		Post("/sell/inventory/v1/offer")
	if err != nil {
		return "", fmt.Errorf("creating offer: %w", err)
	}
	if resp.IsError() {
		return "", apiError("createOffer", resp)
	}
	if out.OfferID == "" {
		return "", fmt.Errorf("creating offer: response had no offerId")
	}
	return out.OfferID, nil
}

// PublishOffer publishes an offer and returns the eBay listing id
func (c *Client) PublishOffer(ctx context.Context, token, offerID string) (string, error) {
	req, err := c.request(ctx, token)
	if err != nil {
		return "", err
	}

	var out publishResponse
	resp, err := req.
		SetResult(&out).
		Post("/sell/inventory/v1/offer/" + url.PathEscape(offerID) + "/publish")
	if err != nil {
		return "", fmt.Errorf("publishing offer: %w", err)
	}
	if resp.IsError() {
		return "", apiError("publishOffer", resp)
	}
	if out.ListingID == "" {
		return "", fmt.Errorf("publishing offer: response had no listingId")
	}

	c.logger.Info("offer published", zap.String("offer_id", offerID), zap.String("listing_id", out.ListingID))
	return out.ListingID, nil
}
