package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/guarzo/listforge/internal/adapter"
	"github.com/guarzo/listforge/internal/auth"
	"github.com/guarzo/listforge/internal/facebook"
	"github.com/guarzo/listforge/internal/model"
)

// FacebookAPI is the part of the Graph client the marketplace needs
type FacebookAPI interface {
	CreateListing(ctx context.Context, token string, in facebook.ListingInput) (string, error)
	GetListing(ctx context.Context, token, id string) (*facebook.ListingState, error)
	ListingURL(id string) string
}

var _ FacebookAPI = (*facebook.Client)(nil)

// Facebook publishes page-scoped Marketplace listings
type Facebook struct {
	api      FacebookAPI
	provider auth.ProviderConfig
	req      model.MarketplaceRequirements
}

// NewFacebook creates the Facebook Marketplace implementation
func NewFacebook(api FacebookAPI, provider auth.ProviderConfig, currency string) *Facebook {
	req, _ := adapter.RequirementsFor(model.MarketplaceFacebook)
	if currency != "" {
		req.Currency = currency
	}
	return &Facebook{api: api, provider: provider, req: req}
}

func (f *Facebook) ID() model.MarketplaceID { return model.MarketplaceFacebook }

func (f *Facebook) Requirements() model.MarketplaceRequirements { return f.req }

func (f *Facebook) OAuth() (auth.ProviderConfig, bool) { return f.provider, true }

func (f *Facebook) CanPublish() bool { return true }

func (f *Facebook) Adapt(a model.ProductAnalysis) (model.ProductAnalysis, error) {
	return adapter.Adapt(a, model.MarketplaceFacebook)
}

func (f *Facebook) Publish(ctx context.Context, token string, d Draft) (*Publication, error) {
	a := d.Analysis
	category, _ := adapter.CategoryID(model.MarketplaceFacebook, a.Category)

	id, err := f.api.CreateListing(ctx, token, facebook.ListingInput{
		Name:        a.Title,
		Description: a.Description,
		Price:       adapter.FormatPrice(a.Price, f.req.PriceFormat),
		Currency:    f.req.Currency,
		Category:    category,
		Condition:   adapter.ConditionCode(model.MarketplaceFacebook, a.Condition),
		ImageURLs:   capImages(d.Images, f.req.MaxImages),
		Tags:        a.Keywords,
		Brand:       a.Brand,
	})
	if err != nil {
		return nil, err
	}
	return &Publication{ListingID: id, URL: f.api.ListingURL(id)}, nil
}

func (f *Facebook) CheckStatus(ctx context.Context, token, listingID string) (*Status, error) {
	l, err := f.api.GetListing(ctx, token, listingID)
	if errors.Is(err, facebook.ErrListingNotFound) {
		return &Status{State: model.PublishStatusExpired}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking facebook listing %s: %w", listingID, err)
	}

	st := &Status{
		URL:        l.Permalink,
		Views:      intPtr(l.ViewCount),
		WatchCount: intPtr(l.SavedCount),
	}
	if st.URL == "" {
		st.URL = f.api.ListingURL(listingID)
	}

	switch l.Status {
	case facebook.StatusSold:
		st.State = model.PublishStatusSold
	case facebook.StatusExpired:
		st.State = model.PublishStatusExpired
	case facebook.StatusDeleted:
		st.State = model.PublishStatusEnded
	default:
		st.State = model.PublishStatusPublished
	}
	return st, nil
}
