// Package marketplace holds one implementation per sale channel behind a common capability set.
package marketplace

import (
	"context"

	"github.com/guarzo/listforge/internal/auth"
	"github.com/guarzo/listforge/internal/model"
)

// Draft is an adapted analysis ready to be published
type Draft struct {
	Analysis model.ProductAnalysis
	Images   []string
}

// Publication is the marketplace's answer to a successful publish
type Publication struct {
	ListingID string
	URL       string
}

// Status is the marketplace's current view of a listing
type Status struct {
	State      model.PublishStatus
	URL        string
	Views      *int
	WatchCount *int
}

// Marketplace is the capability set of one sale channel
type Marketplace interface {
	ID() model.MarketplaceID
	Requirements() model.MarketplaceRequirements

	// OAuth returns the provider configuration; ok is false when the marketplace has no OAuth flow
	OAuth() (p auth.ProviderConfig, ok bool)

	// CanPublish is false for preparation-only marketplaces
	CanPublish() bool

	Adapt(a model.ProductAnalysis) (model.ProductAnalysis, error)
	Publish(ctx context.Context, token string, d Draft) (*Publication, error)
	CheckStatus(ctx context.Context, token, listingID string) (*Status, error)
}

// Registry selects a marketplace implementation by id
type Registry struct {
	byID  map[model.MarketplaceID]Marketplace
	order []model.MarketplaceID
}

// NewRegistry creates a registry; later registrations replace earlier ones with the same id
func NewRegistry(ms ...Marketplace) *Registry {
	r := &Registry{byID: make(map[model.MarketplaceID]Marketplace)}
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

// Register adds a marketplace
func (r *Registry) Register(m Marketplace) {
	if _, exists := r.byID[m.ID()]; !exists {
		r.order = append(r.order, m.ID())
	}
	r.byID[m.ID()] = m
}

// Get returns the marketplace registered for id
func (r *Registry) Get(id model.MarketplaceID) (Marketplace, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// IDs returns the registered marketplace ids in registration order
func (r *Registry) IDs() []model.MarketplaceID {
	return append([]model.MarketplaceID(nil), r.order...)
}

// Providers returns the OAuth provider table for the token store
func (r *Registry) Providers() map[model.MarketplaceID]auth.ProviderConfig {
	providers := make(map[model.MarketplaceID]auth.ProviderConfig)
	for _, id := range r.order {
		if p, ok := r.byID[id].OAuth(); ok {
			providers[id] = p
		}
	}
	return providers
}

func capImages(images []string, max int) []string {
	if max > 0 && len(images) > max {
		images = images[:max]
	}
	return append([]string(nil), images...)
}

func intPtr(v int) *int {
	return &v
}
