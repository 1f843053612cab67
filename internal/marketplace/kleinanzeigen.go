package marketplace

import (
	"context"

	"github.com/guarzo/listforge/internal/adapter"
	"github.com/guarzo/listforge/internal/auth"
	"github.com/guarzo/listforge/internal/model"
)

const kleinanzeigenNoAPI = "Kleinanzeigen has no listing API; prepare the listing and post it manually"

// Kleinanzeigen is preparation-only: listings are adapted but never published programmatically
type Kleinanzeigen struct {
	req model.MarketplaceRequirements
}

// NewKleinanzeigen creates the Kleinanzeigen implementation
func NewKleinanzeigen(currency string) *Kleinanzeigen {
	req, _ := adapter.RequirementsFor(model.MarketplaceKleinanzeigen)
	if currency != "" {
		req.Currency = currency
	}
	return &Kleinanzeigen{req: req}
}

func (k *Kleinanzeigen) ID() model.MarketplaceID { return model.MarketplaceKleinanzeigen }

func (k *Kleinanzeigen) Requirements() model.MarketplaceRequirements { return k.req }

func (k *Kleinanzeigen) OAuth() (auth.ProviderConfig, bool) { return auth.ProviderConfig{}, false }

func (k *Kleinanzeigen) CanPublish() bool { return false }

func (k *Kleinanzeigen) Adapt(a model.ProductAnalysis) (model.ProductAnalysis, error) {
	return adapter.Adapt(a, model.MarketplaceKleinanzeigen)
}

func (k *Kleinanzeigen) Publish(context.Context, string, Draft) (*Publication, error) {
	return nil, model.NewError(model.ErrNoProgrammaticPublish, k.ID(), kleinanzeigenNoAPI, nil)
}

func (k *Kleinanzeigen) CheckStatus(context.Context, string, string) (*Status, error) {
	return nil, model.NewError(model.ErrNoProgrammaticPublish, k.ID(), kleinanzeigenNoAPI, nil)
}
