// Package adapter makes a product analysis satisfy one marketplace's listing rules.
package adapter

import (
	"github.com/guarzo/listforge/internal/model"
)

// Category names shared by the analysis provider and all marketplaces
const (
	CategoryElectronics  = "Electronics"
	CategoryClothing     = "Clothing"
	CategoryHomeGarden   = "Home & Garden"
	CategoryToys         = "Toys"
	CategorySports       = "Sports"
	CategoryBooks        = "Books"
	CategoryCollectibles = "Collectibles"
	CategoryFurniture    = "Furniture"
	CategoryOther        = "Other"
)

var requirements = map[model.MarketplaceID]model.MarketplaceRequirements{
	model.MarketplaceEbay: {
		Marketplace:          model.MarketplaceEbay,
		TitleMaxLength:       80,
		DescriptionMaxLength: 4000,
		MaxImages:            12,
		AllowedCategories: []string{
			CategoryElectronics, CategoryClothing, CategoryHomeGarden, CategoryToys,
			CategorySports, CategoryBooks, CategoryCollectibles, CategoryFurniture, CategoryOther,
		},
		PriceFormat: model.PriceFormatDecimal,
		Currency:    "EUR",
	},
	model.MarketplaceFacebook: {
		Marketplace:          model.MarketplaceFacebook,
		TitleMaxLength:       100,
		DescriptionMaxLength: 5000,
		MaxImages:            10,
		AllowedCategories: []string{
			CategoryElectronics, CategoryClothing, CategoryHomeGarden, CategoryToys,
			CategorySports, CategoryFurniture, CategoryOther,
		},
		PriceFormat: model.PriceFormatDecimal,
		Currency:    "EUR",
	},
	model.MarketplaceKleinanzeigen: {
		Marketplace:          model.MarketplaceKleinanzeigen,
		TitleMaxLength:       65,
		DescriptionMaxLength: 4000,
		MaxImages:            20,
		AllowedCategories: []string{
			CategoryElectronics, CategoryClothing, CategoryHomeGarden, CategoryToys,
			CategorySports, CategoryBooks, CategoryFurniture, CategoryOther,
		},
		PriceFormat: model.PriceFormatInteger,
		Currency:    "EUR",
	},
}

// RequirementsFor returns the listing constraints of a marketplace.
// ok is false only for unsupported marketplaces.
func RequirementsFor(m model.MarketplaceID) (req model.MarketplaceRequirements, ok bool) {
	req, ok = requirements[m]
	if !ok {
		return model.MarketplaceRequirements{}, false
	}
	req.AllowedCategories = append([]string(nil), req.AllowedCategories...)
	return req, true
}

// IsAllowedCategory reports whether the marketplace accepts the category name as-is
func IsAllowedCategory(m model.MarketplaceID, category string) bool {
	req, ok := requirements[m]
	if !ok {
		return false
	}
	for _, c := range req.AllowedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// keywordSuffixes are appended to every adapted keyword list
var keywordSuffixes = map[model.MarketplaceID][]string{
	model.MarketplaceEbay:          {"gebraucht", "used"},
	model.MarketplaceFacebook:      {"second-hand", "pre-owned"},
	model.MarketplaceKleinanzeigen: {"gebraucht", "privatverkauf"},
}

// KeywordSuffixes returns the fixed keywords a marketplace adds to every listing
func KeywordSuffixes(m model.MarketplaceID) []string {
	return append([]string(nil), keywordSuffixes[m]...)
}
