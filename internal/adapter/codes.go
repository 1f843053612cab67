package adapter

import (
	"strings"

	"github.com/guarzo/listforge/internal/model"
)

// miscCategory is used when a category name has no mapping
var miscCategory = map[model.MarketplaceID]string{
	model.MarketplaceEbay:          "99",
	model.MarketplaceFacebook:      "MISCELLANEOUS",
	model.MarketplaceKleinanzeigen: "272",
}

var categoryIDs = map[model.MarketplaceID]map[string]string{
	model.MarketplaceEbay: {
		CategoryElectronics:  "293",
		CategoryClothing:     "11450",
		CategoryHomeGarden:   "11700",
		CategoryToys:         "220",
		CategorySports:       "888",
		CategoryBooks:        "267",
		CategoryCollectibles: "1",
		CategoryFurniture:    "3197",
		CategoryOther:        "99",
	},
	model.MarketplaceFacebook: {
		CategoryElectronics: "ELECTRONICS",
		CategoryClothing:    "APPAREL",
		CategoryHomeGarden:  "HOME_GOODS",
		CategoryToys:        "TOYS_AND_GAMES",
		CategorySports:      "SPORTING_GOODS",
		CategoryFurniture:   "FURNITURE",
		CategoryOther:       "MISCELLANEOUS",
	},
	model.MarketplaceKleinanzeigen: {
		CategoryElectronics: "161",
		CategoryClothing:    "153",
		CategoryHomeGarden:  "80",
		CategoryToys:        "23",
		CategorySports:      "185",
		CategoryBooks:       "76",
		CategoryFurniture:   "88",
		CategoryOther:       "272",
	},
}

// CategoryID resolves a category name to the marketplace's category id.
// Unmapped names resolve to the miscellaneous category and mapped=false.
func CategoryID(m model.MarketplaceID, category string) (id string, mapped bool) {
	table := categoryIDs[m]
	for name, id := range table {
		if strings.EqualFold(name, strings.TrimSpace(category)) {
			return id, true
		}
	}
	return miscCategory[m], false
}

// Condition grades accepted from the analysis provider, best to worst
const (
	ConditionNew       = "new"
	ConditionLikeNew   = "like_new"
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
	ConditionForParts  = "for_parts"
)

var conditionAliases = map[string]string{
	"new":             ConditionNew,
	"neu":             ConditionNew,
	"brand new":       ConditionNew,
	"like new":        ConditionLikeNew,
	"like_new":        ConditionLikeNew,
	"wie neu":         ConditionLikeNew,
	"mint":            ConditionLikeNew,
	"excellent":       ConditionExcellent,
	"very good":       ConditionExcellent,
	"sehr gut":        ConditionExcellent,
	"good":            ConditionGood,
	"gut":             ConditionGood,
	"used":            ConditionGood,
	"gebraucht":       ConditionGood,
	"fair":            ConditionFair,
	"acceptable":      ConditionFair,
	"akzeptabel":      ConditionFair,
	"poor":            ConditionForParts,
	"defekt":          ConditionForParts,
	"for parts":       ConditionForParts,
	"for_parts":       ConditionForParts,
	"not working":     ConditionForParts,
	"for parts only":  ConditionForParts,
	"parts or repair": ConditionForParts,
}

var conditionCodes = map[model.MarketplaceID]map[string]string{
	model.MarketplaceEbay: {
		ConditionNew:       "NEW",
		ConditionLikeNew:   "LIKE_NEW",
		ConditionExcellent: "USED_EXCELLENT",
		ConditionGood:      "USED_GOOD",
		ConditionFair:      "USED_ACCEPTABLE",
		ConditionForParts:  "FOR_PARTS_OR_NOT_WORKING",
	},
	model.MarketplaceFacebook: {
		ConditionNew:       "new",
		ConditionLikeNew:   "used_like_new",
		ConditionExcellent: "used_like_new",
		ConditionGood:      "used_good",
		ConditionFair:      "used_fair",
		ConditionForParts:  "used_fair",
	},
	model.MarketplaceKleinanzeigen: {
		ConditionNew:       "new",
		ConditionLikeNew:   "like_new",
		ConditionExcellent: "like_new",
		ConditionGood:      "ok",
		ConditionFair:      "alright",
		ConditionForParts:  "defect",
	},
}

// NormalizeCondition maps a free-text condition to one of the condition grades.
// Unknown text is treated as good.
func NormalizeCondition(condition string) string {
	if grade, ok := conditionAliases[strings.ToLower(strings.TrimSpace(condition))]; ok {
		return grade
	}
	return ConditionGood
}

// ConditionCode returns the marketplace's code for a free-text condition
func ConditionCode(m model.MarketplaceID, condition string) string {
	return conditionCodes[m][NormalizeCondition(condition)]
}
