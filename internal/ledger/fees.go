package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/guarzo/listforge/internal/model"
)

// CommissionRate is the operator's flat take of every sale, independent of marketplace
var CommissionRate = decimal.RequireFromString("0.02")

// FeeRule is a marketplace fee of Rate*price + Fixed
type FeeRule struct {
	Rate  decimal.Decimal
	Fixed decimal.Decimal
}

// feeSchedule holds the documented marketplace fee constants
var feeSchedule = map[model.MarketplaceID]FeeRule{
	model.MarketplaceEbay:          {Rate: decimal.RequireFromString("0.10"), Fixed: decimal.RequireFromString("0.35")},
	model.MarketplaceFacebook:      {Rate: decimal.RequireFromString("0.05"), Fixed: decimal.Zero},
	model.MarketplaceKleinanzeigen: {Rate: decimal.Zero, Fixed: decimal.Zero},
}

// PlatformFee returns the marketplace fee for a sale at price, rounded to cents.
// Marketplaces without a rule pay no fee.
func PlatformFee(m model.MarketplaceID, price decimal.Decimal) decimal.Decimal {
	rule, ok := feeSchedule[m]
	if !ok {
		return decimal.Zero
	}
	return price.Mul(rule.Rate).Add(rule.Fixed).Round(2)
}

// Commission returns the operator commission for a sale at price, rounded to cents
func Commission(price decimal.Decimal) decimal.Decimal {
	return price.Mul(CommissionRate).Round(2)
}

// Settlement is the money split of one sale
type Settlement struct {
	Fees       decimal.Decimal
	Commission decimal.Decimal
	// NetAmount is what the seller receives from the marketplace; commission is not deducted
	NetAmount decimal.Decimal
}

// Settle splits a sale price into fees, commission and net amount
func Settle(m model.MarketplaceID, price decimal.Decimal) Settlement {
	fees := PlatformFee(m, price)
	return Settlement{
		Fees:       fees,
		Commission: Commission(price),
		NetAmount:  price.Round(2).Sub(fees),
	}
}
