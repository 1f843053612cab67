package adapter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/guarzo/listforge/internal/model"
)

const ellipsis = "..."

// Adapt returns a copy of the analysis that satisfies the marketplace's constraints.
// The input is never modified.
func Adapt(analysis model.ProductAnalysis, m model.MarketplaceID) (model.ProductAnalysis, error) {
	req, ok := RequirementsFor(m)
	if !ok {
		return model.ProductAnalysis{}, model.NewError(model.ErrUnsupportedMarketplace, m, "", nil)
	}

	adapted := analysis.Clone()
	adapted.Title = Truncate(adapted.Title, req.TitleMaxLength)
	adapted.Description = Truncate(adapted.Description, req.DescriptionMaxLength)

	price := adapted.Price
	if price.IsZero() {
		price, _ = ParsePrice(adapted.PriceEstimate)
	}
	if req.PriceFormat == model.PriceFormatInteger {
		price = price.Round(0)
	}
	adapted.Price = price
	adapted.PriceEstimate = FormatPrice(price, req.PriceFormat)

	// suffixes are appended even when already present
	adapted.Keywords = append(adapted.Keywords, keywordSuffixes[m]...)

	return adapted, nil
}

// Truncate shortens s to max runes, replacing the tail with "..."
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-len(ellipsis)]) + ellipsis
}

// FormatPrice renders a price in the marketplace's price format
func FormatPrice(price decimal.Decimal, format model.PriceFormat) string {
	if format == model.PriceFormatInteger {
		return price.Round(0).StringFixed(0)
	}
	return price.StringFixed(2)
}

var pricePattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// ParsePrice extracts a numeric price from an estimate such as "45 €", "45,50" or "40-60 EUR".
// A range resolves to its midpoint. ok is false when no number is found.
func ParsePrice(estimate string) (price decimal.Decimal, ok bool) {
	matches := pricePattern.FindAllString(estimate, 2)
	if len(matches) == 0 {
		return decimal.Zero, false
	}

	var values []decimal.Decimal
	for _, m := range matches {
		v, err := decimal.NewFromString(normalizeNumber(m))
		if err != nil {
			continue
		}
		values = append(values, v)
	}

	switch len(values) {
	case 0:
		return decimal.Zero, false
	case 1:
		return values[0], true
	default:
		return values[0].Add(values[1]).Div(decimal.NewFromInt(2)), true
	}
}

// normalizeNumber turns "1.234,50", "1,234.50" and "45,5" into "1234.50" style strings
func normalizeNumber(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	var decimalSep string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			decimalSep = ","
		} else {
			decimalSep = "."
		}
	case lastComma >= 0:
		// a single comma followed by exactly three digits is a thousands separator
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			decimalSep = ","
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 && len(s)-lastDot-1 != 3 {
			decimalSep = "."
		}
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case decimalSep != "" && string(r) == decimalSep && i == strings.LastIndex(s, decimalSep):
			b.WriteByte('.')
		}
	}
	return b.String()
}
