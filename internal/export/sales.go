// Package export writes sale transactions as spreadsheet-safe CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/guarzo/listforge/internal/model"
)

// SalesHeader is the column order of a sales export
var SalesHeader = []string{
	"transaction_id", "listing_id", "marketplace", "sold_at", "days_listed",
	"sale_price", "fees", "commission", "net_amount", "currency",
	"payment_status", "shipping_status",
}

// EscapeCell prefixes values a spreadsheet would evaluate as a formula
func EscapeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// escapeRow escapes every cell of a row in place
func escapeRow(row []string) []string {
	for i, cell := range row {
		row[i] = EscapeCell(cell)
	}
	return row
}

func saleRow(s model.SaleTransaction) []string {
	days := s.SoldAt.Sub(s.ListingCreatedAt).Hours() / 24
	return []string{
		s.ID,
		s.ListingID,
		s.Marketplace.DisplayName(),
		s.SoldAt.UTC().Format(time.RFC3339),
		fmt.Sprintf("%.1f", days),
		s.SalePrice.StringFixed(2),
		s.Fees.StringFixed(2),
		s.Commission.StringFixed(2),
		s.NetAmount.StringFixed(2),
		strings.ToUpper(s.Currency),
		string(s.PaymentStatus),
		string(s.ShippingStatus),
	}
}

// WriteSales writes a header and one row per sale
func WriteSales(w io.Writer, sales []model.SaleTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SalesHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range sales {
		if err := cw.Write(escapeRow(saleRow(s))); err != nil {
			return fmt.Errorf("writing sale %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
