package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxStock is the highest stock value the marketplace accepts
const MaxStock = 9999

// StockPolicy holds the offer settings that influence exported stock
type StockPolicy struct {
	VirtualAmount         int
	ConditionalBackorders bool
}

// ComputeStock returns the stock to export for a product, clamped to [0, MaxStock].
//
//	no stock management: virtual amount when in stock, else 0
//	managed, no backorders: quantity
//	managed, backorders: quantity when conditional and quantity > 0, else virtual amount
func ComputeStock(p *Product, policy StockPolicy) int {
	if !p.ManageStock {
		if p.InStock() {
			return clampStock(policy.VirtualAmount)
		}
		return 0
	}
	if !p.BackordersAllowed() {
		return clampStock(p.StockQuantity)
	}
	if policy.ConditionalBackorders && p.StockQuantity > 0 {
		return clampStock(p.StockQuantity)
	}
	return clampStock(policy.VirtualAmount)
}

func clampStock(v int) int {
	if v > MaxStock {
		return MaxStock
	}
	if v < 0 {
		return 0
	}
	return v
}

// ExportPrice returns the current price with special price export and the
// regular price otherwise
func ExportPrice(p *Product, specialPrice bool) decimal.Decimal {
	if specialPrice {
		return p.Price
	}
	return p.RegularPrice
}

// ExportPriceOriginal returns the regular price when special price export is
// on and the product is discounted, nil otherwise
func ExportPriceOriginal(p *Product, specialPrice bool) *decimal.Decimal {
	if specialPrice && p.RegularPrice.GreaterThan(p.Price) {
		v := p.RegularPrice
		return &v
	}
	return nil
}

// FormatAmount renders an amount with two decimals, a dot separator and no
// thousands separator
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ---------------------------------------------------------------------------
// EAN
// ---------------------------------------------------------------------------

// NormalizeEAN trims the raw value and pads a 12 digit value to 13 digits
// when the leading zero fix is enabled
func NormalizeEAN(raw string, leadingZero bool) string {
	ean := strings.TrimSpace(raw)
	if leadingZero && len(ean) == 12 {
		ean = "0" + ean
	}
	return ean
}

// IsValidEAN13 validates length, digits and the EAN-13 check digit
func IsValidEAN13(ean string) bool {
	if len(ean) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := ean[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	last := ean[12]
	if last < '0' || last > '9' {
		return false
	}
	check := (10 - sum%10) % 10
	return int(last-'0') == check
}
