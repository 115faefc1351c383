package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a storefront price. Value accepts both JSON numbers and strings.
type Price struct {
	Value          decimal.Decimal `json:"value"`
	CurrencyIso    string          `json:"currencyIso"`
	FormattedValue string          `json:"formattedValue,omitempty"`
}

// IsZero reports whether the price carries no value.
func (p *Price) IsZero() bool {
	return p == nil || p.Value.IsZero()
}

// FormatAmount renders an amount with two fraction digits, the format both
// wallet SDKs expect ("12.5" → "12.50").
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseAmount converts a decimal string to a decimal value.
// Empty or malformed input yields zero, matching how totals are displayed
// before the cart is priced.
// Examples: "99.00" → 99, "1234.5" → 1234.5, "" → 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
