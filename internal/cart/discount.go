package cart

import (
	"strings"

	"cart-service/internal/models"

	"github.com/shopspring/decimal"
)

// DiscountTable maps an uppercase discount code to a flat amount off the total.
type DiscountTable map[string]decimal.Decimal

// DefaultDiscounts returns the compiled-in discount codes.
func DefaultDiscounts() DiscountTable {
	return DiscountTable{
		"SAVE10":    decimal.NewFromInt(10),
		"WELCOME20": decimal.NewFromInt(20),
		"STUDENT15": decimal.NewFromInt(15),
	}
}

// NormalizeCode uppercases a code the way lookups expect it. Surrounding
// whitespace is kept, so " SAVE10" does not match.
func NormalizeCode(code string) string {
	return strings.ToUpper(code)
}

// Lookup resolves a code case-insensitively.
func (t DiscountTable) Lookup(code string) (models.DiscountState, bool) {
	normalized := NormalizeCode(code)
	amount, ok := t[normalized]
	if !ok || normalized == "" {
		return models.DiscountState{}, false
	}
	return models.DiscountState{Code: normalized, Amount: amount}, true
}
