package cart

import (
	"cart-service/internal/models"

	"github.com/shopspring/decimal"
)

// Pricing holds the fixed rates used to derive cart totals.
type Pricing struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// DefaultPricing is 8% tax and a 9.99 flat shipping fee.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:     decimal.RequireFromString("0.08"),
		ShippingFee: decimal.RequireFromString("9.99"),
	}
}

// ComputeTotals derives totals from the items and the discount amount.
// It is the only place totals are produced; the result never goes negative.
func ComputeTotals(items []models.CartLineItem, discountAmount decimal.Decimal, p Pricing) models.CartTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	tax := subtotal.Mul(p.TaxRate)

	shipping := decimal.Zero
	if len(items) > 0 {
		shipping = p.ShippingFee
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return models.CartTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
	}
}
