package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Persisted carts and API responses carry prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a product in the catalog
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Image       string          `db:"image" json:"image"`
	Category    string          `db:"category" json:"category"`
	Description string          `db:"description" json:"description"`
}

// CartLineItem is one product entry in the cart with an aggregated quantity
type CartLineItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image"`
}

// LineTotal returns unit price times quantity
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartTotals is derived from items and discount, never mutated directly
type CartTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// DiscountState holds the applied discount code and its flat amount
type DiscountState struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// CartError kinds
const (
	ErrKindAddFailed           = "ADD_FAILED"
	ErrKindUpdateFailed        = "UPDATE_FAILED"
	ErrKindRemoveFailed        = "REMOVE_FAILED"
	ErrKindInvalidDiscountCode = "INVALID_DISCOUNT_CODE"
	ErrKindApplyDiscountFailed = "APPLY_DISCOUNT_FAILED"
	ErrKindInvalidQuantity     = "INVALID_QUANTITY"
)

// CartError is a non-fatal error surfaced through CartState.Errors
type CartError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e CartError) Error() string {
	return e.Message
}

// CartState is the full state of one session's cart
type CartState struct {
	Items     []CartLineItem `json:"items"`
	Discount  DiscountState  `json:"discount"`
	Totals    CartTotals     `json:"totals"`
	IsLoading bool           `json:"is_loading"`
	Errors    []CartError    `json:"errors"`
}

// Clone returns a deep copy of the state
func (s CartState) Clone() CartState {
	out := s
	out.Items = make([]CartLineItem, len(s.Items))
	copy(out.Items, s.Items)
	out.Errors = make([]CartError, len(s.Errors))
	copy(out.Errors, s.Errors)
	return out
}

// FindItem returns the index of the line item with the given id, or -1
func (s CartState) FindItem(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// ItemCount returns the total quantity across all line items
func (s CartState) ItemCount() int {
	var count int
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// PersistedCart is the stored layout of a cart: items and discount only
type PersistedCart struct {
	Items          []CartLineItem  `json:"items"`
	DiscountCode   string          `json:"discountCode"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// Persisted extracts the storable part of the state
func (s CartState) Persisted() *PersistedCart {
	items := make([]CartLineItem, len(s.Items))
	copy(items, s.Items)
	return &PersistedCart{
		Items:          items,
		DiscountCode:   s.Discount.Code,
		DiscountAmount: s.Discount.Amount,
	}
}
