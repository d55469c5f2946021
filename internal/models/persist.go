package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCartNotFound is returned by storage when no cart was persisted for a session.
	ErrCartNotFound = errors.New("cart not found")

	// ErrProductNotFound is returned when a catalog lookup misses.
	ErrProductNotFound = errors.New("product not found")

	// ErrCorruptCart is returned when a persisted cart cannot be decoded.
	ErrCorruptCart = errors.New("corrupt persisted cart")
)

// EncodePersistedCart marshals a cart to its stored JSON layout
func EncodePersistedCart(cart *PersistedCart) ([]byte, error) {
	if cart.Items == nil {
		cart = &PersistedCart{Items: []CartLineItem{}, DiscountCode: cart.DiscountCode, DiscountAmount: cart.DiscountAmount}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	return data, nil
}

// DecodePersistedCart unmarshals a stored cart. Malformed input wraps ErrCorruptCart.
func DecodePersistedCart(data []byte) (*PersistedCart, error) {
	var cart PersistedCart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	if cart.Items == nil {
		cart.Items = []CartLineItem{}
	}
	return &cart, nil
}
