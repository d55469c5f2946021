package cart

import (
	"errors"

	"cart-service/internal/models"
)

var (
	// ErrEngineClosed is returned for operations submitted after Close.
	ErrEngineClosed = errors.New("cart engine closed")

	// ErrBackendUnavailable is returned by the simulated backend on an injected failure.
	ErrBackendUnavailable = errors.New("cart backend unavailable")

	// ErrStorageUnavailable is returned by NewEngine when the saved cart cannot be read.
	ErrStorageUnavailable = errors.New("cart storage unavailable")
)

var errorMessages = map[string]string{
	models.ErrKindAddFailed:           "Failed to add item to cart",
	models.ErrKindUpdateFailed:        "Failed to update quantity",
	models.ErrKindRemoveFailed:        "Failed to remove item",
	models.ErrKindInvalidDiscountCode: "Invalid discount code",
	models.ErrKindApplyDiscountFailed: "Failed to apply discount",
	models.ErrKindInvalidQuantity:     "Quantity must be greater than zero",
}

// NewCartError builds the user-facing error for a kind.
func NewCartError(kind string) models.CartError {
	msg, ok := errorMessages[kind]
	if !ok {
		msg = "Cart operation failed"
	}
	return models.CartError{Kind: kind, Message: msg}
}

// HasErrorKind reports whether state carries an error of the given kind.
func HasErrorKind(state models.CartState, kind string) bool {
	for _, e := range state.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
