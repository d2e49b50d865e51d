package cart

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrCartState     = errors.New("cart is not open")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrInvalidStatus = errors.New("invalid line status")

	// ErrBusy means a lock could not be acquired within the transaction's
	// lock timeout. Safe to retry with backoff.
	ErrBusy = errors.New("inventory busy, retry")
)

const (
	ReasonInvalidQuantity   = "invalid_quantity"
	ReasonNotFound          = "not_found"
	ReasonOutOfStock        = "out_of_stock"
	ReasonInsufficientStock = "insufficient_stock"
)

// StockRejection names one cart line that failed checkout validation.
// Available is meaningful only for insufficient_stock.
type StockRejection struct {
	StallID   string `json:"stall_id"`
	Reason    string `json:"reason"`
	Available int    `json:"available,omitempty"`
}

// StockError carries the itemized validation result of a rejected checkout.
// The transaction it came from was rolled back in full.
type StockError struct {
	Items []StockRejection
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d item(s)", len(e.Items))
}
