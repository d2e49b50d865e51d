package cart

import "context"

// Store is the persistence surface the cart service runs on. The pgx
// implementation lives in pgstore.go; tests use an in-memory one.
type Store interface {
	// GetOrCreateOpenCart returns the buyer's single open cart with its
	// items, creating an empty one if absent.
	GetOrCreateOpenCart(ctx context.Context, buyerID string) (Cart, error)

	// GetStallInfo returns ErrNotFound when the stall does not exist.
	GetStallInfo(ctx context.Context, stallID string) (StallInfo, error)

	FindItem(ctx context.Context, cartID, itemID string) (Item, error)
	FindItemByStall(ctx context.Context, cartID, stallID string) (Item, bool, error)
	PutItem(ctx context.Context, cartID, stallID string, qty int) error
	SetItemQuantity(ctx context.Context, itemID string, qty int) error
	DeleteItem(ctx context.Context, itemID string) error

	// WithTx runs fn inside one storage transaction; any error rolls the
	// whole transaction back.
	WithTx(ctx context.Context, fn func(Tx) error) error

	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, buyerID string) ([]Order, error)
	ListSellerItems(ctx context.Context, sellerID string) ([]OrderItem, error)

	// GetOrderItem returns the line and the owner of its referenced stall.
	// The owner is empty when the stall has been deleted.
	GetOrderItem(ctx context.Context, itemID string) (OrderItem, string, error)
	SetOrderItemStatus(ctx context.Context, itemID string, status ItemStatus) (OrderItem, error)
}

// Tx is the write surface of one checkout transaction.
type Tx interface {
	// LockCart takes the cart row lock and returns the cart with items.
	// ErrCartState when the cart is not open.
	LockCart(cartID string) (Cart, error)

	// LockStalls acquires exclusive row locks in ascending id order, the
	// deadlock-avoidance order shared by every checkout. ErrBusy when the
	// lock wait exceeds the configured timeout.
	LockStalls(ids []string) ([]StallInfo, error)

	// GetStalls reads without locking (deferred-acceptance path).
	GetStalls(ids []string) ([]StallInfo, error)

	DecrementStall(stallID string, by int) error
	InsertOrder(buyerID string) (string, error)
	InsertOrderItem(it OrderItem) error
	SetOrderTotal(orderID string, totalCents int) error

	// CloseCart flips open -> checked_out; ErrCartState if it already left
	// open, which makes checkout at-most-once.
	CloseCart(cartID string) error
}
