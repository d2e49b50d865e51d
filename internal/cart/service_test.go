package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerA  = "buyer-a"
	buyerB  = "buyer-b"
	sellerX = "seller-x"
	sellerY = "seller-y"
)

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewService(store, StrictInventoryPolicy{}), store
}

func TestGetOrCreateCartIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c1, err := svc.GetOrCreateCart(ctx, buyerA)
	require.NoError(t, err)
	c2, err := svc.GetOrCreateCart(ctx, buyerA)
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, StatusOpen, c2.Status)
	assert.Empty(t, c2.Items)
}

func TestAddItemMergesIntoOneLine(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Salmon bowl", PriceCents: 300, Quantity: 10})

	c, err := svc.AddItem(ctx, buyerA, "s1", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)

	c, err = svc.AddItem(ctx, buyerA, "s1", 3)
	require.NoError(t, err)
	require.Len(t, c.Items, 1, "re-adding the same stall must merge, not duplicate")
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItemUnknownStall(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), buyerA, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddItemOutOfStock(t *testing.T) {
	svc, store := newTestService(t)
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Pad thai", PriceCents: 900, Quantity: 0})

	_, err := svc.AddItem(context.Background(), buyerA, "s1", 1)
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, ReasonOutOfStock, stockErr.Items[0].Reason)
}

func TestAddItemInsufficientStock(t *testing.T) {
	svc, store := newTestService(t)
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Pad thai", PriceCents: 900, Quantity: 3})

	_, err := svc.AddItem(context.Background(), buyerA, "s1", 4)
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, ReasonInsufficientStock, stockErr.Items[0].Reason)
	assert.Equal(t, 3, stockErr.Items[0].Available)
}

func TestAddItemMergedQuantityValidatedAgainstStock(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Dumplings", PriceCents: 500, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 3)
	require.NoError(t, err)

	// 3 already in the cart, 3 more would exceed the 5 available
	_, err = svc.AddItem(ctx, buyerA, "s1", 3)
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, ReasonInsufficientStock, stockErr.Items[0].Reason)
}

func TestUpdateItemRevalidatesStock(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Gyoza", PriceCents: 450, Quantity: 4})

	c, err := svc.AddItem(ctx, buyerA, "s1", 2)
	require.NoError(t, err)
	itemID := c.Items[0].ID

	c, err = svc.UpdateItem(ctx, buyerA, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[0].Quantity)

	_, err = svc.UpdateItem(ctx, buyerA, itemID, 5)
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
}

func TestUpdateItemNotInCart(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateItem(context.Background(), buyerA, "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveItem(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Bento", PriceCents: 1200, Quantity: 5})

	c, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)

	c, err = svc.RemoveItem(ctx, buyerA, c.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	_, err = svc.RemoveItem(ctx, buyerA, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckoutHappyPath(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Salmon bowl", PriceCents: 300, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 5)
	require.NoError(t, err)

	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	assert.Equal(t, 1500, o.TotalCents)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Salmon bowl", o.Items[0].ProductName)
	assert.Equal(t, 300, o.Items[0].PriceCents)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, ItemStatusNew, o.Items[0].Status)
	require.NotNil(t, o.Items[0].StallID)
	assert.Equal(t, "s1", *o.Items[0].StallID)

	assert.Equal(t, 0, store.stallQty("s1"), "stock decremented by the purchased quantity")
}

func TestCheckoutMultipleLinesTotals(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 10})
	store.addStall(StallInfo{ID: "s2", OwnerID: sellerY, Product: "Bread", PriceCents: 100, Quantity: 3})

	_, err := svc.AddItem(ctx, buyerA, "s1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyerA, "s2", 3)
	require.NoError(t, err)

	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	assert.Equal(t, 2*250+3*100, o.TotalCents)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, 8, store.stallQty("s1"))
	assert.Equal(t, 0, store.stallQty("s2"))
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Checkout(context.Background(), buyerA)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutAllOrNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 10})
	store.addStall(StallInfo{ID: "s2", OwnerID: sellerY, Product: "Bread", PriceCents: 100, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyerA, "s2", 5)
	require.NoError(t, err)

	// another buyer drains s2 before checkout
	_, err = svc.AddItem(ctx, buyerB, "s2", 4)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, buyerB)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, buyerA)
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, "s2", stockErr.Items[0].StallID)
	assert.Equal(t, ReasonInsufficientStock, stockErr.Items[0].Reason)
	assert.Equal(t, 1, stockErr.Items[0].Available)

	// the valid line must not have been committed either
	assert.Equal(t, 10, store.stallQty("s1"), "rejected checkout must not touch any stock")
	orders, err := svc.ListOrders(ctx, buyerA)
	require.NoError(t, err)
	assert.Empty(t, orders, "rejected checkout must not create an order")
}

func TestCheckoutAtMostOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Bento", PriceCents: 1200, Quantity: 5})

	c, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)
	checkedOutCartID := c.ID

	_, err = svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	// a second transaction against the now checked-out cart is refused at
	// the cart lock, not silently re-run
	err = store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.LockCart(checkedOutCartID)
		return err
	})
	assert.ErrorIs(t, err, ErrCartState)
}

func TestCheckoutSnapshotSurvivesStallDeletion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Curry", PriceCents: 800, Quantity: 2})

	_, err := svc.AddItem(ctx, buyerA, "s1", 2)
	require.NoError(t, err)
	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	// stall goes away; snapshot fields stay authoritative
	delete(store.stalls, "s1")

	got, err := svc.GetOrder(ctx, buyerA, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curry", got.Items[0].ProductName)
	assert.Equal(t, 800, got.Items[0].PriceCents)

	// no owner left to act on the line
	_, err = svc.SetItemStatus(ctx, got.Items[0].ID, ItemStatusAccepted, sellerX)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetOrderOtherBuyerHidden(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Bento", PriceCents: 1200, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)
	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, buyerB, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetItemStatus(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)
	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)
	lineID := o.Items[0].ID

	it, err := svc.SetItemStatus(ctx, lineID, ItemStatusAccepted, sellerX)
	require.NoError(t, err)
	assert.Equal(t, ItemStatusAccepted, it.Status)

	// re-transition is allowed
	it, err = svc.SetItemStatus(ctx, lineID, ItemStatusDeclined, sellerX)
	require.NoError(t, err)
	assert.Equal(t, ItemStatusDeclined, it.Status)
}

func TestSetItemStatusForbiddenForNonOwner(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)
	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	_, err = svc.SetItemStatus(ctx, o.Items[0].ID, ItemStatusAccepted, sellerY)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetItemStatusValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetItemStatus(ctx, "whatever", ItemStatusNew, sellerX)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetItemStatus(ctx, "whatever", ItemStatus("shipped"), sellerX)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetItemStatus(ctx, "missing", ItemStatusAccepted, sellerX)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSellerItems(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 5})
	store.addStall(StallInfo{ID: "s2", OwnerID: sellerY, Product: "Bread", PriceCents: 100, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyerA, "s2", 2)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, buyerA)
	require.NoError(t, err)

	items, err := svc.ListSellerItems(ctx, sellerX)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Soup", items[0].ProductName)
}

func TestDeferredPolicySkipsStockChecks(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, DeferredAcceptancePolicy{})
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 1})

	// cart was filled while stock allowed it, stock then drained
	_, err := svc.AddItem(ctx, buyerA, "s1", 1)
	require.NoError(t, err)
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 0})

	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err, "deferred checkout must not validate stock")
	assert.Equal(t, 250, o.TotalCents)
	assert.Equal(t, ItemStatusNew, o.Items[0].Status)
	assert.Equal(t, 0, store.stallQty("s1"), "deferred checkout must not decrement")
}

func TestEventsEmittedAfterCommit(t *testing.T) {
	svc, store := newTestService(t)
	sink := &recordingSink{}
	svc.Events = sink
	ctx := context.Background()
	store.addStall(StallInfo{ID: "s1", OwnerID: sellerX, Product: "Soup", PriceCents: 250, Quantity: 5})

	_, err := svc.AddItem(ctx, buyerA, "s1", 2)
	require.NoError(t, err)
	o, err := svc.Checkout(ctx, buyerA)
	require.NoError(t, err)
	require.Len(t, sink.placed, 1)
	assert.Equal(t, o.ID, sink.placed[0].ID)

	_, err = svc.SetItemStatus(ctx, o.Items[0].ID, ItemStatusAccepted, sellerX)
	require.NoError(t, err)
	require.Len(t, sink.lines, 1)
	assert.Equal(t, ItemStatusAccepted, sink.lines[0].Status)

	// a rejected checkout emits nothing
	_, err = svc.Checkout(ctx, buyerA)
	require.True(t, errors.Is(err, ErrEmptyCart))
	assert.Len(t, sink.placed, 1)
}

type recordingSink struct {
	placed []Order
	lines  []OrderItem
}

func (r *recordingSink) OrderPlaced(ctx context.Context, o Order) { r.placed = append(r.placed, o) }
func (r *recordingSink) LineStatusChanged(ctx context.Context, it OrderItem, sellerID string) {
	r.lines = append(r.lines, it)
}
