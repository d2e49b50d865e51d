package cart

import (
	"context"

	"github.com/google/uuid"
)

// EventSink receives lifecycle notifications after a successful commit.
// Implemented by the kafka emitter; nil-able so tests run without a broker.
type EventSink interface {
	OrderPlaced(ctx context.Context, o Order)
	LineStatusChanged(ctx context.Context, it OrderItem, sellerID string)
}

type Service struct {
	Store  Store
	Policy Policy
	Events EventSink
}

func NewService(store Store, policy Policy) *Service {
	return &Service{Store: store, Policy: policy}
}

// GetOrCreateCart returns the buyer's open cart, creating one lazily.
func (s *Service) GetOrCreateCart(ctx context.Context, buyerID string) (Cart, error) {
	return s.Store.GetOrCreateOpenCart(ctx, buyerID)
}

// AddItem adds a stall to the open cart. Re-adding merges quantities into
// the existing line; the merged amount is validated against live stock.
func (s *Service) AddItem(ctx context.Context, buyerID, stallID string, qty int) (Cart, error) {
	c, err := s.Store.GetOrCreateOpenCart(ctx, buyerID)
	if err != nil {
		return Cart{}, err
	}
	stall, err := s.Store.GetStallInfo(ctx, stallID)
	if err != nil {
		return Cart{}, err
	}

	existing, found, err := s.Store.FindItemByStall(ctx, c.ID, stallID)
	if err != nil {
		return Cart{}, err
	}
	merged := qty
	if found {
		merged += existing.Quantity
	}
	if err := validateQuantity(stall, merged); err != nil {
		return Cart{}, err
	}
	if err := s.Store.PutItem(ctx, c.ID, stallID, merged); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreateOpenCart(ctx, buyerID)
}

// UpdateItem sets a line's quantity, re-running the stock validation.
func (s *Service) UpdateItem(ctx context.Context, buyerID, itemID string, qty int) (Cart, error) {
	c, err := s.Store.GetOrCreateOpenCart(ctx, buyerID)
	if err != nil {
		return Cart{}, err
	}
	it, err := s.Store.FindItem(ctx, c.ID, itemID)
	if err != nil {
		return Cart{}, err
	}
	stall, err := s.Store.GetStallInfo(ctx, it.StallID)
	if err != nil {
		return Cart{}, err
	}
	if err := validateQuantity(stall, qty); err != nil {
		return Cart{}, err
	}
	if err := s.Store.SetItemQuantity(ctx, itemID, qty); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreateOpenCart(ctx, buyerID)
}

func (s *Service) RemoveItem(ctx context.Context, buyerID, itemID string) (Cart, error) {
	c, err := s.Store.GetOrCreateOpenCart(ctx, buyerID)
	if err != nil {
		return Cart{}, err
	}
	it, err := s.Store.FindItem(ctx, c.ID, itemID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Store.DeleteItem(ctx, it.ID); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreateOpenCart(ctx, buyerID)
}

// Checkout converts the buyer's open cart into an order in one atomic
// transaction: lock cart, plan lines per policy, write order + snapshots,
// decrement stock (strict), close the cart. Any failure rolls back in
// full; no partial commit is ever observable.
func (s *Service) Checkout(ctx context.Context, buyerID string) (Order, error) {
	c, err := s.Store.GetOrCreateOpenCart(ctx, buyerID)
	if err != nil {
		return Order{}, err
	}

	var orderID string
	err = s.Store.WithTx(ctx, func(tx Tx) error {
		locked, err := tx.LockCart(c.ID)
		if err != nil {
			return err
		}
		if len(locked.Items) == 0 {
			return ErrEmptyCart
		}

		plans, err := s.Policy.Plan(tx, locked.Items)
		if err != nil {
			return err
		}

		orderID, err = tx.InsertOrder(buyerID)
		if err != nil {
			return err
		}
		total := 0
		for _, p := range plans {
			if s.Policy.DecrementsStock() {
				if err := tx.DecrementStall(p.StallID, p.Quantity); err != nil {
					return err
				}
			}
			stallID := p.StallID
			if err := tx.InsertOrderItem(OrderItem{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				StallID:     &stallID,
				ProductName: p.Product,
				PriceCents:  p.PriceCents,
				Quantity:    p.Quantity,
				Status:      ItemStatusNew,
			}); err != nil {
				return err
			}
			total += p.Quantity * p.PriceCents
		}
		if err := tx.SetOrderTotal(orderID, total); err != nil {
			return err
		}
		return tx.CloseCart(c.ID)
	})
	if err != nil {
		return Order{}, err
	}

	out, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if s.Events != nil {
		s.Events.OrderPlaced(ctx, out)
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, buyerID, orderID string) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.BuyerID != buyerID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, buyerID string) ([]Order, error) {
	return s.Store.ListOrders(ctx, buyerID)
}

// ListSellerItems returns every order line whose snapshot still references
// a stall owned by the seller.
func (s *Service) ListSellerItems(ctx context.Context, sellerID string) ([]OrderItem, error) {
	return s.Store.ListSellerItems(ctx, sellerID)
}

// SetItemStatus lets the owning seller accept or decline an order line.
// Lines whose stall was deleted have no owner left and cannot be acted on.
func (s *Service) SetItemStatus(ctx context.Context, itemID string, to ItemStatus, sellerID string) (OrderItem, error) {
	if !ValidDecision(to) {
		return OrderItem{}, ErrInvalidStatus
	}
	_, ownerID, err := s.Store.GetOrderItem(ctx, itemID)
	if err != nil {
		return OrderItem{}, err
	}
	if ownerID == "" || ownerID != sellerID {
		return OrderItem{}, ErrForbidden
	}
	it, err := s.Store.SetOrderItemStatus(ctx, itemID, to)
	if err != nil {
		return OrderItem{}, err
	}
	if s.Events != nil {
		s.Events.LineStatusChanged(ctx, it, sellerID)
	}
	return it, nil
}

func validateQuantity(stall StallInfo, qty int) error {
	if qty <= 0 {
		return &StockError{Items: []StockRejection{{StallID: stall.ID, Reason: ReasonInvalidQuantity}}}
	}
	if stall.Quantity <= 0 {
		return &StockError{Items: []StockRejection{{StallID: stall.ID, Reason: ReasonOutOfStock}}}
	}
	if qty > stall.Quantity {
		return &StockError{Items: []StockRejection{{StallID: stall.ID, Reason: ReasonInsufficientStock, Available: stall.Quantity}}}
	}
	return nil
}
