package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore implements Store in memory with the same contract as PGStore:
// WithTx is serialized and rolls back all writes when fn fails. Used by
// the service and checkout tests.
type memStore struct {
	mu         sync.Mutex
	carts      map[string]*Cart
	stalls     map[string]StallInfo
	orders     map[string]*Order
	orderItems map[string]*OrderItem
}

func newMemStore() *memStore {
	return &memStore{
		carts:      map[string]*Cart{},
		stalls:     map[string]StallInfo{},
		orders:     map[string]*Order{},
		orderItems: map[string]*OrderItem{},
	}
}

func (m *memStore) addStall(s StallInfo) { m.stalls[s.ID] = s }

func (m *memStore) stallQty(id string) int { return m.stalls[id].Quantity }

func cloneCart(c *Cart) *Cart {
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp
}

func (m *memStore) GetOrCreateOpenCart(ctx context.Context, buyerID string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *cloneCart(m.openCartLocked(buyerID)), nil
}

func (m *memStore) openCartLocked(buyerID string) *Cart {
	for _, c := range m.carts {
		if c.BuyerID == buyerID && c.Status == StatusOpen {
			return c
		}
	}
	c := &Cart{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		Status:    StatusOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.carts[c.ID] = c
	return c
}

func (m *memStore) GetStallInfo(ctx context.Context, stallID string) (StallInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stalls[stallID]
	if !ok {
		return StallInfo{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) FindItem(ctx context.Context, cartID, itemID string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return Item{}, ErrNotFound
	}
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (m *memStore) FindItemByStall(ctx context.Context, cartID, stallID string) (Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return Item{}, false, nil
	}
	for _, it := range c.Items {
		if it.StallID == stallID {
			return it, true, nil
		}
	}
	return Item{}, false, nil
}

func (m *memStore) PutItem(ctx context.Context, cartID, stallID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].StallID == stallID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	c.Items = append(c.Items, Item{
		ID:       uuid.NewString(),
		CartID:   cartID,
		StallID:  stallID,
		Quantity: qty,
		AddedAt:  time.Now(),
	})
	return nil
}

func (m *memStore) SetItemQuantity(ctx context.Context, itemID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items[i].Quantity = qty
				return nil
			}
		}
	}
	return ErrNotFound
}

func (m *memStore) DeleteItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

// WithTx serializes transactions and restores the full state snapshot on
// error, matching the all-or-nothing contract of the pg implementation.
func (m *memStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshotLocked()
	if err := fn(&memTx{store: m}); err != nil {
		m.restoreLocked(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	carts      map[string]*Cart
	stalls     map[string]StallInfo
	orders     map[string]*Order
	orderItems map[string]*OrderItem
}

func (m *memStore) snapshotLocked() memSnapshot {
	s := memSnapshot{
		carts:      make(map[string]*Cart, len(m.carts)),
		stalls:     make(map[string]StallInfo, len(m.stalls)),
		orders:     make(map[string]*Order, len(m.orders)),
		orderItems: make(map[string]*OrderItem, len(m.orderItems)),
	}
	for k, v := range m.carts {
		s.carts[k] = cloneCart(v)
	}
	for k, v := range m.stalls {
		s.stalls[k] = v
	}
	for k, v := range m.orders {
		cp := *v
		cp.Items = append([]OrderItem(nil), v.Items...)
		s.orders[k] = &cp
	}
	for k, v := range m.orderItems {
		cp := *v
		s.orderItems[k] = &cp
	}
	return s
}

func (m *memStore) restoreLocked(s memSnapshot) {
	m.carts = s.carts
	m.stalls = s.stalls
	m.orders = s.orders
	m.orderItems = s.orderItems
}

type memTx struct{ store *memStore }

func (t *memTx) LockCart(cartID string) (Cart, error) {
	c, ok := t.store.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	if c.Status != StatusOpen {
		return Cart{}, ErrCartState
	}
	return *cloneCart(c), nil
}

func (t *memTx) LockStalls(ids []string) ([]StallInfo, error) { return t.GetStalls(ids) }

func (t *memTx) GetStalls(ids []string) ([]StallInfo, error) {
	var out []StallInfo
	for _, id := range ids {
		if s, ok := t.store.stalls[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *memTx) DecrementStall(stallID string, by int) error {
	s, ok := t.store.stalls[stallID]
	if !ok {
		return ErrNotFound
	}
	s.Quantity -= by
	t.store.stalls[stallID] = s
	return nil
}

func (t *memTx) InsertOrder(buyerID string) (string, error) {
	o := &Order{ID: uuid.NewString(), BuyerID: buyerID, CreatedAt: time.Now()}
	t.store.orders[o.ID] = o
	return o.ID, nil
}

func (t *memTx) InsertOrderItem(it OrderItem) error {
	t.store.orderItems[it.ID] = &it
	o := t.store.orders[it.OrderID]
	o.Items = append(o.Items, it)
	return nil
}

func (t *memTx) SetOrderTotal(orderID string, totalCents int) error {
	t.store.orders[orderID].TotalCents = totalCents
	return nil
}

func (t *memTx) CloseCart(cartID string) error {
	c, ok := t.store.carts[cartID]
	if !ok || c.Status != StatusOpen {
		return ErrCartState
	}
	c.Status = StatusCheckedOut
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, orderID string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return cp, nil
}

func (m *memStore) ListOrders(ctx context.Context, buyerID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			cp := *o
			cp.Items = append([]OrderItem(nil), o.Items...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memStore) ListSellerItems(ctx context.Context, sellerID string) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OrderItem
	for _, it := range m.orderItems {
		if it.StallID == nil {
			continue
		}
		if s, ok := m.stalls[*it.StallID]; ok && s.OwnerID == sellerID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memStore) GetOrderItem(ctx context.Context, itemID string) (OrderItem, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.orderItems[itemID]
	if !ok {
		return OrderItem{}, "", ErrNotFound
	}
	if it.StallID == nil {
		return *it, "", nil
	}
	s, ok := m.stalls[*it.StallID]
	if !ok {
		return *it, "", nil
	}
	return *it, s.OwnerID, nil
}

func (m *memStore) SetOrderItemStatus(ctx context.Context, itemID string, status ItemStatus) (OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.orderItems[itemID]
	if !ok {
		return OrderItem{}, ErrNotFound
	}
	it.Status = status
	if o, ok := m.orders[it.OrderID]; ok {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items[i].Status = status
			}
		}
	}
	return *it, nil
}
