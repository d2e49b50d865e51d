package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on postgres. LockTimeout bounds every lock wait
// inside a checkout transaction; exceeding it surfaces as ErrBusy.
type PGStore struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

const lockNotAvailable = "55P03"

func (s *PGStore) GetOrCreateOpenCart(ctx context.Context, buyerID string) (Cart, error) {
	var id string
	err := s.DB.QueryRow(ctx,
		`SELECT id FROM carts WHERE buyer_id=$1 AND status='open'`, buyerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// the partial unique index on (buyer_id) WHERE status='open' makes
		// this race-safe: a concurrent insert wins and we re-read
		_, err = s.DB.Exec(ctx, `
			INSERT INTO carts(id, buyer_id, status) VALUES ($1, $2, 'open')
			ON CONFLICT DO NOTHING`, uuid.NewString(), buyerID)
		if err != nil {
			return Cart{}, err
		}
		err = s.DB.QueryRow(ctx,
			`SELECT id FROM carts WHERE buyer_id=$1 AND status='open'`, buyerID).Scan(&id)
	}
	if err != nil {
		return Cart{}, err
	}
	return s.loadCart(ctx, s.DB, id)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PGStore) loadCart(ctx context.Context, q querier, cartID string) (Cart, error) {
	var c Cart
	err := q.QueryRow(ctx, `
		SELECT id, buyer_id, status, created_at, updated_at
		FROM carts WHERE id=$1`, cartID).
		Scan(&c.ID, &c.BuyerID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, cart_id, stall_id, quantity, added_at
		FROM cart_items WHERE cart_id=$1 ORDER BY added_at, id`, cartID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.StallID, &it.Quantity, &it.AddedAt); err != nil {
			return Cart{}, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (s *PGStore) GetStallInfo(ctx context.Context, stallID string) (StallInfo, error) {
	var st StallInfo
	err := s.DB.QueryRow(ctx, `
		SELECT id, owner_id, product, price_cents, quantity
		FROM stalls WHERE id=$1`, stallID).
		Scan(&st.ID, &st.OwnerID, &st.Product, &st.PriceCents, &st.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return StallInfo{}, ErrNotFound
	}
	return st, err
}

func (s *PGStore) FindItem(ctx context.Context, cartID, itemID string) (Item, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `
		SELECT id, cart_id, stall_id, quantity, added_at
		FROM cart_items WHERE id=$1 AND cart_id=$2`, itemID, cartID).
		Scan(&it.ID, &it.CartID, &it.StallID, &it.Quantity, &it.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (s *PGStore) FindItemByStall(ctx context.Context, cartID, stallID string) (Item, bool, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `
		SELECT id, cart_id, stall_id, quantity, added_at
		FROM cart_items WHERE cart_id=$1 AND stall_id=$2`, cartID, stallID).
		Scan(&it.ID, &it.CartID, &it.StallID, &it.Quantity, &it.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return it, true, nil
}

func (s *PGStore) PutItem(ctx context.Context, cartID, stallID string, qty int) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, stall_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, stall_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		uuid.NewString(), cartID, stallID, qty)
	return err
}

func (s *PGStore) SetItemQuantity(ctx context.Context, itemID string, qty int) error {
	ct, err := s.DB.Exec(ctx, `UPDATE cart_items SET quantity=$2 WHERE id=$1`, itemID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteItem(ctx context.Context, itemID string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// WithTx runs fn in one transaction with a bounded lock wait. A lock wait
// that exceeds the bound rolls back and maps to ErrBusy.
func (s *PGStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	timeout := s.LockTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, timeout.Milliseconds())); err != nil {
		return err
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx, store: s}); err != nil {
		return mapBusy(err)
	}
	return tx.Commit(ctx)
}

func mapBusy(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return ErrBusy
	}
	return err
}

type pgTx struct {
	ctx   context.Context
	tx    pgx.Tx
	store *PGStore
}

func (t *pgTx) LockCart(cartID string) (Cart, error) {
	var status Status
	err := t.tx.QueryRow(t.ctx,
		`SELECT status FROM carts WHERE id=$1 FOR UPDATE`, cartID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, err
	}
	if status != StatusOpen {
		return Cart{}, ErrCartState
	}
	return t.store.loadCart(t.ctx, t.tx, cartID)
}

// LockStalls orders by id so that concurrent checkouts sharing stalls
// acquire locks in the same sequence and cannot deadlock each other.
func (t *pgTx) LockStalls(ids []string) ([]StallInfo, error) {
	return t.selectStalls(ids, true)
}

func (t *pgTx) GetStalls(ids []string) ([]StallInfo, error) {
	return t.selectStalls(ids, false)
}

func (t *pgTx) selectStalls(ids []string, forUpdate bool) ([]StallInfo, error) {
	q := `SELECT id, owner_id, product, price_cents, quantity
	      FROM stalls WHERE id = ANY($1) ORDER BY id`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	rows, err := t.tx.Query(t.ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StallInfo
	for rows.Next() {
		var st StallInfo
		if err := rows.Scan(&st.ID, &st.OwnerID, &st.Product, &st.PriceCents, &st.Quantity); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (t *pgTx) DecrementStall(stallID string, by int) error {
	ct, err := t.tx.Exec(t.ctx,
		`UPDATE stalls SET quantity = quantity - $2, updated_at = now() WHERE id=$1`,
		stallID, by)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("decrement stall %s: no row", stallID)
	}
	return nil
}

func (t *pgTx) InsertOrder(buyerID string) (string, error) {
	orderID := uuid.NewString()
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO orders(id, buyer_id, total_cents) VALUES ($1, $2, 0)`, orderID, buyerID)
	return orderID, err
}

func (t *pgTx) InsertOrderItem(it OrderItem) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO order_items(id, order_id, stall_id, product_name, price_cents, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.OrderID, it.StallID, it.ProductName, it.PriceCents, it.Quantity, it.Status)
	return err
}

func (t *pgTx) SetOrderTotal(orderID string, totalCents int) error {
	_, err := t.tx.Exec(t.ctx,
		`UPDATE orders SET total_cents=$2 WHERE id=$1`, orderID, totalCents)
	return err
}

// CloseCart is the at-most-once guard: only an open cart can flip to
// checked_out, so a second checkout of the same cart fails inside its own
// transaction.
func (t *pgTx) CloseCart(cartID string) error {
	ct, err := t.tx.Exec(t.ctx, `
		UPDATE carts SET status='checked_out', updated_at=now()
		WHERE id=$1 AND status='open'`, cartID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrCartState
	}
	return nil
}

func (s *PGStore) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, buyer_id, total_cents, created_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.BuyerID, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = s.orderItems(ctx, orderID)
	return o, err
}

func (s *PGStore) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, stall_id, product_name, price_cents, quantity, status
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.StallID, &it.ProductName, &it.PriceCents, &it.Quantity, &it.Status); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) ListOrders(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, buyer_id, total_cents, created_at
		FROM orders WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *PGStore) ListSellerItems(ctx context.Context, sellerID string) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.stall_id, oi.product_name, oi.price_cents, oi.quantity, oi.status
		FROM order_items oi
		JOIN stalls st ON st.id = oi.stall_id
		WHERE st.owner_id = $1
		ORDER BY oi.id`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.StallID, &it.ProductName, &it.PriceCents, &it.Quantity, &it.Status); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) GetOrderItem(ctx context.Context, itemID string) (OrderItem, string, error) {
	var it OrderItem
	var owner *string
	err := s.DB.QueryRow(ctx, `
		SELECT oi.id, oi.order_id, oi.stall_id, oi.product_name, oi.price_cents, oi.quantity, oi.status, st.owner_id
		FROM order_items oi
		LEFT JOIN stalls st ON st.id = oi.stall_id
		WHERE oi.id = $1`, itemID).
		Scan(&it.ID, &it.OrderID, &it.StallID, &it.ProductName, &it.PriceCents, &it.Quantity, &it.Status, &owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, "", ErrNotFound
	}
	if err != nil {
		return OrderItem{}, "", err
	}
	if owner == nil {
		return it, "", nil
	}
	return it, *owner, nil
}

func (s *PGStore) SetOrderItemStatus(ctx context.Context, itemID string, status ItemStatus) (OrderItem, error) {
	var it OrderItem
	err := s.DB.QueryRow(ctx, `
		UPDATE order_items SET status=$2 WHERE id=$1
		RETURNING id, order_id, stall_id, product_name, price_cents, quantity, status`,
		itemID, status).
		Scan(&it.ID, &it.OrderID, &it.StallID, &it.ProductName, &it.PriceCents, &it.Quantity, &it.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, ErrNotFound
	}
	return it, err
}
