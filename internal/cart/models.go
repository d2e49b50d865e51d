package cart

import "time"

type Status string

const (
	StatusOpen       Status = "open"
	StatusCheckedOut Status = "checked_out"
	StatusCanceled   Status = "canceled"
)

type ItemStatus string

const (
	ItemStatusNew      ItemStatus = "new"
	ItemStatusAccepted ItemStatus = "accepted"
	ItemStatusDeclined ItemStatus = "declined"
)

// ValidDecision reports whether a seller may set a line to this status.
func ValidDecision(s ItemStatus) bool {
	return s == ItemStatusAccepted || s == ItemStatusDeclined
}

type Cart struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Items     []Item    `json:"items"`
}

type Item struct {
	ID       string    `json:"id"`
	CartID   string    `json:"cart_id"`
	StallID  string    `json:"stall_id"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

// StallInfo is the slice of a catalog listing the cart core needs: enough
// to validate stock and freeze a purchase-time snapshot.
type StallInfo struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Product    string `json:"product"`
	PriceCents int    `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type Order struct {
	ID         string      `json:"id"`
	BuyerID    string      `json:"buyer_id"`
	TotalCents int         `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
	Items      []OrderItem `json:"items"`
}

// OrderItem is a frozen snapshot of a stall at purchase time. StallID is a
// weak reference: it goes nil if the stall is later deleted, the snapshot
// fields stay authoritative.
type OrderItem struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	StallID     *string    `json:"stall_id"`
	ProductName string     `json:"product_name"`
	PriceCents  int        `json:"price_cents"`
	Quantity    int        `json:"quantity"`
	Status      ItemStatus `json:"status"`
}

func (it OrderItem) LineTotalCents() int { return it.PriceCents * it.Quantity }
