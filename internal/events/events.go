package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventLineStatusChanged = "OrderLineStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type LineSnapshot struct {
	ItemID      string `json:"item_id"`
	StallID     string `json:"stall_id,omitempty"`
	ProductName string `json:"product_name"`
	PriceCents  int    `json:"price_cents"`
	Quantity    int    `json:"quantity"`
}

type OrderPlacedPayload struct {
	OrderID    string         `json:"order_id"`
	BuyerID    string         `json:"buyer_id"`
	TotalCents int            `json:"total_cents"`
	Lines      []LineSnapshot `json:"lines"`
}

type LineStatusPayload struct {
	OrderID  string `json:"order_id"`
	ItemID   string `json:"item_id"`
	SellerID string `json:"seller_id"`
	Status   string `json:"status"`
}
