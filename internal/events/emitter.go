package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/prepprhq/preppr-backend/internal/cart"
	kafkax "github.com/prepprhq/preppr-backend/internal/kafka"
)

// Emitter publishes order lifecycle events. It satisfies cart.EventSink.
type Emitter struct {
	OrderProducer *kafkax.Producer // order.placed
	LineProducer  *kafkax.Producer // order.line.status
	ServiceName   string
}

func (e *Emitter) OrderPlaced(ctx context.Context, o cart.Order) {
	lines := make([]LineSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		ls := LineSnapshot{
			ItemID:      it.ID,
			ProductName: it.ProductName,
			PriceCents:  it.PriceCents,
			Quantity:    it.Quantity,
		}
		if it.StallID != nil {
			ls.StallID = *it.StallID
		}
		lines = append(lines, ls)
	}
	e.publish(e.OrderProducer, EventOrderPlaced, o.ID, OrderPlacedPayload{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		TotalCents: o.TotalCents,
		Lines:      lines,
	})
}

func (e *Emitter) LineStatusChanged(ctx context.Context, it cart.OrderItem, sellerID string) {
	e.publish(e.LineProducer, EventLineStatusChanged, it.OrderID, LineStatusPayload{
		OrderID:  it.OrderID,
		ItemID:   it.ID,
		SellerID: sellerID,
		Status:   string(it.Status),
	})
}

func (e *Emitter) publish(p *kafkax.Producer, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
