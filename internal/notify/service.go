package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/prepprhq/preppr-backend/internal/events"
	kafkax "github.com/prepprhq/preppr-backend/internal/kafka"
	"github.com/prepprhq/preppr-backend/internal/redisx"
)

// Cache is the slice of the redis client the notifier uses for dedup and
// summary warming; *redis.Client satisfies it.
type Cache interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Service consumes order.placed events: dedups, warms the order summary
// cache and logs the placement for the notification pipeline.
type Service struct {
	Redis       Cache
	ServiceName string
}

// HandleOrderPlaced is wired as the consumer handler.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventOrderPlaced {
		return nil
	}

	// dedup on event_id per consumer: redelivery must not double-notify
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if n, err := s.Redis.Exists(ctx, dkey).Result(); err == nil && n > 0 {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	summary := kafkax.MustMarshal(map[string]any{
		"order_id":    p.OrderID,
		"total_cents": p.TotalCents,
		"line_count":  len(p.Lines),
	})
	key := fmt.Sprintf(redisx.KeyOrderSummary, p.OrderID)
	_ = s.Redis.Set(ctx, key, summary, redisx.TTLOrderCache).Err()

	log.Printf("order placed: id=%s buyer=%s total=%d lines=%d",
		p.OrderID, p.BuyerID, p.TotalCents, len(p.Lines))
	return nil
}
