package redisx

import "time"

const (
	// Stall detail cache: stall:{stall_id} -> serialized stall. Best-effort,
	// TTL only; checkout always reads the database.
	KeyStall = "stall:%s"

	// Listing cache: stalls:{tag}:{location} -> serialized stall list.
	// Same TTL-only contract as the detail cache.
	KeyStallList = "stalls:%s:%s"

	// Order summary cache: order:{order_id} -> serialized order summary.
	// Warmed by the notifier after an order-placed event.
	KeyOrderSummary = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStallCache = 30 * time.Second
	TTLOrderCache = 10 * time.Minute
	TTLDedup      = 48 * time.Hour
)
