package shared

import (
	"context"
	"time"
)

// WebhookDelivery identifies one storefront webhook delivery
type WebhookDelivery struct {
	ID    string
	Topic string
}

// DeliveryLedger remembers handled storefront webhook deliveries, so a
// redelivered webhook is acknowledged without publishing its events again.
// Entries expire after the ttl given when they were recorded.
type DeliveryLedger interface {
	// Seen reports whether the delivery id is recorded
	Seen(ctx context.Context, deliveryID string) (bool, error)
	// Record stores a handled delivery. It returns false when the id was
	// already recorded.
	Record(ctx context.Context, d WebhookDelivery, ttl time.Duration) (bool, error)
	Close() error
}
