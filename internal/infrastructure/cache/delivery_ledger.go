package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/config"
)

const deliveryKeyPrefix = "marketsync:delivery:"

// RedisDeliveryLedger keeps handled webhook deliveries in Redis so every
// instance behind the webhook endpoint sees them. The value is the topic.
type RedisDeliveryLedger struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDeliveryLedger creates a ledger on an existing client
func NewRedisDeliveryLedger(client *redis.Client, keyPrefix string) *RedisDeliveryLedger {
	if keyPrefix == "" {
		keyPrefix = deliveryKeyPrefix
	}
	return &RedisDeliveryLedger{client: client, keyPrefix: keyPrefix}
}

// Record stores the delivery with SET NX
func (l *RedisDeliveryLedger) Record(ctx context.Context, d shared.WebhookDelivery, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.keyPrefix+d.ID, d.Topic, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record delivery %s: %w", d.ID, err)
	}
	return ok, nil
}

// Seen reports whether the delivery is recorded
func (l *RedisDeliveryLedger) Seen(ctx context.Context, deliveryID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.keyPrefix+deliveryID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up delivery %s: %w", deliveryID, err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (l *RedisDeliveryLedger) Close() error {
	return l.client.Close()
}

// MemoryDeliveryLedger keeps handled deliveries in process memory. It only
// deduplicates deliveries that reach the same instance.
type MemoryDeliveryLedger struct {
	items *gocache.Cache
}

// NewMemoryDeliveryLedger creates an in-process ledger
func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{items: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Record stores the delivery unless it is already recorded
func (l *MemoryDeliveryLedger) Record(_ context.Context, d shared.WebhookDelivery, ttl time.Duration) (bool, error) {
	if err := l.items.Add(d.ID, d.Topic, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Seen reports whether the delivery is recorded
func (l *MemoryDeliveryLedger) Seen(_ context.Context, deliveryID string) (bool, error) {
	_, ok := l.items.Get(deliveryID)
	return ok, nil
}

// Topic returns the topic a recorded delivery arrived with
func (l *MemoryDeliveryLedger) Topic(deliveryID string) (string, bool) {
	v, ok := l.items.Get(deliveryID)
	if !ok {
		return "", false
	}
	topic, ok := v.(string)
	return topic, ok
}

// Close drops all entries
func (l *MemoryDeliveryLedger) Close() error {
	l.items.Flush()
	return nil
}

// NewDeliveryLedger shares the run lock's Redis client when there is one
func NewDeliveryLedger(lock shared.RunLock, logger *zap.Logger) shared.DeliveryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rl, ok := lock.(*RedisRunLock); ok {
		return NewRedisDeliveryLedger(rl.client, "")
	}
	logger.Info("Using in-memory webhook delivery ledger")
	return NewMemoryDeliveryLedger()
}

// NewRedisClient builds a client for cfg without checking it
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB})
}

var (
	_ shared.DeliveryLedger = (*RedisDeliveryLedger)(nil)
	_ shared.DeliveryLedger = (*MemoryDeliveryLedger)(nil)
)
