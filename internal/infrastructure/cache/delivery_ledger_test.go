package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/config"
)

func TestMemoryDeliveryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryDeliveryLedger()
	d := shared.WebhookDelivery{ID: "d-1", Topic: "product.updated"}

	seen, err := l.Seen(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, seen)

	first, err := l.Record(ctx, d, time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.Record(ctx, shared.WebhookDelivery{ID: "d-1", Topic: "order.created"}, time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	seen, err = l.Seen(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, seen)

	topic, ok := l.Topic(d.ID)
	assert.True(t, ok)
	assert.Equal(t, "product.updated", topic)

	require.NoError(t, l.Close())
	seen, _ = l.Seen(ctx, d.ID)
	assert.False(t, seen)
}

func TestMemoryDeliveryLedger_Expires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryDeliveryLedger()

	_, err := l.Record(ctx, shared.WebhookDelivery{ID: "d-2"}, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		seen, _ := l.Seen(ctx, "d-2")
		return !seen
	}, time.Second, 5*time.Millisecond)

	again, err := l.Record(ctx, shared.WebhookDelivery{ID: "d-2"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestNewDeliveryLedger_FollowsLockBackend(t *testing.T) {
	ledger := NewDeliveryLedger(NewMemoryRunLock(), nil)
	_, ok := ledger.(*MemoryDeliveryLedger)
	assert.True(t, ok)

	client := NewRedisClient(config.RedisConfig{Host: "127.0.0.1", Port: 6379})
	defer client.Close()
	ledger = NewDeliveryLedger(NewRedisRunLockWithClient(client), nil)
	_, ok = ledger.(*RedisDeliveryLedger)
	assert.True(t, ok)
}
