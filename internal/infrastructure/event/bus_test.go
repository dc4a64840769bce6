package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/domain/shared"
)

// testHandler records the events it receives
type testHandler struct {
	eventTypes []string
	err        error
	panicWith  any

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_PublishSynchronously(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	stock := newTestHandler(catalog.EventTypeStockChanged)
	all := newTestHandler()
	bus.Subscribe(stock)
	bus.Subscribe(all)

	e1 := catalog.NewStockChangedEvent(101, 10)
	e2 := order.NewOrderStatusChangedEvent(90, "wc-completed")
	require.NoError(t, bus.Publish(context.Background(), e1, e2))

	assert.Equal(t, []shared.DomainEvent{e1}, stock.getHandled())
	assert.Len(t, all.getHandled(), 2)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	failing := newTestHandler(order.EventTypeOrderStatusChanged)
	failing.err = errors.New("storage down")
	panicking := newTestHandler(order.EventTypeOrderStatusChanged)
	panicking.panicWith = "boom"
	healthy := newTestHandler(order.EventTypeOrderStatusChanged)
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), order.NewOrderStatusChangedEvent(90, "wc-completed")))

	assert.Len(t, healthy.getHandled(), 1)
	dispatched, failed := bus.Stats()
	assert.Equal(t, int64(3), dispatched)
	assert.Equal(t, int64(2), failed)
}

func TestInMemoryEventBus_AsyncDispatch(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler(catalog.EventTypeStockChanged)
	bus.Subscribe(h)

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Start(ctx))

	reqCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, bus.Publish(reqCtx, catalog.NewStockChangedEvent(1, 0), catalog.NewStockChangedEvent(2, 0)))
	cancel()

	stopCtx, stopCancel := context.WithTimeout(ctx, time.Second)
	defer stopCancel()
	require.NoError(t, bus.Stop(stopCtx))
	assert.Len(t, h.getHandled(), 2)

	require.NoError(t, bus.Publish(ctx, catalog.NewStockChangedEvent(3, 0)))
	assert.Len(t, h.getHandled(), 3)
	assert.NoError(t, bus.Stop(ctx))
}

func TestInMemoryEventBus_QueueFull(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(nil, WithQueueSize(1))
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe(&blockingHandler{block: block, started: started})

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, catalog.NewStockChangedEvent(1, 0)))
	<-started
	require.NoError(t, bus.Publish(ctx, catalog.NewStockChangedEvent(2, 0)))

	err := bus.Publish(ctx, catalog.NewStockChangedEvent(3, 0))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	require.NoError(t, bus.Stop(ctx))
}

type blockingHandler struct {
	block   chan struct{}
	started chan struct{}
}

func (h *blockingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	select {
	case h.started <- struct{}{}:
	default:
	}
	<-h.block
	return nil
}

func (h *blockingHandler) EventTypes() []string {
	return []string{catalog.EventTypeStockChanged}
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler(catalog.EventTypeStockChanged)
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), catalog.NewStockChangedEvent(1, 0)))
	assert.Empty(t, h.getHandled())
}
