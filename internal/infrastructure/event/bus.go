package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/logger"
)

const defaultQueueSize = 256

// ErrQueueFull is returned when an event cannot be queued for async dispatch
var ErrQueueFull = errors.New("event: dispatch queue is full")

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus dispatches events to registered handlers. Before Start
// and after Stop, Publish dispatches synchronously on the caller's goroutine;
// while running, events are queued and dispatched by the worker.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger

	queue   chan envelope
	running atomic.Bool
	mu      sync.RWMutex
	wg      sync.WaitGroup

	dispatched atomic.Int64
	failed     atomic.Int64
}

// Option configures the bus
type Option func(*InMemoryEventBus)

// WithQueueSize sets the async dispatch buffer
func WithQueueSize(n int) Option {
	return func(b *InMemoryEventBus) {
		if n > 0 {
			b.queue = make(chan envelope, n)
		}
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(log *zap.Logger, opts ...Option) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   log.Named("event_bus"),
		queue:    make(chan envelope, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands events to their handlers. Handler failures are logged and
// never returned; only a full queue is reported to the caller.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.running.Load() {
		for _, e := range events {
			b.dispatch(ctx, e)
		}
		return nil
	}

	detached := context.WithoutCancel(ctx)
	for _, e := range events {
		select {
		case b.queue <- envelope{ctx: detached, event: e}:
		default:
			return fmt.Errorf("%w: dropped %s %s", ErrQueueFull, e.EventType(), e.EventID())
		}
	}
	return nil
}

// Subscribe registers a handler; without explicit types the handler's own
// EventTypes are used
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start launches the dispatch worker
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running.Load() {
		return nil
	}
	b.running.Store(true)
	b.wg.Add(1)
	go b.work()
	b.logger.Info("Event bus started", zap.Int("queue_size", cap(b.queue)))
	return nil
}

// Stop drains queued events and stops the worker. Events published after
// Stop are dispatched synchronously.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running.Load() {
		b.mu.Unlock()
		return nil
	}
	b.running.Store(false)
	close(b.queue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.mu.Lock()
	b.queue = make(chan envelope, cap(b.queue))
	b.mu.Unlock()
	b.logger.Info("Event bus stopped",
		zap.Int64("dispatched", b.dispatched.Load()),
		zap.Int64("failed", b.failed.Load()))
	return nil
}

// Stats returns the number of handler invocations and failures
func (b *InMemoryEventBus) Stats() (dispatched, failed int64) {
	return b.dispatched.Load(), b.failed.Load()
}

func (b *InMemoryEventBus) work() {
	defer b.wg.Done()
	for env := range b.queue {
		b.dispatch(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, e shared.DomainEvent) {
	for _, h := range b.registry.GetHandlers(e.EventType()) {
		b.dispatched.Add(1)
		if err := b.handle(ctx, h, e); err != nil {
			b.failed.Add(1)
			logger.L(ctx).Error("Event handler failed",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.Error(err))
		}
	}
}

// handle turns a handler panic into an error
func (b *InMemoryEventBus) handle(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
