package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/shared"
)

// offerFields are the values an offer update carries for one connection
type offerFields struct {
	Price         string
	PriceOriginal string
	Stock         int
	Cost          string
	DeliveryTime  string
}

// ProductWatcher queues products for an offer export when their stock
// changes or a save changes any offer field
type ProductWatcher struct {
	queue       catalog.OfferQueue
	connections connection.Reader
	snapshots   catalog.SnapshotCache
	logger      *zap.Logger
}

// NewProductWatcher creates a new ProductWatcher
func NewProductWatcher(
	queue catalog.OfferQueue,
	connections connection.Reader,
	snapshots catalog.SnapshotCache,
	logger *zap.Logger,
) *ProductWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductWatcher{
		queue:       queue,
		connections: connections,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (w *ProductWatcher) EventTypes() []string {
	return []string{catalog.EventTypeStockChanged, catalog.EventTypeProductSaved}
}

// Handle processes stock and product save events
func (w *ProductWatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *catalog.StockChangedEvent:
		return w.onStockChanged(ctx, e)
	case *catalog.ProductSavedEvent:
		return w.onProductSaved(ctx, e)
	}
	return nil
}

func (w *ProductWatcher) onStockChanged(ctx context.Context, e *catalog.StockChangedEvent) error {
	active, err := w.exportOnChange(ctx)
	if err != nil || active == nil {
		return err
	}
	ids := []int64{e.ProductID}
	if e.ParentID > 0 {
		ids = append(ids, e.ParentID)
	}
	return w.enqueue(ctx, ids)
}

func (w *ProductWatcher) onProductSaved(ctx context.Context, e *catalog.ProductSavedEvent) error {
	if e.After == nil {
		return nil
	}
	before := e.Before
	if before == nil && w.snapshots != nil {
		if cached, ok := w.snapshots.Get(e.After.ID); ok {
			before = cached
		}
	}
	if w.snapshots != nil {
		w.snapshots.Set(e.After)
	}

	active, err := w.exportOnChange(ctx)
	if err != nil || active == nil {
		return err
	}
	if before != nil && !OfferFieldsChanged(before, e.After, active) {
		return nil
	}

	ids := []int64{e.After.ID}
	ids = append(ids, e.After.TranslationIDs()...)
	return w.enqueue(ctx, ids)
}

// exportOnChange returns the active connections, or nil when none of them
// exports on change
func (w *ProductWatcher) exportOnChange(ctx context.Context) ([]connection.Connection, error) {
	active, err := w.connections.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active connections: %w", err)
	}
	for _, c := range active {
		if c.Offer.ExportOnChange {
			return active, nil
		}
	}
	return nil, nil
}

func (w *ProductWatcher) enqueue(ctx context.Context, ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := w.queue.Enqueue(ctx, id); err != nil {
			return err
		}
		w.logger.Info("Added product to export queue.", zap.Int64("product", id))
	}
	return nil
}

// OfferFieldsChanged compares price, original price, stock, cost and delivery
// time as every given connection would export them
func OfferFieldsChanged(before, after *catalog.Product, connections []connection.Connection) bool {
	for i := range connections {
		if offerFieldsFor(before, &connections[i]) != offerFieldsFor(after, &connections[i]) {
			return true
		}
	}
	return false
}

func offerFieldsFor(p *catalog.Product, conn *connection.Connection) offerFields {
	var record catalog.OptionRecord
	applyOfferFields(&record, p, nil, conn)
	return offerFields{
		Price:         record.Price,
		PriceOriginal: record.PriceOriginal,
		Stock:         catalog.ComputeStock(p, conn.Offer.StockPolicy()),
		Cost:          record.Cost,
		DeliveryTime:  record.DeliveryTime,
	}
}

var _ shared.EventHandler = (*ProductWatcher)(nil)
