package catalog

import (
	"context"
	"time"
)

// OfferQueueEntry marks a product whose offer must be pushed again
type OfferQueueEntry struct {
	OfferID   int64
	ProductID int64
	CreatedAt time.Time
}

// OfferQueue is the durable queue of products awaiting an offer export.
// Drain returns the most recently queued entries first; callers delete each
// entry once they have read it.
type OfferQueue interface {
	// Enqueue adds the product unless it is already queued
	Enqueue(ctx context.Context, productID int64) error
	Drain(ctx context.Context, limit int) ([]OfferQueueEntry, error)
	Delete(ctx context.Context, productID int64) error
	Count(ctx context.Context) (int64, error)
}

// SnapshotCache remembers the last seen state of products so that a save
// without a known previous state can still be compared
type SnapshotCache interface {
	Get(productID int64) (*Product, bool)
	Set(p *Product)
}
