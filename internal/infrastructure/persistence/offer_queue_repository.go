package persistence

import (
	"context"
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOfferQueue implements catalog.OfferQueue using GORM
type GormOfferQueue struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOfferQueue creates a new GormOfferQueue
func NewGormOfferQueue(db *gorm.DB) *GormOfferQueue {
	return &GormOfferQueue{db: db, now: time.Now}
}

var _ catalog.OfferQueue = (*GormOfferQueue)(nil)

// Enqueue adds the product unless it is already queued
func (q *GormOfferQueue) Enqueue(ctx context.Context, productID int64) error {
	return q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&models.OfferQueueModel{ProductID: productID, CreatedAt: q.now()}).Error
}

// Drain returns up to limit entries, most recently queued first.
// Entries are not removed; the caller deletes each one after reading it.
func (q *GormOfferQueue) Drain(ctx context.Context, limit int) ([]catalog.OfferQueueEntry, error) {
	var rows []models.OfferQueueModel
	query := q.db.WithContext(ctx).Order("offer_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]catalog.OfferQueueEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// Delete removes the queue entry of a product
func (q *GormOfferQueue) Delete(ctx context.Context, productID int64) error {
	return q.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.OfferQueueModel{}).Error
}

// Count returns the queue depth
func (q *GormOfferQueue) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.WithContext(ctx).Model(&models.OfferQueueModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
