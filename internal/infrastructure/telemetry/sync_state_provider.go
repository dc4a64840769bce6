package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormSyncStateProvider implements SyncStateProvider using GORM.
// It queries the offer queue and order ledger tables directly.
type GormSyncStateProvider struct {
	db *gorm.DB
}

// NewGormSyncStateProvider creates a new GormSyncStateProvider.
func NewGormSyncStateProvider(db *gorm.DB) *GormSyncStateProvider {
	return &GormSyncStateProvider{db: db}
}

// OfferQueueDepth returns the number of queued products.
func (p *GormSyncStateProvider) OfferQueueDepth(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("offer_queue").
		Count(&count).Error

	return count, err
}

// PendingShipmentCount returns shipped but unreported orders per connection.
func (p *GormSyncStateProvider) PendingShipmentCount(ctx context.Context) (map[int64]int64, error) {
	type result struct {
		ConnectionID int64 `gorm:"column:connection_id"`
		Pending      int64 `gorm:"column:pending"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("order_ledger").
		Select("connection_id, COUNT(*) as pending").
		Where("is_shipped = ? AND shipped_exported_at IS NULL", true).
		Group("connection_id").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[int64]int64, len(results))
	for _, r := range results {
		m[r.ConnectionID] = r.Pending
	}

	return m, nil
}
