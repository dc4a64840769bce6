package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository implements order.LedgerRepository using GORM
type GormLedgerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db, now: time.Now}
}

var _ order.LedgerRepository = (*GormLedgerRepository)(nil)

// WithTx returns a new repository bound to the transaction
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: tx, now: r.now}
}

func (r *GormLedgerRepository) findOne(ctx context.Context, query string, arg any) (*order.ShipmentLedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrLedgerEntryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRemoteNumber finds the row of a remote order
func (r *GormLedgerRepository) FindByRemoteNumber(ctx context.Context, remoteNumber string) (*order.ShipmentLedgerEntry, error) {
	return r.findOne(ctx, "remote_order_number = ?", remoteNumber)
}

// FindByOrderID finds the row linked to a local order
func (r *GormLedgerRepository) FindByOrderID(ctx context.Context, orderID int64) (*order.ShipmentLedgerEntry, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

// Claim inserts the in-flight row with a single INSERT ... ON CONFLICT DO
// NOTHING. Exactly one concurrent caller sees a row affected.
func (r *GormLedgerRepository) Claim(ctx context.Context, entry *order.ShipmentLedgerEntry) (bool, error) {
	now := r.now()
	model := &models.LedgerEntryModel{}
	model.FromDomain(entry)
	model.ID = 0
	model.ImportSuccess = false
	model.ImportError = false
	model.CreatedAt = now
	model.UpdatedAt = now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "remote_order_number"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}

	entry.ID = model.ID
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return true, nil
}

func (r *GormLedgerRepository) updateByRemoteNumber(ctx context.Context, remoteNumber string, values map[string]any) error {
	values["updated_at"] = r.now()
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("remote_order_number = ?", remoteNumber).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrLedgerEntryNotFound
	}
	return nil
}

// AttachOrder links the local order created for the claim
func (r *GormLedgerRepository) AttachOrder(ctx context.Context, remoteNumber string, orderID int64) error {
	return r.updateByRemoteNumber(ctx, remoteNumber, map[string]any{"order_id": orderID})
}

// MarkImportSucceeded flags the import as done
func (r *GormLedgerRepository) MarkImportSucceeded(ctx context.Context, remoteNumber string) error {
	return r.updateByRemoteNumber(ctx, remoteNumber, map[string]any{
		"import_success": true,
		"import_error":   false,
		"error_message":  "",
	})
}

// MarkImportFailed flags the import as failed with its reason
func (r *GormLedgerRepository) MarkImportFailed(ctx context.Context, remoteNumber, message string) error {
	return r.updateByRemoteNumber(ctx, remoteNumber, map[string]any{
		"import_error":  true,
		"error_message": message,
	})
}

// Update persists the shipment fields of an entry
func (r *GormLedgerRepository) Update(ctx context.Context, entry *order.ShipmentLedgerEntry) error {
	return r.updateByRemoteNumber(ctx, entry.RemoteOrderNumber, map[string]any{
		"is_shipped":           entry.IsShipped,
		"carrier_name":         entry.CarrierName,
		"tracking_number":      entry.TrackingNumber,
		"shipped_exported_at":  entry.ShippedExportedAt,
		"tracking_exported_at": entry.TrackingExportedAt,
	})
}

// ListReadyForExport returns shipped rows of a connection that were not
// reported yet, oldest first
func (r *GormLedgerRepository) ListReadyForExport(ctx context.Context, connectionID int64, limit int) ([]order.ShipmentLedgerEntry, error) {
	var rows []models.LedgerEntryModel
	query := r.db.WithContext(ctx).
		Where("connection_id = ? AND is_shipped = ? AND shipped_exported_at IS NULL", connectionID, true).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]order.ShipmentLedgerEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}

// DeleteByRemoteNumber removes the row of a remote order
func (r *GormLedgerRepository) DeleteByRemoteNumber(ctx context.Context, remoteNumber string) error {
	result := r.db.WithContext(ctx).
		Where("remote_order_number = ?", remoteNumber).
		Delete(&models.LedgerEntryModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrLedgerEntryNotFound
	}
	return nil
}
