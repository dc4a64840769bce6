package models

import (
	"encoding/json"
	"time"

	"github.com/marketsync/backend/internal/domain/order"
)

// LedgerEntryModel is the persistence model for a shipment ledger entry.
type LedgerEntryModel struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement"`
	OrderID            *int64     `gorm:"uniqueIndex:uq_order_ledger_order"`
	ConnectionID       int64      `gorm:"not null"`
	RemoteOrderNumber  string     `gorm:"type:varchar(100);not null;uniqueIndex:uq_order_ledger_remote_number"`
	RemoteLineIDs      string     `gorm:"column:remote_line_ids;type:jsonb;not null;default:'[]'"`
	IsShipped          bool       `gorm:"not null;default:false"`
	CarrierName        *string    `gorm:"type:varchar(100)"`
	TrackingNumber     *string    `gorm:"type:varchar(255)"`
	OrderImportedAt    time.Time  `gorm:"not null"`
	ShippedExportedAt  *time.Time `gorm:""`
	TrackingExportedAt *time.Time `gorm:""`
	ImportSuccess      bool       `gorm:"not null;default:false"`
	ImportError        bool       `gorm:"not null;default:false"`
	ErrorMessage       string     `gorm:"type:text;not null;default:''"`
	Timestamps
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "order_ledger"
}

// ToDomain converts the persistence model to a domain ShipmentLedgerEntry.
func (m *LedgerEntryModel) ToDomain() *order.ShipmentLedgerEntry {
	var lineIDs []string
	if m.RemoteLineIDs != "" {
		_ = json.Unmarshal([]byte(m.RemoteLineIDs), &lineIDs)
	}
	return &order.ShipmentLedgerEntry{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		ConnectionID:       m.ConnectionID,
		RemoteOrderNumber:  m.RemoteOrderNumber,
		RemoteLineIDs:      lineIDs,
		IsShipped:          m.IsShipped,
		CarrierName:        m.CarrierName,
		TrackingNumber:     m.TrackingNumber,
		OrderImportedAt:    m.OrderImportedAt,
		ShippedExportedAt:  m.ShippedExportedAt,
		TrackingExportedAt: m.TrackingExportedAt,
		ImportSuccess:      m.ImportSuccess,
		ImportError:        m.ImportError,
		ErrorMessage:       m.ErrorMessage,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ShipmentLedgerEntry.
func (m *LedgerEntryModel) FromDomain(e *order.ShipmentLedgerEntry) {
	lineIDs := e.RemoteLineIDs
	if lineIDs == nil {
		lineIDs = []string{}
	}
	data, _ := json.Marshal(lineIDs)

	m.ID = e.ID
	m.OrderID = e.OrderID
	m.ConnectionID = e.ConnectionID
	m.RemoteOrderNumber = e.RemoteOrderNumber
	m.RemoteLineIDs = string(data)
	m.IsShipped = e.IsShipped
	m.CarrierName = e.CarrierName
	m.TrackingNumber = e.TrackingNumber
	m.OrderImportedAt = e.OrderImportedAt
	m.ShippedExportedAt = e.ShippedExportedAt
	m.TrackingExportedAt = e.TrackingExportedAt
	m.ImportSuccess = e.ImportSuccess
	m.ImportError = e.ImportError
	m.ErrorMessage = e.ErrorMessage
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}
