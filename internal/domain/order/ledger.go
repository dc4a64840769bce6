package order

import (
	"context"
	"time"
)

// ShipmentLedgerEntry tracks one remote order from its import claim until the
// shipment has been reported back. A row without ImportSuccess and ImportError
// is in flight.
type ShipmentLedgerEntry struct {
	ID                 int64
	OrderID            *int64
	ConnectionID       int64
	RemoteOrderNumber  string
	RemoteLineIDs      []string
	IsShipped          bool
	CarrierName        *string
	TrackingNumber     *string
	OrderImportedAt    time.Time
	ShippedExportedAt  *time.Time
	TrackingExportedAt *time.Time
	ImportSuccess      bool
	ImportError        bool
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewClaim creates the in-flight row written before any import mutation
func NewClaim(connectionID int64, remote *RemoteOrder, now time.Time) *ShipmentLedgerEntry {
	return &ShipmentLedgerEntry{
		ConnectionID:      connectionID,
		RemoteOrderNumber: remote.Number,
		RemoteLineIDs:     remote.LineIDs(),
		OrderImportedAt:   now,
	}
}

// IsImportedOrImporting reports whether the import succeeded or is still in
// flight. Failed rows report false here but keep their row, so the claim
// still refuses them until an operator reimport removes it.
func (e *ShipmentLedgerEntry) IsImportedOrImporting() bool {
	return e.ImportSuccess || !e.ImportError
}

// IsInFlight reports whether the import has neither succeeded nor failed
func (e *ShipmentLedgerEntry) IsInFlight() bool {
	return !e.ImportSuccess && !e.ImportError
}

// ReadyForExport reports whether the shipment still has to be reported
func (e *ShipmentLedgerEntry) ReadyForExport() bool {
	return e.IsShipped && e.ShippedExportedAt == nil
}

// HasTrackingData reports whether a carrier or tracking number is known
func (e *ShipmentLedgerEntry) HasTrackingData() bool {
	return e.CarrierName != nil || e.TrackingNumber != nil
}

// MarkShipped flags the order shipped, keeping a known tracking number when none is given
func (e *ShipmentLedgerEntry) MarkShipped(trackingNumber string) {
	e.IsShipped = true
	if trackingNumber != "" {
		tn := trackingNumber
		e.TrackingNumber = &tn
	}
}

// StampExported records the report attempt. Stamps are written before the
// remote call and never rolled back.
func (e *ShipmentLedgerEntry) StampExported(now time.Time) {
	e.ShippedExportedAt = &now
	if e.HasTrackingData() {
		e.TrackingExportedAt = &now
	}
}

// LedgerRepository persists shipment ledger entries
type LedgerRepository interface {
	FindByRemoteNumber(ctx context.Context, remoteNumber string) (*ShipmentLedgerEntry, error)
	FindByOrderID(ctx context.Context, orderID int64) (*ShipmentLedgerEntry, error)
	// Claim atomically inserts the entry unless a row for its remote number
	// exists. Returns true for the single winner.
	Claim(ctx context.Context, entry *ShipmentLedgerEntry) (bool, error)
	AttachOrder(ctx context.Context, remoteNumber string, orderID int64) error
	MarkImportSucceeded(ctx context.Context, remoteNumber string) error
	MarkImportFailed(ctx context.Context, remoteNumber, message string) error
	Update(ctx context.Context, entry *ShipmentLedgerEntry) error
	// ListReadyForExport returns shipped rows not yet reported, oldest first
	ListReadyForExport(ctx context.Context, connectionID int64, limit int) ([]ShipmentLedgerEntry, error)
	DeleteByRemoteNumber(ctx context.Context, remoteNumber string) error
}
