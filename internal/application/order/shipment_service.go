package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// DefaultShipmentBatchSize is the number of ledger rows reported per run
const DefaultShipmentBatchSize = 50

// ShipmentService marks imported orders shipped when the storefront signals
// it, and reports shipped orders to the marketplace.
type ShipmentService struct {
	ledger      order.LedgerRepository
	connections connection.Reader
	orders      order.LocalOrderStore
	client      marketplace.Client
	logger      *zap.Logger
	now         func() time.Time

	syncMetrics *telemetry.SyncMetrics
}

// NewShipmentService creates a new ShipmentService
func NewShipmentService(
	ledger order.LedgerRepository,
	connections connection.Reader,
	orders order.LocalOrderStore,
	client marketplace.Client,
	logger *zap.Logger,
) *ShipmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShipmentService{
		ledger:      ledger,
		connections: connections,
		orders:      orders,
		client:      client,
		logger:      logger,
		now:         time.Now,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (s *ShipmentService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.syncMetrics = m
}

// EventTypes returns the event types this handler is interested in
func (s *ShipmentService) EventTypes() []string {
	return []string{order.EventTypeOrderStatusChanged, order.EventTypeCarrierMetadataWritten}
}

// Handle processes order status and carrier metadata events
func (s *ShipmentService) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *order.OrderStatusChangedEvent:
		return s.HandleStatusChanged(ctx, e.OrderID, e.NewStatus)
	case *order.CarrierMetadataWrittenEvent:
		return s.HandleCarrierMetadata(ctx, e.OrderID, e.Key, e.Value)
	}
	return nil
}

// importedOrder returns the ledger row and connection of a local order.
// Both are nil for orders that were not imported by this service.
func (s *ShipmentService) importedOrder(ctx context.Context, orderID int64) (*order.ShipmentLedgerEntry, *connection.Connection, error) {
	entry, err := s.ledger.FindByOrderID(ctx, orderID)
	if errors.Is(err, order.ErrLedgerEntryNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("look up ledger entry for order %d: %w", orderID, err)
	}

	conn, err := s.connections.FindByID(ctx, entry.ConnectionID)
	if errors.Is(err, connection.ErrNotFound) {
		s.logger.Warn("Imported order belongs to a removed connection.",
			zap.Int64("order_id", orderID),
			zap.Int64("connection_id", entry.ConnectionID),
		)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load connection %d: %w", entry.ConnectionID, err)
	}
	return entry, conn, nil
}

// HandleStatusChanged marks the order shipped when its new status is the
// connection's trigger status, taking the tracking code from the order notes.
func (s *ShipmentService) HandleStatusChanged(ctx context.Context, orderID int64, newStatus string) error {
	entry, conn, err := s.importedOrder(ctx, orderID)
	if err != nil || entry == nil {
		return err
	}
	if conn.Shipment.TriggeredByCarrier() ||
		order.NormalizeStatus(conn.Shipment.TriggerStatus) != order.NormalizeStatus(newStatus) {
		return nil
	}

	var code string
	notes, err := s.orders.ListNotes(ctx, orderID)
	if err != nil {
		s.logger.Warn("Failed to read order notes, shipping without tracking code.",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	} else if extractor, err := order.NewTrackingExtractor(conn.Shipment.Patterns()); err != nil {
		s.logger.Warn("Invalid tracking code patterns.", zap.Int64("connection_id", conn.ID), zap.Error(err))
	} else if found, ok := extractor.Extract(notes); ok {
		code = found
	}

	entry.MarkShipped(code)
	if err := s.ledger.Update(ctx, entry); err != nil {
		return fmt.Errorf("mark order %d shipped: %w", orderID, err)
	}
	s.logger.Info("Order marked shipped.",
		zap.Int64("order_id", orderID),
		zap.String("remote_order_number", entry.RemoteOrderNumber),
		zap.Bool("tracking_code", code != ""),
	)
	return nil
}

// HandleCarrierMetadata marks the order shipped when a carrier plugin stores
// a shipment with a track & trace code and the connection waits for it.
func (s *ShipmentService) HandleCarrierMetadata(ctx context.Context, orderID int64, key, value string) error {
	if !order.IsCarrierShipmentMetaKey(key) {
		return nil
	}
	entry, conn, err := s.importedOrder(ctx, orderID)
	if err != nil || entry == nil {
		return err
	}
	if !conn.Shipment.TriggeredByCarrier() {
		return nil
	}

	code, ok := order.CarrierTrackingCode(value)
	if !ok {
		return nil
	}
	entry.MarkShipped(code)
	if err := s.ledger.Update(ctx, entry); err != nil {
		return fmt.Errorf("mark order %d shipped: %w", orderID, err)
	}
	s.logger.Info("Order marked shipped by carrier.",
		zap.Int64("order_id", orderID),
		zap.String("remote_order_number", entry.RemoteOrderNumber),
	)
	return nil
}

// Drain reports up to size shipped orders of a connection. Each row is
// stamped as exported before the remote call; a failed call is logged and
// not retried.
func (s *ShipmentService) Drain(ctx context.Context, conn *connection.Connection, size int) (int, error) {
	log := s.logger.With(
		zap.String("process", ProcessShipmentExport),
		zap.Int64("connection_id", conn.ID),
	)
	log.Info("Process started.")
	defer log.Info("Process ended.")

	if size <= 0 {
		size = DefaultShipmentBatchSize
	}
	rows, err := s.ledger.ListReadyForExport(ctx, conn.ID, size)
	if err != nil {
		return 0, fmt.Errorf("list shipments ready for export: %w", err)
	}
	log.Info(fmt.Sprintf("%d shipment(s) to export.", len(rows)))

	creds := marketplace.CredentialsFor(conn.ID, conn.PublicKey, conn.PrivateKey)
	reported := 0
	for i := range rows {
		entry := &rows[i]
		rowLog := log.With(zap.String("remote_order_number", entry.RemoteOrderNumber))

		entry.StampExported(s.now())
		if err := s.ledger.Update(ctx, entry); err != nil {
			rowLog.Error("Failed to stamp shipment export.", zap.Error(err))
			continue
		}

		if err := s.client.UpdateOrder(ctx, creds, shipmentUpdate(entry)); err != nil {
			rowLog.Error("Shipment export failed.", zap.Error(err))
			continue
		}
		reported++
	}

	if s.syncMetrics != nil {
		s.syncMetrics.RecordShipmentsReported(ctx, conn.ID, reported)
	}
	return reported, nil
}

func shipmentUpdate(entry *order.ShipmentLedgerEntry) marketplace.OrderUpdate {
	lines := make([]marketplace.LineUpdate, 0, len(entry.RemoteLineIDs))
	for _, id := range entry.RemoteLineIDs {
		lines = append(lines, marketplace.LineUpdate{
			LineID:         id,
			IdentifierType: marketplace.LineIdentifierTypeRemoteID,
			CarrierName:    entry.CarrierName,
			TrackingNumber: entry.TrackingNumber,
		})
	}
	return marketplace.OrderUpdate{
		OrderNumber:    entry.RemoteOrderNumber,
		IdentifierType: marketplace.OrderIdentifierTypeNumber,
		Lines:          lines,
	}
}
