// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics provides synchronization metrics.
// It tracks exported options, per-order import outcomes and reported shipments.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	optionsExportedTotal   *Counter
	optionsSkippedTotal    *Counter
	ordersTotal            *Counter
	shipmentsReportedTotal *Counter

	// Histogram metrics
	jobDuration *Histogram

	// Gauge metrics (point-in-time values)
	offerQueueDepth      *Gauge
	pendingShipmentCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stateProvider SyncStateProvider
}

// SyncStateProvider provides backlog sizes for periodic metrics collection.
// This interface keeps the telemetry layer independent of the sync domains.
type SyncStateProvider interface {
	// OfferQueueDepth returns the number of products waiting for an offer export
	OfferQueueDepth(ctx context.Context) (int64, error)

	// PendingShipmentCount returns shipped orders per connection not yet reported
	PendingShipmentCount(ctx context.Context) (map[int64]int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StateProvider   SyncStateProvider
}

// Sync metric attribute keys
var (
	AttrConnectionID = attribute.Key("connection_id")
	AttrContentType  = attribute.Key("content_type")
	AttrSkipReason   = attribute.Key("skip_reason")
	AttrOutcome      = attribute.Key("outcome")
	AttrJobType      = attribute.Key("job_type")
)

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stateProvider: cfg.StateProvider,
	}

	var err error

	// Export metrics
	sm.optionsExportedTotal, err = NewCounter(
		cfg.Meter,
		"marketsync_options_exported_total",
		"Total number of options written to export documents",
		"{options}",
	)
	if err != nil {
		return nil, err
	}

	sm.optionsSkippedTotal, err = NewCounter(
		cfg.Meter,
		"marketsync_options_skipped_total",
		"Total number of products or options left out of export documents",
		"{options}",
	)
	if err != nil {
		return nil, err
	}

	// Order metrics
	sm.ordersTotal, err = NewCounter(
		cfg.Meter,
		"marketsync_orders_total",
		"Total number of remote orders processed by outcome",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.shipmentsReportedTotal, err = NewCounter(
		cfg.Meter,
		"marketsync_shipments_reported_total",
		"Total number of shipments reported to the marketplace",
		"{shipments}",
	)
	if err != nil {
		return nil, err
	}

	sm.jobDuration, err = NewHistogram(
		cfg.Meter,
		"marketsync_job_duration_seconds",
		"Duration of sync job runs by job type and outcome",
		"s",
		JobDurationBuckets,
	)
	if err != nil {
		return nil, err
	}

	// Backlog gauges
	sm.offerQueueDepth, err = NewGauge(
		cfg.Meter,
		"marketsync_offer_queue_depth",
		"Products waiting for an offer export",
		"{products}",
	)
	if err != nil {
		return nil, err
	}

	sm.pendingShipmentCount, err = NewGauge(
		cfg.Meter,
		"marketsync_pending_shipments",
		"Shipped orders not yet reported to the marketplace",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Sync metrics initialized")
	return sm, nil
}

func connectionAttr(connectionID int64) attribute.KeyValue {
	return AttrConnectionID.String(strconv.FormatInt(connectionID, 10))
}

// RecordOptionsExported adds n options written for a connection and content type.
func (sm *SyncMetrics) RecordOptionsExported(ctx context.Context, connectionID int64, contentType string, n int) {
	if n <= 0 {
		return
	}
	sm.optionsExportedTotal.Add(ctx, int64(n),
		connectionAttr(connectionID),
		AttrContentType.String(contentType),
	)
}

// RecordOptionsSkipped adds n skipped items for a skip reason.
func (sm *SyncMetrics) RecordOptionsSkipped(ctx context.Context, connectionID int64, contentType, reason string, n int) {
	if n <= 0 {
		return
	}
	sm.optionsSkippedTotal.Add(ctx, int64(n),
		connectionAttr(connectionID),
		AttrContentType.String(contentType),
		AttrSkipReason.String(reason),
	)
}

// RecordOrderOutcome counts one processed remote order.
func (sm *SyncMetrics) RecordOrderOutcome(ctx context.Context, connectionID int64, outcome string) {
	sm.ordersTotal.Inc(ctx,
		connectionAttr(connectionID),
		AttrOutcome.String(outcome),
	)
}

// RecordShipmentsReported adds n reported shipments.
func (sm *SyncMetrics) RecordShipmentsReported(ctx context.Context, connectionID int64, n int) {
	if n <= 0 {
		return
	}
	sm.shipmentsReportedTotal.Add(ctx, int64(n), connectionAttr(connectionID))
}

// RecordJobRun records the duration of one job run for a connection.
func (sm *SyncMetrics) RecordJobRun(ctx context.Context, connectionID int64, jobType, outcome string, d time.Duration) {
	sm.jobDuration.RecordDuration(ctx, d,
		connectionAttr(connectionID),
		AttrJobType.String(jobType),
		AttrOutcome.String(outcome),
	)
}

// RecordOfferQueueDepth records the current offer queue size.
func (sm *SyncMetrics) RecordOfferQueueDepth(ctx context.Context, depth int64) {
	sm.offerQueueDepth.Record(ctx, depth)
}

// RecordPendingShipments records the shipped but unreported orders of a connection.
func (sm *SyncMetrics) RecordPendingShipments(ctx context.Context, connectionID int64, count int64) {
	sm.pendingShipmentCount.Record(ctx, count, connectionAttr(connectionID))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of backlog gauges.
// This is non-blocking - use Stop() to stop collection.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collectBacklog(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collectBacklog(ctx)
		}
	}
}

func (sm *SyncMetrics) collectBacklog(ctx context.Context) {
	if sm.stateProvider == nil {
		sm.logger.Debug("No sync state provider configured, skipping backlog collection")
		return
	}

	depth, err := sm.stateProvider.OfferQueueDepth(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get offer queue depth", zap.Error(err))
	} else {
		sm.RecordOfferQueueDepth(ctx, depth)
	}

	pending, err := sm.stateProvider.PendingShipmentCount(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get pending shipment count", zap.Error(err))
		return
	}
	for connectionID, count := range pending {
		sm.RecordPendingShipments(ctx, connectionID, count)
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
