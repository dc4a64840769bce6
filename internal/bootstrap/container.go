// Package bootstrap builds the service graph shared by the server and the
// command line tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	catalogapp "github.com/marketsync/backend/internal/application/catalog"
	orderapp "github.com/marketsync/backend/internal/application/order"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/cache"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/event"
	"github.com/marketsync/backend/internal/infrastructure/export"
	mpclient "github.com/marketsync/backend/internal/infrastructure/marketplace"
	"github.com/marketsync/backend/internal/infrastructure/persistence"
	"github.com/marketsync/backend/internal/infrastructure/secrets"
	"github.com/marketsync/backend/internal/infrastructure/storage"
	"github.com/marketsync/backend/internal/infrastructure/storefront"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// Container holds the wired services. Close releases them in reverse order.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB          *persistence.Database
	Connections *persistence.GormConnectionRepository
	Ledger      *persistence.GormLedgerRepository
	Options     *persistence.GormOptionRepository
	OfferQueue  *persistence.GormOfferQueue

	Storefront  *storefront.Adapter
	Marketplace *mpclient.Client
	RunLock     shared.RunLock
	Deliveries  shared.DeliveryLedger
	Snapshots   *cache.SnapshotCache
	Artifacts   *export.LocalArtifactStore
	Bus         *event.InMemoryEventBus

	Exports   *catalogapp.ExportService
	Imports   *orderapp.ImportService
	Shipments *orderapp.ShipmentService
	Watcher   *catalogapp.ProductWatcher

	Tracer      *telemetry.TracerProvider
	Meter       *telemetry.MeterProvider
	SyncMetrics *telemetry.SyncMetrics

	closers []func(context.Context) error
}

// New connects to the database and remote systems and wires every service
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (c *Container, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	c = &Container{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	if err = c.initTelemetry(ctx); err != nil {
		return nil, err
	}

	c.DB, err = persistence.NewDatabase(&cfg.Database, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	if err != nil {
		return nil, err
	}
	c.onClose(func(context.Context) error { return c.DB.Close() })
	log.Info("Database connected successfully")

	sealer, err := secrets.NewSealer(cfg.Secrets.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("init key sealer: %w", err)
	}
	c.Connections = persistence.NewGormConnectionRepository(c.DB.DB, sealer)
	c.Ledger = persistence.NewGormLedgerRepository(c.DB.DB)
	c.Options = persistence.NewGormOptionRepository(c.DB.DB)
	c.OfferQueue = persistence.NewGormOfferQueue(c.DB.DB)

	if c.Storefront, err = storefront.NewAdapter(&cfg.Storefront, storefront.WithLogger(log)); err != nil {
		return nil, fmt.Errorf("init storefront adapter: %w", err)
	}
	if c.Marketplace, err = mpclient.NewClient(&cfg.Marketplace, mpclient.WithLogger(log)); err != nil {
		return nil, fmt.Errorf("init marketplace client: %w", err)
	}

	c.RunLock = cache.NewRunLock(cfg.Redis, log)
	c.onClose(func(context.Context) error { return c.RunLock.Close() })
	c.Deliveries = cache.NewDeliveryLedger(c.RunLock, log)
	c.Snapshots = cache.NewSnapshotCache(cfg.Storefront.SnapshotTTL)
	c.Artifacts = export.NewLocalArtifactStore(cfg.Export.TempDir, log)

	c.Exports = catalogapp.NewExportService(
		c.Storefront, c.Options, c.OfferQueue, c.Artifacts, c.Marketplace, c.RunLock,
		catalogapp.ExportConfig{PageSize: cfg.Export.PageSize, LockTTL: cfg.Export.LockTTL},
		log,
	)
	if cfg.Export.ArchiveToStorage {
		archiver, err := storage.NewS3Archiver(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("init artifact archiver: %w", err)
		}
		c.Exports.SetArchiver(archiver)
	}
	c.Imports = orderapp.NewImportService(c.Marketplace, c.Ledger, c.Options, c.Storefront, c.Storefront, log)
	c.Shipments = orderapp.NewShipmentService(c.Ledger, c.Connections, c.Storefront, c.Marketplace, log)
	c.Watcher = catalogapp.NewProductWatcher(c.OfferQueue, c.Connections, c.Snapshots, log)

	c.Bus = event.NewInMemoryEventBus(log)
	c.Bus.Subscribe(c.Watcher)
	c.Bus.Subscribe(c.Shipments)
	return c, nil
}

func (c *Container) initTelemetry(ctx context.Context) error {
	tcfg := c.Config.Telemetry
	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tcfg.Enabled,
		CollectorEndpoint: tcfg.CollectorEndpoint,
		SamplingRatio:     tcfg.SamplingRatio,
		ServiceName:       tcfg.ServiceName,
		Insecure:          tcfg.Insecure,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	c.Tracer = tracer
	c.onClose(tracer.Shutdown)

	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tcfg.MetricsEnabled,
		CollectorEndpoint: tcfg.CollectorEndpoint,
		ExportInterval:    tcfg.MetricsInterval,
		ServiceName:       tcfg.ServiceName,
		Insecure:          tcfg.Insecure,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	c.Meter = meter
	c.onClose(meter.Shutdown)
	return nil
}

// StartSyncMetrics creates the sync metric instruments and starts the
// backlog collection. It is a no-op when metrics are disabled.
func (c *Container) StartSyncMetrics(ctx context.Context) error {
	if !c.Meter.IsEnabled() || c.SyncMetrics != nil {
		return nil
	}
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:         c.Meter.Meter("marketsync.sync"),
		Logger:        c.Logger,
		StateProvider: telemetry.NewGormSyncStateProvider(c.DB.DB),
	})
	if err != nil {
		return fmt.Errorf("init sync metrics: %w", err)
	}
	c.SyncMetrics = sm
	c.Exports.SetSyncMetrics(sm)
	c.Imports.SetSyncMetrics(sm)
	c.Shipments.SetSyncMetrics(sm)
	sm.StartPeriodicCollection(ctx, 0)
	c.onClose(func(context.Context) error {
		sm.Stop()
		return nil
	})
	return nil
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// ParseConnectionID parses a connection id given on the command line. An
// empty value or "all" selects all active connections.
func ParseConnectionID(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid connection id %q", s)
	}
	return &id, nil
}
