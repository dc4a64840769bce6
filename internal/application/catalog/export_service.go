package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// LockKeyCatalogExport serializes full catalog builds across processes
const LockKeyCatalogExport = "catalog_export"

// Default export settings
const (
	DefaultPageSize = 50
	DefaultLockTTL  = 2 * time.Hour
)

// ExportConfig holds export settings
type ExportConfig struct {
	PageSize int
	LockTTL  time.Duration
}

// Result summarizes one export run
type Result struct {
	ContentType  catalog.ContentType
	FilePath     string
	ProductCount int
	OptionCount  int
	Skipped      map[catalog.SkipReason]int
	// Removed counts option identities dropped by reconciliation
	Removed int64
}

// ExportService builds catalog and offer documents and uploads them
type ExportService struct {
	store     catalog.Store
	options   catalog.OptionRepository
	queue     catalog.OfferQueue
	resolver  *IdentityResolver
	artifacts catalog.ArtifactStore
	client    marketplace.Client
	lock      shared.RunLock
	logger    *zap.Logger
	cfg       ExportConfig

	archiver    catalog.Archiver
	syncMetrics *telemetry.SyncMetrics
}

// NewExportService creates a new ExportService
func NewExportService(
	store catalog.Store,
	options catalog.OptionRepository,
	queue catalog.OfferQueue,
	artifacts catalog.ArtifactStore,
	client marketplace.Client,
	lock shared.RunLock,
	cfg ExportConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &ExportService{
		store:     store,
		options:   options,
		queue:     queue,
		resolver:  NewIdentityResolver(options, logger),
		artifacts: artifacts,
		client:    client,
		lock:      lock,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetArchiver enables archiving of uploaded artifacts
func (s *ExportService) SetArchiver(a catalog.Archiver) {
	s.archiver = a
}

// SetSyncMetrics sets the sync metrics collector
func (s *ExportService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.syncMetrics = m
}

// ---------------------------------------------------------------------------
// Catalog export
// ---------------------------------------------------------------------------

// ExportCatalog builds the full catalog for a connection, reconciles the
// option identities and uploads the document. Only one catalog build runs at
// a time.
func (s *ExportService) ExportCatalog(ctx context.Context, conn *connection.Connection) (*Result, error) {
	log := s.runLogger(ProcessCatalogExport, conn)
	log.Info("Process started.")
	defer log.Info("Process ended.")

	acquired, err := s.lock.Acquire(ctx, LockKeyCatalogExport, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire catalog export lock: %w", err)
	}
	if !acquired {
		return nil, catalog.ErrExportAlreadyRunning
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), LockKeyCatalogExport); err != nil {
			log.Warn("Failed to release catalog export lock", zap.Error(err))
		}
	}()

	session := s.resolver.NewSession()
	asm, err := NewAssembler(s.store, session, conn, log)
	if err != nil {
		return nil, err
	}

	w, err := s.artifacts.Create(catalog.ContentTypeCatalog, conn.ID)
	if err != nil {
		return nil, err
	}
	result := &Result{ContentType: catalog.ContentTypeCatalog, FilePath: w.Path()}

	telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels(telemetry.RegionCatalogBuild), func(ctx context.Context) {
		err = s.paginate(ctx, conn, func(p *catalog.Product) error {
			record, skip := asm.AssembleProduct(ctx, p)
			if skip != catalog.SkipNone {
				return nil
			}
			if err := w.Write(record); err != nil {
				return err
			}
			result.ProductCount++
			return nil
		})
	})
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	result.OptionCount = asm.OptionCount()
	result.Skipped = asm.Skipped()
	if err != nil {
		s.discard(log, w.Path())
		return result, err
	}

	var removed int64
	telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels(telemetry.RegionOptionReconcile), func(ctx context.Context) {
		removed, err = session.Reconcile(ctx)
	})
	switch {
	case err == nil:
		result.Removed = removed
	case errors.Is(err, catalog.ErrEmptyLiveSet):
		log.Info("Skipping option reconciliation, no options were resolved")
	default:
		log.Error("Option reconciliation failed", zap.Error(err))
	}

	if err := s.deliver(ctx, log, conn, result, s.client.UploadCatalog); err != nil {
		return result, err
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Offer export
// ---------------------------------------------------------------------------

// ExportFullOffers builds offers for every product and uploads them
func (s *ExportService) ExportFullOffers(ctx context.Context, conn *connection.Connection) (*Result, error) {
	log := s.runLogger(ProcessOfferExport, conn)
	log.Info("Process started.")
	defer log.Info("Process ended.")

	builder := NewOfferBuilder(s.store, s.options, conn, log)
	return s.exportOffers(ctx, log, conn, builder, func(emit func(*catalog.ProductRecord) error) error {
		return s.paginate(ctx, conn, func(p *catalog.Product) error {
			record, skip := builder.BuildFromProduct(ctx, p)
			if skip != catalog.SkipNone {
				return nil
			}
			return emit(record)
		})
	})
}

// ExportQueuedOffers drains up to limit queued products, newest first, and
// uploads their offers. Each entry is removed right after its product is
// read; an entry whose read fails on a store error stays queued for the next
// run, and a cancelled run leaves the unread entries in place.
//
// The offer queue is shared by all connections, so with several active
// connections the first one to run drains it and the others find it empty.
func (s *ExportService) ExportQueuedOffers(ctx context.Context, conn *connection.Connection, limit int) (*Result, error) {
	log := s.runLogger(ProcessOfferExport, conn)
	log.Info("Process started.")
	defer log.Info("Process ended.")

	entries, err := s.queue.Drain(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, catalog.ErrNoProductsToExport
	}

	builder := NewOfferBuilder(s.store, s.options, conn, log)
	return s.exportOffers(ctx, log, conn, builder, func(emit func(*catalog.ProductRecord) error) error {
		roots := make(map[int64]struct{}, len(entries))
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := s.store.GetProduct(ctx, e.ProductID)
			if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
				log.Error(catalog.SkipStoreError.Message(),
					zap.Int64("product_id", e.ProductID),
					zap.Error(err),
				)
				continue
			}
			s.dequeue(ctx, log, e.ProductID)
			if p == nil {
				log.Info("Queued product no longer exists", zap.Int64("product_id", e.ProductID))
				continue
			}
			if _, done := roots[p.RootID()]; done {
				continue
			}
			roots[p.RootID()] = struct{}{}

			record, skip := builder.BuildFromProduct(ctx, p)
			if skip != catalog.SkipNone {
				continue
			}
			if err := emit(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ExportService) dequeue(ctx context.Context, log *zap.Logger, productID int64) {
	if err := s.queue.Delete(ctx, productID); err != nil {
		log.Warn("Failed to remove product from offer queue",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
	}
}

func (s *ExportService) exportOffers(
	ctx context.Context,
	log *zap.Logger,
	conn *connection.Connection,
	builder *OfferBuilder,
	source func(emit func(*catalog.ProductRecord) error) error,
) (*Result, error) {
	w, err := s.artifacts.Create(catalog.ContentTypeOfferUpdate, conn.ID)
	if err != nil {
		return nil, err
	}
	result := &Result{ContentType: catalog.ContentTypeOfferUpdate, FilePath: w.Path()}

	err = source(func(record *catalog.ProductRecord) error {
		if err := w.Write(record); err != nil {
			return err
		}
		result.ProductCount++
		return nil
	})
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	result.OptionCount = builder.OptionCount()
	result.Skipped = builder.Skipped()
	if err != nil {
		s.discard(log, w.Path())
		return result, err
	}

	if err := s.deliver(ctx, log, conn, result, s.client.UploadOfferUpdate); err != nil {
		return result, err
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// paginate walks every simple and variable product page by page
func (s *ExportService) paginate(ctx context.Context, conn *connection.Connection, fn func(p *catalog.Product) error) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		products, err := s.store.ListProducts(ctx, catalog.ProductQuery{
			Page:          page,
			PageSize:      s.cfg.PageSize,
			Types:         []catalog.ProductType{catalog.ProductTypeSimple, catalog.ProductTypeVariable},
			OnlyPublished: conn.Catalog.OnlyActive,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", catalog.ErrStoreUnavailable, err)
		}
		for i := range products {
			if err := fn(&products[i]); err != nil {
				return err
			}
		}
		if len(products) < s.cfg.PageSize {
			return nil
		}
	}
}

// deliver uploads a finished artifact, archives it and removes the local copy.
// An empty document is removed without calling the marketplace.
func (s *ExportService) deliver(
	ctx context.Context,
	log *zap.Logger,
	conn *connection.Connection,
	result *Result,
	upload func(ctx context.Context, creds marketplace.Credentials, filePath string) error,
) error {
	defer s.discard(log, result.FilePath)

	s.recordSkips(ctx, conn, result)
	if result.ProductCount == 0 {
		return catalog.ErrNoProductsToExport
	}

	creds := marketplace.CredentialsFor(conn.ID, conn.PublicKey, conn.PrivateKey)
	if err := upload(ctx, creds, result.FilePath); err != nil {
		log.Error("Upload failed", zap.String("file", result.FilePath), zap.Error(err))
		return err
	}
	log.Info("Upload succeeded",
		zap.Int("products", result.ProductCount),
		zap.Int("options", result.OptionCount),
	)
	if s.syncMetrics != nil {
		s.syncMetrics.RecordOptionsExported(ctx, conn.ID, string(result.ContentType), result.OptionCount)
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, result.ContentType, conn.ID, result.FilePath); err != nil {
			log.Warn("Failed to archive export", zap.Error(err))
		}
	}
	return nil
}

func (s *ExportService) recordSkips(ctx context.Context, conn *connection.Connection, result *Result) {
	if s.syncMetrics == nil {
		return
	}
	for reason, n := range result.Skipped {
		s.syncMetrics.RecordOptionsSkipped(ctx, conn.ID, string(result.ContentType), reason.String(), n)
	}
}

func (s *ExportService) discard(log *zap.Logger, path string) {
	if err := s.artifacts.Remove(path); err != nil {
		log.Warn("Failed to remove export file", zap.String("file", path), zap.Error(err))
	}
}

func (s *ExportService) runLogger(process string, conn *connection.Connection) *zap.Logger {
	return s.logger.With(
		zap.String("process", process),
		zap.Int64("connection_id", conn.ID),
	)
}
