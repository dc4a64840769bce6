package order

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// Process names used in run logs
const (
	ProcessOrderImport    = "order_import"
	ProcessShipmentExport = "shipment_export"
)

// ImportSummary counts the outcomes of one import run
type ImportSummary struct {
	Listed   int
	Imported int
	Skipped  map[order.SkipReason]int
	Failed   int
}

// ImportService lists open remote orders and imports them one by one
type ImportService struct {
	client  marketplace.Client
	builder *Builder
	ledger  order.LedgerRepository
	logger  *zap.Logger

	syncMetrics *telemetry.SyncMetrics
}

// NewImportService creates a new ImportService
func NewImportService(
	client marketplace.Client,
	ledger order.LedgerRepository,
	options catalog.OptionRepository,
	store catalog.Store,
	orders order.LocalOrderStore,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		client:  client,
		builder: NewBuilder(ledger, options, store, orders, logger),
		ledger:  ledger,
		logger:  logger,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (s *ImportService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.syncMetrics = m
}

// ImportOrders imports every open remote order of a connection that does not
// carry an import feedback tag yet. A failing order never stops the run.
func (s *ImportService) ImportOrders(ctx context.Context, conn *connection.Connection) (*ImportSummary, error) {
	log := s.logger.With(
		zap.String("process", ProcessOrderImport),
		zap.Int64("connection_id", conn.ID),
	)
	log.Info("Process started.")
	defer log.Info("Process ended.")

	creds := marketplace.CredentialsFor(conn.ID, conn.PublicKey, conn.PrivateKey)
	remotes, err := s.client.ListOrders(ctx, creds, marketplace.OrderListFilter{
		Statuses:    conn.OrderStatusesToFetch(),
		ExcludeTags: order.ImportFeedbackTags,
	})
	if err != nil {
		log.Error("Order list failed.", zap.Error(err))
		return nil, err
	}
	log.Info(fmt.Sprintf("%d order(s) to import.", len(remotes)))

	summary := &ImportSummary{Listed: len(remotes), Skipped: make(map[order.SkipReason]int)}
	for i := range remotes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		remote := &remotes[i]

		outcome, err := s.builder.Import(ctx, conn, remote)
		if err != nil {
			// no claim was written, so the order stays untagged for the next run
			log.Error("Order import aborted.", zap.String("remote_order_number", remote.Number), zap.Error(err))
			s.count(ctx, conn.ID, summary, order.Failed(err))
			continue
		}

		s.report(ctx, log, creds, remote, outcome)
		s.count(ctx, conn.ID, summary, outcome)
	}

	log.Info("Order import finished.",
		zap.Int("imported", summary.Imported),
		zap.Int("failed", summary.Failed),
		zap.Int("listed", summary.Listed),
	)
	return summary, nil
}

// report links the local order on the remote order and tags the outcome.
// Both calls are best effort.
func (s *ImportService) report(ctx context.Context, log *zap.Logger, creds marketplace.Credentials, remote *order.RemoteOrder, outcome order.Outcome) {
	log = log.With(zap.String("remote_order_number", remote.Number))

	if outcome.Status == order.OutcomeImported && outcome.Local != nil {
		err := s.client.UpdateOrder(ctx, creds, marketplace.OrderUpdate{
			OrderNumber:          remote.Number,
			IdentifierType:       marketplace.OrderIdentifierTypeNumber,
			ConnectionIdentifier: strconv.FormatInt(outcome.Local.ID, 10),
			ConnectionNumber:     outcome.Local.Number,
		})
		if err != nil {
			log.Error("Linking local order failed.", zap.Int64("order_id", outcome.Local.ID), zap.Error(err))
			return
		}
	}

	tag := outcome.FeedbackTag()
	err := s.client.UpdateOrder(ctx, creds, marketplace.OrderUpdate{
		OrderNumber:    remote.Number,
		IdentifierType: marketplace.OrderIdentifierTypeNumber,
		AddTags:        []string{tag},
	})
	if err != nil {
		log.Error("Tagging remote order failed.", zap.String("tag", tag), zap.Error(err))
	}
}

func (s *ImportService) count(ctx context.Context, connectionID int64, summary *ImportSummary, outcome order.Outcome) {
	switch outcome.Status {
	case order.OutcomeImported:
		summary.Imported++
	case order.OutcomeSkipped:
		summary.Skipped[outcome.SkipReason]++
	case order.OutcomeFailed:
		summary.Failed++
	}
	if s.syncMetrics != nil {
		s.syncMetrics.RecordOrderOutcome(ctx, connectionID, string(outcome.Status))
	}
}

// ForceReimport removes the ledger row of a remote order so the next run may
// import it again. Successfully imported orders are only released with force.
// The feedback tag on the remote order must be removed by hand.
func (s *ImportService) ForceReimport(ctx context.Context, remoteNumber string, force bool) error {
	entry, err := s.ledger.FindByRemoteNumber(ctx, remoteNumber)
	if err != nil {
		return err
	}
	if entry.ImportSuccess && !force {
		return order.ErrReimportNotAllowed
	}
	if err := s.ledger.DeleteByRemoteNumber(ctx, remoteNumber); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	s.logger.Info("Ledger entry removed for reimport.",
		zap.String("remote_order_number", remoteNumber),
		zap.Bool("force", force),
	)
	return nil
}
