package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	catalogapp "github.com/marketsync/backend/internal/application/catalog"
	orderapp "github.com/marketsync/backend/internal/application/order"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
)

// Default batch sizes when the export configuration leaves them unset
const (
	DefaultOfferQueueSize    = 500
	DefaultShipmentQueueSize = 50
	DefaultArtifactRetention = 7 * 24 * time.Hour
)

// NewExecutor registers every sync process with a job executor
func (c *Container) NewExecutor() *scheduler.Executor {
	exec := scheduler.NewExecutor(c.Connections, c.SyncMetrics, c.Logger)
	exportCfg := c.Config.Export

	exec.Register(scheduler.JobTypeCatalogExport, func(ctx context.Context, conn *connection.Connection) (string, error) {
		res, err := c.Exports.ExportCatalog(ctx, conn)
		if err != nil {
			return "", err
		}
		return exportSummary(res), nil
	})
	exec.Register(scheduler.JobTypeFullOfferExport, func(ctx context.Context, conn *connection.Connection) (string, error) {
		res, err := c.Exports.ExportFullOffers(ctx, conn)
		if err != nil {
			return "", err
		}
		return exportSummary(res), nil
	})
	exec.Register(scheduler.JobTypeQueuedOfferExport, func(ctx context.Context, conn *connection.Connection) (string, error) {
		res, err := c.Exports.ExportQueuedOffers(ctx, conn, orDefault(exportCfg.OfferQueueSize, DefaultOfferQueueSize))
		if err != nil {
			return "", err
		}
		return exportSummary(res), nil
	})
	exec.Register(scheduler.JobTypeOrderImport, func(ctx context.Context, conn *connection.Connection) (string, error) {
		sum, err := c.Imports.ImportOrders(ctx, conn)
		if err != nil {
			return "", err
		}
		return importSummary(sum), nil
	})
	exec.Register(scheduler.JobTypeShipmentExport, func(ctx context.Context, conn *connection.Connection) (string, error) {
		n, err := c.Shipments.Drain(ctx, conn, orDefault(exportCfg.ShipmentQueueSize, DefaultShipmentQueueSize))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d shipments reported", n), nil
	})
	exec.RegisterGlobal(scheduler.JobTypeArtifactCleanup, func(context.Context) (string, error) {
		retention := exportCfg.ArtifactRetention
		if retention <= 0 {
			retention = DefaultArtifactRetention
		}
		n, err := c.Artifacts.Cleanup(retention)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d artifacts removed", n), nil
	})
	return exec
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func exportSummary(r *catalogapp.Result) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d products, %d options", r.ContentType, r.ProductCount, r.OptionCount)
	if r.Removed > 0 {
		fmt.Fprintf(&b, ", %d identities removed", r.Removed)
	}
	if len(r.Skipped) > 0 {
		keys := make([]string, 0, len(r.Skipped))
		for reason, n := range r.Skipped {
			keys = append(keys, fmt.Sprintf("%s=%d", reason, n))
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, ", skipped %s", strings.Join(keys, " "))
	}
	return b.String()
}

func importSummary(s *orderapp.ImportSummary) string {
	if s == nil {
		return ""
	}
	skipped := 0
	for _, n := range s.Skipped {
		skipped += n
	}
	return fmt.Sprintf("%d listed, %d imported, %d skipped, %d failed", s.Listed, s.Imported, skipped, s.Failed)
}
