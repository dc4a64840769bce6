package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
)

// OfferBuilder renders offer update records from the stored option rows.
// Only options that were exported in a catalog before can be updated.
type OfferBuilder struct {
	store   catalog.Store
	options catalog.OptionRepository
	conn    *connection.Connection
	logger  *zap.Logger
	skipped map[catalog.SkipReason]int
	count   int
}

// NewOfferBuilder creates an offer builder for one run
func NewOfferBuilder(store catalog.Store, options catalog.OptionRepository, conn *connection.Connection, logger *zap.Logger) *OfferBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferBuilder{
		store:   store,
		options: options,
		conn:    conn,
		logger:  logger,
		skipped: make(map[catalog.SkipReason]int),
	}
}

// Build loads a product by id and renders the offers of its root product
func (b *OfferBuilder) Build(ctx context.Context, productID int64) (*catalog.ProductRecord, catalog.SkipReason) {
	p, err := b.store.GetProduct(ctx, productID)
	if err != nil {
		b.skip(catalog.SkipStoreError, productID, zap.Error(err))
		return nil, catalog.SkipStoreError
	}
	return b.BuildFromProduct(ctx, p)
}

// BuildFromProduct renders the offers of the product's root product, one per
// stored option row. Rows bound to a variation read that variation's data.
func (b *OfferBuilder) BuildFromProduct(ctx context.Context, p *catalog.Product) (*catalog.ProductRecord, catalog.SkipReason) {
	rootID := p.RootID()
	root := p
	if p.IsVariation() {
		loaded, err := b.store.GetProduct(ctx, rootID)
		if err != nil {
			b.skip(catalog.SkipStoreError, rootID, zap.Error(err))
			return nil, catalog.SkipStoreError
		}
		root = loaded
	}

	rows, err := b.options.FindByProduct(ctx, rootID)
	if err != nil {
		b.skip(catalog.SkipStoreError, rootID, zap.Error(err))
		return nil, catalog.SkipStoreError
	}
	if len(rows) == 0 {
		b.skip(catalog.SkipNoOptionRows, rootID)
		return nil, catalog.SkipNoOptionRows
	}

	variations := make(map[int64]*catalog.Product)
	record := &catalog.ProductRecord{Identifier: rootID}
	for _, row := range rows {
		source, parent := root, (*catalog.Product)(nil)
		if row.VariationID != nil {
			v, ok := variations[*row.VariationID]
			if !ok {
				v, err = b.store.GetProduct(ctx, *row.VariationID)
				if err != nil {
					b.skip(catalog.SkipStoreError, rootID, zap.Int64("variation_id", *row.VariationID), zap.Error(err))
					return nil, catalog.SkipStoreError
				}
				variations[*row.VariationID] = v
			}
			source, parent = v, root
		}

		option := catalog.OptionRecord{
			Identifier: row.OptionID,
			Stock:      catalog.ComputeStock(source, b.conn.Offer.StockPolicy()),
		}
		applyOfferFields(&option, source, parent, b.conn)
		record.Options = append(record.Options, option)
	}
	b.count += len(record.Options)
	return record, catalog.SkipNone
}

// Skipped returns the skip counts of this run
func (b *OfferBuilder) Skipped() map[catalog.SkipReason]int {
	out := make(map[catalog.SkipReason]int, len(b.skipped))
	for k, v := range b.skipped {
		out[k] = v
	}
	return out
}

// OptionCount returns the number of offers built so far
func (b *OfferBuilder) OptionCount() int {
	return b.count
}

func (b *OfferBuilder) skip(reason catalog.SkipReason, productID int64, fields ...zap.Field) {
	b.skipped[reason]++
	fields = append([]zap.Field{
		zap.Int64("product_id", productID),
		zap.String("reason", reason.String()),
	}, fields...)
	if reason == catalog.SkipStoreError {
		b.logger.Error(reason.Message(), fields...)
		return
	}
	b.logger.Warn(reason.Message(), fields...)
}
